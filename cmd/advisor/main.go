package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hexadvisor.ai/internal/advisor"
	"hexadvisor.ai/internal/persistence/indexdb"
	persistlog "hexadvisor.ai/internal/persistence/log"
	"hexadvisor.ai/internal/persistence/snapshot"
	"hexadvisor.ai/internal/sim/tuning"
	"hexadvisor.ai/internal/transport/observer"
	"hexadvisor.ai/internal/transport/ws"
)

func main() {
	cfg, err := loadConfig(os.Args[1:], nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("advisor stopped", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func loadTuning(path string) (tuning.Tuning, error) {
	if path == "" {
		return tuning.Defaults(), nil
	}
	return tuning.Load(path)
}

func run(cfg Config, logger *zap.Logger) error {
	tune, err := loadTuning(cfg.TuningPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var journal *persistlog.FrameJournal
	if !cfg.DisableJournal {
		journal = persistlog.NewFrameJournal(cfg.DataDir)
		defer func() {
			if err := journal.Close(); err != nil {
				logger.Warn("close journal", zap.Error(err))
			}
		}()
	} else {
		logger.Info("frame journal disabled")
	}

	var index *indexdb.SQLiteIndex
	if !cfg.DisableDB {
		index, err = indexdb.OpenSQLite(filepath.Join(cfg.DataDir, "index", "advisor.sqlite"), logger.Named("indexdb"))
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer func() { _ = index.Close() }()
		if err := index.UpsertTuning(ctx, tune); err != nil {
			logger.Warn("store tuning", zap.Error(err))
		}
	} else {
		logger.Info("advisory index disabled")
	}

	hub := observer.NewHub()
	opts := advisor.ManagerOptions{
		Session:  advisor.Options{Tuning: tune},
		Recorder: advisor.Recorders{hub},
		Logger:   logger.Named("advisor"),
	}
	if journal != nil {
		opts.Journal = journal
	}
	if index != nil {
		opts.Recorder = advisor.Recorders{index, hub}
	}
	if !cfg.DisableArchive {
		opts.Archive = snapshot.NewStore(cfg.DataDir)
	}
	sessions := advisor.NewManager(opts)
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Warn("archive sessions", zap.Error(err))
		}
	}()

	if cfg.SessionIdle > 0 {
		go sweep(ctx, sessions, journal, cfg.SessionIdle)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(sessions, hub, index))
	if cfg.EnableObserver {
		obs := observer.NewServer(sessions, hub, logger.Named("observer"))
		if index != nil {
			obs.WithHistory(index)
		}
		mux.HandleFunc("GET /v1/sessions/{id}/advisory", obs.AdvisoryHandler())
		mux.HandleFunc("GET /v1/sessions/{id}/history", obs.HistoryHandler())
		mux.HandleFunc("/v1/observe", obs.WSHandler())
	} else {
		logger.Info("observer endpoints disabled")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(sessions, logger.Named("ws")).Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("data", cfg.DataDir))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func sweep(ctx context.Context, sessions *advisor.Manager, journal *persistlog.FrameJournal, idle time.Duration) {
	t := time.NewTicker(max(idle/4, time.Second))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, id := range sessions.Sweep(idle) {
				if journal != nil {
					_ = journal.CloseSession(id)
				}
			}
		}
	}
}

func metricsHandler(sessions *advisor.Manager, hub *observer.Hub, index *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP hexadvisor_sessions Live advisory sessions.\n")
		fmt.Fprintf(rw, "# TYPE hexadvisor_sessions gauge\n")
		fmt.Fprintf(rw, "hexadvisor_sessions %d\n", sessions.Len())

		fmt.Fprintf(rw, "# HELP hexadvisor_observers Connected advisory watchers.\n")
		fmt.Fprintf(rw, "# TYPE hexadvisor_observers gauge\n")
		fmt.Fprintf(rw, "hexadvisor_observers %d\n", hub.Subscribers())

		fmt.Fprintf(rw, "# HELP hexadvisor_observer_dropped_total Advisory pushes dropped for slow watchers.\n")
		fmt.Fprintf(rw, "# TYPE hexadvisor_observer_dropped_total counter\n")
		fmt.Fprintf(rw, "hexadvisor_observer_dropped_total %d\n", hub.Dropped())

		if index == nil {
			return
		}
		st := index.Stats()
		fmt.Fprintf(rw, "# HELP hexadvisor_index_queue_depth Advisory index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE hexadvisor_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "hexadvisor_index_queue_depth %d\n", st.QueueDepth)
		fmt.Fprintf(rw, "# HELP hexadvisor_index_dropped_total Advisories not indexed because the writer fell behind.\n")
		fmt.Fprintf(rw, "# TYPE hexadvisor_index_dropped_total counter\n")
		fmt.Fprintf(rw, "hexadvisor_index_dropped_total %d\n", st.DropTotal)
		fmt.Fprintf(rw, "# HELP hexadvisor_index_write_fail_total Advisories lost to sqlite errors.\n")
		fmt.Fprintf(rw, "# TYPE hexadvisor_index_write_fail_total counter\n")
		fmt.Fprintf(rw, "hexadvisor_index_write_fail_total %d\n", st.WriteFailTotal)
	}
}
