package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"hexadvisor.ai/internal/protocol"
	"hexadvisor.ai/internal/sim/tuning"
)

const defaultQueueSize = 4096

// SQLiteIndex is a queryable history of emitted advisories. Writes go through
// a buffered channel drained by one goroutine; when it falls behind, rows are
// dropped and counted.
type SQLiteIndex struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time

	ch   chan advisoryRow
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTotal      atomic.Uint64
	writeFailTotal atomic.Uint64
}

type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropTotal      uint64 `json:"drop_total"`
	WriteFailTotal uint64 `json:"write_fail_total"`
}

// AdvisoryRow is one recorded advisory.
type AdvisoryRow struct {
	SessionID     string
	Seq           uint64
	Phase         string
	SetupTurn     int
	BestVertex    string
	BestTile      string
	BestTileScore float64
	PayloadJSON   string
	RecordedAt    time.Time
}

type advisoryRow struct {
	AdvisoryRow
	hasBestTile bool
}

func OpenSQLite(path string, logger *zap.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:  db,
		log: logger,
		now: time.Now,
		ch:  make(chan advisoryRow, defaultQueueSize),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload; NORMAL is enough for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS advisories (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			phase TEXT NOT NULL,
			setup_turn INTEGER NOT NULL,
			best_vertex TEXT,
			best_tile TEXT,
			best_tile_score REAL,
			payload_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_advisories_recorded_at ON advisories(recorded_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTotal:      s.dropTotal.Load(),
		WriteFailTotal: s.writeFailTotal.Load(),
	}
}

// Record queues adv for writing. It never blocks.
func (s *SQLiteIndex) Record(sessionID string, seq uint64, adv protocol.Advisory) {
	if s == nil || s.closed.Load() {
		return
	}
	payload, err := json.Marshal(adv)
	if err != nil {
		s.writeFailTotal.Add(1)
		return
	}
	r := advisoryRow{AdvisoryRow: AdvisoryRow{
		SessionID:   sessionID,
		Seq:         seq,
		Phase:       adv.Phase,
		SetupTurn:   adv.SetupTurn,
		PayloadJSON: string(payload),
		RecordedAt:  s.now().UTC(),
	}}
	if len(adv.Placement.RankedVertices) > 0 {
		r.BestVertex = adv.Placement.RankedVertices[0].VertexID
	}
	if adv.Robber.BestTile != nil {
		r.hasBestTile = true
		r.BestTile = adv.Robber.BestTile.TileID
		r.BestTileScore = adv.Robber.BestTile.Score
	}
	s.enqueue(r)
}

func (s *SQLiteIndex) enqueue(r advisoryRow) {
	defer func() {
		// Close may race a late Record.
		if recover() != nil {
			s.dropTotal.Add(1)
		}
	}()
	select {
	case s.ch <- r:
	default:
		// Drop if the writer falls behind; advisories are recomputable.
		s.dropTotal.Add(1)
	}
}

// UpsertTuning stores the tuning in effect so recorded scores can be
// interpreted later.
func (s *SQLiteIndex) UpsertTuning(ctx context.Context, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, kv := range [][2]string{
		{"schema_version", "1"},
		{"tuning", string(b)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
	} {
		if _, err := stmt.ExecContext(ctx, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) Meta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// History returns the latest limit advisories of a session, newest first.
func (s *SQLiteIndex) History(ctx context.Context, sessionID string, limit int) ([]AdvisoryRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, phase, setup_turn, best_vertex, best_tile, best_tile_score, payload_json, recorded_at
		FROM advisories WHERE session_id = ? ORDER BY seq DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdvisoryRow
	for rows.Next() {
		var (
			r          AdvisoryRow
			seq        int64
			bestVertex sql.NullString
			bestTile   sql.NullString
			bestScore  sql.NullFloat64
			recordedAt string
		)
		if err := rows.Scan(&r.SessionID, &seq, &r.Phase, &r.SetupTurn, &bestVertex, &bestTile, &bestScore, &r.PayloadJSON, &recordedAt); err != nil {
			return nil, err
		}
		r.Seq = uint64(seq)
		r.BestVertex = bestVertex.String
		r.BestTile = bestTile.String
		r.BestTileScore = bestScore.Float64
		if t, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			r.RecordedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type SessionSummary struct {
	SessionID  string    `json:"session_id"`
	Advisories int       `json:"advisories"`
	LastSeq    uint64    `json:"last_seq"`
	LastPhase  string    `json:"last_phase"`
	LastAt     time.Time `json:"last_at"`
}

// Sessions summarizes every indexed session, most recently active first.
func (s *SQLiteIndex) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.session_id, c.n, a.seq, a.phase, a.recorded_at
		FROM advisories a
		JOIN (SELECT session_id, COUNT(*) AS n, MAX(seq) AS max_seq FROM advisories GROUP BY session_id) c
			ON a.session_id = c.session_id AND a.seq = c.max_seq
		ORDER BY a.recorded_at DESC, a.session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			r          SessionSummary
			seq        int64
			recordedAt string
		)
		if err := rows.Scan(&r.SessionID, &r.Advisories, &seq, &r.LastPhase, &recordedAt); err != nil {
			return nil, err
		}
		r.LastSeq = uint64(seq)
		if t, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			r.LastAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insert, err := s.db.Prepare(`INSERT OR REPLACE INTO advisories(session_id,seq,phase,setup_turn,best_vertex,best_tile,best_tile_score,payload_json,recorded_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		s.log.Error("prepare advisory insert", zap.Error(err))
	}
	defer func() {
		if insert != nil {
			_ = insert.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		commitEvery   = 200
		commitMaxWait = time.Second
	)
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.log.Warn("begin advisory tx", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeFailTotal.Add(uint64(opCount))
			s.log.Warn("commit advisories", zap.Error(err), zap.Int("rows", opCount))
		}
		tx = nil
		opCount = 0
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeFailTotal.Add(uint64(opCount))
		tx = nil
		opCount = 0
	}

	for {
		select {
		case <-ticker.C:
			commit()
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			begin()
			if tx == nil || insert == nil {
				s.writeFailTotal.Add(1)
				continue
			}
			var bestVertex, bestTile any
			var bestScore any
			if r.BestVertex != "" {
				bestVertex = r.BestVertex
			}
			if r.hasBestTile {
				bestTile = r.BestTile
				bestScore = r.BestTileScore
			}
			if _, err := tx.Stmt(insert).Exec(
				r.SessionID,
				int64(r.Seq),
				r.Phase,
				r.SetupTurn,
				bestVertex,
				bestTile,
				bestScore,
				r.PayloadJSON,
				r.RecordedAt.Format(time.RFC3339Nano),
			); err != nil {
				s.log.Warn("insert advisory", zap.Error(err), zap.String("session_id", r.SessionID), zap.Uint64("seq", r.Seq))
				s.writeFailTotal.Add(1)
				rollback()
				continue
			}
			opCount++
			if opCount >= commitEvery {
				commit()
			}
		}
	}
}
