package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read from HEXADVISOR_* variables first; flags given on the
// command line override them.
type Config struct {
	Addr           string        `env:"HEXADVISOR_ADDR" envDefault:":8080"`
	DataDir        string        `env:"HEXADVISOR_DATA_DIR" envDefault:"./data"`
	TuningPath     string        `env:"HEXADVISOR_TUNING"`
	DisableDB      bool          `env:"HEXADVISOR_DISABLE_DB"`
	DisableJournal bool          `env:"HEXADVISOR_DISABLE_JOURNAL"`
	DisableArchive bool          `env:"HEXADVISOR_DISABLE_ARCHIVE"`
	Debug          bool          `env:"HEXADVISOR_DEBUG"`
	SessionIdle    time.Duration `env:"HEXADVISOR_SESSION_IDLE" envDefault:"6h"`
	EnableObserver bool          `env:"HEXADVISOR_ENABLE_OBSERVER" envDefault:"true"`
}

// loadConfig parses environ (nil means the process environment) and then args.
func loadConfig(args []string, environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("advisor", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "runtime data directory (frame journals, session archives, advisory index)")
	fs.StringVar(&cfg.TuningPath, "tuning", cfg.TuningPath, "path to tuning.yaml (default: built-in weights)")
	fs.BoolVar(&cfg.DisableDB, "disable_db", cfg.DisableDB, "disable the sqlite advisory index")
	fs.BoolVar(&cfg.DisableJournal, "disable_journal", cfg.DisableJournal, "disable the raw frame journal")
	fs.BoolVar(&cfg.DisableArchive, "disable_archive", cfg.DisableArchive, "do not archive the final state of expired sessions")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "debug logging")
	fs.DurationVar(&cfg.SessionIdle, "session_idle", cfg.SessionIdle, "drop sessions idle for longer than this (0 keeps them)")
	fs.BoolVar(&cfg.EnableObserver, "observer", cfg.EnableObserver, "serve the loopback advisory read and watch endpoints")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Addr == "" {
		return Config{}, fmt.Errorf("empty listen address")
	}
	if cfg.SessionIdle < 0 {
		return Config{}, fmt.Errorf("session_idle must not be negative")
	}
	return cfg, nil
}
