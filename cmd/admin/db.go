package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hexadvisor.ai/internal/persistence/indexdb"
)

// dbCmd queries the advisory index: sessions (default), history or tuning.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	sessionID := fs.String("session", "", "session id (history)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "sessions"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "advisor.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	idx, err := indexdb.OpenSQLite(path, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()
	ctx := context.Background()

	switch q {
	case "sessions":
		rows, err := idx.Sessions(ctx)
		exitOn(err)
		for _, r := range rows {
			fmt.Printf("%s\tadvisories=%d\tlast_seq=%d\tphase=%s\tat=%s\n", r.SessionID, r.Advisories, r.LastSeq, r.LastPhase, r.LastAt.Format("2006-01-02T15:04:05Z07:00"))
		}
	case "history":
		if strings.TrimSpace(*sessionID) == "" {
			fmt.Fprintln(os.Stderr, "missing -session")
			os.Exit(2)
		}
		rows, err := idx.History(ctx, *sessionID, *limit)
		exitOn(err)
		for _, r := range rows {
			best := r.BestVertex
			if r.BestTile != "" {
				best = fmt.Sprintf("%s (%.2f)", r.BestTile, r.BestTileScore)
			}
			fmt.Printf("seq=%d\tphase=%s\tsetup_turn=%d\tbest=%s\n", r.Seq, r.Phase, r.SetupTurn, best)
		}
	case "tuning":
		for _, key := range []string{"schema_version", "tuning_digest", "tuning"} {
			v, ok, err := idx.Meta(ctx, key)
			exitOn(err)
			if ok {
				fmt.Printf("%s: %s\n", key, v)
			}
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		os.Exit(2)
	}
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}
