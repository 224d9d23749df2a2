package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hexadvisor.ai/internal/advisor"
	persistlog "hexadvisor.ai/internal/persistence/log"
	"hexadvisor.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "advisory":
			advisoryCmd(os.Args[2:])
			return
		case "list":
			listCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

type sessionInfo struct {
	ID          string `json:"id"`
	FrameFiles  int    `json:"frame_files"`
	HasSnapshot bool   `json:"has_snapshot"`
}

func listSessions(dataDir string) ([]sessionInfo, error) {
	base := filepath.Join(dataDir, "sessions")
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}
	store := snapshot.NewStore(dataDir)
	out := []sessionInfo{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := persistlog.ListFrameFiles(filepath.Join(base, e.Name()))
		if err != nil {
			return nil, err
		}
		_, statErr := os.Stat(store.Path(e.Name()))
		out = append(out, sessionInfo{ID: e.Name(), FrameFiles: len(files), HasSnapshot: statErr == nil})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	sessions, err := listSessions(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, s := range sessions {
		snap := "-"
		if s.HasSnapshot {
			snap = "snapshot"
		}
		fmt.Printf("%s\tframe_files=%d\t%s\n", s.ID, s.FrameFiles, snap)
	}
}

type snapshotSummary struct {
	Header       snapshot.Header `json:"header"`
	Perspective  string          `json:"perspective,omitempty"`
	Inbound      int             `json:"inbound_messages"`
	Parsed       int             `json:"parsed_events"`
	LastError    string          `json:"last_error,omitempty"`
	NextCursor   uint64          `json:"next_cursor"`
	SetupTurn    int             `json:"setup_turn"`
	SetupTurns   int             `json:"setup_turns"`
	Players      []string        `json:"players"`
	Tiles        int             `json:"tiles"`
	Vertices     int             `json:"vertices"`
	RobberTileID string          `json:"robber_tile_id,omitempty"`
}

func summarize(s snapshot.SessionV1) snapshotSummary {
	out := snapshotSummary{
		Header:       s.Header,
		Perspective:  s.Perspective,
		Inbound:      s.Inbound,
		Parsed:       s.Parsed,
		LastError:    s.LastError,
		NextCursor:   s.NextCursor,
		SetupTurn:    s.State.SetupTurn,
		SetupTurns:   s.State.SetupTurns,
		Players:      []string{},
		Tiles:        len(s.State.Tiles),
		Vertices:     len(s.State.Vertices),
		RobberTileID: s.State.RobberTileID,
	}
	for _, p := range s.State.Players {
		out.Players = append(out.Players, p.ID)
	}
	return out
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	sessionID := fs.String("session", "", "session id")
	path := fs.String("path", "", "snapshot file (overrides -data/-session)")
	advise := fs.Bool("advise", false, "print the advisory the archived session would give")
	_ = fs.Parse(args)

	p := strings.TrimSpace(*path)
	if p == "" {
		if strings.TrimSpace(*sessionID) == "" {
			fmt.Fprintln(os.Stderr, "missing -session or -path")
			os.Exit(2)
		}
		p = snapshot.NewStore(*dataDir).Path(*sessionID)
	}
	snap, err := snapshot.ReadSnapshot(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	if *advise {
		printJSON(advisor.RestoreSession(snap, advisor.Options{}).Advise())
		return
	}
	printJSON(summarize(snap))
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(1)
	}
}
