package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"hexadvisor.ai/internal/advisor"
	persistlog "hexadvisor.ai/internal/persistence/log"
	"hexadvisor.ai/internal/protocol"
	"hexadvisor.ai/internal/sim/tuning"
)

func main() {
	var (
		framesDir   = flag.String("frames", "", "session dir containing frames-*.jsonl.zst")
		perspective = flag.String("perspective", "", "player id to advise (default: first player)")
		tuningPath  = flag.String("tuning", "", "tuning yaml (optional)")
		upTo        = flag.Uint64("to_seq", 0, "stop after this frame seq (inclusive, optional)")
		quiet       = flag.Bool("quiet", false, "print only the final advisory")
	)
	flag.Parse()

	if *framesDir == "" {
		fmt.Fprintln(os.Stderr, "missing -frames")
		os.Exit(2)
	}

	tune := tuning.Defaults()
	if *tuningPath != "" {
		t, err := tuning.Load(*tuningPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "tuning:", err)
			os.Exit(1)
		}
		tune = t
	}

	progress := io.Writer(os.Stderr)
	if *quiet {
		progress = io.Discard
	}
	res, err := replay(*framesDir, advisor.Options{Tuning: tune, Perspective: *perspective}, *upTo, progress)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Fprintf(progress, "replay ok: session=%s frames=%d events=%d\n", res.SessionID, res.Frames, res.Events)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Advisory); err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(1)
	}
}

var errStop = errors.New("stop")

type result struct {
	SessionID string
	Frames    int
	Events    int
	Advisory  protocol.Advisory
}

// replay feeds a journaled session back through a fresh advisor session.
// Sequence gaps are reported but not fatal.
func replay(dir string, opts advisor.Options, upTo uint64, progress io.Writer) (result, error) {
	var (
		res     result
		sess    *advisor.Session
		lastSeq uint64
	)
	err := persistlog.ReadFrames(dir, func(e persistlog.FrameEntry) error {
		if upTo != 0 && e.Seq > upTo {
			return errStop
		}
		if sess == nil {
			res.SessionID = e.SessionID
			sess = advisor.NewSession(e.SessionID, opts)
		} else if e.SessionID != res.SessionID {
			return fmt.Errorf("seq %d: session %q in journal of %q", e.Seq, e.SessionID, res.SessionID)
		}
		if lastSeq != 0 && e.Seq != lastSeq+1 {
			fmt.Fprintf(progress, "gap: seq %d follows %d\n", e.Seq, lastSeq)
		}
		lastSeq = e.Seq

		n, err := sess.Ingest(advisor.FramePayload(e.Payload))
		if err != nil {
			fmt.Fprintf(progress, "seq %d: %v\n", e.Seq, err)
		}
		res.Frames++
		res.Events += n
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return res, err
	}
	if sess == nil {
		return res, fmt.Errorf("no frames in %s", dir)
	}
	res.Advisory = sess.Advise()
	return res, nil
}
