package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hexadvisor.ai/internal/protocol"
)

func main() {
	var (
		url         = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		file        = flag.String("file", "", "capture file, one raw frame per line (- for stdin)")
		session     = flag.String("session", "", "session id to open or resume")
		perspective = flag.String("perspective", "", "player id to advise")
		delay       = flag.Duration("delay", 0, "pause between frames")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *file == "" {
		logger.Fatal("missing -file")
	}
	in := io.Reader(os.Stdin)
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			logger.Fatal("open capture", zap.Error(err))
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *url, nil)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer conn.Close()

	f := &feeder{conn: conn, log: logger, delay: *delay}
	id, err := f.hello(*session, *perspective)
	if err != nil {
		logger.Fatal("handshake", zap.Error(err))
	}
	logger.Info("WELCOME", zap.String("session_id", id))

	sent, err := f.run(ctx, in)
	if err != nil {
		logger.Fatal("feed", zap.Int("frames", sent), zap.Error(err))
	}
	logger.Info("done", zap.Int("frames", sent))
}

type feeder struct {
	conn  *websocket.Conn
	log   *zap.Logger
	delay time.Duration

	last protocol.Advisory
}

func (f *feeder) hello(sessionID, perspective string) (string, error) {
	if err := f.conn.WriteJSON(protocol.HelloMsg{
		Type:                protocol.TypeHello,
		ProtocolVersion:     protocol.Version,
		ClientName:          "feeder",
		SessionID:           sessionID,
		PerspectivePlayerID: perspective,
	}); err != nil {
		return "", err
	}
	msg, err := f.read()
	if err != nil {
		return "", err
	}
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &w); err != nil {
		return "", err
	}
	if w.Type != protocol.TypeWelcome {
		return "", fmt.Errorf("expected WELCOME, got %s", w.Type)
	}
	return w.SessionID, nil
}

// run sends every non-empty line as one FRAME and waits for its ADVICE.
// Lines that are valid JSON travel as JSON; anything else as a string.
func (f *feeder) run(ctx context.Context, in io.Reader) (int, error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	sent := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		payload, err := framePayload(line)
		if err != nil {
			return sent, err
		}
		if err := f.conn.WriteJSON(protocol.FrameMsg{
			Type:            protocol.TypeFrame,
			ProtocolVersion: protocol.Version,
			Payload:         payload,
		}); err != nil {
			return sent, err
		}
		sent++

		msg, err := f.read()
		if err != nil {
			return sent, err
		}
		if err := f.handle(sent, msg); err != nil {
			return sent, err
		}
		if f.delay > 0 {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-time.After(f.delay):
			}
		}
	}
	return sent, sc.Err()
}

func (f *feeder) handle(frame int, msg []byte) error {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return err
	}
	switch base.Type {
	case protocol.TypeAdvice:
		var a protocol.AdviceMsg
		if err := json.Unmarshal(msg, &a); err != nil {
			return err
		}
		f.last = a.Advisory
		fields := []zap.Field{
			zap.Int("frame", frame),
			zap.Int("events", a.EventsProcessed),
			zap.String("phase", a.Advisory.Phase),
		}
		if len(a.Advisory.Placement.RankedVertices) > 0 {
			fields = append(fields, zap.String("best_vertex", a.Advisory.Placement.RankedVertices[0].VertexID))
		}
		if a.Advisory.Robber.BestTile != nil {
			fields = append(fields, zap.String("best_robber_tile", a.Advisory.Robber.BestTile.TileID))
		}
		f.log.Info("ADVICE", fields...)
		return nil
	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		return fmt.Errorf("%s: %s", e.Code, e.Message)
	default:
		return errors.New("unexpected message " + base.Type)
	}
}

func (f *feeder) read() ([]byte, error) {
	_ = f.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := f.conn.ReadMessage()
	return msg, err
}

func framePayload(line []byte) (json.RawMessage, error) {
	if json.Valid(line) {
		return json.RawMessage(bytes.Clone(line)), nil
	}
	b, err := json.Marshal(string(line))
	return json.RawMessage(b), err
}
