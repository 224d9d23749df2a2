// Package advisor owns one game aggregate per tracked session and turns it
// into advisories.
package advisor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"hexadvisor.ai/internal/protocol"
	"hexadvisor.ai/internal/sim/economy"
	"hexadvisor.ai/internal/sim/event"
	"hexadvisor.ai/internal/sim/normalize"
	"hexadvisor.ai/internal/sim/placement"
	"hexadvisor.ai/internal/sim/robber"
	"hexadvisor.ai/internal/sim/state"
	"hexadvisor.ai/internal/sim/tuning"
)

// ErrApplyPanic wraps a panic recovered while applying a frame's events.
var ErrApplyPanic = errors.New("event application panicked")

const defaultEventLogSize = 512

type Options struct {
	Tuning tuning.Tuning
	Logger *zap.Logger
	// Perspective pins the player advice is computed for. Empty means the
	// first player to join.
	Perspective  string
	EventLogSize int
	Now          func() time.Time
}

type loggedEvent struct {
	cursor uint64
	raw    json.RawMessage
}

// Session is safe for concurrent use. Ingest and Advise are serialized, so an
// evaluation never observes a half-applied frame.
type Session struct {
	id  string
	log *zap.Logger
	now func() time.Time

	normalizer *normalize.Normalizer
	placement  *placement.Engine
	robber     *robber.Engine

	mu          sync.Mutex
	state       *state.GameState
	perspective string

	inbound       int
	parsed        int
	lastError     string
	lastMessageAt *time.Time

	eventLog     []loggedEvent
	eventLogSize int
	nextCursor   uint64
}

func NewSession(id string, opts Options) *Session {
	t := opts.Tuning
	if t.SetupTurns == 0 {
		t = tuning.Defaults()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	size := opts.EventLogSize
	if size <= 0 {
		size = defaultEventLogSize
	}
	return &Session{
		id:           id,
		log:          logger.With(zap.String("session_id", id)),
		now:          now,
		normalizer:   normalize.New(t.MaxScanNodes),
		placement:    placement.New(t),
		robber:       robber.New(t),
		state:        state.New(t.SetupTurns),
		perspective:  opts.Perspective,
		eventLogSize: size,
		nextCursor:   1,
	}
}

func (s *Session) ID() string { return s.id }

// SetPerspective pins the perspective player. Empty restores the default.
func (s *Session) SetPerspective(playerID string) {
	s.mu.Lock()
	s.perspective = playerID
	s.mu.Unlock()
}

// Ingest normalizes one raw frame and applies its events in order. It returns
// how many events were applied. Frames that cannot be read are not errors;
// the only error is a recovered panic, which is also kept as lastError.
func (s *Session) Ingest(raw any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now().UTC()
	s.inbound++
	s.lastMessageAt = &at

	events, err := s.normalizer.Parse(raw)
	if err != nil {
		s.log.Warn("malformed frame", zap.Error(err))
		return 0, nil
	}
	if len(events) == 0 {
		s.log.Debug("frame carried no events")
		return 0, nil
	}
	s.parsed += len(events)

	n, err := s.apply(events)
	if err != nil {
		s.lastError = err.Error()
		s.log.Error("apply events", zap.Error(err), zap.Int("applied", n), zap.Int("events", len(events)))
		return n, err
	}
	return n, nil
}

func (s *Session) apply(events []event.Event) (applied int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrApplyPanic, r)
		}
	}()
	for _, e := range events {
		economy.Apply(e, s.state)
		applied++
		s.remember(e)
	}
	return applied, nil
}

func (s *Session) remember(e event.Event) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	s.eventLog = append(s.eventLog, loggedEvent{cursor: s.nextCursor, raw: b})
	s.nextCursor++
	if over := len(s.eventLog) - s.eventLogSize; over > 0 {
		s.eventLog = append(s.eventLog[:0:0], s.eventLog[over:]...)
	}
}

// EventsSince returns up to limit applied events with a cursor above since,
// oldest first, and the cursor to ask for next. Only the most recent events
// are retained.
func (s *Session) EventsSince(since uint64, limit int) ([]protocol.EventBatchItem, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > s.eventLogSize {
		limit = s.eventLogSize
	}
	out := []protocol.EventBatchItem{}
	next := since
	for _, le := range s.eventLog {
		if le.cursor <= since {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, protocol.EventBatchItem{Cursor: le.cursor, Event: le.raw})
		next = le.cursor
	}
	return out, next
}

// Advise evaluates both engines against the current aggregate.
func (s *Session) Advise() protocol.Advisory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advise()
}

// FramePayload unwraps a JSON string payload into the raw text it carries so
// transport tags like "42" survive. Any other JSON value is returned as is.
func FramePayload(b json.RawMessage) any {
	t := bytes.TrimSpace(b)
	if len(t) > 0 && t[0] == '"' {
		var s string
		if err := json.Unmarshal(t, &s); err == nil {
			return s
		}
	}
	return b
}
