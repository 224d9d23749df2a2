package log

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// FrameEntry is one journaled inbound frame.
type FrameEntry struct {
	SessionID string          `json:"session_id"`
	Seq       uint64          `json:"seq"`
	At        time.Time       `json:"at"`
	Payload   json.RawMessage `json:"payload"`
}

const framePrefix = "frames"

var (
	ErrBadSessionID = errors.New("session id not usable as a directory name")
	ErrClosed       = errors.New("journal closed")

	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)
)

// FrameJournal keeps one hourly-rotated writer per session under
// <dataDir>/sessions/<id>/.
type FrameJournal struct {
	dataDir string
	now     func() time.Time

	mu      sync.Mutex
	writers map[string]*JSONLZstdWriter
	closed  bool
}

func NewFrameJournal(dataDir string) *FrameJournal {
	return &FrameJournal{dataDir: dataDir, now: time.Now, writers: map[string]*JSONLZstdWriter{}}
}

// SessionDir is where frames of sessionID are written.
func SessionDir(dataDir, sessionID string) string {
	return filepath.Join(dataDir, "sessions", sessionID)
}

func (j *FrameJournal) Append(sessionID string, seq uint64, at time.Time, payload json.RawMessage) error {
	w, err := j.writer(sessionID)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return w.Write(FrameEntry{SessionID: sessionID, Seq: seq, At: at.UTC(), Payload: payload})
}

// CheckSessionID rejects ids that cannot name a session directory.
func CheckSessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return fmt.Errorf("%w: %q", ErrBadSessionID, sessionID)
	}
	return nil
}

func (j *FrameJournal) writer(sessionID string) (*JSONLZstdWriter, error) {
	if err := CheckSessionID(sessionID); err != nil {
		return nil, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrClosed
	}
	w, ok := j.writers[sessionID]
	if !ok {
		w = NewJSONLZstdWriter(SessionDir(j.dataDir, sessionID), framePrefix)
		w.now = j.now
		j.writers[sessionID] = w
	}
	return w, nil
}

// CloseSession flushes and forgets the writer of one session.
func (j *FrameJournal) CloseSession(sessionID string) error {
	j.mu.Lock()
	w, ok := j.writers[sessionID]
	delete(j.writers, sessionID)
	j.mu.Unlock()
	if !ok {
		return nil
	}
	return w.Close()
}

func (j *FrameJournal) Close() error {
	j.mu.Lock()
	ws := j.writers
	j.writers = map[string]*JSONLZstdWriter{}
	j.closed = true
	j.mu.Unlock()

	var errs []error
	for _, w := range ws {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
