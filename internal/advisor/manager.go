package advisor

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hexadvisor.ai/internal/protocol"
)

var ErrSessionNotFound = errors.New("session not found")

// FrameJournal stores raw inbound frames for offline replay.
type FrameJournal interface {
	Append(sessionID string, seq uint64, at time.Time, payload json.RawMessage) error
}

// AdvisoryRecorder receives every advisory produced after a frame.
type AdvisoryRecorder interface {
	Record(sessionID string, seq uint64, adv protocol.Advisory)
}

type ManagerOptions struct {
	Session  Options
	Journal  FrameJournal
	Recorder AdvisoryRecorder
	// Archive, when set, receives sessions as they are swept or closed.
	Archive SessionArchive
	Logger  *zap.Logger
}

type entry struct {
	sess     *Session
	lastSeen time.Time

	// ingest keeps journal order, apply order and seq in step.
	ingest sync.Mutex
	seq    uint64
}

// Manager tracks live sessions by id.
type Manager struct {
	opts ManagerOptions
	log  *zap.Logger
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Session.Logger == nil {
		opts.Session.Logger = logger
	}
	now := opts.Session.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{opts: opts, log: logger, now: now, sessions: map[string]*entry{}}
}

// Open returns the session with the given id, creating it when needed. An
// empty id allocates a fresh one. A non-empty perspective is pinned either way.
func (m *Manager) Open(id, perspective string) (sess *Session, resumed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if e, ok := m.sessions[id]; ok {
			e.lastSeen = m.now()
			if perspective != "" {
				e.sess.SetPerspective(perspective)
			}
			return e.sess, true
		}
	} else {
		id = uuid.NewString()
	}

	opts := m.opts.Session
	opts.Perspective = perspective
	sess = NewSession(id, opts)
	e := &entry{sess: sess, lastSeen: m.now()}
	if m.opts.Archive != nil {
		// A swept id keeps appending to the same journal directory.
		seq, err := m.opts.Archive.LastSeq(id)
		if err != nil {
			m.log.Warn("archived seq", zap.String("session_id", id), zap.Error(err))
		}
		e.seq = seq
	}
	m.sessions[id] = e
	m.log.Info("session opened", zap.String("session_id", id), zap.String("perspective", perspective), zap.Uint64("seq", e.seq))
	return sess, false
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

// Ingest journals the frame, applies it to the session and returns the
// resulting advisory. Journal failures are logged and never block advice.
func (m *Manager) Ingest(id string, payload json.RawMessage) (int, protocol.Advisory, error) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return 0, protocol.Advisory{}, ErrSessionNotFound
	}
	at := m.now()
	e.lastSeen = at
	m.mu.Unlock()

	e.ingest.Lock()
	defer e.ingest.Unlock()
	e.seq++
	seq := e.seq

	if m.opts.Journal != nil {
		if err := m.opts.Journal.Append(id, seq, at, payload); err != nil {
			m.log.Warn("journal frame", zap.String("session_id", id), zap.Uint64("seq", seq), zap.Error(err))
		}
	}

	n, err := e.sess.Ingest(FramePayload(payload))
	adv := e.sess.Advise()
	if m.opts.Recorder != nil {
		m.opts.Recorder.Record(id, seq, adv)
	}
	return n, adv, err
}

func (m *Manager) Advise(id string) (protocol.Advisory, error) {
	sess, ok := m.Get(id)
	if !ok {
		return protocol.Advisory{}, ErrSessionNotFound
	}
	return sess.Advise(), nil
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops sessions that have seen no traffic for longer than idle and
// returns their ids. Dropped sessions are archived.
func (m *Manager) Sweep(idle time.Duration) []string {
	cutoff := m.now().Add(-idle)
	m.mu.Lock()
	expired := map[string]*entry{}
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			expired[id] = e
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for id, e := range expired {
		_ = m.save(e)
		ids = append(ids, id)
		m.log.Info("session expired", zap.String("session_id", id))
	}
	sort.Strings(ids)
	return ids
}

// Close archives every live session and forgets them.
func (m *Manager) Close() error {
	m.mu.Lock()
	live := m.sessions
	m.sessions = map[string]*entry{}
	m.mu.Unlock()

	var errs []error
	for _, e := range live {
		if err := m.save(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) save(e *entry) error {
	if m.opts.Archive == nil {
		return nil
	}
	e.ingest.Lock()
	snap := e.sess.Snapshot(e.seq)
	e.ingest.Unlock()
	if err := m.opts.Archive.Save(snap); err != nil {
		m.log.Warn("archive session", zap.String("session_id", e.sess.ID()), zap.Error(err))
		return err
	}
	return nil
}

// Recorders fans each advisory out to several recorders in order.
type Recorders []AdvisoryRecorder

func (rs Recorders) Record(sessionID string, seq uint64, adv protocol.Advisory) {
	for _, r := range rs {
		if r != nil {
			r.Record(sessionID, seq, adv)
		}
	}
}
