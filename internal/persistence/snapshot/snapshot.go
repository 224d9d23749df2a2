// Package snapshot archives the final state of advisor sessions for offline
// inspection. The server reads back only the header seq.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	persistlog "hexadvisor.ai/internal/persistence/log"
	"hexadvisor.ai/internal/sim/state"
)

const (
	Version  = 1
	fileName = "session.snap.zst"
)

type Header struct {
	Version   int       `json:"version"`
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	SavedAt   time.Time `json:"saved_at"`
}

type SessionV1 struct {
	Header Header

	Perspective   string
	Inbound       int
	Parsed        int
	LastError     string
	LastMessageAt *time.Time
	NextCursor    uint64

	State state.Snapshot
}

func WriteSnapshot(path string, snap SessionV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap SessionV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func ReadSnapshot(path string) (SessionV1, error) {
	var snap SessionV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The JSON header line is for humans and tools; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line of a snapshot file.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}
	return h, nil
}

// Store keeps one archived snapshot per session next to its frame journal.
type Store struct {
	dataDir string
}

func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

func (s *Store) Path(sessionID string) string {
	return filepath.Join(persistlog.SessionDir(s.dataDir, sessionID), fileName)
}

func (s *Store) Save(snap SessionV1) error {
	if err := persistlog.CheckSessionID(snap.Header.SessionID); err != nil {
		return err
	}
	snap.Header.Version = Version
	return WriteSnapshot(s.Path(snap.Header.SessionID), snap)
}

// Load reports false without error when the session was never saved.
func (s *Store) Load(sessionID string) (SessionV1, bool, error) {
	if err := persistlog.CheckSessionID(sessionID); err != nil {
		return SessionV1{}, false, err
	}
	snap, err := ReadSnapshot(s.Path(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return SessionV1{}, false, nil
	}
	if err != nil {
		return SessionV1{}, false, err
	}
	return snap, true, nil
}

// LastSeq returns the frame seq of the archived snapshot, or zero when the
// session was never saved.
func (s *Store) LastSeq(sessionID string) (uint64, error) {
	if err := persistlog.CheckSessionID(sessionID); err != nil {
		return 0, err
	}
	h, err := ReadHeader(s.Path(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return h.Seq, nil
}
