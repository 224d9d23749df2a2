package observer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hexadvisor.ai/internal/advisor"
	"hexadvisor.ai/internal/observerproto"
	"hexadvisor.ai/internal/persistence/indexdb"
	"hexadvisor.ai/internal/protocol"
)

// Server exposes advisories to local displays: a one-shot HTTP read and a
// websocket that pushes every new advisory of the watched session.
type Server struct {
	sessions *advisor.Manager
	hub      *Hub
	history  HistorySource
	log      *zap.Logger

	upgrader websocket.Upgrader

	// A watcher that answers no ping within readTimeout is dropped.
	readTimeout  time.Duration
	pingInterval time.Duration
}

const (
	defaultReadTimeout  = 60 * time.Second
	defaultPingInterval = defaultReadTimeout * 9 / 10
)

func NewServer(m *advisor.Manager, hub *Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		sessions: m,
		hub:      hub,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only anyway
		},

		readTimeout:  defaultReadTimeout,
		pingInterval: defaultPingInterval,
	}
}

// HistorySource is the indexed advisory history, newest first.
type HistorySource interface {
	History(ctx context.Context, sessionID string, limit int) ([]indexdb.AdvisoryRow, error)
}

// WithHistory enables HistoryHandler.
func (s *Server) WithHistory(h HistorySource) *Server {
	s.history = h
	return s
}

type historyItem struct {
	Seq           uint64          `json:"seq"`
	Phase         string          `json:"phase"`
	SetupTurn     int             `json:"setup_turn"`
	BestVertex    string          `json:"best_vertex,omitempty"`
	BestTile      string          `json:"best_tile,omitempty"`
	BestTileScore float64         `json:"best_tile_score,omitempty"`
	RecordedAt    time.Time       `json:"recorded_at"`
	Advisory      json.RawMessage `json:"advisory"`
}

// HistoryHandler serves GET /v1/sessions/{id}/history?limit=N.
func (s *Server) HistoryHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if s.history == nil {
			http.Error(rw, "advisory index disabled", http.StatusNotFound)
			return
		}
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(rw, "bad limit", http.StatusBadRequest)
				return
			}
			limit = min(n, 1000)
		}
		rows, err := s.history.History(r.Context(), r.PathValue("id"), limit)
		if err != nil {
			s.log.Warn("history query", zap.Error(err))
			http.Error(rw, "history unavailable", http.StatusInternalServerError)
			return
		}
		out := make([]historyItem, 0, len(rows))
		for _, h := range rows {
			out = append(out, historyItem{
				Seq:           h.Seq,
				Phase:         h.Phase,
				SetupTurn:     h.SetupTurn,
				BestVertex:    h.BestVertex,
				BestTile:      h.BestTile,
				BestTileScore: h.BestTileScore,
				RecordedAt:    h.RecordedAt,
				Advisory:      json.RawMessage(h.PayloadJSON),
			})
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(out)
	}
}

// AdvisoryHandler serves GET /v1/sessions/{id}/advisory.
func (s *Server) AdvisoryHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		adv, err := s.sessions.Advise(r.PathValue("id"))
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(rw).Encode(protocol.NewError(protocol.ErrSessionNotFound, err.Error()))
			return
		}
		_ = json.NewEncoder(rw).Encode(adv)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		out := make(chan []byte, 8)
		watching := ""
		var subID uint64
		watch := func(sessionID string) bool {
			sess, ok := s.sessions.Get(sessionID)
			if !ok {
				b, _ := json.Marshal(protocol.NewError(protocol.ErrSessionNotFound, "no such session"))
				select {
				case out <- b:
				default:
				}
				return false
			}
			if watching != "" {
				s.hub.unsubscribe(watching, subID)
			}
			watching = sessionID
			subID = s.hub.subscribe(sessionID, out)
			// Current state first; later pushes carry their frame seq.
			if b, err := encodeAdvisory(sessionID, 0, sess.Advise()); err == nil {
				select {
				case out <- b:
				default:
				}
			}
			return true
		}
		defer func() {
			if watching != "" {
				s.hub.unsubscribe(watching, subID)
			}
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine. It also owns the pings that keep passive watchers
		// inside the read deadline.
		writeErr := make(chan error, 1)
		go func() {
			ping := time.NewTicker(s.pingInterval)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case <-ping.C:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						writeErr <- err
						cancel()
						return
					}
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						cancel()
						return
					}
				}
			}
		}()

		watch(sub.SessionID)
		s.log.Debug("observer attached", zap.String("session_id", sub.SessionID), zap.String("remote", r.RemoteAddr))

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		})

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := decodeSubscribe(msg); ok && sub.SessionID != watching {
				watch(sub.SessionID)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	sub.SessionID = strings.TrimSpace(sub.SessionID)
	return sub, true
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
