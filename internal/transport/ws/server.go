package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hexadvisor.ai/internal/advisor"
	"hexadvisor.ai/internal/protocol"
)

const (
	handshakeTimeout = 5 * time.Second
	idleTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	outQueue         = 16
)

// Server speaks the advisor protocol on one websocket per client: HELLO,
// then any number of FRAME / STATE / EVENTS_REQ requests, each answered in
// order.
type Server struct {
	sessions *advisor.Manager
	log      *zap.Logger

	upgrader websocket.Upgrader
}

func NewServer(m *advisor.Manager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		sessions: m,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			// The overlay runs inside the game page, so any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		log := s.log.With(zap.String("session_id", sess.ID()), zap.String("remote", r.RemoteAddr))
		log.Info("client attached")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		out := make(chan []byte, outQueue)

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		send := func(v any) bool {
			b, err := json.Marshal(v)
			if err != nil {
				log.Error("marshal reply", zap.Error(err))
				return true
			}
			select {
			case out <- b:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if !send(s.handle(sess.ID(), msg, log)) {
				break
			}
		}
		cancel()
		<-done
		log.Info("client detached")
	}
}

// handle answers one request. Every request gets exactly one reply.
func (s *Server) handle(sessionID string, msg []byte, log *zap.Logger) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError(protocol.ErrProtoBadRequest, "message is not a JSON object")
	}
	switch base.Type {
	case protocol.TypeFrame:
		var f protocol.FrameMsg
		if err := json.Unmarshal(msg, &f); err != nil || len(f.Payload) == 0 {
			return protocol.NewError(protocol.ErrProtoBadRequest, "FRAME needs a payload")
		}
		n, adv, err := s.sessions.Ingest(sessionID, f.Payload)
		switch {
		case errors.Is(err, advisor.ErrSessionNotFound):
			return protocol.NewError(protocol.ErrSessionNotFound, "session expired")
		case err != nil:
			// The session already recorded the failure; advice still reflects
			// everything applied so far.
			log.Warn("frame partially applied", zap.Error(err), zap.Int("applied", n))
		}
		return advice(sessionID, n, adv)

	case protocol.TypeState:
		adv, err := s.sessions.Advise(sessionID)
		if err != nil {
			return protocol.NewError(protocol.ErrSessionNotFound, "session expired")
		}
		return advice(sessionID, 0, adv)

	case protocol.TypeEventsReq:
		var req protocol.EventBatchReqMsg
		if err := json.Unmarshal(msg, &req); err != nil {
			return protocol.NewError(protocol.ErrProtoBadRequest, "bad EVENTS_REQ")
		}
		sess, ok := s.sessions.Get(sessionID)
		if !ok {
			return protocol.NewError(protocol.ErrSessionNotFound, "session expired")
		}
		items, next := sess.EventsSince(req.SinceCursor, req.Limit)
		return protocol.EventBatchMsg{
			Type:            protocol.TypeEvents,
			ProtocolVersion: protocol.Version,
			ReqID:           req.ReqID,
			Events:          items,
			NextCursor:      next,
		}
	}
	return protocol.NewError(protocol.ErrProtoBadRequest, "unknown message type "+base.Type)
}

func advice(sessionID string, n int, adv protocol.Advisory) protocol.AdviceMsg {
	return protocol.AdviceMsg{
		Type:            protocol.TypeAdvice,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		EventsProcessed: n,
		Advisory:        adv,
	}
}

func (s *Server) handshake(conn *websocket.Conn) *advisor.Session {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		reject(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		reject(conn, protocol.ErrProtoBadRequest, "bad HELLO")
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return nil
	}

	sess, resumed := s.sessions.Open(hello.SessionID, hello.PerspectivePlayerID)
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.ID(),
		Resumed:         resumed,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	return sess
}

func reject(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.NewError(code, msg))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
