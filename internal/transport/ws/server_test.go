package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"hexadvisor.ai/internal/advisor"
	"hexadvisor.ai/internal/protocol"
	"hexadvisor.ai/internal/sim/simtest"
)

func startServer(t *testing.T) (*advisor.Manager, string) {
	t.Helper()
	m := advisor.NewManager(advisor.ManagerOptions{})
	srv := httptest.NewServer(NewServer(m, nil).Handler())
	t.Cleanup(srv.Close)
	return m, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req any, reply any) string {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	base, err := protocol.DecodeBase(msg)
	require.NoError(t, err)
	if reply != nil {
		require.NoError(t, json.Unmarshal(msg, reply))
	}
	return base.Type
}

func hello(t *testing.T, conn *websocket.Conn, sessionID string) protocol.WelcomeMsg {
	t.Helper()
	var w protocol.WelcomeMsg
	typ := roundTrip(t, conn, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
	}, &w)
	require.Equal(t, protocol.TypeWelcome, typ)
	require.NotEmpty(t, w.SessionID)
	return w
}

func frame(t *testing.T, payload any) protocol.FrameMsg {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return protocol.FrameMsg{Type: protocol.TypeFrame, Payload: b}
}

func TestServerFrameToAdvice(t *testing.T) {
	m, url := startServer(t)
	conn := dial(t, url)
	welcome := hello(t, conn, "")
	require.False(t, welcome.Resumed)
	require.Equal(t, 1, m.Len())

	var adv protocol.AdviceMsg
	typ := roundTrip(t, conn, frame(t, map[string]any{"type": "GAME_STATE", "board": simtest.Ring()}), &adv)
	require.Equal(t, protocol.TypeAdvice, typ)
	require.Equal(t, welcome.SessionID, adv.SessionID)
	require.Equal(t, 1, adv.EventsProcessed)
	require.Equal(t, protocol.PhaseSetup, adv.Advisory.Phase)
	require.Equal(t, 9, adv.Advisory.Diagnostics.TrackedVertices)
	require.Equal(t, "v2", adv.Advisory.Placement.RankedVertices[0].VertexID)

	// Raw text frames keep their transport tag.
	typ = roundTrip(t, conn, frame(t, `42["dice_rolled",{"value":[4,4]}]`), &adv)
	require.Equal(t, protocol.TypeAdvice, typ)
	require.Equal(t, 1, adv.EventsProcessed)
	require.NotNil(t, adv.Advisory.LastDiceRoll)
	require.Equal(t, 8, *adv.Advisory.LastDiceRoll)

	typ = roundTrip(t, conn, frame(t, "not json"), &adv)
	require.Equal(t, protocol.TypeAdvice, typ)
	require.Zero(t, adv.EventsProcessed)
	require.Equal(t, 3, adv.Advisory.Diagnostics.InboundMessages)

	typ = roundTrip(t, conn, protocol.StateMsg{Type: protocol.TypeState}, &adv)
	require.Equal(t, protocol.TypeAdvice, typ)
	require.Zero(t, adv.EventsProcessed)
	require.Equal(t, 3, adv.Advisory.Diagnostics.InboundMessages)

	var batch protocol.EventBatchMsg
	typ = roundTrip(t, conn, protocol.EventBatchReqMsg{Type: protocol.TypeEventsReq, ReqID: "r1", Limit: 10}, &batch)
	require.Equal(t, protocol.TypeEvents, typ)
	require.Equal(t, "r1", batch.ReqID)
	require.Len(t, batch.Events, 2)
	require.Equal(t, uint64(2), batch.NextCursor)
	require.JSONEq(t, `{"type":"DiceRoll","payload":{"value":8}}`, string(batch.Events[1].Event))
}

func TestServerResumesSession(t *testing.T) {
	_, url := startServer(t)
	first := dial(t, url)
	w1 := hello(t, first, "")
	var adv protocol.AdviceMsg
	roundTrip(t, first, frame(t, map[string]any{"type": "PLAYER_JOIN", "playerId": "p1"}), &adv)
	_ = first.Close()

	second := dial(t, url)
	w2 := hello(t, second, w1.SessionID)
	require.True(t, w2.Resumed)
	require.Equal(t, w1.SessionID, w2.SessionID)

	roundTrip(t, second, protocol.StateMsg{Type: protocol.TypeState}, &adv)
	require.Len(t, adv.Advisory.Players, 1)
	require.Equal(t, "p1", adv.Advisory.PerspectivePlayerID)
}

func TestServerRejectsBadRequests(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)
	hello(t, conn, "")

	var e protocol.ErrorMsg
	require.Equal(t, protocol.TypeError, roundTrip(t, conn, map[string]any{"type": "ACT"}, &e))
	require.Equal(t, protocol.ErrProtoBadRequest, e.Code)

	require.Equal(t, protocol.TypeError, roundTrip(t, conn, map[string]any{"type": "FRAME"}, &e))
	require.Equal(t, protocol.ErrProtoBadRequest, e.Code)

	// The connection survives bad requests.
	var adv protocol.AdviceMsg
	require.Equal(t, protocol.TypeAdvice, roundTrip(t, conn, protocol.StateMsg{Type: protocol.TypeState}, &adv))
}

func TestServerHandshake(t *testing.T) {
	_, url := startServer(t)

	conn := dial(t, url)
	var e protocol.ErrorMsg
	typ := roundTrip(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1"}, &e)
	require.Equal(t, protocol.TypeError, typ)
	require.Equal(t, protocol.ErrProtoVersion, e.Code)
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	conn = dial(t, url)
	typ = roundTrip(t, conn, frame(t, "{}"), &e)
	require.Equal(t, protocol.TypeError, typ)
	require.Equal(t, protocol.ErrProtoBadRequest, e.Code)
}

func TestServerSessionExpired(t *testing.T) {
	m, url := startServer(t)
	conn := dial(t, url)
	w := hello(t, conn, "")
	m.Remove(w.SessionID)

	var e protocol.ErrorMsg
	require.Equal(t, protocol.TypeError, roundTrip(t, conn, frame(t, "{}"), &e))
	require.Equal(t, protocol.ErrSessionNotFound, e.Code)
}
