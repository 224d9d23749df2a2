package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"hexadvisor.ai/internal/advisor"
	"hexadvisor.ai/internal/observerproto"
	"hexadvisor.ai/internal/persistence/indexdb"
	"hexadvisor.ai/internal/protocol"
)

func setup(t *testing.T) (*advisor.Manager, *Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	m := advisor.NewManager(advisor.ManagerOptions{Recorder: hub})
	obs := NewServer(m, hub, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sessions/{id}/advisory", obs.AdvisoryHandler())
	mux.HandleFunc("/v1/observe", obs.WSHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return m, hub, srv
}

func readAdvisory(t *testing.T, conn *websocket.Conn) observerproto.AdvisoryMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg observerproto.AdvisoryMsg
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, observerproto.TypeAdvisory, msg.Type)
	return msg
}

func TestAdvisoryHandler(t *testing.T) {
	m, _, srv := setup(t)
	sess, _ := m.Open("s1", "")
	_, _, err := m.Ingest(sess.ID(), json.RawMessage(`{"type":"DICE_ROLL","value":6}`))
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/v1/sessions/s1/advisory")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var adv protocol.Advisory
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&adv))
	require.Equal(t, 1, adv.Diagnostics.InboundMessages)
	require.Equal(t, 6, *adv.LastDiceRoll)

	missing, err := http.Get(srv.URL + "/v1/sessions/nope/advisory")
	require.NoError(t, err)
	defer missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
	var e protocol.ErrorMsg
	require.NoError(t, json.NewDecoder(missing.Body).Decode(&e))
	require.Equal(t, protocol.ErrSessionNotFound, e.Code)
}

type fakeHistory struct {
	gotID    string
	gotLimit int
	rows     []indexdb.AdvisoryRow
}

func (f *fakeHistory) History(_ context.Context, id string, limit int) ([]indexdb.AdvisoryRow, error) {
	f.gotID, f.gotLimit = id, limit
	return f.rows, nil
}

func TestHistoryHandler(t *testing.T) {
	m := advisor.NewManager(advisor.ManagerOptions{})
	h := &fakeHistory{rows: []indexdb.AdvisoryRow{
		{SessionID: "s1", Seq: 2, Phase: "main", BestTile: "t3", BestTileScore: 4.5, PayloadJSON: `{"phase":"main"}`},
		{SessionID: "s1", Seq: 1, Phase: "setup", SetupTurn: 1, BestVertex: "v9", PayloadJSON: `{"phase":"setup"}`},
	}}
	obs := NewServer(m, NewHub(), nil).WithHistory(h)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sessions/{id}/history", obs.HistoryHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/history?limit=5", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "s1", h.gotID)
	require.Equal(t, 5, h.gotLimit)

	var items []historyItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 2)
	require.Equal(t, "t3", items[0].BestTile)
	require.JSONEq(t, `{"phase":"setup"}`, string(items[1].Advisory))

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/history?limit=zero", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	disabled := NewServer(m, NewHub(), nil).HistoryHandler()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec = httptest.NewRecorder()
	disabled(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlersRejectRemoteClients(t *testing.T) {
	m := advisor.NewManager(advisor.ManagerOptions{})
	obs := NewServer(m, NewHub(), nil)

	for _, h := range []http.HandlerFunc{obs.AdvisoryHandler(), obs.HistoryHandler(), obs.WSHandler()} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		rec := httptest.NewRecorder()
		h(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	}
}

func TestObserverStream(t *testing.T) {
	m, hub, srv := setup(t)
	sess, _ := m.Open("s1", "")

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/observe", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		SessionID:       sess.ID(),
	}))

	first := readAdvisory(t, conn)
	require.Equal(t, "s1", first.SessionID)
	require.Zero(t, first.Seq)
	require.Nil(t, first.Advisory.LastDiceRoll)

	// The subscription is registered before the snapshot is sent.
	require.Equal(t, 1, hub.Subscribers())

	_, _, err = m.Ingest(sess.ID(), json.RawMessage(`{"type":"DICE_ROLL","value":11}`))
	require.NoError(t, err)
	pushed := readAdvisory(t, conn)
	require.Equal(t, uint64(1), pushed.Seq)
	require.Equal(t, 11, *pushed.Advisory.LastDiceRoll)

	_ = conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestObserverKeepsPassiveWatcher(t *testing.T) {
	hub := NewHub()
	m := advisor.NewManager(advisor.ManagerOptions{Recorder: hub})
	obs := NewServer(m, hub, nil)
	obs.readTimeout = 150 * time.Millisecond
	obs.pingInterval = 40 * time.Millisecond
	srv := httptest.NewServer(obs.WSHandler())
	t.Cleanup(srv.Close)
	sess, _ := m.Open("s1", "")

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		SessionID:       sess.ID(),
	}))
	readAdvisory(t, conn)

	// The client only reads from here on; its default ping handler answers
	// the server pings while ReadJSON blocks.
	go func() {
		time.Sleep(4 * obs.readTimeout)
		_, _, _ = m.Ingest(sess.ID(), json.RawMessage(`{"type":"DICE_ROLL","value":5}`))
	}()
	pushed := readAdvisory(t, conn)
	require.Equal(t, 5, *pushed.Advisory.LastDiceRoll)
	require.Equal(t, 1, hub.Subscribers())
}

func TestObserverUnknownSession(t *testing.T) {
	_, hub, srv := setup(t)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/observe", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		SessionID:       "ghost",
	}))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var e protocol.ErrorMsg
	require.NoError(t, conn.ReadJSON(&e))
	require.Equal(t, protocol.TypeError, e.Type)
	require.Equal(t, protocol.ErrSessionNotFound, e.Code)
	require.Zero(t, hub.Subscribers())
}

func TestHubDropsForSlowWatchers(t *testing.T) {
	hub := NewHub()
	out := make(chan []byte, 1)
	id := hub.subscribe("s1", out)

	hub.Record("s1", 1, protocol.Advisory{Phase: protocol.PhaseSetup})
	hub.Record("s1", 2, protocol.Advisory{Phase: protocol.PhaseSetup})
	hub.Record("other", 1, protocol.Advisory{})
	require.Equal(t, uint64(1), hub.Dropped())

	var msg observerproto.AdvisoryMsg
	require.NoError(t, json.Unmarshal(<-out, &msg))
	require.Equal(t, uint64(1), msg.Seq)

	hub.unsubscribe("s1", id)
	require.Zero(t, hub.Subscribers())
}
