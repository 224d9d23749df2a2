package advisor

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"hexadvisor.ai/internal/protocol"
	"hexadvisor.ai/internal/sim/simtest"
	"hexadvisor.ai/internal/sim/tuning"
)

func ringFrame(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{"type": "GAME_STATE", "board": simtest.Ring()})
	require.NoError(t, err)
	return string(b)
}

func fixedClock() func() time.Time {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func newTestSession(t *testing.T, cfg tuning.Tuning) *Session {
	t.Helper()
	return NewSession("s1", Options{Tuning: cfg, Now: fixedClock()})
}

func ingestAll(t *testing.T, s *Session, frames ...string) int {
	t.Helper()
	total := 0
	for _, f := range frames {
		n, err := s.Ingest(f)
		require.NoError(t, err)
		total += n
	}
	return total
}

func validateAdvisory(t *testing.T, adv protocol.Advisory) {
	t.Helper()
	schema, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "advisory.schema.json"))
	require.NoError(t, err)
	b, err := json.Marshal(adv)
	require.NoError(t, err)
	var v any
	require.NoError(t, json.Unmarshal(b, &v))
	require.NoError(t, schema.Validate(v))
}

func TestSessionSetupAdvisory(t *testing.T) {
	s := newTestSession(t, tuning.Defaults())
	n := ingestAll(t, s,
		ringFrame(t),
		`{"type":"player_joined","playerId":"p1","name":"Ann"}`,
		`42["player_joined",{"playerId":"p2","name":"Bo"}]`,
		`{"type":"SETTLEMENT_PLACED","playerId":"p1","vertexId":"v2"}`,
	)
	require.Equal(t, 4, n)

	adv := s.Advise()
	validateAdvisory(t, adv)

	require.Equal(t, protocol.PhaseSetup, adv.Phase)
	require.Equal(t, 1, adv.SetupTurn)
	require.Equal(t, "p1", adv.PerspectivePlayerID)
	require.NotEmpty(t, adv.Placement.RankedVertices)
	for _, v := range adv.Placement.RankedVertices {
		require.NotContains(t, []string{"v1", "v2", "v3"}, v.VertexID)
	}
	require.NotNil(t, adv.Placement.SuggestedRoad)
	require.Equal(t, adv.Placement.RankedPairs[0].First, adv.Placement.SuggestedRoad.From)

	// p1 is the only builder, so there is no one to rob.
	require.Nil(t, adv.Robber.BestTile)
	require.Empty(t, adv.Robber.Rankings)

	require.Len(t, adv.Players, 2)
	p1 := adv.Players[0]
	require.Equal(t, "Ann", p1.Name)
	require.Equal(t, []string{"v2"}, p1.Settlements)
	require.Equal(t, 1, p1.VictoryPoints)
	require.Equal(t, 5.0, p1.IncomeRate["ore"])
	require.Equal(t, 0, p1.ResourceEstimates["brick"])
	require.False(t, p1.BuildOptions.Road)

	at := fixedClock()()
	want := protocol.Diagnostics{
		InboundMessages: 4,
		ParsedEvents:    4,
		LastMessageAt:   &at,
		TrackedPlayers:  2,
		TrackedTiles:    6,
		TrackedVertices: 9,
	}
	if diff := cmp.Diff(want, adv.Diagnostics); diff != "" {
		t.Fatalf("diagnostics (-want +got):\n%s", diff)
	}
	require.Nil(t, adv.RobberTileID)
	require.Nil(t, adv.LastDiceRoll)
}

func TestSessionMainPhaseAdvisory(t *testing.T) {
	cfg := tuning.Defaults()
	cfg.SetupTurns = 1
	s := newTestSession(t, cfg)
	ingestAll(t, s,
		ringFrame(t),
		`{"type":"player_joined","playerId":"p1"}`,
		`{"type":"SETTLEMENT_PLACED","playerId":"p1","vertexId":"v2"}`,
		`{"type":"SETTLEMENT_PLACED","playerId":"p2","vertexId":"v4"}`,
		`{"type":"DICE_ROLL","value":[3,5]}`,
	)

	adv := s.Advise()
	validateAdvisory(t, adv)

	require.Equal(t, protocol.PhaseMain, adv.Phase)
	require.Equal(t, 1, adv.SetupTurn)
	require.Empty(t, adv.Placement.RankedVertices)
	require.Empty(t, adv.Placement.RankedPairs)
	require.Nil(t, adv.Placement.SuggestedRoad)

	require.NotNil(t, adv.LastDiceRoll)
	require.Equal(t, 8, *adv.LastDiceRoll)

	// The 8 on t2 paid grain to both builders.
	require.Equal(t, 1, adv.Players[0].ResourceEstimates["grain"])
	require.Equal(t, 1, adv.Players[1].ResourceEstimates["grain"])

	require.NotNil(t, adv.Robber.BestTile)
	require.Equal(t, "t2", adv.Robber.BestTile.TileID)
	require.Equal(t, []string{"t2", "t3"}, []string{adv.Robber.Rankings[0].TileID, adv.Robber.Rankings[1].TileID})

	_, err := s.Ingest(`{"type":"ROBBER_MOVED","tileId":"t2"}`)
	require.NoError(t, err)
	adv = s.Advise()
	require.NotNil(t, adv.RobberTileID)
	require.Equal(t, "t2", *adv.RobberTileID)
	require.Equal(t, "t3", adv.Robber.BestTile.TileID)
}

func TestSessionPerspective(t *testing.T) {
	s := newTestSession(t, tuning.Defaults())
	require.Equal(t, "", s.Advise().PerspectivePlayerID)

	ingestAll(t, s,
		`{"type":"PLAYER_JOIN","playerId":"p3"}`,
		`{"type":"PLAYER_JOIN","playerId":"p1"}`,
	)
	require.Equal(t, "p3", s.Advise().PerspectivePlayerID)

	s.SetPerspective("p1")
	require.Equal(t, "p1", s.Advise().PerspectivePlayerID)
	s.SetPerspective("")
	require.Equal(t, "p3", s.Advise().PerspectivePlayerID)
}

func TestSessionMalformedFrame(t *testing.T) {
	s := newTestSession(t, tuning.Defaults())
	for _, f := range []any{"not json", "", nil, `{"hello":"world"}`} {
		n, err := s.Ingest(f)
		require.NoError(t, err)
		require.Zero(t, n)
	}
	d := s.Advise().Diagnostics
	require.Equal(t, 4, d.InboundMessages)
	require.Zero(t, d.ParsedEvents)
	require.Empty(t, d.LastError)
}

func TestSessionEventsSince(t *testing.T) {
	s := NewSession("s1", Options{EventLogSize: 3})
	ingestAll(t, s,
		`{"type":"DICE_ROLL","value":4}`,
		`{"type":"DICE_ROLL","value":5}`,
		`[{"type":"DICE_ROLL","value":6},{"type":"DICE_ROLL","value":9}]`,
	)

	items, next := s.EventsSince(0, 0)
	require.Len(t, items, 3)
	require.Equal(t, uint64(2), items[0].Cursor)
	require.Equal(t, uint64(4), next)
	require.JSONEq(t, `{"type":"DiceRoll","payload":{"value":5}}`, string(items[0].Event))

	items, next = s.EventsSince(2, 1)
	require.Len(t, items, 1)
	require.Equal(t, uint64(3), items[0].Cursor)
	require.Equal(t, uint64(3), next)

	items, next = s.EventsSince(4, 10)
	require.Empty(t, items)
	require.Equal(t, uint64(4), next)
}

func TestFramePayload(t *testing.T) {
	got := FramePayload(json.RawMessage(` "42[\"roll\",{\"value\":3}]"`))
	require.Equal(t, `42["roll",{"value":3}]`, got)

	raw := json.RawMessage(`{"type":"DICE_ROLL","value":3}`)
	require.Equal(t, raw, FramePayload(raw))
}
