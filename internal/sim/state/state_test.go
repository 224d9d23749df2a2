package state

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"hexadvisor.ai/internal/sim/model"
	"hexadvisor.ai/internal/sim/simtest"
)

func newRingState(t *testing.T) *GameState {
	t.Helper()
	s := New(0)
	s.IngestBoardSnapshot(simtest.Ring())
	if got := len(s.Vertices()); got != 9 {
		t.Fatalf("expected 9 vertices, got %d", got)
	}
	return s
}

func incomeOf(t *testing.T, s *GameState, id string) model.Rates {
	t.Helper()
	p, ok := s.Player(id)
	if !ok {
		t.Fatalf("player %s missing", id)
	}
	return p.IncomeRate
}

func TestEnsurePlayerDefaults(t *testing.T) {
	s := New(0)
	p := s.EnsurePlayer("p1", "")
	if p.Name != "p1" {
		t.Fatalf("name should default to id, got %q", p.Name)
	}
	for _, r := range model.Resources {
		if v, ok := p.ResourceEstimates[r]; !ok || v != 0 {
			t.Fatalf("estimate %s=%d,%v", r, v, ok)
		}
		if v, ok := p.IncomeRate[r]; !ok || v != 0 {
			t.Fatalf("income %s=%v,%v", r, v, ok)
		}
	}
	if again := s.EnsurePlayer("p1", "Alice"); again != p || again.Name != "Alice" {
		t.Fatalf("expected same player renamed, got %+v", again)
	}
	s.EnsurePlayer("p1", "Bob")
	if p.Name != "Alice" {
		t.Fatalf("explicit name should stick, got %q", p.Name)
	}
}

func TestRecomputeIncomeRates(t *testing.T) {
	s := newRingState(t)
	s.RegisterSettlementPlacement("p1", "v2")
	s.RegisterSettlementPlacement("p2", "v4")
	s.RegisterCityUpgrade("p2", "v4")

	if diff := cmp.Diff(model.Rates{model.Brick: 0, model.Lumber: 0, model.Ore: 5, model.Grain: 5, model.Wool: 0}, incomeOf(t, s, "p1")); diff != "" {
		t.Fatalf("p1 income (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(model.Rates{model.Brick: 8, model.Lumber: 0, model.Ore: 0, model.Grain: 10, model.Wool: 0}, incomeOf(t, s, "p2")); diff != "" {
		t.Fatalf("p2 income (-want +got):\n%s", diff)
	}

	if !s.SetRobberTile("t2") {
		t.Fatalf("robber should land on t2")
	}
	if got := incomeOf(t, s, "p1"); got[model.Grain] != 0 || got[model.Ore] != 5 {
		t.Fatalf("robbed tile should not produce: %+v", got)
	}
	if got := incomeOf(t, s, "p2"); got[model.Grain] != 0 || got[model.Brick] != 8 {
		t.Fatalf("robbed tile should not produce: %+v", got)
	}
}

func TestRecomputeIncomeRatesIdempotent(t *testing.T) {
	s := newRingState(t)
	s.RegisterSettlementPlacement("p1", "v1")
	s.RegisterSettlementPlacement("p2", "v5")
	s.SetRobberTile("t3")

	s.RecomputeIncomeRates()
	first := s.Players()
	s.RecomputeIncomeRates()
	if diff := cmp.Diff(first, s.Players()); diff != "" {
		t.Fatalf("recompute not idempotent (-first +second):\n%s", diff)
	}
}

func TestCityUpgradeMovesVertexBetweenSets(t *testing.T) {
	s := newRingState(t)
	s.RegisterSettlementPlacement("p1", "v3")
	if !s.RegisterCityUpgrade("p1", "v3") {
		t.Fatalf("upgrade should apply")
	}
	p, _ := s.Player("p1")
	if len(p.Settlements) != 0 || len(p.Cities) != 1 || p.Cities[0] != "v3" {
		t.Fatalf("unexpected sets: settlements=%v cities=%v", p.Settlements, p.Cities)
	}
	v, _ := s.Vertex("v3")
	if v.Occupant == nil || v.Occupant.Building != model.City || v.Occupant.PlayerID != "p1" {
		t.Fatalf("occupant not upgraded: %+v", v.Occupant)
	}
	if p.VictoryPoints != 2 {
		t.Fatalf("city is worth two visible points, got %d", p.VictoryPoints)
	}
}

func TestSetupPhaseCounter(t *testing.T) {
	s := newRingState(t)
	ids := []string{"v1", "v2", "v3", "v4", "v5", "v6", "v7", "v8"}
	for i, vid := range ids {
		if !s.IsSetupPhase() {
			t.Fatalf("turn %d should still be setup", i)
		}
		if s.SetupTurn() != i {
			t.Fatalf("setupTurn=%d want %d", s.SetupTurn(), i)
		}
		s.RegisterSettlementPlacement("p1", vid)
	}
	if s.SetupTurn() != 8 || s.IsSetupPhase() {
		t.Fatalf("expected main phase at turn 8, got turn=%d setup=%v", s.SetupTurn(), s.IsSetupPhase())
	}
	s.RegisterSettlementPlacement("p1", "v9")
	if s.SetupTurn() != 8 {
		t.Fatalf("main phase placements must not advance setupTurn, got %d", s.SetupTurn())
	}
	pl := s.Placements()
	if len(pl) != 8 || pl[0].Order != 1 || pl[7].Order != 8 || pl[7].VertexID != "v8" {
		t.Fatalf("unexpected placement log: %+v", pl)
	}
}

func TestDanglingReferencesAreNoOps(t *testing.T) {
	s := newRingState(t)
	if s.RegisterSettlementPlacement("p1", "nope") {
		t.Fatalf("unknown vertex should not apply")
	}
	if s.SetupTurn() != 0 {
		t.Fatalf("dangling placement advanced setupTurn")
	}
	if s.RegisterCityUpgrade("p1", "nope") {
		t.Fatalf("unknown vertex should not apply")
	}
	if s.SetRobberTile("nope") || s.RobberTileID() != "" {
		t.Fatalf("unknown tile should not move robber")
	}
}

func TestAdjustResourcesClampsAtZero(t *testing.T) {
	s := New(0)
	s.AdjustResources("p1", model.Bundle{model.Brick: -3, model.Ore: 2, model.Desert: 4})
	s.AdjustResources("p1", model.Bundle{model.Ore: -5})
	p, _ := s.Player("p1")
	for _, r := range model.Resources {
		if p.ResourceEstimates[r] < 0 {
			t.Fatalf("%s went negative: %d", r, p.ResourceEstimates[r])
		}
	}
	if _, ok := p.ResourceEstimates[model.Desert]; ok {
		t.Fatalf("desert must not be tracked")
	}
	s.AdjustDevCards("p1", -2)
	if p, _ := s.Player("p1"); p.DevCardsKnown != 0 {
		t.Fatalf("dev cards went negative: %d", p.DevCardsKnown)
	}
}

func TestReingestSameSnapshotIsIdempotent(t *testing.T) {
	snap := simtest.Occupy(simtest.Ring(), map[string]model.Occupant{
		"v1": {PlayerID: "p1", Building: model.Settlement},
		"v4": {PlayerID: "p2", Building: model.City},
	})
	s := New(0)
	s.IngestBoardSnapshot(snap)
	players, vertices := s.Players(), s.Vertices()

	s.IngestBoardSnapshot(snap)
	if diff := cmp.Diff(players, s.Players()); diff != "" {
		t.Fatalf("players changed (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(vertices, s.Vertices()); diff != "" {
		t.Fatalf("vertices changed (-first +second):\n%s", diff)
	}
}

func TestSnapshotReplacesOccupancy(t *testing.T) {
	s := newRingState(t)
	s.RegisterSettlementPlacement("p1", "v1")
	s.IngestBoardSnapshot(simtest.Ring())
	v, _ := s.Vertex("v1")
	if v.Occupant != nil {
		t.Fatalf("fresh snapshot should discard occupancy, got %+v", v.Occupant)
	}
	p, _ := s.Player("p1")
	if len(p.Settlements) != 0 || p.IncomeRate.Sum() != 0 {
		t.Fatalf("derived state should be rebuilt: %+v", p)
	}
}

func TestViewReturnsCopies(t *testing.T) {
	s := newRingState(t)
	s.RegisterSettlementPlacement("p1", "v1")
	v, _ := s.Vertex("v1")
	v.Occupant.PlayerID = "intruder"
	p, _ := s.Player("p1")
	p.ResourceEstimates[model.Ore] = 99

	v2, _ := s.Vertex("v1")
	p2, _ := s.Player("p1")
	if v2.Occupant.PlayerID != "p1" || p2.ResourceEstimates[model.Ore] != 0 {
		t.Fatalf("view leaked mutable state: %+v %+v", v2.Occupant, p2.ResourceEstimates)
	}

	if len(v.NeighborVertexIDs) == 0 || len(v.AdjacentTileIDs) == 0 {
		t.Fatalf("v1 should have neighbors and tiles: %+v", v)
	}
	wantNeighbor, wantTile := v2.NeighborVertexIDs[0], v2.AdjacentTileIDs[0]
	v.NeighborVertexIDs[0] = "hacked"
	v.AdjacentTileIDs[0] = "hacked"
	for _, vx := range s.Vertices() {
		if vx.ID == "v1" {
			vx.NeighborVertexIDs[0] = "hacked"
		}
	}
	v3, _ := s.Vertex("v1")
	if v3.NeighborVertexIDs[0] != wantNeighbor || v3.AdjacentTileIDs[0] != wantTile {
		t.Fatalf("vertex adjacency leaked: %+v", v3)
	}

	tiles := s.Tiles()
	if len(tiles) == 0 || len(tiles[0].VertexIDs) == 0 {
		t.Fatalf("ring board should have tiles with corners: %+v", tiles)
	}
	wantCorner := tiles[0].VertexIDs[0]
	tiles[0].VertexIDs[0] = "hacked"
	one, _ := s.Tile(tiles[0].ID)
	one.VertexIDs[0] = "hacked"
	again, _ := s.Tile(tiles[0].ID)
	if again.VertexIDs[0] != wantCorner || s.Tiles()[0].VertexIDs[0] != wantCorner {
		t.Fatalf("tile corners leaked: %+v", again)
	}
}
