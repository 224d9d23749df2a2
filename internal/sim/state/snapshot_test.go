package state

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"hexadvisor.ai/internal/sim/model"
)

func TestSnapshotRestore(t *testing.T) {
	s := newRingState(t)
	s.EnsurePlayer("p1", "Alice")
	s.RegisterSettlementPlacement("p1", "v2")
	s.RegisterSettlementPlacement("p2", "v4")
	s.RegisterCityUpgrade("p2", "v4")
	s.RegisterRoadPlacement("p1", "v1-v2")
	s.AdjustResources("p1", model.Bundle{model.Ore: 3, model.Wool: 1})
	s.AdjustDevCards("p2", 2)
	s.RegisterDiceRoll(6)
	s.SetRobberTile("t2")

	x := s.Snapshot()
	restored := Restore(x)

	if diff := cmp.Diff(x, restored.Snapshot()); diff != "" {
		t.Fatalf("restore drifted (-want +got):\n%s", diff)
	}
	if restored.SetupTurn() != 2 || !restored.IsSetupPhase() {
		t.Fatalf("setup turn %d", restored.SetupTurn())
	}
	if p, _ := restored.Player("p1"); p.Name != "Alice" || p.VictoryPoints != 1 {
		t.Fatalf("p1 %+v", p)
	}

	// The snapshot owns its slices.
	x.Tiles[0].VertexIDs[0] = "zz"
	if tile, _ := s.Tile(x.Tiles[0].ID); tile.VertexIDs[0] == "zz" {
		t.Fatal("snapshot aliases live tile")
	}
}

func TestRestoreDropsUnknownRobberTile(t *testing.T) {
	s := Restore(Snapshot{SetupTurns: 4, RobberTileID: "nowhere"})
	if s.RobberTileID() != "" {
		t.Fatalf("robber %q", s.RobberTileID())
	}
	if s.PlayerCount() != 0 {
		t.Fatalf("players %d", s.PlayerCount())
	}
}
