package state

import "hexadvisor.ai/internal/sim/model"

// Snapshot is a self-contained copy of the aggregate in insertion order.
type Snapshot struct {
	SetupTurns   int
	SetupTurn    int
	Players      []Player
	Tiles        []model.Tile
	Vertices     []Vertex
	Placements   []Placement
	RobberTileID string
	LastDiceRoll *int
}

func (s *GameState) Snapshot() Snapshot {
	out := Snapshot{
		SetupTurns:   s.setupTurns,
		SetupTurn:    s.setupTurn,
		Players:      s.Players(),
		Tiles:        s.Tiles(),
		Vertices:     s.Vertices(),
		Placements:   s.Placements(),
		RobberTileID: s.robberTileID,
	}
	if s.lastDiceRoll != nil {
		v := *s.lastDiceRoll
		out.LastDiceRoll = &v
	}
	return out
}

// Restore rebuilds an aggregate from a Snapshot. Derived fields (income,
// building sets, victory points) are recomputed from the board.
func Restore(x Snapshot) *GameState {
	s := New(x.SetupTurns)
	s.setupTurn = x.SetupTurn
	for _, p := range x.Players {
		np := s.EnsurePlayer(p.ID, p.Name)
		for r, n := range p.ResourceEstimates {
			np.ResourceEstimates[r] = n
		}
		np.DevCardsKnown = p.DevCardsKnown
		np.Roads = append(np.Roads, p.Roads...)
	}
	for _, t := range x.Tiles {
		if _, dup := s.tiles[t.ID]; dup || t.ID == "" {
			continue
		}
		tile := t
		tile.VertexIDs = append([]string{}, t.VertexIDs...)
		s.tiles[t.ID] = &tile
		s.tileOrder = append(s.tileOrder, t.ID)
	}
	for _, v := range x.Vertices {
		if _, dup := s.vertices[v.ID]; dup || v.ID == "" {
			continue
		}
		vx := v.clone()
		// gob drops empty slices; restore them as empty, not nil.
		vx.AdjacentTileIDs = append([]string{}, v.AdjacentTileIDs...)
		vx.NeighborVertexIDs = append([]string{}, v.NeighborVertexIDs...)
		s.vertices[v.ID] = &vx
		s.vertexOrder = append(s.vertexOrder, v.ID)
	}
	s.placements = append(s.placements, x.Placements...)
	if _, ok := s.tiles[x.RobberTileID]; ok {
		s.robberTileID = x.RobberTileID
	}
	if x.LastDiceRoll != nil {
		s.RegisterDiceRoll(*x.LastDiceRoll)
	}
	s.RecomputeIncomeRates()
	return s
}
