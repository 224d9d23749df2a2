package state

import (
	"slices"

	"hexadvisor.ai/internal/sim/model"
)

func (s *GameState) SetupTurn() int   { return s.setupTurn }
func (s *GameState) PlayerCount() int { return len(s.playerOrder) }

// Players returns copies in join order.
func (s *GameState) Players() []Player {
	out := make([]Player, 0, len(s.playerOrder))
	for _, id := range s.playerOrder {
		out = append(out, s.players[id].Clone())
	}
	return out
}

func (s *GameState) Player(id string) (Player, bool) {
	p, ok := s.players[id]
	if !ok {
		return Player{}, false
	}
	return p.Clone(), true
}

func (s *GameState) Tiles() []model.Tile {
	out := make([]model.Tile, 0, len(s.tileOrder))
	for _, id := range s.tileOrder {
		out = append(out, cloneTile(s.tiles[id]))
	}
	return out
}

func (s *GameState) Tile(id string) (model.Tile, bool) {
	t, ok := s.tiles[id]
	if !ok {
		return model.Tile{}, false
	}
	return cloneTile(t), true
}

func cloneTile(t *model.Tile) model.Tile {
	out := *t
	out.VertexIDs = slices.Clone(t.VertexIDs)
	return out
}

func (s *GameState) Vertices() []Vertex {
	out := make([]Vertex, 0, len(s.vertexOrder))
	for _, id := range s.vertexOrder {
		out = append(out, s.vertices[id].clone())
	}
	return out
}

func (s *GameState) Vertex(id string) (Vertex, bool) {
	v, ok := s.vertices[id]
	if !ok {
		return Vertex{}, false
	}
	return v.clone(), true
}

// RobberTileID is empty until the robber has been placed on a known tile.
func (s *GameState) RobberTileID() string { return s.robberTileID }

func (s *GameState) LastDiceRoll() (int, bool) {
	if s.lastDiceRoll == nil {
		return 0, false
	}
	return *s.lastDiceRoll, true
}

func (s *GameState) Placements() []Placement {
	return append([]Placement(nil), s.placements...)
}
