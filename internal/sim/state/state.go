// Package state holds the game aggregate reconstructed from observed events.
//
// GameState is single-writer: the economy simulator applies events to it and
// evaluators read it through View between batches.
package state

import (
	"slices"

	"hexadvisor.ai/internal/sim/event"
	"hexadvisor.ai/internal/sim/model"
)

// DefaultSetupTurns is two settlements per player in a four player game.
const DefaultSetupTurns = 8

type Vertex struct {
	ID                string          `json:"id"`
	AdjacentTileIDs   []string        `json:"adjacentTileIds"`
	NeighborVertexIDs []string        `json:"neighborVertexIds"`
	Occupant          *model.Occupant `json:"occupant"`
}

func (v *Vertex) clone() Vertex {
	out := *v
	out.AdjacentTileIDs = slices.Clone(v.AdjacentTileIDs)
	out.NeighborVertexIDs = slices.Clone(v.NeighborVertexIDs)
	if v.Occupant != nil {
		occ := *v.Occupant
		out.Occupant = &occ
	}
	return out
}

type Placement struct {
	PlayerID string `json:"playerId"`
	VertexID string `json:"vertexId"`
	Order    int    `json:"order"`
}

// View is the read-only surface evaluators get.
type View interface {
	IsSetupPhase() bool
	SetupTurn() int
	PlayerCount() int
	Players() []Player
	Player(id string) (Player, bool)
	Tiles() []model.Tile
	Tile(id string) (model.Tile, bool)
	Vertices() []Vertex
	Vertex(id string) (Vertex, bool)
	RobberTileID() string
	LastDiceRoll() (int, bool)
}

type GameState struct {
	setupTurns int

	players     map[string]*Player
	playerOrder []string

	tiles       map[string]*model.Tile
	tileOrder   []string
	vertices    map[string]*Vertex
	vertexOrder []string

	setupTurn    int
	placements   []Placement
	robberTileID string
	lastDiceRoll *int
}

var _ View = (*GameState)(nil)

// New creates an empty aggregate. setupTurns <= 0 uses DefaultSetupTurns.
func New(setupTurns int) *GameState {
	if setupTurns <= 0 {
		setupTurns = DefaultSetupTurns
	}
	return &GameState{
		setupTurns: setupTurns,
		players:    map[string]*Player{},
		tiles:      map[string]*model.Tile{},
		vertices:   map[string]*Vertex{},
	}
}

// EnsurePlayer creates or returns the player. A later non-empty name replaces
// a defaulted one.
func (s *GameState) EnsurePlayer(id, name string) *Player {
	if p, ok := s.players[id]; ok {
		if name != "" && (p.Name == "" || p.Name == p.ID) {
			p.Name = name
		}
		return p
	}
	p := newPlayer(id, name)
	s.players[id] = p
	s.playerOrder = append(s.playerOrder, id)
	return p
}

// IngestBoardSnapshot replaces tiles and vertices wholesale. Prior occupancy
// is discarded.
func (s *GameState) IngestBoardSnapshot(snap event.BoardSnapshot) {
	s.tiles = make(map[string]*model.Tile, len(snap.Tiles))
	s.tileOrder = s.tileOrder[:0]
	for _, t := range snap.Tiles {
		if t.ID == "" {
			continue
		}
		if _, dup := s.tiles[t.ID]; !dup {
			s.tileOrder = append(s.tileOrder, t.ID)
		}
		tile := t
		tile.VertexIDs = append([]string{}, t.VertexIDs...)
		s.tiles[t.ID] = &tile
	}

	s.vertices = make(map[string]*Vertex, len(snap.Vertices))
	s.vertexOrder = s.vertexOrder[:0]
	for _, v := range snap.Vertices {
		if v.ID == "" {
			continue
		}
		if _, dup := s.vertices[v.ID]; !dup {
			s.vertexOrder = append(s.vertexOrder, v.ID)
		}
		vx := &Vertex{
			ID:                v.ID,
			AdjacentTileIDs:   append([]string{}, v.AdjacentTileIDs...),
			NeighborVertexIDs: append([]string{}, v.NeighborVertexIDs...),
		}
		if v.Occupant != nil && v.Occupant.PlayerID != "" {
			occ := *v.Occupant
			if occ.Building != model.City {
				occ.Building = model.Settlement
			}
			vx.Occupant = &occ
		}
		s.vertices[v.ID] = vx
	}

	s.RecomputeIncomeRates()
}

func (s *GameState) IsSetupPhase() bool { return s.setupTurn < s.setupTurns }

// RegisterSettlementPlacement reports false when vertexID is not on the board.
func (s *GameState) RegisterSettlementPlacement(playerID, vertexID string) bool {
	v, ok := s.vertices[vertexID]
	if !ok {
		return false
	}
	v.Occupant = &model.Occupant{PlayerID: playerID, Building: model.Settlement}

	p := s.EnsurePlayer(playerID, "")
	if !contains(p.Settlements, vertexID) {
		p.Settlements = append(p.Settlements, vertexID)
	}

	if s.IsSetupPhase() {
		s.setupTurn++
		s.placements = append(s.placements, Placement{PlayerID: playerID, VertexID: vertexID, Order: s.setupTurn})
	}

	s.RecomputeIncomeRates()
	return true
}

func (s *GameState) RegisterRoadPlacement(playerID, edgeKey string) {
	p := s.EnsurePlayer(playerID, "")
	if !contains(p.Roads, edgeKey) {
		p.Roads = append(p.Roads, edgeKey)
	}
}

// RegisterCityUpgrade reports false when vertexID is not on the board.
func (s *GameState) RegisterCityUpgrade(playerID, vertexID string) bool {
	v, ok := s.vertices[vertexID]
	if !ok {
		return false
	}
	v.Occupant = &model.Occupant{PlayerID: playerID, Building: model.City}

	p := s.EnsurePlayer(playerID, "")
	p.Settlements = remove(p.Settlements, vertexID)
	if !contains(p.Cities, vertexID) {
		p.Cities = append(p.Cities, vertexID)
	}

	s.RecomputeIncomeRates()
	return true
}

// SetRobberTile reports false when tileID is not on the board.
func (s *GameState) SetRobberTile(tileID string) bool {
	if _, ok := s.tiles[tileID]; !ok {
		return false
	}
	s.robberTileID = tileID
	s.RecomputeIncomeRates()
	return true
}

func (s *GameState) RegisterDiceRoll(value int) {
	v := value
	s.lastDiceRoll = &v
}

// AdjustResources applies delta to the player's estimates, clamping each
// entry at zero. Non-producing keys are ignored.
func (s *GameState) AdjustResources(playerID string, delta model.Bundle) {
	if len(delta) == 0 {
		return
	}
	p := s.EnsurePlayer(playerID, "")
	for _, r := range model.Resources {
		d, ok := delta[r]
		if !ok {
			continue
		}
		p.ResourceEstimates[r] = max(0, p.ResourceEstimates[r]+d)
	}
}

func (s *GameState) AdjustDevCards(playerID string, delta int) {
	p := s.EnsurePlayer(playerID, "")
	p.DevCardsKnown = max(0, p.DevCardsKnown+delta)
}

// RecomputeIncomeRates rebuilds income, building sets and visible victory
// points from vertex occupancy.
func (s *GameState) RecomputeIncomeRates() {
	for _, id := range s.playerOrder {
		p := s.players[id]
		p.IncomeRate = model.ZeroRates()
		p.Settlements = p.Settlements[:0]
		p.Cities = p.Cities[:0]
	}

	for _, vid := range s.vertexOrder {
		v := s.vertices[vid]
		if v.Occupant == nil {
			continue
		}
		p := s.EnsurePlayer(v.Occupant.PlayerID, "")
		if v.Occupant.Building == model.City {
			p.Cities = append(p.Cities, v.ID)
		} else {
			p.Settlements = append(p.Settlements, v.ID)
		}
		mult := float64(v.Occupant.Building.Multiplier())
		for _, tid := range v.AdjacentTileIDs {
			t, ok := s.tiles[tid]
			if !ok || t.ID == s.robberTileID || !t.Resource.Producing() {
				continue
			}
			p.IncomeRate[t.Resource] += float64(model.PipWeight(t.Token)) * mult
		}
	}

	for _, id := range s.playerOrder {
		p := s.players[id]
		p.VictoryPoints = len(p.Settlements) + 2*len(p.Cities)
	}
}
