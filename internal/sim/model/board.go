package model

type Building string

const (
	Settlement Building = "settlement"
	City       Building = "city"
)

// Multiplier is the production multiple of a building.
func (b Building) Multiplier() int {
	if b == City {
		return 2
	}
	return 1
}

type Occupant struct {
	PlayerID string   `json:"playerId"`
	Building Building `json:"building"`
}

type Tile struct {
	ID        string   `json:"id"`
	Resource  Resource `json:"resource"`
	Token     int      `json:"token"`
	VertexIDs []string `json:"vertexIds"`
}

// VertexSpec is a vertex as described by a board snapshot.
type VertexSpec struct {
	ID                string    `json:"id"`
	AdjacentTileIDs   []string  `json:"adjacentTileIds"`
	NeighborVertexIDs []string  `json:"neighborVertexIds"`
	Occupant          *Occupant `json:"occupant"`
}

// PipWeight is the number of two-dice combinations that roll token.
func PipWeight(token int) int {
	switch token {
	case 6, 8:
		return 5
	case 5, 9:
		return 4
	case 4, 10:
		return 3
	case 3, 11:
		return 2
	case 2, 12:
		return 1
	}
	return 0
}
