package protocol

import "time"

// Phases.
const (
	PhaseSetup = "setup"
	PhaseMain  = "main"
)

// Advisory is the payload handed to whatever renders advice next to the game.
type Advisory struct {
	Phase               string          `json:"phase"`
	SetupTurn           int             `json:"setupTurn"`
	PerspectivePlayerID string          `json:"perspectivePlayerId"`
	Placement           PlacementAdvice `json:"placement"`
	Robber              RobberAdvice    `json:"robber"`
	Players             []PlayerAdvice  `json:"players"`
	RobberTileID        *string         `json:"robberTileId"`
	LastDiceRoll        *int            `json:"lastDiceRoll"`
	Diagnostics         Diagnostics     `json:"diagnostics"`
}

type PlacementAdvice struct {
	RankedVertices []VertexScore `json:"rankedVertices"`
	RankedPairs    []VertexPair  `json:"rankedPairs"`
	SuggestedRoad  *Road         `json:"suggestedRoad"`
}

type VertexScore struct {
	VertexID string  `json:"vertexId"`
	Score    float64 `json:"score"`
	Detail   string  `json:"detail"`
}

type VertexPair struct {
	First         string  `json:"first"`
	Second        string  `json:"second"`
	Score         float64 `json:"score"`
	SuggestedRoad *Road   `json:"suggestedRoad"`
}

type Road struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Rationale string `json:"rationale"`
}

type RobberAdvice struct {
	BestTile *TileScore  `json:"bestTile"`
	Rankings []TileScore `json:"rankings"`
}

type TileScore struct {
	TileID            string  `json:"tileId"`
	Resource          string  `json:"resource"`
	Token             int     `json:"token"`
	Score             float64 `json:"score"`
	ProductionBlocked float64 `json:"productionBlocked"`
	ThreatBlocked     float64 `json:"threatBlocked"`
	StealGain         float64 `json:"stealGain"`
}

type PlayerAdvice struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	ResourceEstimates map[string]int     `json:"resourceEstimates"`
	IncomeRate        map[string]float64 `json:"incomeRate"`
	DevCardsKnown     int                `json:"devCardsKnown"`
	VictoryPoints     int                `json:"victoryPoints"`
	Settlements       []string           `json:"settlements"`
	Cities            []string           `json:"cities"`
	Roads             []string           `json:"roads"`
	BuildOptions      BuildOptions       `json:"buildOptions"`
}

type BuildOptions struct {
	Road       bool `json:"road"`
	Settlement bool `json:"settlement"`
	City       bool `json:"city"`
	DevCard    bool `json:"devCard"`
}

type Diagnostics struct {
	InboundMessages int        `json:"inboundMessages"`
	ParsedEvents    int        `json:"parsedEvents"`
	LastError       string     `json:"lastError,omitempty"`
	LastMessageAt   *time.Time `json:"lastMessageAt"`
	TrackedPlayers  int        `json:"trackedPlayers"`
	TrackedTiles    int        `json:"trackedTiles"`
	TrackedVertices int        `json:"trackedVertices"`
}
