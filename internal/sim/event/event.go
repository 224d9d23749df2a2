// Package event defines the canonical game events inferred from server traffic.
package event

import (
	"encoding/json"

	"hexadvisor.ai/internal/sim/model"
)

type Kind string

const (
	KindBoardSnapshot    Kind = "BoardSnapshot"
	KindPlayerJoin       Kind = "PlayerJoin"
	KindDiceRoll         Kind = "DiceRoll"
	KindSettlementPlaced Kind = "SettlementPlaced"
	KindRoadPlaced       Kind = "RoadPlaced"
	KindCityPlaced       Kind = "CityPlaced"
	KindTrade            Kind = "Trade"
	KindRobberMoved      Kind = "RobberMoved"
	KindRobberSteal      Kind = "RobberSteal"
	KindDevCardPlayed    Kind = "DevCardPlayed"
	KindDevCardBought    Kind = "DevCardBought"
)

// Payload is implemented only by the payload types in this package.
type Payload interface {
	Kind() Kind
	sealed()
}

type Event struct {
	Type    Kind    `json:"type"`
	Payload Payload `json:"payload"`
}

func New(p Payload) Event {
	return Event{Type: p.Kind(), Payload: p}
}

// Key identifies an event by tag and serialized payload.
func (e Event) Key() string {
	b, err := json.Marshal(e.Payload)
	if err != nil {
		return string(e.Type)
	}
	return string(e.Type) + ":" + string(b)
}

type BoardSnapshot struct {
	Tiles    []model.Tile       `json:"tiles"`
	Vertices []model.VertexSpec `json:"vertices"`
}

type PlayerJoin struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name,omitempty"`
}

type DiceRoll struct {
	Value int `json:"value"`
}

type SettlementPlaced struct {
	PlayerID string `json:"playerId"`
	VertexID string `json:"vertexId"`
}

type RoadPlaced struct {
	PlayerID string `json:"playerId"`
	EdgeKey  string `json:"edgeKey"`
}

type CityPlaced struct {
	PlayerID string `json:"playerId"`
	VertexID string `json:"vertexId"`
}

type Trade struct {
	FromPlayerID string       `json:"fromPlayerId"`
	ToPlayerID   string       `json:"toPlayerId"`
	Offer        model.Bundle `json:"offer"`
	Request      model.Bundle `json:"request"`
}

type RobberMoved struct {
	TileID string `json:"tileId"`
}

// RobberSteal moves one Resource from FromPlayerID (victim) to ToPlayerID (thief).
type RobberSteal struct {
	FromPlayerID string         `json:"fromPlayerId"`
	ToPlayerID   string         `json:"toPlayerId"`
	Resource     model.Resource `json:"resource"`
}

type DevCardPlayed struct {
	PlayerID string `json:"playerId"`
}

type DevCardBought struct {
	PlayerID string `json:"playerId"`
}

func (BoardSnapshot) Kind() Kind    { return KindBoardSnapshot }
func (PlayerJoin) Kind() Kind       { return KindPlayerJoin }
func (DiceRoll) Kind() Kind         { return KindDiceRoll }
func (SettlementPlaced) Kind() Kind { return KindSettlementPlaced }
func (RoadPlaced) Kind() Kind       { return KindRoadPlaced }
func (CityPlaced) Kind() Kind       { return KindCityPlaced }
func (Trade) Kind() Kind            { return KindTrade }
func (RobberMoved) Kind() Kind      { return KindRobberMoved }
func (RobberSteal) Kind() Kind      { return KindRobberSteal }
func (DevCardPlayed) Kind() Kind    { return KindDevCardPlayed }
func (DevCardBought) Kind() Kind    { return KindDevCardBought }

func (BoardSnapshot) sealed()    {}
func (PlayerJoin) sealed()       {}
func (DiceRoll) sealed()         {}
func (SettlementPlaced) sealed() {}
func (RoadPlaced) sealed()       {}
func (CityPlaced) sealed()       {}
func (Trade) sealed()            {}
func (RobberMoved) sealed()      {}
func (RobberSteal) sealed()      {}
func (DevCardPlayed) sealed()    {}
func (DevCardBought) sealed()    {}

// Dedupe drops events whose Key was already seen, keeping first occurrences
// in order.
func Dedupe(events []Event) []Event {
	if len(events) < 2 {
		return events
	}
	seen := make(map[string]struct{}, len(events))
	out := events[:0:0]
	for _, e := range events {
		k := e.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}
