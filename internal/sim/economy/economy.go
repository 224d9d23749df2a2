// Package economy applies canonical events to the game aggregate and keeps
// per-player resource estimates in line with the build costs.
package economy

import (
	"hexadvisor.ai/internal/sim/event"
	"hexadvisor.ai/internal/sim/model"
	"hexadvisor.ai/internal/sim/state"
)

var (
	SettlementCost = model.Bundle{model.Brick: 1, model.Lumber: 1, model.Grain: 1, model.Wool: 1}
	RoadCost       = model.Bundle{model.Brick: 1, model.Lumber: 1}
	CityCost       = model.Bundle{model.Grain: 2, model.Ore: 3}
	DevCardCost    = model.Bundle{model.Grain: 1, model.Wool: 1, model.Ore: 1}
)

type BuildOptions struct {
	Road       bool `json:"road"`
	Settlement bool `json:"settlement"`
	City       bool `json:"city"`
	DevCard    bool `json:"devCard"`
}

// Apply mutates s according to e. Unknown payloads are ignored.
func Apply(e event.Event, s *state.GameState) {
	switch p := e.Payload.(type) {
	case event.BoardSnapshot:
		s.IngestBoardSnapshot(p)
	case event.PlayerJoin:
		s.EnsurePlayer(p.PlayerID, p.Name)
	case event.SettlementPlaced:
		s.RegisterSettlementPlacement(p.PlayerID, p.VertexID)
		s.AdjustResources(p.PlayerID, SettlementCost.Negate())
	case event.RoadPlaced:
		s.RegisterRoadPlacement(p.PlayerID, p.EdgeKey)
		s.AdjustResources(p.PlayerID, RoadCost.Negate())
	case event.CityPlaced:
		s.RegisterCityUpgrade(p.PlayerID, p.VertexID)
		s.AdjustResources(p.PlayerID, CityCost.Negate())
	case event.DiceRoll:
		s.RegisterDiceRoll(p.Value)
		if p.Value != 7 {
			distributeRoll(p.Value, s)
		}
	case event.Trade:
		// Both debits land before either credit.
		s.AdjustResources(p.FromPlayerID, p.Offer.Negate())
		s.AdjustResources(p.ToPlayerID, p.Request.Negate())
		s.AdjustResources(p.FromPlayerID, p.Request)
		s.AdjustResources(p.ToPlayerID, p.Offer)
	case event.RobberMoved:
		s.SetRobberTile(p.TileID)
	case event.RobberSteal:
		s.AdjustResources(p.FromPlayerID, model.Bundle{p.Resource: -1})
		s.AdjustResources(p.ToPlayerID, model.Bundle{p.Resource: 1})
	case event.DevCardPlayed:
		s.AdjustDevCards(p.PlayerID, -1)
	case event.DevCardBought:
		s.AdjustDevCards(p.PlayerID, 1)
		s.AdjustResources(p.PlayerID, DevCardCost.Negate())
	}
}

// ApplyAll applies events in order.
func ApplyAll(events []event.Event, s *state.GameState) {
	for _, e := range events {
		Apply(e, s)
	}
}

func distributeRoll(value int, s *state.GameState) {
	robbed := s.RobberTileID()
	for _, t := range s.Tiles() {
		if t.Token != value || t.ID == robbed || !t.Resource.Producing() {
			continue
		}
		for _, vid := range t.VertexIDs {
			v, ok := s.Vertex(vid)
			if !ok || v.Occupant == nil {
				continue
			}
			s.AdjustResources(v.Occupant.PlayerID, model.Bundle{t.Resource: v.Occupant.Building.Multiplier()})
		}
	}
}

func SummarizeBuildOptions(p state.Player) BuildOptions {
	r := p.ResourceEstimates
	return BuildOptions{
		Road:       r[model.Brick] >= 1 && r[model.Lumber] >= 1,
		Settlement: r[model.Brick] >= 1 && r[model.Lumber] >= 1 && r[model.Grain] >= 1 && r[model.Wool] >= 1,
		City:       r[model.Grain] >= 2 && r[model.Ore] >= 3,
		DevCard:    r[model.Grain] >= 1 && r[model.Wool] >= 1 && r[model.Ore] >= 1,
	}
}
