package normalize

import (
	"strings"

	"hexadvisor.ai/internal/sim/event"
	"hexadvisor.ai/internal/sim/model"
)

type candidate struct {
	obj *object
	typ string
}

func (c candidate) has(words ...string) bool {
	for _, w := range words {
		if strings.Contains(c.typ, w) {
			return true
		}
	}
	return false
}

// rule maps one candidate shape to event payloads. build reports false when
// a required field is missing.
type rule struct {
	name  string
	match func(c candidate) bool
	build func(c candidate) ([]event.Payload, bool)
}

// rules are tried in order; the first matching rule decides the candidate.
// The board shape check comes first and ignores the type field.
var rules = []rule{
	{
		name:  "board",
		match: func(c candidate) bool { return looksLikeBoard(c.obj) },
		build: func(c candidate) ([]event.Payload, bool) {
			snap, robber := extractBoard(c.obj)
			out := []event.Payload{snap}
			if robber != "" {
				out = append(out, event.RobberMoved{TileID: robber})
			}
			return out, true
		},
	},
	{
		name:  "robber_steal",
		match: func(c candidate) bool { return c.has("STEAL") },
		build: func(c candidate) ([]event.Payload, bool) {
			from, ok1 := str(c.obj, victimAliases)
			to, ok2 := str(c.obj, thiefAliases)
			name, ok3 := str(c.obj, resourceAliases)
			res := model.ParseResource(name)
			if !ok1 || !ok2 || !ok3 || !res.Producing() {
				return nil, false
			}
			return one(event.RobberSteal{FromPlayerID: from, ToPlayerID: to, Resource: res})
		},
	},
	{
		name:  "robber_moved",
		match: func(c candidate) bool { return c.has("ROBBER") && c.has("MOVE", "PLACE") },
		build: func(c candidate) ([]event.Payload, bool) {
			tile, ok := str(c.obj, tileAliases)
			if !ok {
				return nil, false
			}
			return one(event.RobberMoved{TileID: tile})
		},
	},
	{
		name:  "dice_roll",
		match: func(c candidate) bool { return c.has("DICE", "ROLLED", "ROLL_RESULT") },
		build: func(c candidate) ([]event.Payload, bool) {
			v, ok := integer(c.obj, diceAliases)
			if !ok {
				return nil, false
			}
			return one(event.DiceRoll{Value: v})
		},
	},
	{
		name:  "city",
		match: func(c candidate) bool { return c.has("CITY") && c.has("PLACE", "BUILD", "UPGRADE") },
		build: func(c candidate) ([]event.Payload, bool) {
			player, ok1 := str(c.obj, playerAliases)
			vertex, ok2 := str(c.obj, vertexAliases)
			if !ok1 || !ok2 {
				return nil, false
			}
			return one(event.CityPlaced{PlayerID: player, VertexID: vertex})
		},
	},
	{
		name:  "settlement",
		match: func(c candidate) bool { return c.has("SETTLEMENT") && c.has("PLACE", "BUILD") },
		build: func(c candidate) ([]event.Payload, bool) {
			player, ok1 := str(c.obj, playerAliases)
			vertex, ok2 := str(c.obj, vertexAliases)
			if !ok1 || !ok2 {
				return nil, false
			}
			return one(event.SettlementPlaced{PlayerID: player, VertexID: vertex})
		},
	},
	{
		name:  "road",
		match: func(c candidate) bool { return c.has("ROAD") && c.has("PLACE", "BUILD") },
		build: func(c candidate) ([]event.Payload, bool) {
			player, ok1 := str(c.obj, playerAliases)
			edge, ok2 := str(c.obj, edgeAliases)
			if !ok1 || !ok2 {
				return nil, false
			}
			return one(event.RoadPlaced{PlayerID: player, EdgeKey: edge})
		},
	},
	{
		name:  "dev_card_bought",
		match: func(c candidate) bool { return c.has("DEV") && c.has("BUY", "BOUGHT", "PURCHASE") },
		build: func(c candidate) ([]event.Payload, bool) {
			player, ok := str(c.obj, playerAliases)
			if !ok {
				return nil, false
			}
			return one(event.DevCardBought{PlayerID: player})
		},
	},
	{
		name:  "dev_card_played",
		match: func(c candidate) bool { return c.has("DEV") && c.has("PLAY", "USE") },
		build: func(c candidate) ([]event.Payload, bool) {
			player, ok := str(c.obj, playerAliases)
			if !ok {
				return nil, false
			}
			return one(event.DevCardPlayed{PlayerID: player})
		},
	},
	{
		name:  "trade",
		match: completedTrade,
		build: func(c candidate) ([]event.Payload, bool) {
			from, ok1 := str(c.obj, tradeFrom)
			to, ok2 := str(c.obj, tradeTo)
			offer, ok3 := bundle(c.obj, offerAliases)
			request, ok4 := bundle(c.obj, requestAliases)
			if !ok1 || !ok2 || !ok3 || !ok4 {
				return nil, false
			}
			return one(event.Trade{FromPlayerID: from, ToPlayerID: to, Offer: offer, Request: request})
		},
	},
	{
		name:  "player_join",
		match: func(c candidate) bool { return c.has("JOIN") || (c.has("PLAYER") && c.has("ADD")) },
		build: func(c candidate) ([]event.Payload, bool) {
			player, ok := str(c.obj, joinIDAliases)
			if !ok {
				return nil, false
			}
			name, _ := str(c.obj, nameAliases)
			if strings.EqualFold(name, c.typ) {
				name = ""
			}
			return one(event.PlayerJoin{PlayerID: player, Name: name})
		},
	},
}

// completedTrade skips proposals and other negotiation chatter; only an
// executed trade moves cards.
func completedTrade(c candidate) bool {
	if !c.has("TRADE") {
		return false
	}
	if c.has("PROPOS", "REJECT", "DECLIN", "CANCEL", "COUNTER") {
		return false
	}
	if c.has("OFFER") && !c.has("ACCEPT") {
		return false
	}
	return true
}

func one(p event.Payload) ([]event.Payload, bool) {
	return []event.Payload{p}, true
}

// infer returns the payloads for c and whether c was a board description.
func infer(c candidate) ([]event.Payload, bool) {
	for _, r := range rules {
		if !r.match(c) {
			continue
		}
		out, ok := r.build(c)
		if !ok {
			return nil, false
		}
		return out, r.name == "board"
	}
	return nil, false
}
