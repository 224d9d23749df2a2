// Package robber ranks tiles to block with the robber.
package robber

import (
	"sort"

	"hexadvisor.ai/internal/sim/model"
	"hexadvisor.ai/internal/sim/state"
	"hexadvisor.ai/internal/sim/tuning"
)

type TileScore struct {
	TileID            string         `json:"tileId"`
	Resource          model.Resource `json:"resource"`
	Token             int            `json:"token"`
	Score             float64        `json:"score"`
	ProductionBlocked float64        `json:"productionBlocked"`
	ThreatBlocked     float64        `json:"threatBlocked"`
	StealGain         float64        `json:"stealGain"`
}

type Result struct {
	BestTile *TileScore  `json:"bestTile"`
	Rankings []TileScore `json:"rankings"`
}

type Engine struct {
	cfg tuning.Robber
}

func New(t tuning.Tuning) *Engine {
	return &Engine{cfg: t.Robber}
}

// Evaluate scores every producing, unrobbed tile that touches an opponent of
// perspective.
func (e *Engine) Evaluate(v state.View, perspective string) Result {
	players := map[string]state.Player{}
	for _, p := range v.Players() {
		players[p.ID] = p
	}
	robbed := v.RobberTileID()

	scores := []TileScore{}
	for _, t := range v.Tiles() {
		if !t.Resource.Producing() || t.ID == robbed {
			continue
		}
		victims, weight := opponentsOn(v, t, perspective)
		if len(victims) == 0 {
			continue
		}
		production := float64(model.PipWeight(t.Token) * weight)
		threat := 0.0
		steal := 0.0
		for _, id := range victims {
			p, ok := players[id]
			if !ok {
				continue
			}
			threat += p.IncomeRate.Sum() + float64(p.VictoryPoints)*e.cfg.VictoryPointRisk + float64(p.DevCardsKnown)*e.cfg.DevCardRisk
			steal = max(steal, e.stealValue(p))
		}
		scores = append(scores, TileScore{
			TileID:            t.ID,
			Resource:          t.Resource,
			Token:             t.Token,
			Score:             e.cfg.ProductionWeight*production + e.cfg.ThreatWeight*threat + e.cfg.StealWeight*steal,
			ProductionBlocked: production,
			ThreatBlocked:     threat,
			StealGain:         steal,
		})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	out := Result{Rankings: scores}
	if len(scores) > 0 {
		best := scores[0]
		out.BestTile = &best
	}
	if len(out.Rankings) > e.cfg.RankingLimit {
		out.Rankings = out.Rankings[:e.cfg.RankingLimit]
	}
	return out
}

// opponentsOn returns the distinct opponents with a building on t in vertex
// order, and their summed building multipliers.
func opponentsOn(v state.View, t model.Tile, perspective string) ([]string, int) {
	var ids []string
	seen := map[string]bool{}
	weight := 0
	for _, vid := range t.VertexIDs {
		vx, ok := v.Vertex(vid)
		if !ok || vx.Occupant == nil || vx.Occupant.PlayerID == perspective {
			continue
		}
		weight += vx.Occupant.Building.Multiplier()
		if !seen[vx.Occupant.PlayerID] {
			seen[vx.Occupant.PlayerID] = true
			ids = append(ids, vx.Occupant.PlayerID)
		}
	}
	return ids, weight
}

// stealValue is the expected usefulness of one random card from p's hand.
func (e *Engine) stealValue(p state.Player) float64 {
	total, useful := 0, 0.0
	for _, r := range model.Resources {
		n := p.ResourceEstimates[r]
		if n <= 0 {
			continue
		}
		total += n
		w := 1.0
		if r == model.Ore || r == model.Grain {
			w = e.cfg.StealPremium
		}
		useful += float64(n) * w
	}
	if total == 0 {
		return 0
	}
	return useful / float64(total)
}
