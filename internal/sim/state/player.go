package state

import "hexadvisor.ai/internal/sim/model"

type Player struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	ResourceEstimates model.Bundle `json:"resourceEstimates"`
	IncomeRate        model.Rates  `json:"incomeRate"`
	DevCardsKnown     int          `json:"devCardsKnown"`
	VictoryPoints     int          `json:"victoryPoints"`
	Settlements       []string     `json:"settlements"`
	Cities            []string     `json:"cities"`
	Roads             []string     `json:"roads"`
}

func newPlayer(id, name string) *Player {
	if name == "" {
		name = id
	}
	return &Player{
		ID:                id,
		Name:              name,
		ResourceEstimates: model.ZeroBundle(),
		IncomeRate:        model.ZeroRates(),
		Settlements:       []string{},
		Cities:            []string{},
		Roads:             []string{},
	}
}

// Clone returns a deep copy.
func (p *Player) Clone() Player {
	out := *p
	out.ResourceEstimates = p.ResourceEstimates.Clone()
	out.IncomeRate = make(model.Rates, len(p.IncomeRate))
	for r, v := range p.IncomeRate {
		out.IncomeRate[r] = v
	}
	out.Settlements = append([]string{}, p.Settlements...)
	out.Cities = append([]string{}, p.Cities...)
	out.Roads = append([]string{}, p.Roads...)
	return out
}

// Owns reports whether the player has a building on vertexID.
func (p *Player) Owns(vertexID string) bool {
	return contains(p.Settlements, vertexID) || contains(p.Cities, vertexID)
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func remove(xs []string, v string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
