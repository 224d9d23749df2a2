package advisor

import (
	"hexadvisor.ai/internal/protocol"
	"hexadvisor.ai/internal/sim/economy"
	"hexadvisor.ai/internal/sim/model"
	"hexadvisor.ai/internal/sim/placement"
	"hexadvisor.ai/internal/sim/robber"
	"hexadvisor.ai/internal/sim/state"
)

func (s *Session) perspectiveLocked() string {
	if s.perspective != "" {
		return s.perspective
	}
	if ps := s.state.Players(); len(ps) > 0 {
		return ps[0].ID
	}
	return ""
}

func (s *Session) advise() protocol.Advisory {
	perspective := s.perspectiveLocked()
	phase := protocol.PhaseMain
	if s.state.IsSetupPhase() {
		phase = protocol.PhaseSetup
	}

	players := s.state.Players()
	out := protocol.Advisory{
		Phase:               phase,
		SetupTurn:           s.state.SetupTurn(),
		PerspectivePlayerID: perspective,
		Placement:           placementAdvice(s.placement.Evaluate(s.state, perspective)),
		Robber:              robberAdvice(s.robber.Evaluate(s.state, perspective)),
		Players:             make([]protocol.PlayerAdvice, 0, len(players)),
		Diagnostics: protocol.Diagnostics{
			InboundMessages: s.inbound,
			ParsedEvents:    s.parsed,
			LastError:       s.lastError,
			LastMessageAt:   s.lastMessageAt,
			TrackedPlayers:  len(players),
			TrackedTiles:    len(s.state.Tiles()),
			TrackedVertices: len(s.state.Vertices()),
		},
	}
	for _, p := range players {
		out.Players = append(out.Players, playerAdvice(p))
	}
	if id := s.state.RobberTileID(); id != "" {
		out.RobberTileID = &id
	}
	if v, ok := s.state.LastDiceRoll(); ok {
		out.LastDiceRoll = &v
	}
	return out
}

func placementAdvice(r placement.Result) protocol.PlacementAdvice {
	out := protocol.PlacementAdvice{
		RankedVertices: make([]protocol.VertexScore, 0, len(r.RankedVertices)),
		RankedPairs:    make([]protocol.VertexPair, 0, len(r.RankedPairs)),
		SuggestedRoad:  road(r.SuggestedRoad),
	}
	for _, v := range r.RankedVertices {
		out.RankedVertices = append(out.RankedVertices, protocol.VertexScore{VertexID: v.VertexID, Score: v.Score, Detail: v.Detail})
	}
	for _, p := range r.RankedPairs {
		out.RankedPairs = append(out.RankedPairs, protocol.VertexPair{First: p.First, Second: p.Second, Score: p.Score, SuggestedRoad: road(p.SuggestedRoad)})
	}
	return out
}

func road(r *placement.Road) *protocol.Road {
	if r == nil {
		return nil
	}
	return &protocol.Road{From: r.From, To: r.To, Rationale: r.Rationale}
}

func robberAdvice(r robber.Result) protocol.RobberAdvice {
	out := protocol.RobberAdvice{Rankings: make([]protocol.TileScore, 0, len(r.Rankings))}
	for _, t := range r.Rankings {
		out.Rankings = append(out.Rankings, tileScore(t))
	}
	if r.BestTile != nil {
		best := tileScore(*r.BestTile)
		out.BestTile = &best
	}
	return out
}

func tileScore(t robber.TileScore) protocol.TileScore {
	return protocol.TileScore{
		TileID:            t.TileID,
		Resource:          string(t.Resource),
		Token:             t.Token,
		Score:             t.Score,
		ProductionBlocked: t.ProductionBlocked,
		ThreatBlocked:     t.ThreatBlocked,
		StealGain:         t.StealGain,
	}
}

func playerAdvice(p state.Player) protocol.PlayerAdvice {
	est := make(map[string]int, len(model.Resources))
	income := make(map[string]float64, len(model.Resources))
	for _, r := range model.Resources {
		est[string(r)] = p.ResourceEstimates[r]
		income[string(r)] = p.IncomeRate[r]
	}
	opts := economy.SummarizeBuildOptions(p)
	return protocol.PlayerAdvice{
		ID:                p.ID,
		Name:              p.Name,
		ResourceEstimates: est,
		IncomeRate:        income,
		DevCardsKnown:     p.DevCardsKnown,
		VictoryPoints:     p.VictoryPoints,
		Settlements:       p.Settlements,
		Cities:            p.Cities,
		Roads:             p.Roads,
		BuildOptions: protocol.BuildOptions{
			Road:       opts.Road,
			Settlement: opts.Settlement,
			City:       opts.City,
			DevCard:    opts.DevCard,
		},
	}
}
