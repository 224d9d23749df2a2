// Package placement ranks setup-phase settlement spots.
package placement

import (
	"fmt"
	"sort"
	"strings"

	"hexadvisor.ai/internal/sim/model"
	"hexadvisor.ai/internal/sim/state"
	"hexadvisor.ai/internal/sim/tuning"
)

type VertexScore struct {
	VertexID string  `json:"vertexId"`
	Score    float64 `json:"score"`
	Detail   string  `json:"detail"`
}

type Road struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Rationale string `json:"rationale"`
}

type Pair struct {
	First         string  `json:"first"`
	Second        string  `json:"second"`
	Score         float64 `json:"score"`
	SuggestedRoad *Road   `json:"suggestedRoad"`
}

type Result struct {
	RankedVertices []VertexScore `json:"rankedVertices"`
	RankedPairs    []Pair        `json:"rankedPairs"`
	SuggestedRoad  *Road         `json:"suggestedRoad"`
}

// Empty is the result outside the setup phase.
func Empty() Result {
	return Result{RankedVertices: []VertexScore{}, RankedPairs: []Pair{}}
}

type Engine struct {
	cfg            tuning.Placement
	defaultPlayers int
}

func New(t tuning.Tuning) *Engine {
	return &Engine{cfg: t.Placement, defaultPlayers: t.DefaultPlayerCount}
}

// board is an indexed copy of the view for one evaluation.
type board struct {
	tiles    map[string]model.Tile
	vertices map[string]state.Vertex
	order    []state.Vertex
}

func snapshot(v state.View) *board {
	b := &board{tiles: map[string]model.Tile{}, vertices: map[string]state.Vertex{}}
	for _, t := range v.Tiles() {
		b.tiles[t.ID] = t
	}
	b.order = v.Vertices()
	for _, vx := range b.order {
		b.vertices[vx.ID] = vx
	}
	return b
}

func (b *board) occupied(id string) bool {
	v, ok := b.vertices[id]
	return ok && v.Occupant != nil
}

func (b *board) adjacent(a, c state.Vertex) bool {
	for _, n := range a.NeighborVertexIDs {
		if n == c.ID {
			return true
		}
	}
	for _, n := range c.NeighborVertexIDs {
		if n == a.ID {
			return true
		}
	}
	return false
}

// resources lists the distinct producing resources touching the vertices.
func (b *board) resources(vs ...state.Vertex) map[model.Resource]struct{} {
	out := map[model.Resource]struct{}{}
	for _, v := range vs {
		for _, tid := range v.AdjacentTileIDs {
			if t, ok := b.tiles[tid]; ok && t.Resource.Producing() {
				out[t.Resource] = struct{}{}
			}
		}
	}
	return out
}

// Evaluate ranks unoccupied vertices that satisfy the distance rule.
func (e *Engine) Evaluate(v state.View, perspective string) Result {
	if !v.IsSetupPhase() {
		return Empty()
	}
	b := snapshot(v)
	scarcity := e.scarcity(b)
	turn := e.turnOrderModifier(v, perspective)

	ranked := []VertexScore{}
	for _, vx := range b.order {
		if !eligible(b, vx) {
			continue
		}
		ranked = append(ranked, VertexScore{
			VertexID: vx.ID,
			Score:    e.score(b, vx, scarcity) + turn,
			Detail:   describe(b, vx, scarcity),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	pairs := e.rankPairs(b, ranked)
	out := Result{RankedVertices: ranked, RankedPairs: pairs}
	if len(pairs) > 0 {
		out.SuggestedRoad = pairs[0].SuggestedRoad
	}
	return out
}

func eligible(b *board, v state.Vertex) bool {
	if v.Occupant != nil {
		return false
	}
	for _, n := range v.NeighborVertexIDs {
		if b.occupied(n) {
			return false
		}
	}
	return true
}

// scarcity boosts resources few occupied vertices touch.
func (e *Engine) scarcity(b *board) map[model.Resource]float64 {
	counts := map[model.Resource]int{}
	for _, v := range b.order {
		if v.Occupant == nil {
			continue
		}
		for r := range b.resources(v) {
			counts[r]++
		}
	}
	sc := e.cfg.Scarcity
	out := make(map[model.Resource]float64, len(model.Resources))
	for _, r := range model.Resources {
		n := counts[r]
		if n == 0 {
			out[r] = sc.Base
			continue
		}
		out[r] = max(sc.Floor, sc.Base-sc.Step*float64(n))
	}
	return out
}

func (e *Engine) score(b *board, v state.Vertex, scarcity map[model.Resource]float64) float64 {
	production := 0.0
	for _, tid := range v.AdjacentTileIDs {
		t, ok := b.tiles[tid]
		if !ok || !t.Resource.Producing() {
			continue
		}
		production += float64(model.PipWeight(t.Token)) * scarcity[t.Resource]
	}
	diversity := float64(len(b.resources(v)))
	return production + e.cfg.DiversityWeight*diversity + e.cfg.ExpansionWeight*e.expansion(b, v)
}

// expansion counts open neighbors; a neighbor already next to a building
// only earns the blocked credit.
func (e *Engine) expansion(b *board, v state.Vertex) float64 {
	total := 0.0
	for _, nid := range v.NeighborVertexIDs {
		n, ok := b.vertices[nid]
		if !ok || n.Occupant != nil {
			continue
		}
		blocked := false
		for _, nn := range n.NeighborVertexIDs {
			if b.occupied(nn) {
				blocked = true
				break
			}
		}
		if blocked {
			total += e.cfg.BlockedNeighborCredit
		} else {
			total++
		}
	}
	return total
}

// turnOrderModifier models the reversed second round of the snake draft.
func (e *Engine) turnOrderModifier(v state.View, perspective string) float64 {
	to := e.cfg.TurnOrder
	n := v.PlayerCount()
	if n == 0 {
		n = e.defaultPlayers
	}
	turn := v.SetupTurn()
	if turn < n {
		return to.RoundOne
	}
	projected := n - (turn - n)
	if projected <= to.ImminentWindow {
		return to.Imminent
	}
	if perspective != "" {
		return to.Late + to.PerspectiveBonus
	}
	return to.Late
}

func (e *Engine) rankPairs(b *board, ranked []VertexScore) []Pair {
	top := ranked[:min(len(ranked), e.cfg.PairCandidates)]
	pairs := []Pair{}
	for i := 0; i < len(top); i++ {
		for j := i + 1; j < len(top); j++ {
			a, okA := b.vertices[top[i].VertexID]
			c, okC := b.vertices[top[j].VertexID]
			if !okA || !okC || b.adjacent(a, c) {
				continue
			}
			coverage := float64(len(b.resources(a, c)))
			pairs = append(pairs, Pair{
				First:         a.ID,
				Second:        c.ID,
				Score:         top[i].Score + top[j].Score + e.cfg.PairCoverageWeight*coverage,
				SuggestedRoad: e.suggestRoad(b, a, c),
			})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Score > pairs[j].Score })
	if len(pairs) > e.cfg.PairLimit {
		pairs = pairs[:e.cfg.PairLimit]
	}
	return pairs
}

// suggestRoad points from first toward its most open free neighbor.
func (e *Engine) suggestRoad(b *board, first, second state.Vertex) *Road {
	var target *state.Vertex
	best := 0.0
	for _, nid := range first.NeighborVertexIDs {
		n, ok := b.vertices[nid]
		if !ok || n.Occupant != nil {
			continue
		}
		p := e.expansion(b, n)
		if target == nil || p > best {
			nn := n
			target, best = &nn, p
		}
	}
	if target == nil {
		return nil
	}
	return &Road{
		From:      first.ID,
		To:        target.ID,
		Rationale: fmt.Sprintf("Road extends toward open territory at %s while keeping %s in reach.", target.ID, second.ID),
	}
}

// describe renders resource:token x scarcity for each adjacent tile.
func describe(b *board, v state.Vertex, scarcity map[model.Resource]float64) string {
	parts := make([]string, 0, len(v.AdjacentTileIDs))
	for _, tid := range v.AdjacentTileIDs {
		t, ok := b.tiles[tid]
		if !ok {
			continue
		}
		m, ok := scarcity[t.Resource]
		if !ok {
			m = 1
		}
		parts = append(parts, fmt.Sprintf("%s:%dx%.2f", t.Resource, t.Token, m))
	}
	return strings.Join(parts, ", ")
}
