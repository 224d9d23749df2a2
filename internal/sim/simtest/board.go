// Package simtest builds small boards for tests.
package simtest

import (
	"hexadvisor.ai/internal/sim/event"
	"hexadvisor.ai/internal/sim/model"
)

type TileDef struct {
	ID       string
	Resource model.Resource
	Token    int
	Vertices []string
}

// Snapshot derives vertex adjacency from the tile vertex lists and the edge
// list. Vertices appear in first-mention order.
func Snapshot(tiles []TileDef, edges [][2]string) event.BoardSnapshot {
	var order []string
	byID := map[string]*model.VertexSpec{}
	vertex := func(id string) *model.VertexSpec {
		if v, ok := byID[id]; ok {
			return v
		}
		v := &model.VertexSpec{ID: id, AdjacentTileIDs: []string{}, NeighborVertexIDs: []string{}}
		byID[id] = v
		order = append(order, id)
		return v
	}

	snap := event.BoardSnapshot{}
	for _, t := range tiles {
		snap.Tiles = append(snap.Tiles, model.Tile{ID: t.ID, Resource: t.Resource, Token: t.Token, VertexIDs: append([]string{}, t.Vertices...)})
		for _, vid := range t.Vertices {
			v := vertex(vid)
			v.AdjacentTileIDs = append(v.AdjacentTileIDs, t.ID)
		}
	}
	for _, e := range edges {
		a, b := vertex(e[0]), vertex(e[1])
		a.NeighborVertexIDs = append(a.NeighborVertexIDs, b.ID)
		b.NeighborVertexIDs = append(b.NeighborVertexIDs, a.ID)
	}
	for _, id := range order {
		snap.Vertices = append(snap.Vertices, *byID[id])
	}
	return snap
}

// Ring is a nine vertex cycle v1..v9 under six tiles.
//
//	t1 ore:6     v1 v2 v3
//	t2 grain:8   v2 v3 v4
//	t3 brick:5   v4 v5 v6
//	t4 lumber:9  v6 v7 v1
//	t5 wool:10   v5 v8 v9
//	t6 desert    v7 v8 v9
func Ring() event.BoardSnapshot {
	return Snapshot(RingTiles(), RingEdges())
}

func RingTiles() []TileDef {
	return []TileDef{
		{ID: "t1", Resource: model.Ore, Token: 6, Vertices: []string{"v1", "v2", "v3"}},
		{ID: "t2", Resource: model.Grain, Token: 8, Vertices: []string{"v2", "v3", "v4"}},
		{ID: "t3", Resource: model.Brick, Token: 5, Vertices: []string{"v4", "v5", "v6"}},
		{ID: "t4", Resource: model.Lumber, Token: 9, Vertices: []string{"v6", "v7", "v1"}},
		{ID: "t5", Resource: model.Wool, Token: 10, Vertices: []string{"v5", "v8", "v9"}},
		{ID: "t6", Resource: model.Desert, Token: 0, Vertices: []string{"v7", "v8", "v9"}},
	}
}

func RingEdges() [][2]string {
	return [][2]string{
		{"v1", "v2"}, {"v2", "v3"}, {"v3", "v4"}, {"v4", "v5"}, {"v5", "v6"},
		{"v6", "v7"}, {"v7", "v8"}, {"v8", "v9"}, {"v9", "v1"},
	}
}

// Occupy returns a copy of snap with the given vertex occupants set.
func Occupy(snap event.BoardSnapshot, occupants map[string]model.Occupant) event.BoardSnapshot {
	out := event.BoardSnapshot{Tiles: snap.Tiles}
	for _, v := range snap.Vertices {
		if occ, ok := occupants[v.ID]; ok {
			o := occ
			v.Occupant = &o
		}
		out.Vertices = append(out.Vertices, v)
	}
	return out
}
