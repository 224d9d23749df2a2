package normalize

import (
	"strings"

	"hexadvisor.ai/internal/sim/event"
	"hexadvisor.ai/internal/sim/model"
)

var (
	boardTileKeys   = []string{"tiles", "hexes", "hexagons"}
	boardVertexKeys = []string{"vertices", "nodes", "corners", "intersections"}

	tileIDAliases       = []string{"id", "tileId", "hexId", "index"}
	tileResourceAliases = []string{"resource", "terrain", "type", "kind"}
	tileTokenAliases    = []string{"token", "number", "diceNumber", "roll", "value"}
	tileVertexAliases   = []string{"vertexIds", "vertices", "nodes", "corners"}
	tileRobberAliases   = []string{"robber", "hasRobber", "isRobbed"}

	vertexIDAliases       = []string{"id", "vertexId", "nodeId", "index"}
	vertexTileAliases     = []string{"adjacentTileIds", "adjacentTiles", "tiles", "hexes"}
	vertexNeighborAliases = []string{"neighborVertexIds", "neighbors", "adjacentVertices", "adjacentNodes"}
	vertexOccupantAliases = []string{"occupant", "building", "structure"}

	occupantOwnerAliases    = []string{"playerId", "ownerId", "player", "id"}
	occupantBuildingAliases = []string{"building", "type", "kind"}
)

func looksLikeBoard(o *object) bool {
	_, tiles := list(o, boardTileKeys)
	_, vertices := list(o, boardVertexKeys)
	return tiles && vertices
}

// extractBoard builds a snapshot and, when a tile is flagged as robbed, the
// robber position.
func extractBoard(o *object) (event.BoardSnapshot, string) {
	rawTiles, _ := list(o, boardTileKeys)
	rawVertices, _ := list(o, boardVertexKeys)

	snap := event.BoardSnapshot{Tiles: []model.Tile{}, Vertices: []model.VertexSpec{}}
	robber := ""
	for _, rt := range rawTiles {
		to, ok := asObject(rt)
		if !ok {
			continue
		}
		id, ok := str(to, tileIDAliases)
		if !ok {
			continue
		}
		res, _ := str(to, tileResourceAliases)
		token, _ := integer(to, tileTokenAliases)
		vids := stringList(to, tileVertexAliases)
		if vids == nil {
			vids = []string{}
		}
		snap.Tiles = append(snap.Tiles, model.Tile{
			ID:        id,
			Resource:  model.ParseResource(res),
			Token:     token,
			VertexIDs: vids,
		})
		if robber == "" && truthy(to, tileRobberAliases) {
			robber = id
		}
	}

	for _, rv := range rawVertices {
		vo, ok := asObject(rv)
		if !ok {
			continue
		}
		id, ok := str(vo, vertexIDAliases)
		if !ok {
			continue
		}
		adj := stringList(vo, vertexTileAliases)
		if adj == nil {
			adj = []string{}
		}
		nbr := stringList(vo, vertexNeighborAliases)
		if nbr == nil {
			nbr = []string{}
		}
		snap.Vertices = append(snap.Vertices, model.VertexSpec{
			ID:                id,
			AdjacentTileIDs:   adj,
			NeighborVertexIDs: nbr,
			Occupant:          occupant(vo),
		})
	}

	fillAdjacency(&snap)
	return snap, robber
}

func occupant(vo *object) *model.Occupant {
	for _, k := range vertexOccupantAliases {
		v, ok := vo.get(k)
		if !ok {
			continue
		}
		oo, ok := asObject(v)
		if !ok {
			continue
		}
		owner, ok := str(oo, occupantOwnerAliases)
		if !ok {
			return nil
		}
		kind, _ := str(oo, occupantBuildingAliases)
		b := model.Settlement
		if strings.Contains(strings.ToLower(kind), "city") {
			b = model.City
		}
		return &model.Occupant{PlayerID: owner, Building: b}
	}
	return nil
}

// fillAdjacency completes tile->vertex and vertex->tile links when a board
// only describes one direction.
func fillAdjacency(snap *event.BoardSnapshot) {
	tileHasVertices := false
	for _, t := range snap.Tiles {
		if len(t.VertexIDs) > 0 {
			tileHasVertices = true
			break
		}
	}
	vertexHasTiles := false
	for _, v := range snap.Vertices {
		if len(v.AdjacentTileIDs) > 0 {
			vertexHasTiles = true
			break
		}
	}

	switch {
	case vertexHasTiles && !tileHasVertices:
		idx := make(map[string]int, len(snap.Tiles))
		for i, t := range snap.Tiles {
			idx[t.ID] = i
		}
		for _, v := range snap.Vertices {
			for _, tid := range v.AdjacentTileIDs {
				if i, ok := idx[tid]; ok {
					snap.Tiles[i].VertexIDs = append(snap.Tiles[i].VertexIDs, v.ID)
				}
			}
		}
	case tileHasVertices && !vertexHasTiles:
		idx := make(map[string]int, len(snap.Vertices))
		for i, v := range snap.Vertices {
			idx[v.ID] = i
		}
		for _, t := range snap.Tiles {
			for _, vid := range t.VertexIDs {
				if i, ok := idx[vid]; ok {
					snap.Vertices[i].AdjacentTileIDs = append(snap.Vertices[i].AdjacentTileIDs, t.ID)
				}
			}
		}
	}
}
