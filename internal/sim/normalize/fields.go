package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"hexadvisor.ai/internal/sim/model"
)

// Field aliases, most specific first.
var (
	typeAliases     = []string{"type", "event", "action", "name"}
	playerAliases   = []string{"playerId", "player_id", "playerID", "player", "ownerId", "owner", "userId"}
	vertexAliases   = []string{"vertexId", "vertex_id", "nodeId", "node_id", "vertex", "location"}
	edgeAliases     = []string{"edgeKey", "edge_key", "edgeId", "edge_id", "edge", "road", "location"}
	tileAliases     = []string{"tileId", "tile_id", "hexId", "hex_id", "tile", "hex", "location"}
	diceAliases     = []string{"value", "roll", "dice", "total", "values"}
	nameAliases     = []string{"name", "username", "playerName", "displayName"}
	joinIDAliases   = append(append([]string{}, playerAliases...), "id")
	tradeFrom       = []string{"fromPlayerId", "from_player_id", "from", "initiatorId", "initiator", "playerId", "player"}
	tradeTo         = []string{"toPlayerId", "to_player_id", "to", "counterpartyId", "counterparty", "targetPlayerId", "target"}
	offerAliases    = []string{"offer", "offered", "give", "gives", "offeredResources"}
	requestAliases  = []string{"request", "requested", "get", "wants", "receive", "requestedResources"}
	victimAliases   = []string{"fromPlayerId", "from_player_id", "victimId", "victim", "from", "targetPlayerId", "target"}
	thiefAliases    = []string{"toPlayerId", "to_player_id", "thiefId", "thief", "to", "playerId", "player"}
	resourceAliases = []string{"resource", "resourceType", "card", "cardType"}
)

// str reads the first populated alias as an id-like string. Numbers are
// formatted; nested objects contribute their own id.
func str(o *object, aliases []string) (string, bool) {
	for _, k := range aliases {
		v, ok := o.get(k)
		if !ok {
			continue
		}
		if s, ok := toString(v); ok {
			return s, true
		}
	}
	return "", false
}

func toString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	if nested, ok := asObject(v); ok {
		return str(nested, []string{"id", "playerId", "vertexId", "tileId", "edgeKey"})
	}
	return "", false
}

func integer(o *object, aliases []string) (int, bool) {
	for _, k := range aliases {
		v, ok := o.get(k)
		if !ok {
			continue
		}
		if n, ok := toInt(v); ok {
			return n, true
		}
	}
	return 0, false
}

// toInt accepts numbers, numeric strings and arrays of die faces (summed).
func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n), true
		}
		if f, err := x.Float64(); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return int(f), true
		}
	case float64:
		return int(x), true
	case int:
		return x, true
	case int64:
		return int(x), true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n, true
		}
	case []any:
		if len(x) == 0 {
			return 0, false
		}
		sum := 0
		for _, e := range x {
			n, ok := toInt(e)
			if !ok {
				return 0, false
			}
			sum += n
		}
		return sum, true
	}
	return 0, false
}

func truthy(o *object, aliases []string) bool {
	for _, k := range aliases {
		if b, ok := o.vals[k].(bool); ok && b {
			return true
		}
	}
	return false
}

// bundle reads a resource bundle given either as {resource: qty} or as a
// list of resource names.
func bundle(o *object, aliases []string) (model.Bundle, bool) {
	for _, k := range aliases {
		v, ok := o.get(k)
		if !ok {
			continue
		}
		if b, ok := toBundle(v); ok {
			return b, true
		}
	}
	return nil, false
}

func toBundle(v any) (model.Bundle, bool) {
	if arr, ok := v.([]any); ok {
		b := model.Bundle{}
		for _, e := range arr {
			name, ok := toString(e)
			if !ok {
				continue
			}
			if r := model.ParseResource(name); r.Producing() {
				b[r]++
			}
		}
		return b, true
	}
	o, ok := asObject(v)
	if !ok {
		return nil, false
	}
	b := model.Bundle{}
	for _, k := range o.keys {
		r := model.ParseResource(k)
		if !r.Producing() {
			continue
		}
		if n, ok := toInt(o.vals[k]); ok {
			b[r] += n
		}
	}
	return b, true
}

func stringList(o *object, aliases []string) []string {
	for _, k := range aliases {
		v, ok := o.get(k)
		if !ok {
			continue
		}
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(arr))
		for _, e := range arr {
			if s, ok := toString(e); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func list(o *object, aliases []string) ([]any, bool) {
	for _, k := range aliases {
		if arr, ok := o.vals[k].([]any); ok {
			return arr, true
		}
	}
	return nil, false
}
