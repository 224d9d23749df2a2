// Package normalize turns raw game-server frames into canonical events.
//
// Frames are loosely structured: JSON text, JSON behind a numeric transport
// tag, or values decoded by the caller. Every object reachable from the frame
// is a candidate and is matched against an ordered rule list.
package normalize

import (
	"errors"

	"hexadvisor.ai/internal/sim/event"
)

// DefaultMaxNodes caps how many containers one frame may make us visit.
const DefaultMaxNodes = 1200

var ErrMalformedInput = errors.New("malformed input")

type Normalizer struct {
	maxNodes int
}

func New(maxNodes int) *Normalizer {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	return &Normalizer{maxNodes: maxNodes}
}

// Normalize never fails: anything it cannot read yields no events.
func (n *Normalizer) Normalize(raw any) []event.Event {
	events, _ := n.Parse(raw)
	if events == nil {
		return []event.Event{}
	}
	return events
}

// Parse is Normalize with the decode error kept for diagnostics. Only
// undecodable frames are errors; frames without recognizable events are not.
func (n *Normalizer) Parse(raw any) ([]event.Event, error) {
	root, err := decodeRoot(raw)
	if err != nil {
		return nil, err
	}
	return event.Dedupe(n.scan(root)), nil
}

type item struct {
	node any
	hint string
}

// scan walks root breadth-first with an explicit queue. Containers are
// visited at most once and at most maxNodes are visited in total.
func (n *Normalizer) scan(root any) []event.Event {
	var out []event.Event
	queue := []item{{node: root}}
	seen := map[identity]struct{}{}
	visited := 0

	for head := 0; head < len(queue) && visited < n.maxNodes; head++ {
		it := queue[head]
		id, ok := identityOf(it.node)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		visited++

		var children []any
		if arr, isArr := it.node.([]any); isArr {
			children = arr
		} else {
			obj, _ := asObject(it.node)
			if it.hint != "" && obj.hint == "" {
				obj.hint = it.hint
			}
			payloads, board := infer(candidate{obj: obj, typ: typeOf(obj, typeAliases)})
			for _, p := range payloads {
				out = append(out, event.New(p))
			}
			if board {
				continue
			}
			children = make([]any, 0, len(obj.keys))
			for _, k := range obj.keys {
				children = append(children, obj.vals[k])
			}
		}

		hint := ""
		if arr, isArr := it.node.([]any); isArr && len(arr) >= 2 {
			if s, ok := arr[0].(string); ok {
				hint = s
			}
		}
		for i, c := range children {
			if _, ok := identityOf(c); !ok {
				continue
			}
			if len(queue) >= 2*n.maxNodes {
				break
			}
			h := ""
			if i == 1 {
				h = hint
			}
			queue = append(queue, item{node: c, hint: h})
		}
	}
	return out
}
