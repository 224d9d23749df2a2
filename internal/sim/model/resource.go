package model

import "strings"

type Resource string

const (
	Brick  Resource = "brick"
	Lumber Resource = "lumber"
	Ore    Resource = "ore"
	Grain  Resource = "grain"
	Wool   Resource = "wool"
	Desert Resource = "desert"
)

// Resources lists the producing resources in canonical order.
var Resources = [...]Resource{Brick, Lumber, Ore, Grain, Wool}

// Terrain names some servers send instead of the resource they produce.
// They are matched before the resource names since "forest" contains "ore".
var terrainAliases = []struct {
	name string
	res  Resource
}{
	{"forest", Lumber},
	{"hills", Brick},
	{"mountain", Ore},
	{"field", Grain},
	{"pasture", Wool},
}

// ParseResource folds resource synonyms. Anything unrecognized is Desert.
func ParseResource(s string) Resource {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, t := range terrainAliases {
		if strings.Contains(v, t.name) {
			return t.res
		}
	}
	switch {
	case strings.Contains(v, "wood"), strings.Contains(v, "lumber"):
		return Lumber
	case strings.Contains(v, "brick"):
		return Brick
	case strings.Contains(v, "ore"):
		return Ore
	case strings.Contains(v, "grain"), strings.Contains(v, "wheat"):
		return Grain
	case strings.Contains(v, "wool"), strings.Contains(v, "sheep"):
		return Wool
	}
	return Desert
}

func (r Resource) Producing() bool {
	switch r {
	case Brick, Lumber, Ore, Grain, Wool:
		return true
	}
	return false
}

// Bundle is a resource to quantity mapping. Quantities may be negative when
// used as a delta.
type Bundle map[Resource]int

func (b Bundle) Total() int {
	n := 0
	for _, r := range Resources {
		n += b[r]
	}
	return n
}

func (b Bundle) Negate() Bundle {
	if b == nil {
		return nil
	}
	out := make(Bundle, len(b))
	for r, n := range b {
		out[r] = -n
	}
	return out
}

func (b Bundle) Clone() Bundle {
	if b == nil {
		return nil
	}
	out := make(Bundle, len(b))
	for r, n := range b {
		out[r] = n
	}
	return out
}

// ZeroBundle returns a bundle with every producing resource present at zero.
func ZeroBundle() Bundle {
	b := make(Bundle, len(Resources))
	for _, r := range Resources {
		b[r] = 0
	}
	return b
}

// Rates is a per-resource expected yield per roll.
type Rates map[Resource]float64

func ZeroRates() Rates {
	m := make(Rates, len(Resources))
	for _, r := range Resources {
		m[r] = 0
	}
	return m
}

func (m Rates) Sum() float64 {
	var s float64
	for _, r := range Resources {
		s += m[r]
	}
	return s
}
