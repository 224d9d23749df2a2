package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	SetupTurns         int `yaml:"setup_turns"`
	DefaultPlayerCount int `yaml:"default_player_count"`
	MaxScanNodes       int `yaml:"max_scan_nodes"`

	Placement Placement `yaml:"placement"`
	Robber    Robber    `yaml:"robber"`
}

type Placement struct {
	DiversityWeight       float64 `yaml:"diversity_weight"`
	ExpansionWeight       float64 `yaml:"expansion_weight"`
	BlockedNeighborCredit float64 `yaml:"blocked_neighbor_credit"`
	PairCoverageWeight    float64 `yaml:"pair_coverage_weight"`
	PairCandidates        int     `yaml:"pair_candidates"`
	PairLimit             int     `yaml:"pair_limit"`

	Scarcity  Scarcity  `yaml:"scarcity"`
	TurnOrder TurnOrder `yaml:"turn_order"`
}

type Scarcity struct {
	Base  float64 `yaml:"base"`
	Step  float64 `yaml:"step"`
	Floor float64 `yaml:"floor"`
}

type TurnOrder struct {
	RoundOne         float64 `yaml:"round_one"`
	Imminent         float64 `yaml:"imminent"`
	ImminentWindow   int     `yaml:"imminent_window"`
	Late             float64 `yaml:"late"`
	PerspectiveBonus float64 `yaml:"perspective_bonus"`
}

type Robber struct {
	ProductionWeight float64 `yaml:"production_weight"`
	ThreatWeight     float64 `yaml:"threat_weight"`
	StealWeight      float64 `yaml:"steal_weight"`
	VictoryPointRisk float64 `yaml:"victory_point_risk"`
	DevCardRisk      float64 `yaml:"dev_card_risk"`
	StealPremium     float64 `yaml:"steal_premium"`
	RankingLimit     int     `yaml:"ranking_limit"`
}

func Defaults() Tuning {
	return Tuning{
		SetupTurns:         8,
		DefaultPlayerCount: 4,
		MaxScanNodes:       1200,
		Placement: Placement{
			DiversityWeight:       2.5,
			ExpansionWeight:       1.5,
			BlockedNeighborCredit: 0.2,
			PairCoverageWeight:    3,
			PairCandidates:        12,
			PairLimit:             8,
			Scarcity: Scarcity{
				Base:  1.25,
				Step:  0.08,
				Floor: 0.75,
			},
			TurnOrder: TurnOrder{
				RoundOne:         1,
				Imminent:         2.5,
				ImminentWindow:   2,
				Late:             0.5,
				PerspectiveBonus: 0.2,
			},
		},
		Robber: Robber{
			ProductionWeight: 0.45,
			ThreatWeight:     0.35,
			StealWeight:      0.2,
			VictoryPointRisk: 3,
			DevCardRisk:      2,
			StealPremium:     1.2,
			RankingLimit:     10,
		},
	}
}

// Load overlays the YAML file at path on top of Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.SetupTurns <= 0:
		return errors.New("setup_turns must be positive")
	case t.DefaultPlayerCount <= 0:
		return errors.New("default_player_count must be positive")
	case t.MaxScanNodes <= 0:
		return errors.New("max_scan_nodes must be positive")
	case t.Placement.PairCandidates <= 0 || t.Placement.PairLimit <= 0:
		return errors.New("placement pair_candidates and pair_limit must be positive")
	case t.Placement.Scarcity.Floor > t.Placement.Scarcity.Base:
		return errors.New("placement scarcity floor exceeds base")
	case t.Robber.RankingLimit <= 0:
		return errors.New("robber ranking_limit must be positive")
	}
	return nil
}
