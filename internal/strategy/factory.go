package strategy

import (
	"fmt"

	"github.com/venomqa/venomqa/internal/core"
)

// Config mirrors the "strategy" family of options recognized by the core: which
// policy to use and its seed/weight parameters.
type Config struct {
	Name                    string
	Seed                    int64
	Weights                 map[string]float64
	MCTSExplorationWeight   float64
	MCTSViolationReward     float64
	MCTSNewStateReward      float64
}

// New builds the Strategy named by cfg.Name, returning a ConfigurationError for
// an unrecognized name.
func New(cfg Config) (Strategy, error) {
	switch cfg.Name {
	case "bfs":
		return NewBFS(), nil
	case "dfs":
		return NewDFS(), nil
	case "random":
		return NewRandom(cfg.Seed), nil
	case "coverage":
		return NewCoverageGuided(), nil
	case "weighted":
		return NewWeighted(cfg.Weights, cfg.Seed), nil
	case "mcts":
		return NewMCTS(cfg.MCTSExplorationWeight, cfg.MCTSViolationReward, cfg.MCTSNewStateReward, cfg.Seed), nil
	default:
		return nil, &core.ConfigurationError{Reason: fmt.Sprintf("unknown strategy %q", cfg.Name)}
	}
}
