package statemachine

import (
	"errors"

	"github.com/xiaot623/hookwatch/internal/domain"
)

// PlacementWeights are the probabilities of each post-completion placement.
// They must sum to at most 1; any remainder resolves to Resting.
type PlacementWeights struct {
	Roaming   float64 `yaml:"roaming" json:"roaming"`
	Breakroom float64 `yaml:"breakroom" json:"breakroom"`
	Resting   float64 `yaml:"resting" json:"resting"`
}

// DefaultPlacementWeights is used when no weights are configured.
var DefaultPlacementWeights = PlacementWeights{Roaming: 0.5, Breakroom: 0.3, Resting: 0.2}

const weightEpsilon = 1e-9

// Validate checks the weights are non-negative and sum to at most 1.
func (w PlacementWeights) Validate() error {
	if w.Roaming < 0 || w.Breakroom < 0 || w.Resting < 0 {
		return errors.New("placement weights must be non-negative")
	}
	if w.Roaming+w.Breakroom+w.Resting > 1+weightEpsilon {
		return errors.New("placement weights must sum to at most 1")
	}
	return nil
}

// ResolvePlacement picks where a finished agent idles. r is a uniform sample
// in [0, 1).
func ResolvePlacement(w PlacementWeights, r float64) domain.AgentStatus {
	if r < w.Roaming {
		return domain.AgentStatusRoaming
	}
	if r < w.Roaming+w.Breakroom {
		return domain.AgentStatusBreakroom
	}
	return domain.AgentStatusResting
}
