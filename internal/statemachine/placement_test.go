package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/hookwatch/internal/domain"
)

func TestResolvePlacement(t *testing.T) {
	w := PlacementWeights{Roaming: 0.5, Breakroom: 0.3}

	assert.Equal(t, domain.AgentStatusRoaming, ResolvePlacement(w, 0.1))
	assert.Equal(t, domain.AgentStatusBreakroom, ResolvePlacement(w, 0.6))
	// remainder resolves to the last bucket
	assert.Equal(t, domain.AgentStatusResting, ResolvePlacement(w, 0.95))
}

func TestPlacementWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultPlacementWeights.Validate())
	assert.NoError(t, PlacementWeights{Roaming: 0.2}.Validate())
	assert.Error(t, PlacementWeights{Roaming: 0.7, Breakroom: 0.5}.Validate())
	assert.Error(t, PlacementWeights{Roaming: -0.1}.Validate())
}
