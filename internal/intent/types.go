package intent

import (
	"github.com/quickgig/backend/internal/capability"
)

// Complexity tiers a request by how many capabilities it touches.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Classification sources. Every IntentAnalysis records which path produced it.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// BudgetRange is a suggested cost band in USDC. Min <= Max, both >= 0.
type BudgetRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DetectedIntent is one unit of work implied by the user's message.
// Capabilities are ordered by priority. Immutable once produced.
type DetectedIntent struct {
	Capabilities          []capability.Capability `json:"capabilities"`
	Complexity            Complexity              `json:"complexity"`
	EstimatedAgents       int                     `json:"estimated_agents"`
	SuggestedBudget       BudgetRange             `json:"suggested_budget"`
	Description           string                  `json:"description"`
	RequiresOrchestration bool                    `json:"requires_orchestration"`
}

// IntentAnalysis is the full classification result for one message.
type IntentAnalysis struct {
	Intents            []DetectedIntent `json:"intents"`
	TotalEstimatedCost BudgetRange      `json:"total_estimated_cost"`
	ExecutionStrategy  string           `json:"execution_strategy"`
	Breakdown          []string         `json:"breakdown"`
	Source             string           `json:"source"`
}

// complexityFor derives the tier purely from capability count.
func complexityFor(count int) Complexity {
	switch {
	case count <= 1:
		return ComplexitySimple
	case count == 2:
		return ComplexityModerate
	default:
		return ComplexityComplex
	}
}
