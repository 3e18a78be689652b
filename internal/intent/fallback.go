package intent

import (
	"fmt"

	"github.com/quickgig/backend/internal/capability"
)

// fallbackAnalysis is the deterministic keyword path, used whenever the model
// path errors. Same message, same result: capabilities come from the fixed
// trigger table, complexity from capability count, budget from the base rate.
// It never returns zero intents; an unmatched message defaults to copywriting.
func fallbackAnalysis(message string) *IntentAnalysis {
	matched := capability.Detect(message)

	breakdown := make([]string, 0, len(matched)+1)
	for _, c := range matched {
		breakdown = append(breakdown, fmt.Sprintf("%s: keyword match", c))
	}
	if len(matched) == 0 {
		matched = []capability.Capability{capability.Copywriting}
		breakdown = append(breakdown, fmt.Sprintf("%s: default when no keyword matches", capability.Copywriting))
	}

	count := len(matched)
	budget := BudgetRange{
		Min: float64(count) * capability.BaseRate,
		Max: float64(count) * capability.BaseRate * 3,
	}

	strategy := "Single agent, sequential execution"
	if count > 1 {
		strategy = "Parallel dispatch, one agent per capability"
	}

	return &IntentAnalysis{
		Intents: []DetectedIntent{
			{
				Capabilities:          matched,
				Complexity:            complexityFor(count),
				EstimatedAgents:       count,
				SuggestedBudget:       budget,
				Description:           message,
				RequiresOrchestration: count > 1,
			},
		},
		TotalEstimatedCost: budget,
		ExecutionStrategy:  strategy,
		Breakdown:          breakdown,
		Source:             SourceFallback,
	}
}
