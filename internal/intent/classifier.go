// Package intent turns a free-text client request into a structured
// IntentAnalysis: which capabilities are needed, how complex the work is,
// and what it should cost. The primary path delegates to an LLM with a fixed
// JSON contract; any upstream failure degrades to a deterministic keyword
// fallback, so classification never fails outward except on invalid input.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/quickgig/backend/internal/capability"
	"github.com/quickgig/backend/internal/llm"
	"github.com/quickgig/backend/internal/metrics"
)

// ErrInvalidInput is returned when Classify is called with a blank message.
// It is the only error this package surfaces to callers.
var ErrInvalidInput = errors.New("message must be non-empty text")

// errMalformedResponse marks model output that failed the schema contract.
// It never leaves the package; it only routes the call to the fallback.
var errMalformedResponse = errors.New("model response failed schema validation")

const modelTemperature = 0.1

// Classifier implements the two-tier classification strategy. Exactly one of
// {model path, fallback path} runs per call, selected by whether the model
// path returned an error.
type Classifier struct {
	llm     llm.Client
	metrics *metrics.Metrics
	logger  *log.Logger
}

// NewClassifier creates a classifier backed by the given LLM client.
func NewClassifier(client llm.Client, m *metrics.Metrics) *Classifier {
	return &Classifier{
		llm:     client,
		metrics: m,
		logger:  log.New(log.Writer(), "[Classifier] ", log.LstdFlags),
	}
}

// Classify analyses one message. A blank message fails with ErrInvalidInput
// before any external call; every other failure mode degrades to the keyword
// fallback, so a non-nil result always carries at least one intent with at
// least one vocabulary capability.
func (c *Classifier) Classify(ctx context.Context, message string) (*IntentAnalysis, error) {
	if strings.TrimSpace(message) == "" {
		c.metrics.RecordClassification("invalid")
		return nil, ErrInvalidInput
	}

	analysis, err := c.classifyWithModel(ctx, message)
	if err != nil {
		c.logger.Printf("⚠️  Model path failed, using keyword fallback: %v", err)
		c.metrics.RecordClassification("fallback")
		return fallbackAnalysis(message), nil
	}

	c.metrics.RecordClassification("model")
	return analysis, nil
}

// modelIntent mirrors DetectedIntent with untrusted string capabilities.
type modelIntent struct {
	Capabilities          []string    `json:"capabilities"`
	Complexity            string      `json:"complexity"`
	EstimatedAgents       int         `json:"estimated_agents"`
	SuggestedBudget       BudgetRange `json:"suggested_budget"`
	Description           string      `json:"description"`
	RequiresOrchestration bool        `json:"requires_orchestration"`
}

type modelAnalysis struct {
	Intents           []modelIntent `json:"intents"`
	ExecutionStrategy string        `json:"execution_strategy"`
	Breakdown         []string      `json:"breakdown"`
}

func (c *Classifier) classifyWithModel(ctx context.Context, message string) (*IntentAnalysis, error) {
	if c.llm == nil {
		return nil, errors.New("no llm client configured")
	}
	content, err := c.llm.Complete(ctx, llm.CompletionRequest{
		System:      systemPrompt,
		User:        message,
		Temperature: modelTemperature,
		JSONOnly:    true,
	})
	if err != nil {
		return nil, err
	}

	var raw modelAnalysis
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedResponse, err)
	}

	return c.sanitize(message, raw)
}

// sanitize enforces the vocabulary invariant and the budget bounds on model
// output. Fabricated capabilities are dropped silently; an intent left with
// no capabilities is dropped; if nothing survives the whole response counts
// as malformed and the caller falls back.
func (c *Classifier) sanitize(message string, raw modelAnalysis) (*IntentAnalysis, error) {
	intents := make([]DetectedIntent, 0, len(raw.Intents))
	var total BudgetRange

	for _, mi := range raw.Intents {
		caps := make([]capability.Capability, 0, len(mi.Capabilities))
		for _, s := range mi.Capabilities {
			parsed, err := capability.Parse(s)
			if err != nil {
				c.logger.Printf("Dropping fabricated capability %q", s)
				continue
			}
			caps = append(caps, parsed)
		}
		if len(caps) == 0 {
			continue
		}

		budget := mi.SuggestedBudget
		if budget.Min < 0 {
			budget.Min = 0
		}
		if budget.Max < budget.Min {
			budget.Max = budget.Min
		}

		agents := mi.EstimatedAgents
		if agents < 1 {
			agents = len(caps)
		}

		description := strings.TrimSpace(mi.Description)
		if description == "" {
			description = message
		}

		intents = append(intents, DetectedIntent{
			Capabilities:          caps,
			Complexity:            complexityFor(len(caps)),
			EstimatedAgents:       agents,
			SuggestedBudget:       budget,
			Description:           description,
			RequiresOrchestration: len(caps) > 1,
		})

		total.Min += budget.Min
		total.Max += budget.Max
	}

	if len(intents) == 0 {
		return nil, fmt.Errorf("%w: no intents with valid capabilities", errMalformedResponse)
	}

	strategy := strings.TrimSpace(raw.ExecutionStrategy)
	if strategy == "" {
		strategy = "Sequential execution"
	}

	return &IntentAnalysis{
		Intents:            intents,
		TotalEstimatedCost: total,
		ExecutionStrategy:  strategy,
		Breakdown:          raw.Breakdown,
		Source:             SourceModel,
	}, nil
}
