// Package bounty composes the classifier, recommender and store into the
// client-facing bounty flow: post work, get matched agents, track settlement.
package bounty

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quickgig/backend/internal/capability"
	"github.com/quickgig/backend/internal/database"
	"github.com/quickgig/backend/internal/events"
	"github.com/quickgig/backend/internal/intent"
	"github.com/quickgig/backend/internal/recommend"
)

// Validation errors surfaced to the HTTP layer.
var (
	ErrMissingTitle       = errors.New("title is required")
	ErrMissingDescription = errors.New("description is required")
	ErrMissingClient      = errors.New("client_address is required")
	ErrNotFound           = errors.New("bounty not found")
	ErrInvalidTransition  = errors.New("invalid bounty status transition")
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateBounty(ctx context.Context, bounty *database.BountyRecord) error
	GetBounty(ctx context.Context, bountyID string) (*database.BountyRecord, error)
	ListBounties(ctx context.Context, status string, limit int) ([]database.BountyRecord, error)
	UpdateBounty(ctx context.Context, bounty *database.BountyRecord) error
}

// Service runs the bounty lifecycle: open → matched → settled | cancelled.
type Service struct {
	store       Store
	classifier  *intent.Classifier
	recommender recommend.Provider
	bus         events.EventEmitter
	logger      *log.Logger
}

// NewService wires the bounty flow.
func NewService(store Store, classifier *intent.Classifier, recommender recommend.Provider, bus events.EventEmitter) *Service {
	return &Service{
		store:       store,
		classifier:  classifier,
		recommender: recommender,
		bus:         bus,
		logger:      log.New(log.Writer(), "[Bounty] ", log.LstdFlags),
	}
}

// CreateRequest is a client's bounty posting.
type CreateRequest struct {
	ClientAddress string   `json:"client_address"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	BudgetMin     *float64 `json:"budget_min,omitempty"`
	BudgetMax     *float64 `json:"budget_max,omitempty"`
}

// CreateResult bundles the stored bounty with the analysis that shaped it and
// the per-capability agent recommendations.
type CreateResult struct {
	Bounty          database.BountyRecord                                   `json:"bounty"`
	Analysis        *intent.IntentAnalysis                                  `json:"analysis"`
	Recommendations map[capability.Capability]recommend.AgentRecommendation `json:"recommendations"`
}

// Create classifies the description, persists the bounty and recommends
// agents for every detected capability. Classification degrades internally
// (keyword fallback), so a bounty with a non-empty description can always be
// created.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, ErrMissingTitle
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, ErrMissingDescription
	}
	if strings.TrimSpace(req.ClientAddress) == "" {
		return nil, ErrMissingClient
	}

	analysis, err := s.classifier.Classify(ctx, req.Description)
	if err != nil {
		// Only ErrInvalidInput reaches here, and the description is non-blank,
		// so this is unexpected; still refuse rather than store junk.
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	caps := distinctCapabilities(analysis)

	budgetMin := analysis.TotalEstimatedCost.Min
	budgetMax := analysis.TotalEstimatedCost.Max
	if req.BudgetMin != nil {
		budgetMin = *req.BudgetMin
	}
	if req.BudgetMax != nil {
		budgetMax = *req.BudgetMax
	}
	if budgetMax < budgetMin {
		budgetMax = budgetMin
	}

	record := database.BountyRecord{
		BountyID:      uuid.NewString(),
		ClientAddress: req.ClientAddress,
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Capabilities:  capabilityStrings(caps),
		BudgetMin:     budgetMin,
		BudgetMax:     budgetMax,
		Status:        database.BountyStatusOpen,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.store.CreateBounty(ctx, &record); err != nil {
		return nil, fmt.Errorf("failed to persist bounty: %w", err)
	}

	recommendations := s.recommender.RecommendMultiple(ctx, caps, recommend.Options{})

	s.bus.Emit(events.EventBountyCreated, "/bounties", record.BountyID, map[string]interface{}{
		"bounty_id":      record.BountyID,
		"client_address": record.ClientAddress,
		"title":          record.Title,
		"capabilities":   record.Capabilities,
		"budget_min":     record.BudgetMin,
		"budget_max":     record.BudgetMax,
	})
	s.logger.Printf("💰 Bounty %s created (%d capabilities)", record.BountyID, len(caps))

	return &CreateResult{
		Bounty:          record,
		Analysis:        analysis,
		Recommendations: recommendations,
	}, nil
}

// Get returns a bounty by ID.
func (s *Service) Get(ctx context.Context, bountyID string) (*database.BountyRecord, error) {
	bounty, err := s.store.GetBounty(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if bounty == nil {
		return nil, ErrNotFound
	}
	return bounty, nil
}

// List returns bounties, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, limit int) ([]database.BountyRecord, error) {
	return s.store.ListBounties(ctx, status, limit)
}

// Match records the selected agent on an open bounty.
func (s *Service) Match(ctx context.Context, bountyID, agentID string) (*database.BountyRecord, error) {
	bounty, err := s.Get(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if bounty.Status != database.BountyStatusOpen {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, bountyID, bounty.Status)
	}

	bounty.Status = database.BountyStatusMatched
	bounty.MatchedAgentID = agentID
	if err := s.store.UpdateBounty(ctx, bounty); err != nil {
		return nil, fmt.Errorf("failed to update bounty: %w", err)
	}

	s.bus.Emit(events.EventBountyMatched, "/bounties", bounty.BountyID, map[string]interface{}{
		"bounty_id": bounty.BountyID,
		"agent_id":  agentID,
	})
	s.logger.Printf("🤝 Bounty %s matched to agent %s", bountyID, agentID)
	return bounty, nil
}

// Settle marks a matched bounty as settled, recording the escrow release tx.
// The chain write itself happens client-side; we only mirror the outcome.
func (s *Service) Settle(ctx context.Context, bountyID, txHash string) (*database.BountyRecord, error) {
	bounty, err := s.Get(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if bounty.Status != database.BountyStatusMatched {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, bountyID, bounty.Status)
	}

	bounty.Status = database.BountyStatusSettled
	bounty.EscrowTxHash = txHash
	if err := s.store.UpdateBounty(ctx, bounty); err != nil {
		return nil, fmt.Errorf("failed to update bounty: %w", err)
	}

	s.bus.Emit(events.EventBountySettled, "/bounties", bounty.BountyID, map[string]interface{}{
		"bounty_id": bounty.BountyID,
		"agent_id":  bounty.MatchedAgentID,
		"tx_hash":   txHash,
	})
	s.logger.Printf("✅ Bounty %s settled (tx %s)", bountyID, txHash)
	return bounty, nil
}

// Cancel closes an open or matched bounty without settlement.
func (s *Service) Cancel(ctx context.Context, bountyID string) (*database.BountyRecord, error) {
	bounty, err := s.Get(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if bounty.Status == database.BountyStatusSettled || bounty.Status == database.BountyStatusCancelled {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, bountyID, bounty.Status)
	}

	bounty.Status = database.BountyStatusCancelled
	if err := s.store.UpdateBounty(ctx, bounty); err != nil {
		return nil, fmt.Errorf("failed to update bounty: %w", err)
	}

	s.bus.Emit(events.EventBountyCancelled, "/bounties", bounty.BountyID, map[string]interface{}{
		"bounty_id": bounty.BountyID,
	})
	s.logger.Printf("🗑️  Bounty %s cancelled", bountyID)
	return bounty, nil
}

// distinctCapabilities collects every capability across all intents, in
// first-seen order.
func distinctCapabilities(analysis *intent.IntentAnalysis) []capability.Capability {
	seen := make(map[capability.Capability]bool)
	var out []capability.Capability
	for _, it := range analysis.Intents {
		for _, c := range it.Capabilities {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func capabilityStrings(caps []capability.Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}
