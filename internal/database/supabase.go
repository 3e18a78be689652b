package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	supabase "github.com/supabase-community/supabase-go"
)

// ============================================================================
// SUPABASE CLIENT - agents, bounties and API keys
// ============================================================================

// SupabaseClient wraps the Supabase Go client with all QuickGig operations
type SupabaseClient struct {
	client *supabase.Client
}

// NewSupabaseClient creates a new Supabase client for the given project URL
// and service key.
func NewSupabaseClient(url, key string) (*SupabaseClient, error) {
	if url == "" || key == "" {
		return nil, fmt.Errorf("supabase URL and service key must be set")
	}

	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	return &SupabaseClient{client: client}, nil
}

// ============================================================================
// DATA MODELS
// ============================================================================

// AgentRecord is a row of the agents table: a service provider with declared
// capabilities, a mirrored on-chain reputation score and optional pricing.
type AgentRecord struct {
	AgentID         string   `json:"agent_id"`
	Name            string   `json:"name"`
	WalletAddress   string   `json:"wallet_address"`
	Capabilities    []string `json:"capabilities"`
	ReputationScore int      `json:"reputation_score"`
	TotalMissions   int      `json:"total_missions"`
	PricePerTask    *float64 `json:"price_per_task,omitempty"`
	AvatarURL       string   `json:"avatar_url,omitempty"`
	CreatedAt       string   `json:"created_at,omitempty"` // String to handle Supabase timestamp format
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

// Bounty statuses
const (
	BountyStatusOpen      = "open"
	BountyStatusMatched   = "matched"
	BountyStatusSettled   = "settled"
	BountyStatusCancelled = "cancelled"
)

// BountyRecord is a row of the bounties table
type BountyRecord struct {
	BountyID       string   `json:"bounty_id"`
	ClientAddress  string   `json:"client_address"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Capabilities   []string `json:"capabilities"`
	BudgetMin      float64  `json:"budget_min"`
	BudgetMax      float64  `json:"budget_max"`
	Status         string   `json:"status"`
	MatchedAgentID string   `json:"matched_agent_id,omitempty"`
	EscrowTxHash   string   `json:"escrow_tx_hash,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty"`
	UpdatedAt      string   `json:"updated_at,omitempty"`
}

// APIKeyRecord is a row of the api_keys table. Only the bcrypt hash of the
// secret is stored; the key id is the lookup handle.
type APIKeyRecord struct {
	KeyID         string     `json:"key_id"`
	ClientAddress string     `json:"client_address"`
	Name          string     `json:"name"`
	KeyHash       string     `json:"key_hash"`
	IsActive      bool       `json:"is_active"`
	ExpiresAt     *time.Time `json:"expires_at"`
	CreatedAt     string     `json:"created_at,omitempty"`
}

// ============================================================================
// AGENTS OPERATIONS
// ============================================================================

// AgentsByCapability returns agents whose capability set contains the tag and
// whose reputation score is at least minScore, up to limit rows.
func (sc *SupabaseClient) AgentsByCapability(ctx context.Context, capabilityTag string, minScore, limit int) ([]AgentRecord, error) {
	var agents []AgentRecord
	_, err := sc.client.From("agents").
		Select("*", "", false).
		Contains("capabilities", []string{capabilityTag}).
		Gte("reputation_score", strconv.Itoa(minScore)).
		Limit(limit, "").
		ExecuteTo(&agents)

	if err != nil {
		return nil, fmt.Errorf("failed to query agents by capability: %w", err)
	}
	return agents, nil
}

// GetAgent retrieves an agent by ID
func (sc *SupabaseClient) GetAgent(ctx context.Context, agentID string) (*AgentRecord, error) {
	var agents []AgentRecord
	_, err := sc.client.From("agents").
		Select("*", "", false).
		Eq("agent_id", agentID).
		ExecuteTo(&agents)

	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if len(agents) == 0 {
		return nil, nil
	}
	return &agents[0], nil
}

// GetAgentByWallet retrieves an agent by settlement address
func (sc *SupabaseClient) GetAgentByWallet(ctx context.Context, walletAddress string) (*AgentRecord, error) {
	var agents []AgentRecord
	_, err := sc.client.From("agents").
		Select("*", "", false).
		Eq("wallet_address", walletAddress).
		ExecuteTo(&agents)

	if err != nil {
		return nil, fmt.Errorf("failed to get agent by wallet: %w", err)
	}
	if len(agents) == 0 {
		return nil, nil
	}
	return &agents[0], nil
}

// ListAgents lists agents ordered by reputation
func (sc *SupabaseClient) ListAgents(ctx context.Context, limit int) ([]AgentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var agents []AgentRecord
	_, err := sc.client.From("agents").
		Select("*", "", false).
		Order("reputation_score", nil).
		Limit(limit, "").
		ExecuteTo(&agents)
	return agents, err
}

// UpsertAgent creates or updates an agent record
func (sc *SupabaseClient) UpsertAgent(ctx context.Context, agent *AgentRecord) error {
	var result []AgentRecord
	_, err := sc.client.From("agents").
		Upsert(agent, "agent_id", "", "").
		ExecuteTo(&result)
	return err
}

// UpdateAgentReputation writes a mirrored on-chain reputation score
func (sc *SupabaseClient) UpdateAgentReputation(ctx context.Context, agentID string, score int) error {
	update := map[string]interface{}{
		"reputation_score": score,
		"updated_at":       time.Now().UTC().Format(time.RFC3339),
	}
	var result []AgentRecord
	_, err := sc.client.From("agents").
		Update(update, "", "").
		Eq("agent_id", agentID).
		ExecuteTo(&result)
	return err
}

// ============================================================================
// BOUNTIES OPERATIONS
// ============================================================================

// CreateBounty inserts a new bounty
func (sc *SupabaseClient) CreateBounty(ctx context.Context, bounty *BountyRecord) error {
	var result []BountyRecord
	_, err := sc.client.From("bounties").
		Insert(bounty, false, "", "", "").
		ExecuteTo(&result)
	return err
}

// GetBounty retrieves a bounty by ID
func (sc *SupabaseClient) GetBounty(ctx context.Context, bountyID string) (*BountyRecord, error) {
	var bounties []BountyRecord
	_, err := sc.client.From("bounties").
		Select("*", "", false).
		Eq("bounty_id", bountyID).
		ExecuteTo(&bounties)

	if err != nil {
		return nil, fmt.Errorf("failed to get bounty: %w", err)
	}
	if len(bounties) == 0 {
		return nil, nil
	}
	return &bounties[0], nil
}

// ListBounties lists bounties, optionally filtered by status
func (sc *SupabaseClient) ListBounties(ctx context.Context, status string, limit int) ([]BountyRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := sc.client.From("bounties").
		Select("*", "", false).
		Order("created_at", nil)

	if status != "" {
		query = query.Eq("status", status)
	}
	query = query.Limit(limit, "")

	var bounties []BountyRecord
	_, err := query.ExecuteTo(&bounties)
	return bounties, err
}

// UpdateBounty persists bounty status transitions
func (sc *SupabaseClient) UpdateBounty(ctx context.Context, bounty *BountyRecord) error {
	bounty.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	var result []BountyRecord
	_, err := sc.client.From("bounties").
		Update(bounty, "", "").
		Eq("bounty_id", bounty.BountyID).
		ExecuteTo(&result)
	return err
}

// ============================================================================
// API KEY OPERATIONS
// ============================================================================

// GetAPIKey retrieves an API key record by its public key id
func (sc *SupabaseClient) GetAPIKey(ctx context.Context, keyID string) (*APIKeyRecord, error) {
	var keys []APIKeyRecord
	_, err := sc.client.From("api_keys").
		Select("*", "", false).
		Eq("key_id", keyID).
		ExecuteTo(&keys)

	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return &keys[0], nil
}

// CreateAPIKey persists a new API key record
func (sc *SupabaseClient) CreateAPIKey(ctx context.Context, key *APIKeyRecord) error {
	var result []APIKeyRecord
	_, err := sc.client.From("api_keys").
		Insert(key, false, "", "", "").
		ExecuteTo(&result)
	return err
}
