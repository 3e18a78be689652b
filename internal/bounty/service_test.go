package bounty

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickgig/backend/internal/capability"
	"github.com/quickgig/backend/internal/database"
	"github.com/quickgig/backend/internal/intent"
	"github.com/quickgig/backend/internal/llm"
	"github.com/quickgig/backend/internal/recommend"
)

// memoryStore keeps bounties in a map.
type memoryStore struct {
	mu       sync.Mutex
	bounties map[string]database.BountyRecord
	failNext error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{bounties: make(map[string]database.BountyRecord)}
}

func (m *memoryStore) CreateBounty(ctx context.Context, b *database.BountyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.bounties[b.BountyID] = *b
	return nil
}

func (m *memoryStore) GetBounty(ctx context.Context, id string) (*database.BountyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bounties[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *memoryStore) ListBounties(ctx context.Context, status string, limit int) ([]database.BountyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.BountyRecord
	for _, b := range m.bounties {
		if status == "" || b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryStore) UpdateBounty(ctx context.Context, b *database.BountyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bounties[b.BountyID] = *b
	return nil
}

// stubProvider returns empty recommendations and records queried capabilities.
type stubProvider struct {
	mu      sync.Mutex
	queried []capability.Capability
}

func (s *stubProvider) Recommend(ctx context.Context, tag capability.Capability, opts recommend.Options) recommend.AgentRecommendation {
	return recommend.AgentRecommendation{Capability: tag, Agents: []recommend.RecommendedAgent{}}
}

func (s *stubProvider) RecommendMultiple(ctx context.Context, caps []capability.Capability, opts recommend.Options) map[capability.Capability]recommend.AgentRecommendation {
	s.mu.Lock()
	s.queried = append(s.queried, caps...)
	s.mu.Unlock()
	out := make(map[capability.Capability]recommend.AgentRecommendation, len(caps))
	for _, c := range caps {
		out[c] = s.Recommend(ctx, c, recommend.Options{})
	}
	return out
}

// recordingBus captures emitted event types.
type recordingBus struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBus) Emit(eventType, source, subject string, data map[string]interface{}) {
	b.mu.Lock()
	b.events = append(b.events, eventType)
	b.mu.Unlock()
}

func (b *recordingBus) last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return ""
	}
	return b.events[len(b.events)-1]
}

// downLLM always errors, forcing the keyword fallback path.
type downLLM struct{}

func (downLLM) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	return "", errors.New("upstream down")
}

func newTestService() (*Service, *memoryStore, *stubProvider, *recordingBus) {
	store := newMemoryStore()
	provider := &stubProvider{}
	bus := &recordingBus{}
	classifier := intent.NewClassifier(downLLM{}, nil)
	return NewService(store, classifier, provider, bus), store, provider, bus
}

// ============================================================================
// CREATE
// ============================================================================

func TestCreate_ValidatesRequiredFields(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Description: "d", ClientAddress: "0xabc"})
	assert.ErrorIs(t, err, ErrMissingTitle)

	_, err = svc.Create(ctx, CreateRequest{Title: "t", ClientAddress: "0xabc"})
	assert.ErrorIs(t, err, ErrMissingDescription)

	_, err = svc.Create(ctx, CreateRequest{Title: "t", Description: "d"})
	assert.ErrorIs(t, err, ErrMissingClient)
}

func TestCreate_ClassifiesAndPersists(t *testing.T) {
	svc, store, provider, bus := newTestService()

	result, err := svc.Create(context.Background(), CreateRequest{
		ClientAddress: "0xabc",
		Title:         "Brand refresh",
		Description:   "Design a logo and tagline for my tech startup",
	})
	require.NoError(t, err)

	// LLM is down, so classification came from the keyword fallback.
	assert.Equal(t, intent.SourceFallback, result.Analysis.Source)
	assert.ElementsMatch(t, []string{"logo-design", "copywriting"}, result.Bounty.Capabilities)
	assert.Equal(t, database.BountyStatusOpen, result.Bounty.Status)
	assert.NotEmpty(t, result.Bounty.BountyID)

	// Budget mirrors the analysis when no override is given.
	assert.Equal(t, result.Analysis.TotalEstimatedCost.Min, result.Bounty.BudgetMin)
	assert.Equal(t, result.Analysis.TotalEstimatedCost.Max, result.Bounty.BudgetMax)

	stored, err := store.GetBounty(context.Background(), result.Bounty.BountyID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.ElementsMatch(t, []capability.Capability{capability.LogoDesign, capability.Copywriting}, provider.queried)
	assert.Equal(t, "bounty.created", bus.last())
	require.Len(t, result.Recommendations, 2)
}

func TestCreate_BudgetOverridesWin(t *testing.T) {
	svc, _, _, _ := newTestService()
	min, max := 100.0, 50.0 // deliberately inverted

	result, err := svc.Create(context.Background(), CreateRequest{
		ClientAddress: "0xabc",
		Title:         "Logo",
		Description:   "need a logo",
		BudgetMin:     &min,
		BudgetMax:     &max,
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Bounty.BudgetMin)
	assert.Equal(t, 100.0, result.Bounty.BudgetMax, "max is raised to min when inverted")
}

func TestCreate_StoreFailureSurfaces(t *testing.T) {
	svc, store, _, bus := newTestService()
	store.failNext = errors.New("insert failed")

	_, err := svc.Create(context.Background(), CreateRequest{
		ClientAddress: "0xabc",
		Title:         "Logo",
		Description:   "need a logo",
	})
	require.Error(t, err)
	assert.Empty(t, bus.events, "no event for a bounty that was never stored")
}

// ============================================================================
// LIFECYCLE
// ============================================================================

func createOpen(t *testing.T, svc *Service) string {
	t.Helper()
	result, err := svc.Create(context.Background(), CreateRequest{
		ClientAddress: "0xabc",
		Title:         "Logo",
		Description:   "need a logo",
	})
	require.NoError(t, err)
	return result.Bounty.BountyID
}

func TestMatchSettleFlow(t *testing.T) {
	svc, _, _, bus := newTestService()
	ctx := context.Background()
	id := createOpen(t, svc)

	matched, err := svc.Match(ctx, id, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, database.BountyStatusMatched, matched.Status)
	assert.Equal(t, "agent-1", matched.MatchedAgentID)
	assert.Equal(t, "bounty.matched", bus.last())

	settled, err := svc.Settle(ctx, id, "0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, database.BountyStatusSettled, settled.Status)
	assert.Equal(t, "0xdeadbeef", settled.EscrowTxHash)
	assert.Equal(t, "bounty.settled", bus.last())
}

func TestMatch_RejectsNonOpenBounty(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	id := createOpen(t, svc)

	_, err := svc.Match(ctx, id, "agent-1")
	require.NoError(t, err)

	_, err = svc.Match(ctx, id, "agent-2")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSettle_RequiresMatchedStatus(t *testing.T) {
	svc, _, _, _ := newTestService()
	id := createOpen(t, svc)

	_, err := svc.Settle(context.Background(), id, "0x1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancel_AllowedFromOpenAndMatchedOnly(t *testing.T) {
	svc, _, _, bus := newTestService()
	ctx := context.Background()

	id := createOpen(t, svc)
	cancelled, err := svc.Cancel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, database.BountyStatusCancelled, cancelled.Status)
	assert.Equal(t, "bounty.cancelled", bus.last())

	_, err = svc.Cancel(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	id2 := createOpen(t, svc)
	_, err = svc.Match(ctx, id2, "agent-1")
	require.NoError(t, err)
	_, err = svc.Settle(ctx, id2, "0x1")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, id2)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGet_UnknownBountyIsNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
