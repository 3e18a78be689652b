package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickgig/backend/internal/capability"
	"github.com/quickgig/backend/internal/database"
)

// fakeStore returns canned records per capability tag. errByTag fails only
// the named tags so fan-out independence is testable.
type fakeStore struct {
	records  map[string][]database.AgentRecord
	err      error
	errByTag map[string]error
	delay    time.Duration
}

func (f *fakeStore) AgentsByCapability(ctx context.Context, tag string, minScore, limit int) ([]database.AgentRecord, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if err := f.errByTag[tag]; err != nil {
		return nil, err
	}
	return f.records[tag], nil
}

func price(v float64) *float64 { return &v }

func agent(id string, score int, p *float64) database.AgentRecord {
	return database.AgentRecord{
		AgentID:         id,
		Name:            id,
		WalletAddress:   "0x" + id,
		Capabilities:    []string{"logo-design"},
		ReputationScore: score,
		TotalMissions:   10,
		PricePerTask:    p,
	}
}

// ============================================================================
// SINGLE-CAPABILITY QUERIES
// ============================================================================

func TestRecommend_SortsByReputationDescending(t *testing.T) {
	store := &fakeStore{records: map[string][]database.AgentRecord{
		"logo-design": {agent("a", 40, nil), agent("b", 90, nil), agent("c", 70, nil)},
	}}
	r := NewRecommender(store, nil, nil)

	rec := r.Recommend(context.Background(), capability.LogoDesign, Options{})
	require.Len(t, rec.Agents, 3)
	assert.Equal(t, []int{90, 70, 40}, []int{
		rec.Agents[0].ReputationScore,
		rec.Agents[1].ReputationScore,
		rec.Agents[2].ReputationScore,
	})
	assert.Equal(t, 3, rec.TotalFound)
}

func TestRecommend_SortByPricePutsUnpricedLast(t *testing.T) {
	store := &fakeStore{records: map[string][]database.AgentRecord{
		"logo-design": {agent("a", 80, price(20)), agent("b", 80, nil), agent("c", 80, price(5))},
	}}
	r := NewRecommender(store, nil, nil)

	rec := r.Recommend(context.Background(), capability.LogoDesign, Options{SortBy: SortPrice})
	require.Len(t, rec.Agents, 3)
	assert.Equal(t, "c", rec.Agents[0].ID)
	assert.Equal(t, "a", rec.Agents[1].ID)
	assert.Equal(t, "b", rec.Agents[2].ID, "agent without a price sorts last")
}

func TestSortAgents_SpeedOrdersAscendingAndStable(t *testing.T) {
	agents := []RecommendedAgent{
		{ID: "slow", typicalDuration: 96 * time.Hour},
		{ID: "mid-a", typicalDuration: 48 * time.Hour},
		{ID: "fast", typicalDuration: 24 * time.Hour},
		{ID: "mid-b", typicalDuration: 48 * time.Hour},
	}

	sortAgents(agents, SortSpeed)

	got := []string{agents[0].ID, agents[1].ID, agents[2].ID, agents[3].ID}
	// Ties keep their input order: mid-a stays ahead of mid-b.
	assert.Equal(t, []string{"fast", "mid-a", "mid-b", "slow"}, got)
}

func TestRecommend_DerivedFieldsAgreeWithScore(t *testing.T) {
	store := &fakeStore{records: map[string][]database.AgentRecord{
		"logo-design": {agent("a", 87, price(45))},
	}}
	r := NewRecommender(store, nil, nil)

	rec := r.Recommend(context.Background(), capability.LogoDesign, Options{})
	require.Len(t, rec.Agents, 1)
	got := rec.Agents[0]

	assert.Equal(t, 4.4, got.StarRating) // round(87/100*5, 1dp)
	assert.Equal(t, 88, got.SuccessRate) // round(4.4/5*100)
	assert.Equal(t, StatusAvailable, got.Availability)
	assert.Equal(t, "2-3 days", got.EstimatedTime)
}

func TestRecommend_StoreErrorYieldsEmptyWellFormedResult(t *testing.T) {
	store := &fakeStore{err: errors.New("supabase down")}
	r := NewRecommender(store, nil, nil)

	rec := r.Recommend(context.Background(), capability.SEO, Options{})
	assert.Equal(t, capability.SEO, rec.Capability)
	assert.NotNil(t, rec.Agents)
	assert.Empty(t, rec.Agents)
	assert.Zero(t, rec.TotalFound)
	assert.Equal(t, DefaultMinReputation, rec.Criteria.MinReputation)
}

func TestRecommend_CriteriaRecordsAppliedDefaults(t *testing.T) {
	store := &fakeStore{}
	r := NewRecommender(store, nil, nil)

	rec := r.Recommend(context.Background(), capability.SEO, Options{})
	assert.Equal(t, DefaultMinReputation, rec.Criteria.MinReputation)
	assert.Equal(t, SortReputation, rec.Criteria.SortBy)

	rec = r.Recommend(context.Background(), capability.SEO, Options{MinReputation: 50, SortBy: SortPrice})
	assert.Equal(t, 50, rec.Criteria.MinReputation)
	assert.Equal(t, SortPrice, rec.Criteria.SortBy)
}

func TestRecommend_InvalidStoredTagsAreFiltered(t *testing.T) {
	rec := agent("a", 80, nil)
	rec.Capabilities = []string{"logo-design", "legacy-tag"}
	store := &fakeStore{records: map[string][]database.AgentRecord{"logo-design": {rec}}}
	r := NewRecommender(store, nil, nil)

	out := r.Recommend(context.Background(), capability.LogoDesign, Options{})
	require.Len(t, out.Agents, 1)
	assert.Equal(t, []capability.Capability{capability.LogoDesign}, out.Agents[0].Capabilities)
}

// ============================================================================
// FAN-OUT
// ============================================================================

func TestRecommendMultiple_OneEntryPerDistinctCapability(t *testing.T) {
	store := &fakeStore{records: map[string][]database.AgentRecord{
		"logo-design": {agent("a", 90, nil)},
		"copywriting": {agent("b", 85, nil)},
	}}
	r := NewRecommender(store, nil, nil)

	caps := []capability.Capability{capability.LogoDesign, capability.Copywriting, capability.LogoDesign}
	results := r.RecommendMultiple(context.Background(), caps, Options{})

	require.Len(t, results, 2)
	assert.Equal(t, 1, results[capability.LogoDesign].TotalFound)
	assert.Equal(t, 1, results[capability.Copywriting].TotalFound)
}

func TestRecommendMultiple_OneFailingQueryLeavesOthersIntact(t *testing.T) {
	store := &fakeStore{
		records: map[string][]database.AgentRecord{
			"logo-design": {agent("a", 90, nil)},
		},
		errByTag: map[string]error{
			"copywriting": errors.New("store down"),
		},
	}
	r := NewRecommender(store, nil, nil)

	caps := []capability.Capability{capability.LogoDesign, capability.Copywriting}
	results := r.RecommendMultiple(context.Background(), caps, Options{})

	require.Len(t, results, 2)
	assert.Equal(t, 1, results[capability.LogoDesign].TotalFound)
	assert.Empty(t, results[capability.Copywriting].Agents)
	assert.Zero(t, results[capability.Copywriting].TotalFound)
	assert.Equal(t, capability.Copywriting, results[capability.Copywriting].Capability)
}

func TestFanOut_TimeoutYieldsEmptyResult(t *testing.T) {
	store := &fakeStore{
		delay: 500 * time.Millisecond,
		records: map[string][]database.AgentRecord{
			"logo-design": {agent("a", 90, nil)},
		},
	}
	r := NewRecommender(store, nil, nil)

	results := FanOut(context.Background(), r, []capability.Capability{capability.LogoDesign}, Options{}, 20*time.Millisecond)
	require.Contains(t, results, capability.LogoDesign)
	assert.Empty(t, results[capability.LogoDesign].Agents)
	assert.Zero(t, results[capability.LogoDesign].TotalFound)
}

// ============================================================================
// COST ESTIMATION
// ============================================================================

func TestTotalCost_BandsAroundSum(t *testing.T) {
	agents := []RecommendedAgent{
		{ID: "a", Name: "A", PricePerTask: price(10)},
		{ID: "b", Name: "B", PricePerTask: price(20)},
	}

	est := TotalCost(agents)
	assert.InDelta(t, 24.0, est.Min, 1e-9) // 30 × 0.8
	assert.InDelta(t, 36.0, est.Max, 1e-9) // 30 × 1.2
	assert.Len(t, est.Breakdown, 2)
}

func TestTotalCost_NilPriceCountsAsZero(t *testing.T) {
	agents := []RecommendedAgent{
		{ID: "a", PricePerTask: price(10)},
		{ID: "b", PricePerTask: nil},
	}

	est := TotalCost(agents)
	assert.InDelta(t, 8.0, est.Min, 1e-9)
	assert.InDelta(t, 12.0, est.Max, 1e-9)
}
