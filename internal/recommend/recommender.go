// Package recommend ranks stored agents for a requested capability. The
// recommender is read-only over the agent store and deliberately degrades to
// an empty result on any persistence failure: callers never see a raw store
// error from a recommendation query.
package recommend

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"github.com/quickgig/backend/internal/capability"
	"github.com/quickgig/backend/internal/database"
	"github.com/quickgig/backend/internal/metrics"
)

// SortKey selects the ranking order of a recommendation.
type SortKey string

const (
	SortReputation SortKey = "reputation" // reputation score, descending
	SortPrice      SortKey = "price"      // per-task price ascending, missing price last
	SortSpeed      SortKey = "speed"      // typical completion duration, ascending
)

// IsValid reports whether k is a recognised sort key.
func (k SortKey) IsValid() bool {
	return k == SortReputation || k == SortPrice || k == SortSpeed
}

const (
	DefaultMinReputation = 70
	DefaultLimit         = 10

	// DefaultFanOutTimeout bounds each parallel query in RecommendMultiple so
	// one slow store call cannot stall the whole join.
	DefaultFanOutTimeout = 5 * time.Second
)

// priceSentinel sorts agents without a price after every priced agent.
const priceSentinel = math.MaxFloat64

// Options tune a recommendation query. Zero values take the defaults.
type Options struct {
	MinReputation int     `json:"min_reputation"`
	Limit         int     `json:"limit"`
	SortBy        SortKey `json:"sort_by"`
}

func (o Options) withDefaults() Options {
	if o.MinReputation <= 0 {
		o.MinReputation = DefaultMinReputation
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.SortBy == "" {
		o.SortBy = SortReputation
	}
	return o
}

// RecommendedAgent is a read projection of a stored agent record, enriched
// with derived presentation fields. The source record is never mutated.
type RecommendedAgent struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	Address         string                  `json:"address"`
	Capabilities    []capability.Capability `json:"capabilities"`
	ReputationScore int                     `json:"reputation_score"`
	StarRating      float64                 `json:"star_rating"`
	ReviewCount     int                     `json:"review_count"`
	SuccessRate     int                     `json:"success_rate"`
	PricePerTask    *float64                `json:"price_per_task,omitempty"`
	Availability    string                  `json:"availability"`
	EstimatedTime   string                  `json:"estimated_completion"`
	AvatarURL       string                  `json:"avatar_url,omitempty"`

	typicalDuration time.Duration
}

// AppliedCriteria records the filter values a query actually ran with.
type AppliedCriteria struct {
	MinReputation int     `json:"min_reputation"`
	SortBy        SortKey `json:"sort_by"`
}

// AgentRecommendation is one capability's ranked result set.
type AgentRecommendation struct {
	Capability capability.Capability `json:"capability"`
	Agents     []RecommendedAgent    `json:"agents"`
	TotalFound int                   `json:"total_found"`
	Criteria   AppliedCriteria       `json:"criteria"`
}

// AgentStore is the persistence collaborator. database.SupabaseClient
// satisfies it; tests inject fakes.
type AgentStore interface {
	AgentsByCapability(ctx context.Context, capabilityTag string, minScore, limit int) ([]database.AgentRecord, error)
}

// Provider is the recommendation surface shared by the Recommender and the
// caching decorator in internal/cache.
type Provider interface {
	Recommend(ctx context.Context, tag capability.Capability, opts Options) AgentRecommendation
	RecommendMultiple(ctx context.Context, caps []capability.Capability, opts Options) map[capability.Capability]AgentRecommendation
}

// Recommender queries the agent store and reshapes records into ranked
// recommendations.
type Recommender struct {
	store         AgentStore
	oracle        AvailabilityOracle
	metrics       *metrics.Metrics
	logger        *log.Logger
	fanOutTimeout time.Duration
}

// NewRecommender creates a recommender. A nil oracle defaults to the static
// "always available" oracle.
func NewRecommender(store AgentStore, oracle AvailabilityOracle, m *metrics.Metrics) *Recommender {
	if oracle == nil {
		oracle = StaticAvailability{}
	}
	return &Recommender{
		store:         store,
		oracle:        oracle,
		metrics:       m,
		logger:        log.New(log.Writer(), "[Recommender] ", log.LstdFlags),
		fanOutTimeout: DefaultFanOutTimeout,
	}
}

// Recommend returns ranked agents for one capability. A store failure is
// logged and converted into an empty, well-formed result.
func (r *Recommender) Recommend(ctx context.Context, tag capability.Capability, opts Options) AgentRecommendation {
	opts = opts.withDefaults()
	start := time.Now()
	defer func() {
		r.metrics.RecordRecommendation(string(tag), time.Since(start).Seconds())
	}()

	result := AgentRecommendation{
		Capability: tag,
		Agents:     []RecommendedAgent{},
		Criteria: AppliedCriteria{
			MinReputation: opts.MinReputation,
			SortBy:        opts.SortBy,
		},
	}

	records, err := r.store.AgentsByCapability(ctx, string(tag), opts.MinReputation, opts.Limit)
	if err != nil {
		r.logger.Printf("⚠️  Store query failed for %s, returning empty result: %v", tag, err)
		r.metrics.RecordStoreError("agents_by_capability")
		return result
	}

	agents := make([]RecommendedAgent, 0, len(records))
	for _, rec := range records {
		agents = append(agents, r.project(ctx, rec, tag))
	}
	sortAgents(agents, opts.SortBy)

	result.Agents = agents
	result.TotalFound = len(agents)
	return result
}

// RecommendMultiple fans out one Recommend per distinct capability, each
// bounded by the fan-out timeout. The join cannot fail: a capability whose
// query errors or times out simply yields an empty result.
func (r *Recommender) RecommendMultiple(ctx context.Context, caps []capability.Capability, opts Options) map[capability.Capability]AgentRecommendation {
	return FanOut(ctx, r, caps, opts, r.fanOutTimeout)
}

// project derives the presentation fields for one record.
func (r *Recommender) project(ctx context.Context, rec database.AgentRecord, queried capability.Capability) RecommendedAgent {
	// Star rating is score/100 × 5 to one decimal; success rate follows from
	// the stars so both always agree with the mirrored score.
	stars := math.Round(float64(rec.ReputationScore)/100*5*10) / 10
	successRate := int(math.Round(stars / 5 * 100))

	caps := make([]capability.Capability, 0, len(rec.Capabilities))
	for _, s := range rec.Capabilities {
		if parsed, err := capability.Parse(s); err == nil {
			caps = append(caps, parsed)
		}
	}

	est := capability.EstimatedCompletion(queried)

	return RecommendedAgent{
		ID:              rec.AgentID,
		Name:            rec.Name,
		Address:         rec.WalletAddress,
		Capabilities:    caps,
		ReputationScore: rec.ReputationScore,
		StarRating:      stars,
		ReviewCount:     rec.TotalMissions,
		SuccessRate:     successRate,
		PricePerTask:    rec.PricePerTask,
		Availability:    r.oracle.Status(ctx, rec.AgentID),
		EstimatedTime:   est.Label,
		AvatarURL:       rec.AvatarURL,
		typicalDuration: est.Typical,
	}
}

// sortAgents applies the stable ordering for the given key.
func sortAgents(agents []RecommendedAgent, key SortKey) {
	switch key {
	case SortPrice:
		sort.SliceStable(agents, func(i, j int) bool {
			return priceOf(agents[i]) < priceOf(agents[j])
		})
	case SortSpeed:
		// Durations tie within one capability today, so the stable sort keeps
		// store order; the comparator matters once per-agent durations exist.
		sort.SliceStable(agents, func(i, j int) bool {
			return agents[i].typicalDuration < agents[j].typicalDuration
		})
	default:
		sort.SliceStable(agents, func(i, j int) bool {
			return agents[i].ReputationScore > agents[j].ReputationScore
		})
	}
}

func priceOf(a RecommendedAgent) float64 {
	if a.PricePerTask == nil {
		return priceSentinel
	}
	return *a.PricePerTask
}
