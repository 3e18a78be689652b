package recommend

import (
	"context"
	"sync"
	"time"

	"github.com/quickgig/backend/internal/capability"
)

// SingleProvider is the one-capability query surface FanOut runs against.
// Both the Recommender and the cache decorator satisfy it.
type SingleProvider interface {
	Recommend(ctx context.Context, tag capability.Capability, opts Options) AgentRecommendation
}

// FanOut issues one Recommend per distinct capability concurrently. Each call
// gets its own deadline so a stalled store query is abandoned instead of
// leaked; the abandoned capability still produces an empty, well-formed
// entry. The returned map has exactly one entry per distinct input
// capability.
func FanOut(ctx context.Context, p SingleProvider, caps []capability.Capability, opts Options, timeout time.Duration) map[capability.Capability]AgentRecommendation {
	if timeout <= 0 {
		timeout = DefaultFanOutTimeout
	}

	distinct := make([]capability.Capability, 0, len(caps))
	seen := make(map[capability.Capability]bool, len(caps))
	for _, c := range caps {
		if !seen[c] {
			seen[c] = true
			distinct = append(distinct, c)
		}
	}

	results := make(map[capability.Capability]AgentRecommendation, len(distinct))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, c := range distinct {
		wg.Add(1)
		go func(tag capability.Capability) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan AgentRecommendation, 1)
			go func() {
				done <- p.Recommend(callCtx, tag, opts)
			}()

			var rec AgentRecommendation
			select {
			case rec = <-done:
			case <-callCtx.Done():
				// Query overran its deadline. Abandon it and record an empty
				// result; the cancelled context stops the underlying store call.
				rec = AgentRecommendation{
					Capability: tag,
					Agents:     []RecommendedAgent{},
					Criteria: AppliedCriteria{
						MinReputation: opts.withDefaults().MinReputation,
						SortBy:        opts.withDefaults().SortBy,
					},
				}
			}

			mu.Lock()
			results[tag] = rec
			mu.Unlock()
		}(c)
	}

	wg.Wait()
	return results
}
