package registry

import (
	"context"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/quickgig/backend/internal/database"
	"github.com/quickgig/backend/internal/events"
)

// summaryReader is the read surface the watcher needs from the registry
// client; split out so tests can fake chain reads.
type summaryReader interface {
	AgentByID(ctx context.Context, agentID *big.Int) (*AgentIdentity, error)
	Summary(ctx context.Context, agentID *big.Int) (*ReputationSummary, error)
}

// reputationStore mirrors on-chain scores into the agent store.
// database.SupabaseClient satisfies it.
type reputationStore interface {
	GetAgentByWallet(ctx context.Context, walletAddress string) (*database.AgentRecord, error)
	UpdateAgentReputation(ctx context.Context, agentID string, score int) error
}

// FeedbackWatcher subscribes to NewFeedback logs on the reputation registry,
// re-reads the summary and upserts the mirrored score, emitting
// reputation.updated on the bus.
type FeedbackWatcher struct {
	subs           logSubscriber
	reader         summaryReader
	store          reputationStore
	bus            events.EventEmitter
	reputationAddr common.Address
	feedbackTopic  common.Hash
	logger         *log.Logger
}

// NewFeedbackWatcher builds a watcher from a registry client and a store
// adapter.
func NewFeedbackWatcher(client *Client, store reputationStore, bus events.EventEmitter) *FeedbackWatcher {
	return &FeedbackWatcher{
		subs:           client.events,
		reader:         client,
		store:          store,
		bus:            bus,
		reputationAddr: client.reputationAddr,
		feedbackTopic:  client.reputationABI.Events["NewFeedback"].ID,
		logger:         log.New(log.Writer(), "[Registry] ", log.LstdFlags),
	}
}

// Run subscribes and processes feedback logs until ctx is cancelled,
// re-subscribing with backoff when the subscription drops.
func (w *FeedbackWatcher) Run(ctx context.Context) {
	backoff := time.Second

	for {
		if err := w.watch(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Printf("⚠️  Feedback subscription lost, retrying in %s: %v", backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		return
	}
}

func (w *FeedbackWatcher) watch(ctx context.Context) error {
	logs := make(chan types.Log, 64)
	query := ethereum.FilterQuery{
		Addresses: []common.Address{w.reputationAddr},
		Topics:    [][]common.Hash{{w.feedbackTopic}},
	}

	sub, err := w.subs.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	w.logger.Printf("👂 Watching NewFeedback on %s", w.reputationAddr.Hex())

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case entry := <-logs:
			w.handleFeedback(ctx, entry)
		}
	}
}

// handleFeedback re-reads the on-chain summary for the agent named in the
// log and mirrors it into the store.
func (w *FeedbackWatcher) handleFeedback(ctx context.Context, entry types.Log) {
	if len(entry.Topics) < 2 {
		return
	}
	agentID := new(big.Int).SetBytes(entry.Topics[1].Bytes())

	identity, err := w.reader.AgentByID(ctx, agentID)
	if err != nil || identity == nil {
		w.logger.Printf("⚠️  Could not resolve agent %s after feedback: %v", agentID, err)
		return
	}

	summary, err := w.reader.Summary(ctx, agentID)
	if err != nil {
		w.logger.Printf("⚠️  Could not read summary for agent %s: %v", agentID, err)
		return
	}

	stored, err := w.store.GetAgentByWallet(ctx, identity.Address)
	if err != nil || stored == nil {
		w.logger.Printf("⚠️  No stored agent for wallet %s, skipping mirror", identity.Address)
		return
	}

	if err := w.store.UpdateAgentReputation(ctx, stored.AgentID, summary.Score); err != nil {
		w.logger.Printf("❌ Failed to mirror reputation for %s: %v", stored.AgentID, err)
		return
	}

	w.bus.Emit(events.EventReputationUpdated, "/registry", stored.AgentID, map[string]interface{}{
		"agent_id":       stored.AgentID,
		"wallet_address": identity.Address,
		"score":          summary.Score,
		"feedback_count": summary.FeedbackCount,
	})
	w.logger.Printf("🔁 Mirrored reputation for %s: %d (%d feedbacks)", stored.AgentID, summary.Score, summary.FeedbackCount)
}
