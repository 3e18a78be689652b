package registry

import (
	"context"
	"errors"
	"log"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickgig/backend/internal/database"
)

// fakeSubscription satisfies ethereum.Subscription.
type fakeSubscription struct {
	errs chan error
	once sync.Once
}

func (s *fakeSubscription) Unsubscribe()      { s.once.Do(func() { close(s.errs) }) }
func (s *fakeSubscription) Err() <-chan error { return s.errs }

// fakeSubscriber hands the log channel back to the test so it can inject
// feedback events.
type fakeSubscriber struct {
	mu   sync.Mutex
	logs chan<- types.Log
}

func (f *fakeSubscriber) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.mu.Lock()
	f.logs = ch
	f.mu.Unlock()
	return &fakeSubscription{errs: make(chan error)}, nil
}

func (f *fakeSubscriber) send(entry types.Log) {
	f.mu.Lock()
	ch := f.logs
	f.mu.Unlock()
	ch <- entry
}

// fakeReader serves canned identities and summaries.
type fakeReader struct {
	identity *AgentIdentity
	summary  *ReputationSummary
}

func (f *fakeReader) AgentByID(ctx context.Context, agentID *big.Int) (*AgentIdentity, error) {
	return f.identity, nil
}

func (f *fakeReader) Summary(ctx context.Context, agentID *big.Int) (*ReputationSummary, error) {
	return f.summary, nil
}

// fakeStore records reputation mirror writes.
type fakeStore struct {
	mu      sync.Mutex
	agents  map[string]*database.AgentRecord
	updates map[string]int
}

func (f *fakeStore) GetAgentByWallet(ctx context.Context, wallet string) (*database.AgentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.agents[wallet], nil
}

func (f *fakeStore) UpdateAgentReputation(ctx context.Context, agentID string, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[agentID] = score
	return nil
}

func (f *fakeStore) scoreOf(agentID string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	score, ok := f.updates[agentID]
	return score, ok
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

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func newTestWatcher(subs logSubscriber, reader summaryReader, store reputationStore, bus *recordingBus) *FeedbackWatcher {
	return &FeedbackWatcher{
		subs:           subs,
		reader:         reader,
		store:          store,
		bus:            bus,
		reputationAddr: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		feedbackTopic:  common.HexToHash("0xfeed"),
		logger:         log.New(log.Writer(), "[Registry] ", log.LstdFlags),
	}
}

func feedbackLog(agentID int64) types.Log {
	return types.Log{
		Topics: []common.Hash{
			common.HexToHash("0xfeed"),
			common.BigToHash(big.NewInt(agentID)),
			common.BigToHash(big.NewInt(999)), // client id
		},
	}
}

func TestWatcher_MirrorsReputationOnFeedback(t *testing.T) {
	subs := &fakeSubscriber{}
	reader := &fakeReader{
		identity: &AgentIdentity{AgentID: big.NewInt(7), Domain: "pixelsmith.example", Address: "0xWallet"},
		summary:  &ReputationSummary{Score: 83, FeedbackCount: 12},
	}
	store := &fakeStore{
		agents:  map[string]*database.AgentRecord{"0xWallet": {AgentID: "agent-pixelsmith"}},
		updates: map[string]int{},
	}
	bus := &recordingBus{}

	w := newTestWatcher(subs, reader, store, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Wait for the subscription, then inject one feedback log.
	require.Eventually(t, func() bool {
		subs.mu.Lock()
		defer subs.mu.Unlock()
		return subs.logs != nil
	}, time.Second, 10*time.Millisecond)

	subs.send(feedbackLog(7))

	require.Eventually(t, func() bool {
		_, ok := store.scoreOf("agent-pixelsmith")
		return ok
	}, time.Second, 10*time.Millisecond)

	score, _ := store.scoreOf("agent-pixelsmith")
	assert.Equal(t, 83, score)
	assert.Equal(t, 1, bus.count())
}

func TestWatcher_SkipsUnknownWallets(t *testing.T) {
	subs := &fakeSubscriber{}
	reader := &fakeReader{
		identity: &AgentIdentity{AgentID: big.NewInt(9), Address: "0xStranger"},
		summary:  &ReputationSummary{Score: 50, FeedbackCount: 1},
	}
	store := &fakeStore{agents: map[string]*database.AgentRecord{}, updates: map[string]int{}}
	bus := &recordingBus{}

	w := newTestWatcher(subs, reader, store, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool {
		subs.mu.Lock()
		defer subs.mu.Unlock()
		return subs.logs != nil
	}, time.Second, 10*time.Millisecond)

	subs.send(feedbackLog(9))

	// Give the watcher a beat; nothing should be mirrored or emitted.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, store.updates)
	assert.Zero(t, bus.count())
}

func TestWatcher_IgnoresMalformedLogs(t *testing.T) {
	subs := &fakeSubscriber{}
	store := &fakeStore{agents: map[string]*database.AgentRecord{}, updates: map[string]int{}}
	bus := &recordingBus{}

	w := newTestWatcher(subs, &fakeReader{}, store, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool {
		subs.mu.Lock()
		defer subs.mu.Unlock()
		return subs.logs != nil
	}, time.Second, 10*time.Millisecond)

	subs.send(types.Log{Topics: []common.Hash{common.HexToHash("0xfeed")}}) // no agent id topic

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, bus.count())
}

func TestWatcher_StopsOnContextCancel(t *testing.T) {
	subs := &fakeSubscriber{}
	store := &fakeStore{agents: map[string]*database.AgentRecord{}, updates: map[string]int{}}

	w := newTestWatcher(subs, &fakeReader{}, store, &recordingBus{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		subs.mu.Lock()
		defer subs.mu.Unlock()
		return subs.logs != nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatcher_FeedbackWithNilIdentityIsSkipped(t *testing.T) {
	subs := &fakeSubscriber{}
	store := &fakeStore{agents: map[string]*database.AgentRecord{}, updates: map[string]int{}}
	bus := &recordingBus{}

	// reader with nil identity simulates feedback for an unregistered agent
	w := newTestWatcher(subs, &fakeReader{identity: nil}, store, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool {
		subs.mu.Lock()
		defer subs.mu.Unlock()
		return subs.logs != nil
	}, time.Second, 10*time.Millisecond)

	subs.send(feedbackLog(3))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, bus.count())
}

func TestWatcher_ErrorFakeReaderNeverPanics(t *testing.T) {
	// Smoke check: a reader error path must not panic the watcher loop.
	w := newTestWatcher(&fakeSubscriber{}, &erroringReader{}, &fakeStore{agents: map[string]*database.AgentRecord{}, updates: map[string]int{}}, &recordingBus{})
	w.handleFeedback(context.Background(), feedbackLog(1))
}

type erroringReader struct{}

func (erroringReader) AgentByID(ctx context.Context, agentID *big.Int) (*AgentIdentity, error) {
	return nil, errors.New("rpc down")
}

func (erroringReader) Summary(ctx context.Context, agentID *big.Int) (*ReputationSummary, error) {
	return nil, errors.New("rpc down")
}
