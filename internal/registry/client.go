// Package registry reads agent identity and reputation from the on-chain
// ERC-8004 registries and mirrors reputation changes into the agent store.
// All chain access is read-only; escrow funding and release are signed
// client-side by wallets.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// readTimeout bounds every registry read, matching the API layer's budget
// for blockchain calls.
const readTimeout = 10 * time.Second

// Minimal ABI surfaces of the ERC-8004 identity and reputation registries.
const identityRegistryABI = `[
	{"type":"function","name":"resolveByAddress","stateMutability":"view",
	 "inputs":[{"name":"agentAddress","type":"address"}],
	 "outputs":[{"name":"agentId","type":"uint256"},{"name":"agentDomain","type":"string"},{"name":"agentAddress","type":"address"}]},
	{"type":"function","name":"getAgent","stateMutability":"view",
	 "inputs":[{"name":"agentId","type":"uint256"}],
	 "outputs":[{"name":"agentId","type":"uint256"},{"name":"agentDomain","type":"string"},{"name":"agentAddress","type":"address"}]}
]`

const reputationRegistryABI = `[
	{"type":"function","name":"getSummary","stateMutability":"view",
	 "inputs":[{"name":"agentId","type":"uint256"}],
	 "outputs":[{"name":"feedbackCount","type":"uint64"},{"name":"score","type":"uint8"}]},
	{"type":"event","name":"NewFeedback","anonymous":false,
	 "inputs":[{"name":"agentId","type":"uint256","indexed":true},{"name":"clientId","type":"uint256","indexed":true},{"name":"score","type":"uint8","indexed":false}]}
]`

// Config holds the chain connection settings.
type Config struct {
	RPCURL             string
	WSURL              string
	IdentityRegistry   string
	ReputationRegistry string
}

// AgentIdentity is one entry of the identity registry.
type AgentIdentity struct {
	AgentID *big.Int `json:"agent_id"`
	Domain  string   `json:"domain"`
	Address string   `json:"address"`
}

// ReputationSummary is the aggregate feedback state for an agent.
type ReputationSummary struct {
	Score         int    `json:"score"` // 0-100
	FeedbackCount uint64 `json:"feedback_count"`
}

// AgentSnapshot bundles identity and reputation for the HTTP surface.
type AgentSnapshot struct {
	Identity   AgentIdentity     `json:"identity"`
	Reputation ReputationSummary `json:"reputation"`
}

// Client reads the ERC-8004 registries through raw eth_call.
type Client struct {
	eth            *ethclient.Client
	events         logSubscriber
	identityAddr   common.Address
	reputationAddr common.Address
	identityABI    abi.ABI
	reputationABI  abi.ABI
}

// logSubscriber mirrors the subset of ethclient used for log subscriptions,
// so the feedback watcher can be tested against a fake.
type logSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// NewClient dials the RPC endpoint and parses the registry ABIs.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("RPC_URL must be set")
	}
	if cfg.IdentityRegistry == "" || cfg.ReputationRegistry == "" {
		return nil, errors.New("identity and reputation registry addresses must be set")
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC: %w", err)
	}

	identityABI, err := abi.JSON(strings.NewReader(identityRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity ABI: %w", err)
	}
	reputationABI, err := abi.JSON(strings.NewReader(reputationRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse reputation ABI: %w", err)
	}

	events := logSubscriber(eth)
	if wsURL := strings.TrimSpace(cfg.WSURL); wsURL != "" {
		if wsEth, wsErr := ethclient.DialContext(ctx, wsURL); wsErr == nil {
			events = wsEth
		}
	}

	return &Client{
		eth:            eth,
		events:         events,
		identityAddr:   common.HexToAddress(cfg.IdentityRegistry),
		reputationAddr: common.HexToAddress(cfg.ReputationRegistry),
		identityABI:    identityABI,
		reputationABI:  reputationABI,
	}, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// AgentByAddress resolves an identity registry entry by wallet address.
func (c *Client) AgentByAddress(ctx context.Context, address string) (*AgentIdentity, error) {
	return c.resolveIdentity(ctx, "resolveByAddress", common.HexToAddress(address))
}

// AgentByID resolves an identity registry entry by agent id.
func (c *Client) AgentByID(ctx context.Context, agentID *big.Int) (*AgentIdentity, error) {
	return c.resolveIdentity(ctx, "getAgent", agentID)
}

func (c *Client) resolveIdentity(ctx context.Context, method string, arg interface{}) (*AgentIdentity, error) {
	data, err := c.identityABI.Pack(method, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	raw, err := c.eth.CallContract(callCtx, ethereum.CallMsg{To: &c.identityAddr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("identity registry call failed: %w", err)
	}

	values, err := c.identityABI.Unpack(method, raw)
	if err != nil || len(values) != 3 {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}

	agentID, _ := values[0].(*big.Int)
	domain, _ := values[1].(string)
	addr, _ := values[2].(common.Address)

	if agentID == nil || agentID.Sign() == 0 {
		return nil, nil // not registered
	}

	return &AgentIdentity{
		AgentID: agentID,
		Domain:  domain,
		Address: addr.Hex(),
	}, nil
}

// Summary reads the reputation registry aggregate for an agent.
func (c *Client) Summary(ctx context.Context, agentID *big.Int) (*ReputationSummary, error) {
	data, err := c.reputationABI.Pack("getSummary", agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getSummary call: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	raw, err := c.eth.CallContract(callCtx, ethereum.CallMsg{To: &c.reputationAddr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("reputation registry call failed: %w", err)
	}

	values, err := c.reputationABI.Unpack("getSummary", raw)
	if err != nil || len(values) != 2 {
		return nil, fmt.Errorf("failed to unpack getSummary result: %w", err)
	}

	count, _ := values[0].(uint64)
	score, _ := values[1].(uint8)

	return &ReputationSummary{
		Score:         int(score),
		FeedbackCount: count,
	}, nil
}

// Snapshot resolves identity plus reputation in one call for the API.
func (c *Client) Snapshot(ctx context.Context, address string) (*AgentSnapshot, error) {
	identity, err := c.AgentByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, nil
	}

	summary, err := c.Summary(ctx, identity.AgentID)
	if err != nil {
		return nil, err
	}

	return &AgentSnapshot{
		Identity:   *identity,
		Reputation: *summary,
	}, nil
}
