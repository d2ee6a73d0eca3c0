// Package client reads Plasma pools and LP positions over RPC and builds,
// simulates and sends Plasma transactions.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	solanago "github.com/krazyTry/plasma-go/solana"
)

const (
	DefaultCacheSize      = 256
	DefaultConfirmTimeout = 60 * time.Second
)

var (
	ErrPoolNotFound       = errors.New("pool not found")
	ErrLpPositionNotFound = errors.New("lp position not found")
	ErrNotPlasmaAccount   = errors.New("account is not owned by the plasma program")
	ErrMintNotFound       = errors.New("mint not found")
	ErrNoWSClient         = errors.New("sending requires a websocket client")
)

type Client struct {
	rpcClient      *rpc.Client
	wsClient       *ws.Client
	logger         *zap.Logger
	cacheSize      int
	confirmTimeout time.Duration

	// mints never change decimals, so they are cached for the client's lifetime
	mints *lru.Cache[solana.PublicKey, *solanago.Token]
}

type Option func(*Client)

func WithWSClient(wsClient *ws.Client) Option {
	return func(c *Client) {
		c.wsClient = wsClient
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithCacheSize(size int) Option {
	return func(c *Client) {
		c.cacheSize = size
	}
}

func WithConfirmTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.confirmTimeout = timeout
	}
}

func NewClient(rpcClient *rpc.Client, opts ...Option) (*Client, error) {
	c := &Client{
		rpcClient:      rpcClient,
		logger:         zap.NewNop(),
		cacheSize:      DefaultCacheSize,
		confirmTimeout: DefaultConfirmTimeout,
	}
	for _, fn := range opts {
		fn(c)
	}
	mints, err := lru.New[solana.PublicKey, *solanago.Token](c.cacheSize)
	if err != nil {
		return nil, err
	}
	c.mints = mints
	return c, nil
}

func (c *Client) RPC() *rpc.Client {
	return c.rpcClient
}

// Mints returns the mints in order, fetching the ones not cached yet.
func (c *Client) Mints(ctx context.Context, mints ...solana.PublicKey) ([]*solanago.Token, error) {
	list := make([]*solanago.Token, len(mints))
	var missing []solana.PublicKey
	for i, mint := range mints {
		if token, ok := c.mints.Get(mint); ok {
			list[i] = token
			continue
		}
		missing = append(missing, mint)
	}
	if len(missing) == 0 {
		return list, nil
	}

	tokens, err := solanago.GetMultipleToken(ctx, c.rpcClient, missing...)
	if err != nil {
		return nil, err
	}
	fetched := make(map[solana.PublicKey]*solanago.Token, len(tokens))
	for i, token := range tokens {
		if token == nil {
			return nil, fmt.Errorf("%w: %s", ErrMintNotFound, missing[i])
		}
		fetched[missing[i]] = token
		c.mints.Add(missing[i], token)
	}
	for i, mint := range mints {
		if list[i] == nil {
			list[i] = fetched[mint]
		}
	}
	return list, nil
}
