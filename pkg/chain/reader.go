/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package chain reads order transactions from an Ethereum compatible node.
package chain

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
)

var logger = logfields.New("provider-chain")

const (
	// DefaultReceiptTimeout bounds the wait for a transaction to be mined.
	DefaultReceiptTimeout = 120 * time.Second

	// DefaultPollInterval is the delay between receipt lookups of a pending transaction.
	DefaultPollInterval = 500 * time.Millisecond
)

// Client is the subset of the node API used by the reader. It is implemented by ethclient.Client.
type Client interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionSender(ctx context.Context, tx *types.Transaction, block common.Hash, index uint) (common.Address, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

type metricsProvider interface {
	ReceiptRetried()
	ChainCallTime(method string, value time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ReceiptRetried()                     {}
func (noopMetrics) ChainCallTime(string, time.Duration) {}

// Reader reads receipts, transactions and contract state.
type Reader struct {
	client             Client
	endpoint           string
	receiptTimeout     time.Duration
	pollInterval       time.Duration
	isConnectionClosed func(error) bool
	metrics            metricsProvider
}

// Option is a reader option.
type Option func(r *Reader)

// WithEndpoint sets the node endpoint. Errors report it redacted and strip its credentials from
// transport messages.
func WithEndpoint(endpoint string) Option {
	return func(r *Reader) {
		r.endpoint = endpoint
	}
}

// WithReceiptTimeout sets the maximum time to wait for a receipt.
func WithReceiptTimeout(timeout time.Duration) Option {
	return func(r *Reader) {
		r.receiptTimeout = timeout
	}
}

// WithPollInterval sets the delay between receipt lookups.
func WithPollInterval(interval time.Duration) Option {
	return func(r *Reader) {
		r.pollInterval = interval
	}
}

// WithConnectionClosedPredicate sets the function that classifies errors as a closed connection.
func WithConnectionClosedPredicate(fn func(error) bool) Option {
	return func(r *Reader) {
		r.isConnectionClosed = fn
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(m metricsProvider) Option {
	return func(r *Reader) {
		r.metrics = m
	}
}

// New returns a reader over client.
func New(client Client, opts ...Option) *Reader {
	r := &Reader{
		client:             client,
		endpoint:           "node",
		receiptTimeout:     DefaultReceiptTimeout,
		pollInterval:       DefaultPollInterval,
		isConnectionClosed: IsConnectionClosed,
		metrics:            noopMetrics{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Dial connects to the node at endpoint.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Reader, error) {
	c, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, newError("dial", endpoint, err)
	}

	return New(c, append([]Option{WithEndpoint(endpoint)}, opts...)...), nil
}

// ParseTxID parses a transaction id.
func ParseTxID(txID string) (common.Hash, error) {
	b, err := hexutil.Decode(strings.TrimSpace(txID))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, errors.Wrapf(ErrInvalidTxID, "%q", txID)
	}

	return common.BytesToHash(b), nil
}

// GetReceipt waits until the transaction is mined and returns its receipt. A lookup that fails because the
// connection was closed is retried exactly once.
func (r *Reader) GetReceipt(ctx context.Context, txID string) (*types.Receipt, error) {
	hash, err := ParseTxID(txID)
	if err != nil {
		return nil, err
	}

	receipt, err := r.waitForReceipt(ctx, hash)
	if err != nil && r.isConnectionClosed(err) {
		logger.Warn("connection closed while waiting for receipt; retrying once",
			logfields.WithTxID(txID), logfields.WithAttempt(2))

		r.metrics.ReceiptRetried()

		receipt, err = r.waitForReceipt(ctx, hash)
	}

	if err != nil {
		return nil, r.wrap("eth_getTransactionReceipt", err)
	}

	return receipt, nil
}

func (r *Reader) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, r.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		start := time.Now()
		receipt, err := r.client.TransactionReceipt(ctx, hash)
		r.metrics.ChainCallTime("eth_getTransactionReceipt", time.Since(start))

		switch {
		case err == nil:
			return receipt, nil
		case !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil:
			return nil, err
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ctx.Err()
			}

			return nil, errors.Wrapf(ErrReceiptTimeout, "%s after %s", hash.Hex(), r.receiptTimeout)
		case <-ticker.C:
		}
	}
}

// TransactionSender returns the sender of the mined transaction.
func (r *Reader) TransactionSender(ctx context.Context, receipt *types.Receipt) (common.Address, error) {
	start := time.Now()
	defer func() { r.metrics.ChainCallTime("eth_getTransactionByHash", time.Since(start)) }()

	tx, _, err := r.client.TransactionByHash(ctx, receipt.TxHash)
	if err != nil {
		return common.Address{}, r.wrap("eth_getTransactionByHash", err)
	}

	sender, err := r.client.TransactionSender(ctx, tx, receipt.BlockHash, receipt.TransactionIndex)
	if err != nil {
		return common.Address{}, r.wrap("transaction sender", err)
	}

	return sender, nil
}

// Minter returns the minter of a datatoken, the account that receives order payments.
func (r *Reader) Minter(ctx context.Context, datatoken common.Address) (common.Address, error) {
	data, err := datatokenABI.Pack("minter")
	if err != nil {
		return common.Address{}, errors.Wrap(err, "pack minter call")
	}

	start := time.Now()
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &datatoken, Data: data}, nil)
	r.metrics.ChainCallTime("eth_call", time.Since(start))

	if err != nil {
		return common.Address{}, r.wrap("eth_call minter", err)
	}

	values, err := datatokenABI.Unpack("minter", out)
	if err != nil || len(values) != 1 {
		return common.Address{}, errors.Errorf("datatoken %s returned an invalid minter", datatoken.Hex())
	}

	minter, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, errors.Errorf("datatoken %s returned an invalid minter", datatoken.Hex())
	}

	return minter, nil
}

// ChainID returns the chain id of the node.
func (r *Reader) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := r.client.ChainID(ctx)
	if err != nil {
		return nil, r.wrap("eth_chainId", err)
	}

	return id, nil
}

func (r *Reader) wrap(op string, err error) error {
	return newError(op, r.endpoint, err)
}
