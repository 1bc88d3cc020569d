/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/order"
	"github.com/trustbloc/datatoken-provider-go/pkg/chain"
)

// OrderTx describes the content of a mined order transaction.
type OrderTx struct {
	TxID        string
	Sender      common.Address
	Failed      bool
	Orders      []*order.Order
	Transfers   []*order.Transfer
	ProviderFee *order.ProviderFee
}

// Receipt encodes the transaction as a receipt with logs.
func (tx *OrderTx) Receipt() (*types.Receipt, error) {
	r := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash(tx.TxID),
	}

	if tx.Failed {
		r.Status = types.ReceiptStatusFailed
	}

	var token common.Address

	for _, o := range tx.Orders {
		l, err := chain.EncodeOrderStarted(o)
		if err != nil {
			return nil, fmt.Errorf("encode order: %w", err)
		}

		token = o.Datatoken
		r.Logs = append(r.Logs, l)
	}

	for _, t := range tx.Transfers {
		l, err := chain.EncodeTransfer(token, t)
		if err != nil {
			return nil, fmt.Errorf("encode transfer: %w", err)
		}

		r.Logs = append(r.Logs, l)
	}

	if tx.ProviderFee != nil {
		l, err := chain.EncodeProviderFee(token, tx.ProviderFee)
		if err != nil {
			return nil, fmt.Errorf("encode provider fee: %w", err)
		}

		r.Logs = append(r.Logs, l)
	}

	for i, l := range r.Logs {
		l.Index = uint(i)
		l.TxHash = r.TxHash
	}

	return r, nil
}

// MockChainReader mocks the chain reader for testing purposes.
type MockChainReader struct {
	sync.RWMutex
	receipts map[string]*types.Receipt
	senders  map[common.Hash]common.Address
	minters  map[common.Address]common.Address
	calls    int

	Err       error
	SenderErr error
	MinterErr error
}

// NewMockChainReader creates a mock chain reader.
func NewMockChainReader() *MockChainReader {
	return &MockChainReader{
		receipts: make(map[string]*types.Receipt),
		senders:  make(map[common.Hash]common.Address),
		minters:  make(map[common.Address]common.Address),
	}
}

// WithTx adds a mined transaction.
func (m *MockChainReader) WithTx(tx *OrderTx) *MockChainReader {
	r, err := tx.Receipt()
	if err != nil {
		panic(err)
	}

	m.Lock()
	defer m.Unlock()

	m.receipts[strings.ToLower(tx.TxID)] = r
	m.senders[r.TxHash] = tx.Sender

	return m
}

// WithMinter sets the minter of a datatoken.
func (m *MockChainReader) WithMinter(datatoken, minter common.Address) *MockChainReader {
	m.Lock()
	defer m.Unlock()

	m.minters[datatoken] = minter

	return m
}

// GetReceipt returns the receipt of a transaction added with WithTx.
func (m *MockChainReader) GetReceipt(_ context.Context, txID string) (*types.Receipt, error) {
	m.Lock()
	defer m.Unlock()

	m.calls++

	if m.Err != nil {
		return nil, m.Err
	}

	r, ok := m.receipts[strings.ToLower(txID)]
	if !ok {
		return nil, &chain.Error{Op: "eth_getTransactionReceipt", Endpoint: "mock", Err: fmt.Errorf("not found")}
	}

	return r, nil
}

// TransactionSender returns the sender of a transaction added with WithTx.
func (m *MockChainReader) TransactionSender(_ context.Context, receipt *types.Receipt) (common.Address, error) {
	m.RLock()
	defer m.RUnlock()

	if m.SenderErr != nil {
		return common.Address{}, m.SenderErr
	}

	return m.senders[receipt.TxHash], nil
}

// Minter returns the minter set with WithMinter.
func (m *MockChainReader) Minter(_ context.Context, datatoken common.Address) (common.Address, error) {
	m.RLock()
	defer m.RUnlock()

	if m.MinterErr != nil {
		return common.Address{}, m.MinterErr
	}

	minter, ok := m.minters[datatoken]
	if !ok {
		return common.Address{}, fmt.Errorf("no minter for %s", datatoken.Hex())
	}

	return minter, nil
}

// ReceiptCalls returns the number of receipt lookups.
func (m *MockChainReader) ReceiptCalls() int {
	m.RLock()
	defer m.RUnlock()

	return m.calls
}
