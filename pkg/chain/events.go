/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/order"
)

// DatatokenABI is the subset of the datatoken contract interface read by the provider.
const DatatokenABI = `[
  {"type":"event","name":"OrderStarted","anonymous":false,"inputs":[
    {"name":"consumer","type":"address","indexed":true},
    {"name":"payer","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"serviceId","type":"uint256","indexed":false},
    {"name":"timestamp","type":"uint256","indexed":false},
    {"name":"mrktFeeCollector","type":"address","indexed":true},
    {"name":"marketFee","type":"uint256","indexed":false}]},
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"value","type":"uint256","indexed":false}]},
  {"type":"event","name":"ProviderFee","anonymous":false,"inputs":[
    {"name":"providerFeeAddress","type":"address","indexed":true},
    {"name":"providerFeeToken","type":"address","indexed":true},
    {"name":"providerFeeAmount","type":"uint256","indexed":false},
    {"name":"providerData","type":"bytes","indexed":false},
    {"name":"v","type":"uint8","indexed":false},
    {"name":"r","type":"bytes32","indexed":false},
    {"name":"s","type":"bytes32","indexed":false},
    {"name":"validUntil","type":"uint256","indexed":false}]},
  {"type":"function","name":"minter","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"address"}]}
]`

// Event names.
const (
	EventOrderStarted = "OrderStarted"
	EventTransfer     = "Transfer"
	EventProviderFee  = "ProviderFee"
)

var datatokenABI = mustParseABI(DatatokenABI)

func mustParseABI(def string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}

	return a
}

// ABI returns the parsed datatoken ABI.
func ABI() abi.ABI {
	return datatokenABI
}

// DecodeOrderStarted returns every "OrderStarted" event in the receipt. Logs that do not decode are discarded.
func DecodeOrderStarted(receipt *types.Receipt) []*order.Order {
	ev := datatokenABI.Events[EventOrderStarted]

	var orders []*order.Order

	for _, l := range matching(receipt, ev, 4) {
		values, err := ev.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil || len(values) != 4 {
			logger.Debugf("discarding undecodable %s log at index %d: %v", ev.Name, l.Index, err)

			continue
		}

		amount, ok1 := values[0].(*big.Int)
		serviceIndex, ok2 := values[1].(*big.Int)
		timestamp, ok3 := values[2].(*big.Int)
		marketFee, ok4 := values[3].(*big.Int)

		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}

		orders = append(orders, &order.Order{
			TxID:               receipt.TxHash.Hex(),
			Datatoken:          l.Address,
			Consumer:           topicAddress(l.Topics[1]),
			Payer:              topicAddress(l.Topics[2]),
			MarketFeeCollector: topicAddress(l.Topics[3]),
			Amount:             amount,
			ServiceIndex:       serviceIndex,
			Timestamp:          timestamp.Int64(),
			MarketFee:          marketFee,
		})
	}

	return orders
}

// DecodeTransfers returns every ERC20 "Transfer" event in the receipt. ERC721 transfers, which index the
// token id, are discarded.
func DecodeTransfers(receipt *types.Receipt) []*order.Transfer {
	ev := datatokenABI.Events[EventTransfer]

	var transfers []*order.Transfer

	for _, l := range matching(receipt, ev, 3) {
		values, err := ev.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil || len(values) != 1 {
			continue
		}

		value, ok := values[0].(*big.Int)
		if !ok {
			continue
		}

		transfers = append(transfers, &order.Transfer{
			From:     topicAddress(l.Topics[1]),
			To:       topicAddress(l.Topics[2]),
			Value:    value,
			LogIndex: l.Index,
		})
	}

	return transfers
}

// DecodeProviderFees returns every "ProviderFee" event in the receipt.
func DecodeProviderFees(receipt *types.Receipt) []*order.ProviderFee {
	ev := datatokenABI.Events[EventProviderFee]

	var fees []*order.ProviderFee

	for _, l := range matching(receipt, ev, 3) {
		values, err := ev.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil || len(values) != 6 {
			continue
		}

		amount, ok1 := values[0].(*big.Int)
		validUntil, ok2 := values[5].(*big.Int)

		if !ok1 || !ok2 {
			continue
		}

		fees = append(fees, &order.ProviderFee{
			ProviderFeeAddress: topicAddress(l.Topics[1]),
			ProviderFeeToken:   topicAddress(l.Topics[2]),
			ProviderFeeAmount:  amount,
			ValidUntil:         validUntil,
		})
	}

	return fees
}

func matching(receipt *types.Receipt, ev abi.Event, topics int) []*types.Log {
	if receipt == nil {
		return nil
	}

	var logs []*types.Log

	for _, l := range receipt.Logs {
		if l == nil || len(l.Topics) != topics || l.Topics[0] != ev.ID {
			continue
		}

		logs = append(logs, l)
	}

	return logs
}

func topicAddress(h common.Hash) common.Address {
	return common.BytesToAddress(h.Bytes())
}

// EncodeOrderStarted encodes o as an "OrderStarted" log emitted by o.Datatoken.
func EncodeOrderStarted(o *order.Order) (*types.Log, error) {
	ev := datatokenABI.Events[EventOrderStarted]

	data, err := ev.Inputs.NonIndexed().Pack(o.Amount, o.ServiceIndex, big.NewInt(o.Timestamp), o.MarketFee)
	if err != nil {
		return nil, err
	}

	return &types.Log{
		Address: o.Datatoken,
		Topics: []common.Hash{
			ev.ID,
			common.BytesToHash(o.Consumer.Bytes()),
			common.BytesToHash(o.Payer.Bytes()),
			common.BytesToHash(o.MarketFeeCollector.Bytes()),
		},
		Data: data,
	}, nil
}

// EncodeTransfer encodes t as a "Transfer" log emitted by token.
func EncodeTransfer(token common.Address, t *order.Transfer) (*types.Log, error) {
	ev := datatokenABI.Events[EventTransfer]

	data, err := ev.Inputs.NonIndexed().Pack(t.Value)
	if err != nil {
		return nil, err
	}

	return &types.Log{
		Address: token,
		Topics: []common.Hash{
			ev.ID,
			common.BytesToHash(t.From.Bytes()),
			common.BytesToHash(t.To.Bytes()),
		},
		Data:  data,
		Index: t.LogIndex,
	}, nil
}

// EncodeProviderFee encodes f as a "ProviderFee" log emitted by token.
func EncodeProviderFee(token common.Address, f *order.ProviderFee) (*types.Log, error) {
	ev := datatokenABI.Events[EventProviderFee]

	data, err := ev.Inputs.NonIndexed().Pack(f.ProviderFeeAmount, []byte{}, uint8(27), [32]byte{}, [32]byte{},
		f.ValidUntil)
	if err != nil {
		return nil, err
	}

	return &types.Log{
		Address: token,
		Topics: []common.Hash{
			ev.ID,
			common.BytesToHash(f.ProviderFeeAddress.Bytes()),
			common.BytesToHash(f.ProviderFeeToken.Bytes()),
		},
		Data: data,
	}, nil
}
