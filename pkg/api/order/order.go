/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package order

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Order is a decoded "OrderStarted" event together with the fee data derived for it.
type Order struct {
	TxID string
	// Datatoken is the contract that emitted the event, i.e. the asset id the order targets.
	Datatoken          common.Address
	ServiceIndex       *big.Int
	Consumer           common.Address
	Payer              common.Address
	Amount             *big.Int
	MarketFeeCollector common.Address
	MarketFee          *big.Int
	ProviderFee        *big.Int
	Timestamp          int64
	// ValidUntil is the unix time after which the order can no longer be used; 0 means no deadline.
	ValidUntil int64
}

// Transfer is a decoded ERC20 "Transfer" event.
type Transfer struct {
	From     common.Address
	To       common.Address
	Value    *big.Int
	LogIndex uint
}

// ProviderFee is a decoded "ProviderFee" event. Only emitted by datatoken templates that charge a provider fee
// at order time; it carries the provider-signed validity deadline of the order.
type ProviderFee struct {
	ProviderFeeAddress common.Address
	ProviderFeeToken   common.Address
	ProviderFeeAmount  *big.Int
	ValidUntil         *big.Int
}
