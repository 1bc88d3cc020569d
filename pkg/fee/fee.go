/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package fee implements the fee arithmetic applied to datatoken orders. All values are base units
// (18 decimals) held in big integers.
package fee

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// Decimals of every datatoken.
const Decimals = 18

// Tolerance is the absolute slack, in base units, allowed when comparing paid amounts to expected ones.
const Tolerance = 5

var (
	// One is one whole token in base units.
	One = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

	// ProviderFeePerToken is the fee retained by the community fee collector (0.1%).
	ProviderFeePerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil)

	// MaxMarketFeePerToken is the largest market fee a marketplace may charge (0.1%).
	MaxMarketFeePerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil)
)

// Calculate returns amount*perToken/10^18, truncated.
func Calculate(amount, perToken *big.Int) *big.Int {
	v := new(big.Int).Mul(amount, perToken)

	return v.Quo(v, One)
}

// ProviderFee returns the provider fee owed on amount.
func ProviderFee(amount *big.Int) *big.Int {
	return Calculate(amount, ProviderFeePerToken)
}

// MaxMarketFee returns the largest acceptable market fee on amount.
func MaxMarketFee(amount *big.Int) *big.Int {
	return Calculate(amount, MaxMarketFeePerToken)
}

// WithinMarketFeeLimit returns true if marketFee <= MaxMarketFee(amount) + Tolerance.
func WithinMarketFeeLimit(amount, marketFee *big.Int) bool {
	limit := new(big.Int).Add(MaxMarketFee(amount), big.NewInt(Tolerance))

	return marketFee.Cmp(limit) <= 0
}

// TargetAmount is the amount the destination of an order must receive: amount minus provider fee.
func TargetAmount(amount *big.Int) *big.Int {
	return new(big.Int).Sub(amount, ProviderFee(amount))
}

// Covers returns true if total >= target - Tolerance.
func Covers(total, target *big.Int) bool {
	return total.Cmp(new(big.Int).Sub(target, big.NewInt(Tolerance))) >= 0
}

// ToBaseUnits converts a decimal token amount (e.g. "1", "0.5") to base units. An empty amount is one token.
func ToBaseUnits(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return new(big.Int).Set(One), nil
	}

	r, ok := new(big.Rat).SetString(amount)
	if !ok {
		return nil, errors.Errorf("invalid token amount: %s", amount)
	}

	if r.Sign() < 0 {
		return nil, errors.Errorf("negative token amount: %s", amount)
	}

	r.Mul(r, new(big.Rat).SetInt(One))

	if !r.IsInt() {
		return nil, errors.Errorf("token amount exceeds %d decimals: %s", Decimals, amount)
	}

	return new(big.Int).Set(r.Num()), nil
}
