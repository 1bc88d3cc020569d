/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package nonce keeps the per-address request counters that prevent signed requests from being replayed.
package nonce

import (
	"context"
	"math/big"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/trustbloc/datatoken-provider-go/internal/log"
)

var logger = log.New("provider-nonce")

var (
	// ErrStaleNonce is returned when a nonce is not strictly greater than the stored one.
	ErrStaleNonce = errors.New("nonce is not greater than the last used nonce")

	// ErrInvalidNonce is returned for nonces that are not non-negative decimal numbers.
	ErrInvalidNonce = errors.New("invalid nonce")
)

// Initial is the nonce of an address that never made a request.
const Initial = "0"

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// scale is the number of fractional digits kept when comparing nonces as integers.
const scale = 18

// Store persists the last accepted nonce of every address.
type Store interface {
	// Get returns the last accepted nonce of the address, or Initial.
	Get(ctx context.Context, address string) (string, error)
	// Advance atomically replaces the stored nonce with nonce if it is strictly greater,
	// otherwise it fails with ErrStaleNonce.
	Advance(ctx context.Context, address, nonce string) error
}

// Parse parses a non-negative decimal nonce such as "17" or "1654848454122.9".
func Parse(nonce string) (*big.Rat, error) {
	trimmed := strings.TrimSpace(nonce)
	if !decimalPattern.MatchString(trimmed) {
		return nil, errors.Wrapf(ErrInvalidNonce, "%q", nonce)
	}

	r, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidNonce, "%q", nonce)
	}

	return r, nil
}

// Greater returns nil if nonce > current and ErrStaleNonce otherwise.
func Greater(nonce, current string) error {
	n, err := Parse(nonce)
	if err != nil {
		return err
	}

	c, err := Parse(current)
	if err != nil {
		return errors.Wrap(err, "stored nonce")
	}

	if n.Cmp(c) <= 0 {
		return errors.Wrapf(ErrStaleNonce, "got %s, last used %s", nonce, current)
	}

	return nil
}

// scaled returns the nonce multiplied by 10^scale and truncated, as a decimal string without leading zeros.
func scaled(nonce string) (string, error) {
	r, err := Parse(nonce)
	if err != nil {
		return "", err
	}

	s := new(big.Rat).Mul(r, new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(scale), nil)))

	return new(big.Int).Quo(s.Num(), s.Denom()).String(), nil
}

// key normalizes an address so checksummed and lowercase forms share a counter.
func key(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
