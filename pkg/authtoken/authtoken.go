/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package authtoken issues and validates auth tokens. A valid auth token stands in for a request signature.
package authtoken

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	gojose "github.com/square/go-jose/v3"
	"github.com/square/go-jose/v3/jwt"

	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
)

var logger = logfields.New("provider-authtoken")

// Token failures.
var (
	ErrInvalidToken = errors.New("invalid auth token")
	ErrExpiredToken = errors.New("auth token has expired")
	ErrRevokedToken = errors.New("auth token has been revoked")
)

// RevocationStore persists revoked tokens.
type RevocationStore interface {
	Revoke(ctx context.Context, token, address string) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type addressClaims struct {
	Address string `json:"address"`
}

// Manager issues, validates and revokes auth tokens signed with a shared secret (HS256).
type Manager struct {
	secret      []byte
	revocations RevocationStore
	now         func() time.Time
}

// Option is a manager option.
type Option func(m *Manager)

// WithClock sets the clock used to check expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New returns a token manager.
func New(secret []byte, revocations RevocationStore, opts ...Option) (*Manager, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth token secret is required")
	}

	m := &Manager{secret: secret, revocations: revocations, now: time.Now}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Issue returns a token for address expiring at expiration.
func (m *Manager) Issue(address string, expiration time.Time) (string, error) {
	if !expiration.After(m.now()) {
		return "", errors.Errorf("expiration %d is in the past", expiration.Unix())
	}

	signer, err := gojose.NewSigner(gojose.SigningKey{Algorithm: gojose.HS256, Key: m.secret},
		(&gojose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", errors.Wrap(err, "create signer")
	}

	token, err := jwt.Signed(signer).
		Claims(jwt.Claims{Expiry: jwt.NewNumericDate(expiration)}).
		Claims(addressClaims{Address: address}).
		CompactSerialize()
	if err != nil {
		return "", errors.Wrap(err, "sign auth token")
	}

	logger.Debug("auth token issued", logfields.WithAddress(address), logfields.WithValidUntil(expiration.Unix()))

	return token, nil
}

// Validate returns the address of a valid, unrevoked token.
func (m *Manager) Validate(ctx context.Context, token string) (string, error) {
	address, err := m.parse(token)
	if err != nil {
		return "", err
	}

	revoked, err := m.revocations.IsRevoked(ctx, token)
	if err != nil {
		return "", errors.Wrap(err, "check revocation")
	}

	if revoked {
		return "", ErrRevokedToken
	}

	return address, nil
}

// Revoke revokes a token of address.
func (m *Manager) Revoke(ctx context.Context, token, address string) error {
	owner, err := m.parse(token)
	if err != nil && !errors.Is(err, ErrExpiredToken) {
		return err
	}

	if owner != "" && !strings.EqualFold(owner, address) {
		return errors.Wrapf(ErrInvalidToken, "token does not belong to %s", address)
	}

	if err := m.revocations.Revoke(ctx, token, address); err != nil {
		return errors.Wrap(err, "revoke auth token")
	}

	logger.Info("auth token revoked", logfields.WithAddress(address))

	return nil
}

// parse returns the address of token. An expired token yields its address with ErrExpiredToken.
func (m *Manager) parse(token string) (string, error) {
	parsed, err := jwt.ParseSigned(token)
	if err != nil {
		return "", errors.Wrap(ErrInvalidToken, err.Error())
	}

	var (
		std    jwt.Claims
		claims addressClaims
	)

	if err := parsed.Claims(m.secret, &std, &claims); err != nil {
		return "", errors.Wrap(ErrInvalidToken, err.Error())
	}

	if claims.Address == "" {
		return "", errors.Wrap(ErrInvalidToken, "missing address")
	}

	if err := std.ValidateWithLeeway(jwt.Expected{Time: m.now()}, 0); err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return claims.Address, ErrExpiredToken
		}

		return "", errors.Wrap(ErrInvalidToken, err.Error())
	}

	return claims.Address, nil
}
