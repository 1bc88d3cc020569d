/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package authtoken

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/datatoken-provider-go/pkg/store"
)

const address = "0x00000000000000000000000000000000000000C0"

func TestManager(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }

	m, err := New([]byte("secret"), NewMemRevocations(), WithClock(clock))
	require.NoError(t, err)

	token, err := m.Issue(address, now.Add(time.Hour))
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		addr, err := m.Validate(ctx, token)
		require.NoError(t, err)
		require.Equal(t, address, addr)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := New([]byte("other"), NewMemRevocations(), WithClock(clock))
		require.NoError(t, err)

		_, err = other.Validate(ctx, token)
		require.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := m.Validate(ctx, "abc")
		require.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("expired", func(t *testing.T) {
		later, err := New([]byte("secret"), NewMemRevocations(),
			WithClock(func() time.Time { return now.Add(2 * time.Hour) }))
		require.NoError(t, err)

		_, err = later.Validate(ctx, token)
		require.True(t, errors.Is(err, ErrExpiredToken))
	})

	t.Run("expiration in the past", func(t *testing.T) {
		_, err := m.Issue(address, now.Add(-time.Second))
		require.Error(t, err)
	})

	t.Run("revoke by another address", func(t *testing.T) {
		err := m.Revoke(ctx, token, "0x0000000000000000000000000000000000000001")
		require.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("revoked", func(t *testing.T) {
		require.NoError(t, m.Revoke(ctx, token, "0x00000000000000000000000000000000000000c0"))

		_, err := m.Validate(ctx, token)
		require.True(t, errors.Is(err, ErrRevokedToken))
	})
}

func TestNew(t *testing.T) {
	_, err := New(nil, NewMemRevocations())
	require.Error(t, err)
}

func TestDBRevocationsUnavailable(t *testing.T) {
	s := NewDBRevocations(nil)

	require.True(t, errors.Is(s.Revoke(context.Background(), "t", address), store.ErrUnavailable))

	_, err := s.IsRevoked(context.Background(), "t")
	require.True(t, errors.Is(err, store.ErrUnavailable))

	t.Run("database down", func(t *testing.T) {
		db, err := store.Open("host=127.0.0.1 port=1 user=provider dbname=provider sslmode=disable connect_timeout=1",
			store.WithLazyConnect())
		require.NoError(t, err)

		s := NewDBRevocations(db)

		require.ErrorIs(t, s.Revoke(context.Background(), "t", address), store.ErrUnavailable)

		_, err = s.IsRevoked(context.Background(), "t")
		require.ErrorIs(t, err, store.ErrUnavailable)
	})
}
