//go:build integration
// +build integration

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package nonce

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/datatoken-provider-go/pkg/store"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	stores := map[string]Store{}

	if dsn := os.Getenv("PROVIDER_TEST_POSTGRES_DSN"); dsn != "" {
		db, err := store.Open(dsn)
		require.NoError(t, err)
		require.NoError(t, store.Migrate(db))

		stores["postgres"] = NewDBStore(db)
	}

	if addr := os.Getenv("PROVIDER_TEST_REDIS_ADDR"); addr != "" {
		c, err := NewRedisClient(addr, "", 0)
		require.NoError(t, err)

		t.Cleanup(func() { require.NoError(t, c.Close()) })

		stores["redis"] = NewRedisStore(c)
	}

	if len(stores) == 0 {
		t.Skip("no test backends configured")
	}

	return stores
}

func TestStoresIntegration(t *testing.T) {
	ctx := context.Background()

	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			addr := "0x" + uuid.NewString()

			n, err := s.Get(ctx, addr)
			require.NoError(t, err)
			require.Equal(t, Initial, n)

			require.ErrorIs(t, s.Advance(ctx, addr, Initial), ErrStaleNonce)
			require.NoError(t, s.Advance(ctx, addr, "10"))
			require.ErrorIs(t, s.Advance(ctx, addr, "10"), ErrStaleNonce)
			require.ErrorIs(t, s.Advance(ctx, addr, "9.99"), ErrStaleNonce)
			require.NoError(t, s.Advance(ctx, addr, "100"))

			n, err = s.Get(ctx, addr)
			require.NoError(t, err)
			require.Equal(t, "100", n)
		})
	}
}
