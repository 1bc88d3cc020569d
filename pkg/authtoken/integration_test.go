//go:build integration
// +build integration

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package authtoken

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/datatoken-provider-go/pkg/store"
)

func TestDBRevocationsIntegration(t *testing.T) {
	dsn := os.Getenv("PROVIDER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PROVIDER_TEST_POSTGRES_DSN not set")
	}

	db, err := store.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))

	s := NewDBRevocations(db)
	ctx := context.Background()
	token := uuid.NewString()

	revoked, err := s.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, token, address))
	require.NoError(t, s.Revoke(ctx, token, address))

	revoked, err = s.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.True(t, revoked)
}
