/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/datatoken-provider-go/pkg/config"
	"github.com/trustbloc/datatoken-provider-go/pkg/eligibility"
	"github.com/trustbloc/datatoken-provider-go/pkg/nonce"
)

func TestNewNonceStore(t *testing.T) {
	cfg := config.Default()

	s, err := newNonceStore(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &nonce.MemStore{}, s)

	cfg.Nonce.Backend = config.NonceBackendPostgres

	s, err = newNonceStore(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &nonce.DBStore{}, s)
}

func TestNewEligibility(t *testing.T) {
	cfg := config.Default()

	checkers, err := newEligibility(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, checkers, 1)

	cfg.Eligibility.RBACServerURL = "http://rbac"

	checkers, err = newEligibility(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, checkers, 2)
	require.IsType(t, &eligibility.RBACClient{}, checkers[1])

	cfg.Eligibility.PolicyFile = "/nonexistent/policy.rego"

	_, err = newEligibility(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewProviderInvalidKey(t *testing.T) {
	cfg := config.Default()
	cfg.Chain.RPCURL = "http://127.0.0.1:1"
	cfg.Provider.PrivateKey = "not-a-key"

	_, err := newProvider(context.Background(), cfg)
	require.Error(t, err)
}
