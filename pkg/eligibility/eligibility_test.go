/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package eligibility

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
)

const consumer = "0x9Bf750b5465a51689fA4235aAc1F37EB5BCD4D0b"

func newAsset() (*asset.Asset, *asset.Service) {
	service := &asset.Service{ID: "compute", Type: asset.ServiceTypeCompute}

	return &asset.Asset{ID: "did:op:1", Services: []*asset.Service{service}}, service
}

func TestPolicyEngine(t *testing.T) {
	ctx := context.Background()

	engine, err := NewPolicyEngine(ctx, "")
	require.NoError(t, err)

	t.Run("active asset without credentials", func(t *testing.T) {
		a, s := newAsset()
		require.NoError(t, engine.Check(ctx, a, s, consumer))
	})

	t.Run("unlisted asset", func(t *testing.T) {
		a, s := newAsset()
		a.NFT.State = asset.StateUnlisted
		require.NoError(t, engine.Check(ctx, a, s, consumer))
	})

	t.Run("revoked asset", func(t *testing.T) {
		a, s := newAsset()
		a.NFT.State = 3

		err := engine.Check(ctx, a, s, consumer)
		require.True(t, errors.Is(err, ErrNotConsumable))
		require.Contains(t, err.Error(), "asset is not in a consumable state")
	})

	t.Run("allow list", func(t *testing.T) {
		a, s := newAsset()
		a.Credentials = &asset.Credentials{
			Allow: []asset.CredentialRule{{Type: "address", Values: []string{"0x9bf750b5465a51689fa4235aac1f37eb5bcd4d0b"}}},
		}
		require.NoError(t, engine.Check(ctx, a, s, consumer))

		err := engine.Check(ctx, a, s, "0x0000000000000000000000000000000000000001")
		require.True(t, errors.Is(err, ErrNotConsumable))
		require.Contains(t, err.Error(), "consumer is not in the allow list")
	})

	t.Run("deny list", func(t *testing.T) {
		a, s := newAsset()
		a.Credentials = &asset.Credentials{
			Deny: []asset.CredentialRule{{Type: "address", Values: []string{consumer}}},
		}

		err := engine.Check(ctx, a, s, consumer)
		require.True(t, errors.Is(err, ErrNotConsumable))
		require.Contains(t, err.Error(), "consumer is in the deny list")
	})

	t.Run("other credential types are ignored", func(t *testing.T) {
		a, s := newAsset()
		a.Credentials = &asset.Credentials{
			Allow: []asset.CredentialRule{{Type: "email", Values: []string{"a@b.c"}}},
		}
		require.NoError(t, engine.Check(ctx, a, s, consumer))
	})
}

func TestPolicyEngineFromFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("custom policy", func(t *testing.T) {
		file := filepath.Join(dir, "deny.rego")
		require.NoError(t, os.WriteFile(file, []byte(`package provider.eligibility

result := {"allow": false, "reasons": ["closed"]}
`), 0o600))

		engine, err := NewPolicyEngine(ctx, file)
		require.NoError(t, err)

		a, s := newAsset()
		err = engine.Check(ctx, a, s, consumer)
		require.True(t, errors.Is(err, ErrNotConsumable))
		require.Contains(t, err.Error(), "closed")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewPolicyEngine(ctx, filepath.Join(dir, "missing.rego"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "read eligibility policy")
	})

	t.Run("invalid policy", func(t *testing.T) {
		file := filepath.Join(dir, "invalid.rego")
		require.NoError(t, os.WriteFile(file, []byte(`package provider.eligibility
result := {`), 0o600))

		_, err := NewPolicyEngine(ctx, file)
		require.Error(t, err)
		require.Contains(t, err.Error(), "compile eligibility policy")
	})
}

func TestRBACClient(t *testing.T) {
	ctx := context.Background()

	var received rbacRequest

	allowed := true
	status := http.StatusOK

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(allowed))
	}))
	defer srv.Close()

	client := NewRBACClient(srv.URL, nil)
	a, s := newAsset()

	t.Run("allowed", func(t *testing.T) {
		require.NoError(t, client.Check(ctx, a, s, consumer))
		require.Equal(t, "consume", received.EventType)
		require.Equal(t, consumer, received.Credentials.Value)
		require.Equal(t, "did:op:1", received.DID)
	})

	t.Run("denied", func(t *testing.T) {
		allowed = false
		defer func() { allowed = true }()

		err := client.Check(ctx, a, s, consumer)
		require.True(t, errors.Is(err, ErrNotConsumable))
	})

	t.Run("server error", func(t *testing.T) {
		status = http.StatusInternalServerError
		defer func() { status = http.StatusOK }()

		err := client.Check(ctx, a, s, consumer)
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrNotConsumable))
		require.Contains(t, err.Error(), "status 500")
	})
}

type checkerFunc func() error

func (f checkerFunc) Check(context.Context, *asset.Asset, *asset.Service, string) error {
	return f()
}

func TestChain(t *testing.T) {
	a, s := newAsset()

	var calls []string

	first := checkerFunc(func() error { calls = append(calls, "first"); return nil })
	second := checkerFunc(func() error { calls = append(calls, "second"); return ErrNotConsumable })
	third := checkerFunc(func() error { calls = append(calls, "third"); return nil })

	err := Chain{first, nil, second, third}.Check(context.Background(), a, s, consumer)
	require.True(t, errors.Is(err, ErrNotConsumable))
	require.Equal(t, []string{"first", "second"}, calls)

	require.NoError(t, Chain{}.Check(context.Background(), a, s, consumer))
}
