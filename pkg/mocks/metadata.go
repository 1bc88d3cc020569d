/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
	"github.com/trustbloc/datatoken-provider-go/pkg/metadata"
)

// MockMetadataStore mocks the metadata cache for testing purposes.
type MockMetadataStore struct {
	sync.RWMutex
	assets map[string]*asset.Asset
	calls  map[string]int
	Err    error
}

// NewMockMetadataStore creates an empty mock metadata store.
func NewMockMetadataStore() *MockMetadataStore {
	return &MockMetadataStore{
		assets: make(map[string]*asset.Asset),
		calls:  make(map[string]int),
	}
}

// WithAsset adds an asset document.
func (m *MockMetadataStore) WithAsset(a *asset.Asset) *MockMetadataStore {
	m.Lock()
	defer m.Unlock()

	a.IndexServices()
	m.assets[a.ID] = a

	return m
}

// Resolve returns the asset added with WithAsset.
func (m *MockMetadataStore) Resolve(_ context.Context, did string) (*asset.Asset, error) {
	m.Lock()
	defer m.Unlock()

	m.calls[did]++

	if m.Err != nil {
		return nil, m.Err
	}

	a, ok := m.assets[did]
	if !ok {
		return nil, fmt.Errorf("%s: %w", did, metadata.ErrNotFound)
	}

	return a, nil
}

// URL returns the URL of the mock store.
func (m *MockMetadataStore) URL() string {
	return "http://aquarius.mock"
}

// Calls returns the number of times did was resolved.
func (m *MockMetadataStore) Calls(did string) int {
	m.RLock()
	defer m.RUnlock()

	return m.calls[did]
}
