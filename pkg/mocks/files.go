/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	"sync"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
)

// MockFilesResolver mocks the files resolver for testing purposes. Services without files are not local.
type MockFilesResolver struct {
	sync.RWMutex
	urls map[string][]string
}

// NewMockFilesResolver creates a mock files resolver.
func NewMockFilesResolver() *MockFilesResolver {
	return &MockFilesResolver{urls: make(map[string][]string)}
}

// WithURLs sets the URLs of a service.
func (m *MockFilesResolver) WithURLs(did, serviceID string, urls ...string) *MockFilesResolver {
	m.Lock()
	defer m.Unlock()

	m.urls[did+"/"+serviceID] = urls

	return m
}

// URLs returns the URLs set with WithURLs.
func (m *MockFilesResolver) URLs(a *asset.Asset, service *asset.Service) []string {
	m.RLock()
	defer m.RUnlock()

	return m.urls[a.ID+"/"+service.ID]
}
