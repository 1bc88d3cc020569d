/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	"context"
	"sync"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
)

// MockEligibilityChecker mocks the eligibility checker for testing purposes.
type MockEligibilityChecker struct {
	sync.RWMutex
	calls int
	Err   error
}

// Check returns Err.
func (m *MockEligibilityChecker) Check(context.Context, *asset.Asset, *asset.Service, string) error {
	m.Lock()
	defer m.Unlock()

	m.calls++

	return m.Err
}

// Calls returns the number of checks.
func (m *MockEligibilityChecker) Calls() int {
	m.RLock()
	defer m.RUnlock()

	return m.calls
}
