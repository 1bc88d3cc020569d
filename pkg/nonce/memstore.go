/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package nonce

import (
	"context"
	"sync"
)

// MemStore is an in-memory nonce store.
type MemStore struct {
	mutex  sync.Mutex
	nonces map[string]string
}

// NewMemStore returns an empty in-memory nonce store.
func NewMemStore() *MemStore {
	return &MemStore{nonces: make(map[string]string)}
}

// Get returns the last accepted nonce of the address.
func (s *MemStore) Get(_ context.Context, address string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if n, ok := s.nonces[key(address)]; ok {
		return n, nil
	}

	return Initial, nil
}

// Advance stores nonce if it is greater than the stored one.
func (s *MemStore) Advance(_ context.Context, address, nonce string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, ok := s.nonces[key(address)]
	if !ok {
		current = Initial
	}

	if err := Greater(nonce, current); err != nil {
		return err
	}

	s.nonces[key(address)] = nonce

	return nil
}
