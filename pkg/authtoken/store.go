/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package authtoken

import (
	"context"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trustbloc/datatoken-provider-go/pkg/store"
)

// MemRevocations is an in-memory revocation store.
type MemRevocations struct {
	mutex   sync.RWMutex
	revoked map[string]string
}

// NewMemRevocations returns an empty revocation store.
func NewMemRevocations() *MemRevocations {
	return &MemRevocations{revoked: make(map[string]string)}
}

// Revoke revokes token.
func (s *MemRevocations) Revoke(_ context.Context, token, address string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.revoked[token] = address

	return nil
}

// IsRevoked returns true if token was revoked.
func (s *MemRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, ok := s.revoked[token]

	return ok, nil
}

// DBRevocations stores revoked tokens in the revoked_tokens table.
type DBRevocations struct {
	db *gorm.DB
}

// NewDBRevocations returns a revocation store backed by db.
func NewDBRevocations(db *gorm.DB) *DBRevocations {
	return &DBRevocations{db: db}
}

// Revoke revokes token. Revoking a token twice is not an error.
func (s *DBRevocations) Revoke(ctx context.Context, token, address string) error {
	if s.db == nil {
		return store.ErrUnavailable
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&store.RevokedToken{Token: token, Address: address}).Error
	if err != nil {
		return store.Wrap(err, "insert revoked token")
	}

	return nil
}

// IsRevoked returns true if token was revoked.
func (s *DBRevocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	if s.db == nil {
		return false, store.ErrUnavailable
	}

	var count int64

	err := s.db.WithContext(ctx).Model(&store.RevokedToken{}).Where("token = ?", token).Count(&count).Error
	if err != nil {
		return false, store.Wrap(err, "query revoked token")
	}

	return count > 0, nil
}
