/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package nonce

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
	"github.com/trustbloc/datatoken-provider-go/pkg/store"
)

// DBStore keeps nonces in the user_nonce table.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore returns a nonce store backed by db.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// Get returns the last accepted nonce of the address.
func (s *DBStore) Get(ctx context.Context, address string) (string, error) {
	if s.db == nil {
		return "", store.ErrUnavailable
	}

	var rows []store.UserNonce

	err := s.db.WithContext(ctx).Where("address = ?", key(address)).Limit(1).Find(&rows).Error
	if err != nil {
		return "", store.Wrap(err, "query nonce")
	}

	if len(rows) == 0 {
		return Initial, nil
	}

	return rows[0].Nonce, nil
}

// Advance locks the row of the address, compares and stores the new nonce in one transaction.
func (s *DBStore) Advance(ctx context.Context, address, nonce string) error {
	if s.db == nil {
		return store.ErrUnavailable
	}

	if _, err := Parse(nonce); err != nil {
		return err
	}

	addr := key(address)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&store.UserNonce{Address: addr, Nonce: Initial, UpdatedAt: time.Now().UTC()}).Error
		if err != nil {
			return store.Wrap(err, "create nonce row")
		}

		row := &store.UserNonce{}

		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("address = ?", addr).
			First(row).Error
		if err != nil {
			return store.Wrap(err, "lock nonce row")
		}

		if err := Greater(nonce, row.Nonce); err != nil {
			return err
		}

		err = tx.Model(&store.UserNonce{}).
			Where("address = ?", addr).
			Updates(map[string]interface{}{"nonce": nonce, "updated_at": time.Now().UTC()}).Error
		if err != nil {
			return store.Wrap(err, "update nonce")
		}

		logger.Debug("nonce advanced", logfields.WithAddress(addr), logfields.WithNonce(nonce))

		return nil
	})
	if err != nil && !errors.Is(err, ErrStaleNonce) && !errors.Is(err, ErrInvalidNonce) {
		return store.Wrap(err, "advance nonce")
	}

	return err
}
