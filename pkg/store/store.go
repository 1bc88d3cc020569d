/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package store holds the relational schema shared by the ledger, nonce and auth token stores.
package store

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/trustbloc/datatoken-provider-go/internal/log"
)

var logger = log.New("provider-store")

// ErrUnavailable is returned by repositories created without a database.
var ErrUnavailable = errors.New("database not available")

// ConsumptionRecord records that an order transaction was consumed for a service of an asset.
type ConsumptionRecord struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	TxID      string    `gorm:"column:tx_id;uniqueIndex;not null"`
	DID       string    `gorm:"column:did;index;not null"`
	ServiceID string    `gorm:"column:service_id;not null"`
	Consumer  string    `gorm:"not null"`
	Datatoken string    `gorm:"not null"`
	UseCount  int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName is the name of the consumption table.
func (ConsumptionRecord) TableName() string {
	return "consumption_records"
}

// UserNonce is the last nonce accepted for an address.
type UserNonce struct {
	Address   string    `gorm:"primaryKey"`
	Nonce     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName is the name of the nonce table.
func (UserNonce) TableName() string {
	return "user_nonce"
}

// RevokedToken is an auth token that must no longer be accepted.
type RevokedToken struct {
	Token     string    `gorm:"primaryKey"`
	Address   string    `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName is the name of the revoked token table.
func (RevokedToken) TableName() string {
	return "revoked_tokens"
}

// Models returns all models of the schema.
func Models() []interface{} {
	return []interface{}{&ConsumptionRecord{}, &UserNonce{}, &RevokedToken{}}
}

// Option is an Open option.
type Option func(cfg *gorm.Config)

// WithLazyConnect skips the connection check on Open; the first query connects.
func WithLazyConnect() Option {
	return func(cfg *gorm.Config) {
		cfg.DisableAutomaticPing = true
	}
}

// Open connects to postgres.
func Open(dsn string, opts ...Option) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN is required")
	}

	cfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}

	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return ErrUnavailable
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return errors.Wrap(err, "migrate schema")
	}

	logger.Infof("schema migrated: %d tables", len(Models()))

	return nil
}
