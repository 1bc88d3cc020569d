/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
	"github.com/trustbloc/datatoken-provider-go/pkg/store"
)

// DBLedger keeps bindings in the consumption_records table. The unique index on tx_id serializes
// concurrent bindings of the same transaction.
type DBLedger struct {
	db      *gorm.DB
	metrics metricsProvider
}

// NewDBLedger returns a ledger backed by db.
func NewDBLedger(db *gorm.DB, opts ...Option) *DBLedger {
	return &DBLedger{db: db, metrics: resolve(opts).metrics}
}

// RecordUse binds txID to (did, serviceID) adding useCount uses.
func (l *DBLedger) RecordUse(ctx context.Context, did, serviceID, txID, consumer, datatoken string,
	useCount int64) error {
	_, err := l.upsert(ctx, did, serviceID, txID, consumer, datatoken, useCount)

	return err
}

// RejectIfReusedElsewhere fails with ErrTransferAlreadyUsed if txID is bound to another asset service.
func (l *DBLedger) RejectIfReusedElsewhere(ctx context.Context, did, serviceID, txID, _, _ string) error {
	if l.db == nil {
		return store.ErrUnavailable
	}

	var rows []store.ConsumptionRecord

	err := l.db.WithContext(ctx).Where("tx_id = ?", normalizeTxID(txID)).Limit(1).Find(&rows).Error
	if err != nil {
		return store.Wrap(err, "query consumption record")
	}

	if len(rows) == 0 || (rows[0].DID == did && rows[0].ServiceID == serviceID) {
		return nil
	}

	l.metrics.TransferReplayed()

	return alreadyUsed(rows[0].DID, rows[0].ServiceID, did, serviceID, txID)
}

// Consume checks and records one use of txID for (did, serviceID) in one transaction.
func (l *DBLedger) Consume(ctx context.Context, did, serviceID, txID, consumer, datatoken string) (*Record, error) {
	return l.upsert(ctx, did, serviceID, txID, consumer, datatoken, 1)
}

// upsert inserts the binding, or increments the use count of an existing binding to the same asset service.
// A binding to another asset service matches no row and is rejected.
func (l *DBLedger) upsert(ctx context.Context, did, serviceID, txID, consumer, datatoken string,
	useCount int64) (*Record, error) {
	if l.db == nil {
		return nil, store.ErrUnavailable
	}

	key := normalizeTxID(txID)
	now := time.Now().UTC()

	var row store.ConsumptionRecord

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tx_id"}}, DoNothing: true}).
			Create(&store.ConsumptionRecord{
				TxID:      key,
				DID:       did,
				ServiceID: serviceID,
				Consumer:  consumer,
				Datatoken: datatoken,
				UseCount:  useCount,
				CreatedAt: now,
				UpdatedAt: now,
			})
		if res.Error != nil {
			return store.Wrap(res.Error, "insert consumption record")
		}

		if res.RowsAffected == 0 {
			res = tx.Model(&store.ConsumptionRecord{}).
				Where("tx_id = ? AND did = ? AND service_id = ?", key, did, serviceID).
				Updates(map[string]interface{}{
					"use_count":  gorm.Expr("use_count + ?", useCount),
					"updated_at": now,
				})
			if res.Error != nil {
				return store.Wrap(res.Error, "update consumption record")
			}

			if res.RowsAffected == 0 {
				return ErrTransferAlreadyUsed
			}
		}

		return store.Wrap(tx.Where("tx_id = ?", key).First(&row).Error, "read consumption record")
	})

	if errors.Is(err, ErrTransferAlreadyUsed) {
		l.metrics.TransferReplayed()

		var bound store.ConsumptionRecord
		if e := l.db.WithContext(ctx).Where("tx_id = ?", key).First(&bound).Error; e == nil {
			return nil, alreadyUsed(bound.DID, bound.ServiceID, did, serviceID, txID)
		}

		return nil, err
	}

	if err != nil {
		return nil, store.Wrap(err, "consume transaction")
	}

	logger.Debug("use recorded", logfields.WithTxID(key), logfields.WithDID(did), logfields.WithServiceID(serviceID),
		logfields.WithUseCount(row.UseCount))

	return &Record{
		DID:       row.DID,
		ServiceID: row.ServiceID,
		TxID:      row.TxID,
		Consumer:  row.Consumer,
		Datatoken: row.Datatoken,
		UseCount:  row.UseCount,
	}, nil
}
