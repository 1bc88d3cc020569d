//go:build integration
// +build integration

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/datatoken-provider-go/pkg/store"
)

func TestDBLedgerIntegration(t *testing.T) {
	dsn := os.Getenv("PROVIDER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PROVIDER_TEST_POSTGRES_DSN not set")
	}

	db, err := store.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))

	ctx := context.Background()
	l := NewDBLedger(db)

	t.Run("replay", func(t *testing.T) {
		tx := "0x" + uuid.NewString()

		r, err := l.Consume(ctx, did, serviceID, tx, consumer, datatoken)
		require.NoError(t, err)
		require.Equal(t, int64(1), r.UseCount)

		r, err = l.Consume(ctx, did, serviceID, tx, consumer, datatoken)
		require.NoError(t, err)
		require.Equal(t, int64(2), r.UseCount)

		_, err = l.Consume(ctx, did2, serviceID, tx, consumer, datatoken)
		require.ErrorIs(t, err, ErrTransferAlreadyUsed)

		require.ErrorIs(t, l.RejectIfReusedElsewhere(ctx, did, "access", tx, consumer, datatoken),
			ErrTransferAlreadyUsed)
	})

	t.Run("concurrent", func(t *testing.T) {
		tx := "0x" + uuid.NewString()

		var (
			wg    sync.WaitGroup
			mutex sync.Mutex
			won   = map[string]bool{}
		)

		for _, d := range []string{did, did2, did, did2, did, did2} {
			wg.Add(1)

			go func(d string) {
				defer wg.Done()

				if _, err := l.Consume(ctx, d, serviceID, tx, consumer, datatoken); err == nil {
					mutex.Lock()
					won[d] = true
					mutex.Unlock()
				}
			}(d)
		}

		wg.Wait()
		require.Len(t, won, 1)
	})
}
