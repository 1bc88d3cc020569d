/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/datatoken-provider-go/pkg/store"
)

const (
	did       = "did:op:1"
	did2      = "did:op:2"
	serviceID = "compute"
	txID      = "0xAA"
	consumer  = "0xc0"
	datatoken = "0xd7"

	unreachableDSN = "host=127.0.0.1 port=1 user=provider dbname=provider sslmode=disable connect_timeout=1"
)

type testMetrics struct {
	sync.Mutex
	replays int
}

func (m *testMetrics) TransferReplayed() {
	m.Lock()
	m.replays++
	m.Unlock()
}

func TestMemLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("same pair is idempotent", func(t *testing.T) {
		l := NewMemLedger()

		require.NoError(t, l.RecordUse(ctx, did, serviceID, txID, consumer, datatoken, 1))
		require.NoError(t, l.RejectIfReusedElsewhere(ctx, did, serviceID, txID, consumer, datatoken))
		require.NoError(t, l.RecordUse(ctx, did, serviceID, txID, consumer, datatoken, 1))

		r, ok := l.Get(ctx, "0xaa")
		require.True(t, ok)
		require.Equal(t, int64(2), r.UseCount)
	})

	t.Run("other did is a replay", func(t *testing.T) {
		m := &testMetrics{}
		l := NewMemLedger(WithMetrics(m))

		require.NoError(t, l.RecordUse(ctx, did, serviceID, txID, consumer, datatoken, 1))

		err := l.RejectIfReusedElsewhere(ctx, did2, serviceID, txID, consumer, datatoken)
		require.ErrorIs(t, err, ErrTransferAlreadyUsed)
		require.Contains(t, err.Error(), "bound to (did:op:1, compute)")

		require.ErrorIs(t, l.RecordUse(ctx, did2, serviceID, txID, consumer, datatoken, 1), ErrTransferAlreadyUsed)
		require.Equal(t, 2, m.replays)
	})

	t.Run("other service is a replay", func(t *testing.T) {
		l := NewMemLedger()

		_, err := l.Consume(ctx, did, serviceID, txID, consumer, datatoken)
		require.NoError(t, err)

		_, err = l.Consume(ctx, did, "access", txID, consumer, datatoken)
		require.ErrorIs(t, err, ErrTransferAlreadyUsed)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		l := NewMemLedger()

		require.NoError(t, l.RejectIfReusedElsewhere(ctx, did, serviceID, txID, consumer, datatoken))

		_, ok := l.Get(ctx, txID)
		require.False(t, ok)
	})

	t.Run("concurrent consumers of one transaction bind it once", func(t *testing.T) {
		l := NewMemLedger()

		var (
			wg     sync.WaitGroup
			mutex  sync.Mutex
			winner = map[string]int{}
		)

		for i := 0; i < 20; i++ {
			wg.Add(1)

			go func(i int) {
				defer wg.Done()

				d := fmt.Sprintf("did:op:%d", i%2)

				if _, err := l.Consume(ctx, d, serviceID, txID, consumer, datatoken); err == nil {
					mutex.Lock()
					winner[d]++
					mutex.Unlock()
				}
			}(i)
		}

		wg.Wait()

		require.Len(t, winner, 1)

		for _, n := range winner {
			require.Equal(t, 10, n)
		}
	})
}

func TestDBLedgerUnavailable(t *testing.T) {
	l := NewDBLedger(nil)

	require.ErrorIs(t, l.RecordUse(context.Background(), did, serviceID, txID, consumer, datatoken, 1),
		store.ErrUnavailable)
	require.ErrorIs(t, l.RejectIfReusedElsewhere(context.Background(), did, serviceID, txID, consumer, datatoken),
		store.ErrUnavailable)

	_, err := l.Consume(context.Background(), did, serviceID, txID, consumer, datatoken)
	require.ErrorIs(t, err, store.ErrUnavailable)

	t.Run("database down", func(t *testing.T) {
		db, err := store.Open(unreachableDSN, store.WithLazyConnect())
		require.NoError(t, err)

		l := NewDBLedger(db)

		_, err = l.Consume(context.Background(), did, serviceID, txID, consumer, datatoken)
		require.ErrorIs(t, err, store.ErrUnavailable)
		require.NotErrorIs(t, err, ErrTransferAlreadyUsed)

		err = l.RejectIfReusedElsewhere(context.Background(), did, serviceID, txID, consumer, datatoken)
		require.ErrorIs(t, err, store.ErrUnavailable)
	})
}
