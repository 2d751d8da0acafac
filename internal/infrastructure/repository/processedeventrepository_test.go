package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/subflow/internal/domain/billingevent"
)

func TestLedger_TryClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	claimed, err := f.ledger.TryClaim(ctx, "evt_1", "invoice.paid")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = f.ledger.TryClaim(ctx, "evt_1", "invoice.paid")
	require.NoError(t, err)
	assert.False(t, claimed)

	exists, err := f.ledger.Exists(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = f.ledger.TryClaim(ctx, "", "invoice.paid")
	assert.ErrorIs(t, err, billingevent.ErrEventIDRequired)
}

func TestLedger_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	f := newFixture(t)

	const workers = 8
	var winners atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.tm.RunInTransaction(context.Background(), func(ctx context.Context) error {
				claimed, err := f.ledger.TryClaim(ctx, "evt_race", "checkout.session.completed")
				if err != nil {
					return err
				}
				if claimed {
					winners.Add(1)
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestLedger_RollbackReleasesClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("state write failed")

	err := f.tm.RunInTransaction(ctx, func(txCtx context.Context) error {
		claimed, err := f.ledger.TryClaim(txCtx, "evt_rollback", "invoice.payment_failed")
		require.NoError(t, err)
		require.True(t, claimed)
		return boom
	})
	require.ErrorIs(t, err, boom)

	exists, err := f.ledger.Exists(ctx, "evt_rollback")
	require.NoError(t, err)
	assert.False(t, exists, "a rolled back claim must not block redelivery")

	claimed, err := f.ledger.TryClaim(ctx, "evt_rollback", "invoice.payment_failed")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestLedger_MarkOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.TryClaim(ctx, "evt_2", "checkout.session.completed")
	require.NoError(t, err)

	require.NoError(t, f.ledger.MarkOutcome(ctx, "evt_2", billingevent.OutcomeNeedsReconciliation, "user 4 already subscribed"))

	event, err := f.ledger.Get(ctx, "evt_2")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, billingevent.OutcomeNeedsReconciliation, event.Outcome)
	assert.Equal(t, "user 4 already subscribed", event.Detail)

	assert.Error(t, f.ledger.MarkOutcome(ctx, "evt_missing", billingevent.OutcomeIgnored, ""))
	assert.Error(t, f.ledger.MarkOutcome(ctx, "evt_2", billingevent.Outcome("bogus"), ""))

	missing, err := f.ledger.Get(ctx, "evt_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLedger_MarkOutcomeKeepsLongDetailValidUTF8(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.TryClaim(ctx, "evt_long", "invoice.paid")
	require.NoError(t, err)

	detail := "x" + strings.Repeat("支", maxOutcomeDetail)
	require.NoError(t, f.ledger.MarkOutcome(ctx, "evt_long", billingevent.OutcomeNeedsReconciliation, detail))

	event, err := f.ledger.Get(ctx, "evt_long")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.True(t, utf8.ValidString(event.Detail))
	assert.LessOrEqual(t, len(event.Detail), maxOutcomeDetail)
	assert.True(t, strings.HasPrefix(detail, event.Detail))
}

func TestLedger_PruneBefore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.ledger.TryClaim(ctx, fmt.Sprintf("evt_%d", i), "invoice.paid")
		require.NoError(t, err)
	}

	pruned, err := f.ledger.PruneBefore(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, pruned)

	pruned, err = f.ledger.PruneBefore(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), pruned)
}
