package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/binarycomp-backend/internal/payouts"
	"github.com/angelmondragon/binarycomp-backend/internal/ranks"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

var ist = time.FixedZone("UTC+05:30", 330*60)

type fakeWindowRunner struct {
	ran    []payouts.Window
	failOn map[int64]bool
}

func (f *fakeWindowRunner) RunWindow(ctx context.Context, window payouts.Window) (*payouts.WindowReport, error) {
	f.ran = append(f.ran, window)
	report := &payouts.WindowReport{Window: window}
	if f.failOn[window.Start.Unix()] {
		report.Failed = 1
		report.Err = errors.New("event failed")
	}
	return report, nil
}

func (f *fakeWindowRunner) Location() *time.Location { return ist }

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func newWindowJob(t *testing.T, runner *fakeWindowRunner, store *memoryStore, now time.Time) *payoutWindowJob {
	t.Helper()
	job, err := NewPayoutWindowJob(PayoutWindowJobParams{
		Logger:        quietLogger(),
		Engine:        runner,
		Checkpoints:   store,
		CheckpointKey: "checkpoint:payout-window",
	})
	require.NoError(t, err)
	concrete := job.(*payoutWindowJob)
	concrete.now = func() time.Time { return now }
	return concrete
}

func TestPayoutWindowJob_FirstRunProcessesLatestClosedWindow(t *testing.T) {
	runner := &fakeWindowRunner{}
	store := newMemoryStore()
	// 2026-03-02 19:00 local; the 06:00-18:00 window is the latest closed one.
	now := time.Date(2026, 3, 2, 13, 30, 0, 0, time.UTC)
	job := newWindowJob(t, runner, store, now)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, runner.ran, 1)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 0, 0, 0, ist).UTC(), runner.ran[0].Start)
	assert.Equal(t, runner.ran[0].Start.Format(time.RFC3339), store.values["checkpoint:payout-window"])
	assert.Equal(t, checkpointTTL, store.ttls["checkpoint:payout-window"])

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, runner.ran, 1, "a checkpointed window is not rerun")
}

func TestPayoutWindowJob_CatchesUpMissedWindows(t *testing.T) {
	runner := &fakeWindowRunner{}
	store := newMemoryStore()
	last := time.Date(2026, 3, 1, 6, 0, 0, 0, ist).UTC()
	store.values["checkpoint:payout-window"] = last.Format(time.RFC3339)
	now := time.Date(2026, 3, 2, 13, 30, 0, 0, time.UTC)
	job := newWindowJob(t, runner, store, now)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, runner.ran, 2)
	assert.Equal(t, time.Date(2026, 3, 1, 18, 0, 0, 0, ist).UTC(), runner.ran[0].Start)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 0, 0, 0, ist).UTC(), runner.ran[1].Start)
}

func TestPayoutWindowJob_FailedWindowIsRetried(t *testing.T) {
	failing := time.Date(2026, 3, 2, 6, 0, 0, 0, ist).UTC()
	runner := &fakeWindowRunner{failOn: map[int64]bool{failing.Unix(): true}}
	store := newMemoryStore()
	previous := time.Date(2026, 3, 1, 18, 0, 0, 0, ist).UTC()
	store.values["checkpoint:payout-window"] = previous.Format(time.RFC3339)
	job := newWindowJob(t, runner, store, time.Date(2026, 3, 2, 13, 30, 0, 0, time.UTC))

	require.Error(t, job.Run(context.Background()))
	assert.Equal(t, previous.Format(time.RFC3339), store.values["checkpoint:payout-window"])

	delete(runner.failOn, failing.Unix())
	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, runner.ran, 2)
	assert.Equal(t, failing.Format(time.RFC3339), store.values["checkpoint:payout-window"])
}

func TestPayoutWindowJob_BacklogIsBounded(t *testing.T) {
	runner := &fakeWindowRunner{}
	store := newMemoryStore()
	store.values["checkpoint:payout-window"] = time.Date(2026, 1, 1, 6, 0, 0, 0, ist).UTC().Format(time.RFC3339)
	job := newWindowJob(t, runner, store, time.Date(2026, 3, 2, 13, 30, 0, 0, time.UTC))

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, runner.ran, maxCatchUpWindows)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 0, 0, 0, ist).UTC(), runner.ran[maxCatchUpWindows-1].Start)
}

type fakeMaintenance struct {
	release   *payouts.ReleaseReport
	reconcile *payouts.ReconcileReport
	sweep     *ranks.SweepReport
	err       error
}

func (f *fakeMaintenance) ReleaseHolds(context.Context) (*payouts.ReleaseReport, error) {
	return f.release, f.err
}

func (f *fakeMaintenance) Reconcile(context.Context) (*payouts.ReconcileReport, error) {
	return f.reconcile, f.err
}

func (f *fakeMaintenance) Sweep(context.Context) (*ranks.SweepReport, error) {
	return f.sweep, f.err
}

func TestMaintenanceJobsSurfaceReportErrors(t *testing.T) {
	partial := errors.New("one item failed")
	engine := &fakeMaintenance{
		release:   &payouts.ReleaseReport{Checked: 3, Released: 2, Failed: 1, Err: partial},
		reconcile: &payouts.ReconcileReport{Scanned: 5, CreditsRepaired: 1},
		sweep:     &ranks.SweepReport{Evaluated: 4, Failed: 1, Err: partial},
	}

	release, err := NewHoldReleaseJob(quietLogger(), engine)
	require.NoError(t, err)
	reconcile, err := NewReconcileJob(quietLogger(), engine)
	require.NoError(t, err)
	sweep, err := NewRankSweepJob(quietLogger(), engine)
	require.NoError(t, err)

	ctx := context.Background()
	assert.ErrorIs(t, release.Run(ctx), partial)
	assert.NoError(t, reconcile.Run(ctx))
	assert.ErrorIs(t, sweep.Run(ctx), partial)

	engine.err = errors.New("database down")
	assert.Error(t, reconcile.Run(ctx))

	_, err = NewRankSweepJob(quietLogger(), nil)
	assert.Error(t, err)
}

func TestRedisLockOnlyOwnerReleases(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	first, err := NewRedisLock(store, "lock:cron", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, "lock:cron")

	require.NoError(t, first.Release(ctx))
	assert.NotContains(t, store.values, "lock:cron")
}
