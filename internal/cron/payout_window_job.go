package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/binarycomp-backend/internal/payouts"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

// maxCatchUpWindows bounds how many closed windows one cycle replays after
// the worker was down.
const maxCatchUpWindows = 14

// checkpointTTL keeps the last processed window long enough to survive any
// realistic outage.
const checkpointTTL = 90 * 24 * time.Hour

type windowRunner interface {
	RunWindow(ctx context.Context, window payouts.Window) (*payouts.WindowReport, error)
	Location() *time.Location
}

type checkpointStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// PayoutWindowJobParams configure the payout batch job.
type PayoutWindowJobParams struct {
	Logger        *logger.Logger
	Engine        windowRunner
	Checkpoints   checkpointStore
	CheckpointKey string
}

// NewPayoutWindowJob builds the job that processes every closed payout
// window not yet recorded in the checkpoint.
func NewPayoutWindowJob(params PayoutWindowJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("payout engine required")
	}
	if params.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint store required")
	}
	if params.CheckpointKey == "" {
		return nil, fmt.Errorf("checkpoint key required")
	}
	return &payoutWindowJob{
		logg:        params.Logger,
		engine:      params.Engine,
		checkpoints: params.Checkpoints,
		key:         params.CheckpointKey,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

type payoutWindowJob struct {
	logg        *logger.Logger
	engine      windowRunner
	checkpoints checkpointStore
	key         string
	now         func() time.Time
}

func (j *payoutWindowJob) Name() string { return "payout-window" }

// Run replays closed windows oldest first. A window with failed events is
// not checkpointed, so the next cycle retries it; events already paid are
// skipped by the engine.
func (j *payoutWindowJob) Run(ctx context.Context) error {
	windows, err := j.pending(ctx)
	if err != nil {
		return err
	}
	for _, window := range windows {
		report, err := j.engine.RunWindow(ctx, window)
		if err != nil {
			return fmt.Errorf("run window %s: %w", window, err)
		}
		if report.Failed > 0 {
			return fmt.Errorf("window %s: %d events failed: %w", window, report.Failed, report.Err)
		}
		if err := j.checkpoints.Set(ctx, j.key, window.Start.Format(time.RFC3339), checkpointTTL); err != nil {
			return fmt.Errorf("save payout checkpoint: %w", err)
		}
	}
	return nil
}

func (j *payoutWindowJob) pending(ctx context.Context) ([]payouts.Window, error) {
	loc := j.engine.Location()
	latest := payouts.PreviousWindow(j.now(), loc)

	raw, err := j.checkpoints.Get(ctx, j.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []payouts.Window{latest}, nil
		}
		return nil, fmt.Errorf("read payout checkpoint: %w", err)
	}
	last, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		j.logg.Warn(j.logg.WithField(ctx, "checkpoint", raw), "unreadable payout checkpoint; processing latest window only")
		return []payouts.Window{latest}, nil
	}

	var windows []payouts.Window
	next := payouts.WindowFor(last, loc)
	for {
		next = payouts.WindowFor(next.End, loc)
		if next.Start.After(latest.Start) {
			break
		}
		windows = append(windows, next)
	}
	if len(windows) > maxCatchUpWindows {
		j.logg.Warn(j.logg.WithField(ctx, "skipped_windows", len(windows)-maxCatchUpWindows), "payout backlog exceeds catch-up bound")
		windows = windows[len(windows)-maxCatchUpWindows:]
	}
	return windows, nil
}
