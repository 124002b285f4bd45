package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/binarycomp-backend/internal/payouts"
	"github.com/angelmondragon/binarycomp-backend/internal/ranks"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

type holdReleaser interface {
	ReleaseHolds(ctx context.Context) (*payouts.ReleaseReport, error)
}

type reconciler interface {
	Reconcile(ctx context.Context) (*payouts.ReconcileReport, error)
}

type rankSweeper interface {
	Sweep(ctx context.Context) (*ranks.SweepReport, error)
}

// NewHoldReleaseJob moves on-hold payouts back to pending once their
// beneficiary qualifies.
func NewHoldReleaseJob(logg *logger.Logger, engine holdReleaser) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if engine == nil {
		return nil, fmt.Errorf("payout engine required")
	}
	return &holdReleaseJob{logg: logg, engine: engine}, nil
}

type holdReleaseJob struct {
	logg   *logger.Logger
	engine holdReleaser
}

func (j *holdReleaseJob) Name() string { return "payout-hold-release" }

func (j *holdReleaseJob) Run(ctx context.Context) error {
	report, err := j.engine.ReleaseHolds(ctx)
	if err != nil {
		return fmt.Errorf("release holds: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"checked":  report.Checked,
		"released": report.Released,
		"failed":   report.Failed,
	}), "payout holds reviewed")
	return report.Err
}

// NewReconcileJob repairs ledger mirrors and processed flags.
func NewReconcileJob(logg *logger.Logger, engine reconciler) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if engine == nil {
		return nil, fmt.Errorf("payout engine required")
	}
	return &reconcileJob{logg: logg, engine: engine}, nil
}

type reconcileJob struct {
	logg   *logger.Logger
	engine reconciler
}

func (j *reconcileJob) Name() string { return "payout-reconcile" }

func (j *reconcileJob) Run(ctx context.Context) error {
	report, err := j.engine.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile payouts: %w", err)
	}
	fields := map[string]any{
		"scanned":          report.Scanned,
		"credits_repaired": report.CreditsRepaired,
		"debits_repaired":  report.DebitsRepaired,
		"flags_repaired":   report.FlagsRepaired,
		"failed":           report.Failed,
	}
	if report.CreditsRepaired+report.DebitsRepaired+report.FlagsRepaired > 0 {
		j.logg.Warn(j.logg.WithFields(ctx, fields), "payout reconciliation repaired records")
	} else {
		j.logg.Info(j.logg.WithFields(ctx, fields), "payout reconciliation clean")
	}
	return report.Err
}

// NewRankSweepJob re-evaluates rank and club for every active member.
func NewRankSweepJob(logg *logger.Logger, engine rankSweeper) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if engine == nil {
		return nil, fmt.Errorf("rank engine required")
	}
	return &rankSweepJob{logg: logg, engine: engine}, nil
}

type rankSweepJob struct {
	logg   *logger.Logger
	engine rankSweeper
}

func (j *rankSweepJob) Name() string { return "rank-sweep" }

func (j *rankSweepJob) Run(ctx context.Context) error {
	report, err := j.engine.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("rank sweep: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"evaluated": report.Evaluated,
		"failed":    report.Failed,
	}), "rank sweep complete")
	return report.Err
}
