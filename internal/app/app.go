// Package app assembles the domain services shared by the api, cron-worker
// and batch binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/internal/cron"
	"github.com/angelmondragon/binarycomp-backend/internal/infinity"
	"github.com/angelmondragon/binarycomp-backend/internal/ledger"
	"github.com/angelmondragon/binarycomp-backend/internal/members"
	"github.com/angelmondragon/binarycomp-backend/internal/notifications"
	"github.com/angelmondragon/binarycomp-backend/internal/orders"
	"github.com/angelmondragon/binarycomp-backend/internal/payouts"
	"github.com/angelmondragon/binarycomp-backend/internal/ranks"
	"github.com/angelmondragon/binarycomp-backend/internal/tree"
	"github.com/angelmondragon/binarycomp-backend/internal/wallets"
	"github.com/angelmondragon/binarycomp-backend/pkg/config"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
	"github.com/angelmondragon/binarycomp-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Params are the resources every binary opens before wiring the domain.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *gorm.DB
	TxRunner txRunner
	// Registerer receives payout metrics; nil disables them.
	Registerer prometheus.Registerer
	Now        func() time.Time
}

// App holds the wired domain services.
type App struct {
	cfg  *config.Config
	logg *logger.Logger
	db   *gorm.DB
	tx   txRunner

	TreeQuery     *tree.Query
	Members       members.Service
	Wallets       wallets.Service
	Orders        orders.Service
	Infinity      *infinity.Engine
	Ranks         *ranks.Engine
	Ledger        ledger.Service
	Notifications notifications.Service
	Sink          *notifications.Sink
	PayoutEngine  *payouts.Engine
	Payouts       payouts.Service
}

// New wires repositories, engines and services in dependency order.
func New(params Params) (*App, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db required")
	case params.TxRunner == nil:
		return nil, errors.New("tx runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	cfg, logg, conn := params.Config, params.Logger, params.DB

	treeRepo := tree.NewRepository(conn)
	memberRepo := members.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	rankRepo := ranks.NewRepository(conn)
	notificationRepo := notifications.NewRepository(conn)

	a := &App{cfg: cfg, logg: logg, db: conn, tx: params.TxRunner}

	var err error
	if a.TreeQuery, err = tree.NewQuery(treeRepo, cfg.Tree.MaxDepth, cfg.Tree.MaxSnapshotDepth); err != nil {
		return nil, fmt.Errorf("tree query: %w", err)
	}
	placer, err := tree.NewPlacer(treeRepo, cfg.Tree.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("tree placer: %w", err)
	}
	if a.Wallets, err = wallets.NewService(wallets.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("wallets: %w", err)
	}
	if a.Ledger, err = ledger.NewService(ledger.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	if a.Notifications, err = notifications.NewService(notificationRepo); err != nil {
		return nil, fmt.Errorf("notifications: %w", err)
	}
	if a.Sink, err = notifications.NewSink(notificationRepo, logg); err != nil {
		return nil, fmt.Errorf("notification sink: %w", err)
	}

	if a.Infinity, err = infinity.NewEngine(infinity.EngineParams{
		TxRunner: params.TxRunner,
		Repo:     infinity.NewRepository(conn),
		Members:  memberRepo,
		MaxDepth: cfg.Tree.MaxInfinityDepth,
		Logger:   logg,
	}); err != nil {
		return nil, fmt.Errorf("infinity engine: %w", err)
	}

	ceiling, err := enums.ParseClub(cfg.Ranks.PairingClubCeiling)
	if err != nil {
		return nil, fmt.Errorf("pairing club ceiling: %w", err)
	}
	if a.Ranks, err = ranks.NewEngine(ranks.EngineParams{
		TxRunner:       params.TxRunner,
		Repo:           rankRepo,
		Members:        memberRepo,
		Sides:          a.TreeQuery,
		Teams:          a.Infinity,
		Lifetime:       a.Ledger,
		Notifier:       a.Sink,
		Logger:         logg,
		MaxRank:        cfg.Ranks.MaxRank,
		PairingCeiling: ceiling,
	}); err != nil {
		return nil, fmt.Errorf("rank engine: %w", err)
	}

	if a.Members, err = members.NewService(members.ServiceParams{
		TxRunner: params.TxRunner,
		Repo:     memberRepo,
		Tree:     treeRepo,
		Placer:   placer,
		Wallets:  a.Wallets,
		Infinity: a.Infinity,
		Ranks:    a.Ranks,
		Logger:   logg,
	}); err != nil {
		return nil, fmt.Errorf("members: %w", err)
	}
	if a.Orders, err = orders.NewService(orders.ServiceParams{
		TxRunner:  params.TxRunner,
		Repo:      orderRepo,
		Members:   memberRepo,
		Evaluator: a.Ranks,
		Owners:    a.Infinity,
		Logger:    logg,
		Now:       now,
	}); err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}

	payoutRepo := payouts.NewRepository(conn)
	if a.PayoutEngine, err = payouts.NewEngine(payouts.EngineParams{
		TxRunner: params.TxRunner,
		Repo:     payoutRepo,
		Orders:   orderRepo,
		Ranks:    rankRepo,
		Members:  memberRepo,
		Wallets:  a.Wallets,
		Ledger:   a.Ledger,
		Notifier: a.Sink,
		Metrics:  metrics.NewPayoutMetrics(params.Registerer),
		Amounts:  payouts.AmountsFromConfig(cfg.Payouts),
		Location: cfg.Payouts.Location(),
		Logger:   logg,
		Now:      now,
	}); err != nil {
		return nil, fmt.Errorf("payout engine: %w", err)
	}
	if a.Payouts, err = payouts.NewService(payouts.ServiceParams{
		TxRunner: params.TxRunner,
		Repo:     payoutRepo,
		Members:  memberRepo,
		Ledger:   a.Ledger,
		Logger:   logg,
		Now:      now,
	}); err != nil {
		return nil, fmt.Errorf("payouts: %w", err)
	}
	return a, nil
}

// CheckpointStore persists the last processed payout window.
type CheckpointStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Jobs builds the scheduled jobs in the order a cron cycle runs them. The
// window batch only pays closed windows, so a qualification granted by this
// cycle's rank sweep is paid once its own window has closed.
func (a *App) Jobs(checkpoints CheckpointStore, checkpointKey string) ([]cron.Job, error) {
	rankSweep, err := cron.NewRankSweepJob(a.logg, a.Ranks)
	if err != nil {
		return nil, err
	}
	window, err := cron.NewPayoutWindowJob(cron.PayoutWindowJobParams{
		Logger:        a.logg,
		Engine:        a.PayoutEngine,
		Checkpoints:   checkpoints,
		CheckpointKey: checkpointKey,
	})
	if err != nil {
		return nil, err
	}
	release, err := cron.NewHoldReleaseJob(a.logg, a.PayoutEngine)
	if err != nil {
		return nil, err
	}
	reconcile, err := cron.NewReconcileJob(a.logg, a.PayoutEngine)
	if err != nil {
		return nil, err
	}
	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     a.logg,
		DB:         a.tx,
		Repository: notifications.NewRepository(a.db),
		Retention:  a.cfg.Notifications.RetentionDays,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{rankSweep, window, release, reconcile, cleanup}, nil
}
