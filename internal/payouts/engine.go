package payouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/internal/ledger"
	"github.com/angelmondragon/binarycomp-backend/internal/notifications"
	"github.com/angelmondragon/binarycomp-backend/internal/orders"
	"github.com/angelmondragon/binarycomp-backend/internal/ranks"
	"github.com/angelmondragon/binarycomp-backend/internal/wallets"
	"github.com/angelmondragon/binarycomp-backend/pkg/config"
	"github.com/angelmondragon/binarycomp-backend/pkg/db"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
	"github.com/angelmondragon/binarycomp-backend/pkg/metrics"
)

const (
	SourceTypeOrder             = "order"
	SourceTypeRankQualification = "rank_qualification"

	HoldReasonNoDestination = "no_payout_destination"
	HoldReasonVolumeRatio   = "volume_ratio_below_minimum"

	pageSize = 200
)

var errAlreadyProcessed = errors.New("source already processed")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MemberReader loads beneficiaries and payers.
type MemberReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	FindMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Member, error)
}

// WalletLookup reports payout destination and identity verification.
type WalletLookup interface {
	Lookup(ctx context.Context, memberID uuid.UUID) (wallets.Status, error)
}

type notifier interface {
	Notify(ctx context.Context, notice notifications.Notice)
}

// Amounts holds the bonus rule parameters.
type Amounts struct {
	Direct            decimal.Decimal
	RankPerLevel      decimal.Decimal
	RepurchasePercent decimal.Decimal
	InfinityPercent   decimal.Decimal
	MinVolumeRatio    decimal.Decimal
}

// AmountsFromConfig reads the bonus parameters from the payouts settings.
func AmountsFromConfig(cfg config.PayoutsConfig) Amounts {
	return Amounts{
		Direct:            cfg.Decimal(cfg.DirectBonus),
		RankPerLevel:      cfg.Decimal(cfg.RankBonusPerLevel),
		RepurchasePercent: cfg.Decimal(cfg.RepurchasePercent),
		InfinityPercent:   cfg.Decimal(cfg.InfinityPercent),
		MinVolumeRatio:    cfg.Decimal(cfg.MinVolumeRatio),
	}
}

// EngineParams groups the payout engine dependencies.
type EngineParams struct {
	TxRunner txRunner
	Repo     Repository
	Orders   orders.Repository
	Ranks    ranks.Repository
	Members  MemberReader
	Wallets  WalletLookup
	Ledger   ledger.Service
	Notifier notifier
	Metrics  *metrics.PayoutMetrics
	Amounts  Amounts
	Location *time.Location
	Logger   *logger.Logger
	Now      func() time.Time
}

// Engine turns completed orders and granted ranks into payouts, one window
// at a time.
type Engine struct {
	tx      txRunner
	repo    Repository
	orders  orders.Repository
	ranks   ranks.Repository
	members MemberReader
	wallets WalletLookup
	ledger  ledger.Service
	notify  notifier
	metrics *metrics.PayoutMetrics
	amounts Amounts
	loc     *time.Location
	logg    *logger.Logger
	now     func() time.Time
}

func NewEngine(params EngineParams) (*Engine, error) {
	switch {
	case params.TxRunner == nil:
		return nil, errors.New("tx runner required")
	case params.Repo == nil:
		return nil, errors.New("payouts repository required")
	case params.Orders == nil:
		return nil, errors.New("orders repository required")
	case params.Ranks == nil:
		return nil, errors.New("ranks repository required")
	case params.Members == nil:
		return nil, errors.New("member reader required")
	case params.Wallets == nil:
		return nil, errors.New("wallet lookup required")
	case params.Ledger == nil:
		return nil, errors.New("ledger service required")
	case params.Notifier == nil:
		return nil, errors.New("notifier required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		tx:      params.TxRunner,
		repo:    params.Repo,
		orders:  params.Orders,
		ranks:   params.Ranks,
		members: params.Members,
		wallets: params.Wallets,
		ledger:  params.Ledger,
		notify:  params.Notifier,
		metrics: params.Metrics,
		amounts: params.Amounts,
		loc:     loc,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Location is the zone windows are cut in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// sourceEvent is one bonus owed by one source row to one beneficiary.
type sourceEvent struct {
	bonus         enums.BonusType
	sourceType    string
	sourceID      uuid.UUID
	beneficiaryID uuid.UUID
	gross         decimal.Decimal
	claim         func(ctx context.Context, tx *gorm.DB, at time.Time) (bool, error)
}

// WindowReport summarizes one batch run.
type WindowReport struct {
	Window  Window      `json:"window"`
	Events  int         `json:"events"`
	Created int         `json:"created"`
	OnHold  int         `json:"on_hold"`
	Skipped int         `json:"skipped"`
	Failed  int         `json:"failed"`
	Payouts []uuid.UUID `json:"payouts"`
	Err     error       `json:"-"`
}

// RunWindow computes every bonus whose source event falls in window. Failing
// to read the sources aborts the batch; a failing event is logged, counted
// and skipped. Each event is claimed through its processed flag inside the
// transaction that creates its payout, so reruns never pay twice.
func (e *Engine) RunWindow(ctx context.Context, window Window) (*WindowReport, error) {
	ctx = e.logg.WithField(ctx, "window", window.Label(e.loc))
	report := &WindowReport{Window: window}

	events, err := e.collect(ctx, window)
	if err != nil {
		return report, err
	}
	report.Events = len(events)

	for _, ev := range events {
		payout, err := e.process(ctx, window, ev)
		switch {
		case errors.Is(err, errAlreadyProcessed):
			report.Skipped++
			e.metrics.IncSkipped(string(ev.bonus))
		case err != nil:
			report.Failed++
			report.Err = multierr.Append(report.Err, fmt.Errorf("%s %s %s: %w", ev.bonus, ev.sourceType, ev.sourceID, err))
			e.metrics.IncFailed(string(ev.bonus))
			e.logg.Error(e.logg.WithFields(ctx, map[string]any{
				"bonus_type":  string(ev.bonus),
				"source_id":   ev.sourceID.String(),
				"beneficiary": ev.beneficiaryID.String(),
			}), "payout event failed", err)
		default:
			report.Created++
			report.Payouts = append(report.Payouts, payout.ID)
			if payout.Status == enums.PayoutStatusOnHold {
				report.OnHold++
			}
			e.metrics.IncCreated(string(payout.BonusType), string(payout.Status))
			e.notifyCreated(ctx, payout)
		}
	}

	if report.Created > 0 {
		e.notify.Notify(ctx, notifications.Notice{
			Type:  enums.NotificationTypePayoutBatch,
			Title: "Payout batch completed",
			Message: fmt.Sprintf("window %s: %d created, %d on hold, %d skipped, %d failed",
				window.Label(e.loc), report.Created, report.OnHold, report.Skipped, report.Failed),
		})
	}
	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"events":  report.Events,
		"created": report.Created,
		"on_hold": report.OnHold,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	}), "payout window processed")
	return report, nil
}

func (e *Engine) collect(ctx context.Context, window Window) ([]sourceEvent, error) {
	completed, err := e.orders.ListCompletedBetween(ctx, window.Start, window.End)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list completed orders")
	}
	qualifications, err := e.ranks.ListUnpaidBetween(ctx, window.Start, window.End)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rank qualifications")
	}

	payerIDs := make([]uuid.UUID, 0, len(completed))
	for _, order := range completed {
		payerIDs = append(payerIDs, order.PayerID)
	}
	payers, err := e.members.FindMany(ctx, payerIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payers")
	}

	var events []sourceEvent
	for _, order := range completed {
		if order.ReferrerID != nil {
			if order.IsFirstOrder {
				events = append(events, e.orderEvent(order, enums.BonusTypeDirect, *order.ReferrerID, e.amounts.Direct))
			} else {
				events = append(events, e.orderEvent(order, enums.BonusTypeRepurchase, *order.ReferrerID, percentOf(order.Volume, e.amounts.RepurchasePercent)))
			}
		}
		if payer, ok := payers[order.PayerID]; ok && payer.InfinitySponsorID != nil {
			events = append(events, e.orderEvent(order, enums.BonusTypeInfinity, *payer.InfinitySponsorID, percentOf(order.Volume, e.amounts.InfinityPercent)))
		}
	}
	for _, qualification := range qualifications {
		id := qualification.ID
		events = append(events, sourceEvent{
			bonus:         enums.BonusTypeRank,
			sourceType:    SourceTypeRankQualification,
			sourceID:      id,
			beneficiaryID: qualification.MemberID,
			gross:         e.amounts.RankPerLevel,
			claim: func(ctx context.Context, tx *gorm.DB, at time.Time) (bool, error) {
				return e.ranks.WithTx(tx).MarkBonusPaid(ctx, id, at)
			},
		})
	}
	return events, nil
}

func (e *Engine) orderEvent(order models.Order, bonus enums.BonusType, beneficiary uuid.UUID, gross decimal.Decimal) sourceEvent {
	id := order.ID
	return sourceEvent{
		bonus:         bonus,
		sourceType:    SourceTypeOrder,
		sourceID:      id,
		beneficiaryID: beneficiary,
		gross:         gross,
		claim: func(ctx context.Context, tx *gorm.DB, at time.Time) (bool, error) {
			if orders.BonusPaid(order, bonus) {
				return false, nil
			}
			return e.orders.WithTx(tx).MarkBonusPaid(ctx, id, bonus, at)
		},
	}
}

func (e *Engine) process(ctx context.Context, window Window, ev sourceEvent) (*models.Payout, error) {
	beneficiary, err := e.members.FindByID(ctx, ev.beneficiaryID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "beneficiary does not exist")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load beneficiary")
	}
	wallet, err := e.wallets.Lookup(ctx, ev.beneficiaryID)
	if err != nil {
		return nil, err
	}
	lifetime, err := e.ledger.LifetimeTotal(ctx, ev.beneficiaryID)
	if err != nil {
		return nil, err
	}

	gross := ev.gross.Round(2)
	breakdown := Split(gross, wallet.IdentityVerified)
	status, reason := e.classify(wallet, beneficiary.PersonalVolume, lifetime.Add(gross))
	at := e.now()

	var created *models.Payout
	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claimed, err := ev.claim(ctx, tx, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim source event")
		}
		if !claimed {
			return errAlreadyProcessed
		}
		if !gross.IsPositive() {
			// Nothing owed; the flag stays set so the event is not revisited.
			return nil
		}

		repo := e.repo.WithTx(tx)
		existing, err := repo.FindBySource(ctx, ev.bonus, ev.sourceID, ev.beneficiaryID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing payout")
		}
		if existing != nil {
			return nil
		}

		payout := &models.Payout{
			ID:            uuid.New(),
			BeneficiaryID: ev.beneficiaryID,
			BonusType:     ev.bonus,
			Gross:         breakdown.Gross,
			Withdrawable:  breakdown.Withdrawable,
			Reward:        breakdown.Reward,
			TaxWithheld:   breakdown.TaxWithheld,
			PlatformFee:   breakdown.PlatformFee,
			Status:        status,
			SourceType:    ev.sourceType,
			SourceID:      ev.sourceID,
			WindowStart:   window.Start,
			WindowEnd:     window.End,
			HoldReason:    reason,
		}
		if err := repo.Create(ctx, payout); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errAlreadyProcessed
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}
		if _, err := e.ledger.WithTx(tx).RecordEvent(ctx, creditInput(payout)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout credit")
		}
		created = payout
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, errAlreadyProcessed
	}
	return created, nil
}

// classify holds a payout when it cannot be paid out or when the
// beneficiary's personal volume is too small against everything paid to them.
func (e *Engine) classify(wallet wallets.Status, personalVolume, lifetime decimal.Decimal) (enums.PayoutStatus, *string) {
	if !wallet.HasDestination {
		reason := HoldReasonNoDestination
		return enums.PayoutStatusOnHold, &reason
	}
	if lifetime.IsPositive() && personalVolume.Div(lifetime).LessThan(e.amounts.MinVolumeRatio) {
		reason := HoldReasonVolumeRatio
		return enums.PayoutStatusOnHold, &reason
	}
	return enums.PayoutStatusPending, nil
}

func (e *Engine) notifyCreated(ctx context.Context, payout *models.Payout) {
	beneficiary := payout.BeneficiaryID
	message := fmt.Sprintf("%s bonus of %s credited", payout.BonusType, payout.Gross.StringFixed(2))
	if payout.Status == enums.PayoutStatusOnHold {
		message += " and placed on hold"
	}
	e.notify.Notify(ctx, notifications.Notice{
		MemberID: &beneficiary,
		Type:     enums.NotificationTypePayoutCreated,
		Title:    "Bonus credited",
		Message:  message,
	})
}

// ReleaseReport summarizes a hold release pass.
type ReleaseReport struct {
	Checked  int   `json:"checked"`
	Released int   `json:"released"`
	Failed   int   `json:"failed"`
	Err      error `json:"-"`
}

// ReleaseHolds moves every on-hold payout whose beneficiary now qualifies
// back to pending. Amounts never change.
func (e *Engine) ReleaseHolds(ctx context.Context) (*ReleaseReport, error) {
	report := &ReleaseReport{}
	after := uuid.Nil
	for {
		rows, err := e.repo.ListByStatus(ctx, enums.PayoutStatusOnHold, after, pageSize)
		if err != nil {
			return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list held payouts")
		}
		for _, payout := range rows {
			report.Checked++
			released, err := e.release(ctx, payout)
			if err != nil {
				report.Failed++
				report.Err = multierr.Append(report.Err, fmt.Errorf("payout %s: %w", payout.ID, err))
				e.logg.Error(e.logg.WithField(ctx, "payout_id", payout.ID.String()), "release hold failed", err)
				continue
			}
			if released {
				report.Released++
			}
		}
		if len(rows) < pageSize {
			break
		}
		after = rows[len(rows)-1].ID
	}
	e.metrics.AddReleased(report.Released)
	return report, nil
}

func (e *Engine) release(ctx context.Context, payout models.Payout) (bool, error) {
	beneficiary, err := e.members.FindByID(ctx, payout.BeneficiaryID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load beneficiary")
	}
	wallet, err := e.wallets.Lookup(ctx, payout.BeneficiaryID)
	if err != nil {
		return false, err
	}
	lifetime, err := e.ledger.LifetimeTotal(ctx, payout.BeneficiaryID)
	if err != nil {
		return false, err
	}
	// The credit mirror may still be missing before reconciliation.
	if lifetime.LessThan(payout.Gross) {
		lifetime = payout.Gross
	}
	if status, _ := e.classify(wallet, beneficiary.PersonalVolume, lifetime); status != enums.PayoutStatusPending {
		return false, nil
	}

	if _, err := e.repo.TransitionStatus(ctx, payout.ID, enums.PayoutStatusPending, StatusChange{}); err != nil {
		return false, err
	}
	return true, nil
}

// ReconcileReport summarizes a reconciliation pass.
type ReconcileReport struct {
	Scanned         int   `json:"scanned"`
	CreditsRepaired int   `json:"credits_repaired"`
	DebitsRepaired  int   `json:"debits_repaired"`
	FlagsRepaired   int   `json:"flags_repaired"`
	Failed          int   `json:"failed"`
	Err             error `json:"-"`
}

// Reconcile walks every payout and restores what a partial failure could
// have left behind: the ledger credit, the ledger debit of a completed
// payout, and the processed flag of its source.
func (e *Engine) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}
	after := uuid.Nil
	for {
		rows, err := e.repo.ListAfter(ctx, after, pageSize)
		if err != nil {
			return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
		}
		if err := e.reconcilePage(ctx, rows, report); err != nil {
			return report, err
		}
		if len(rows) < pageSize {
			return report, nil
		}
		after = rows[len(rows)-1].ID
	}
}

func (e *Engine) reconcilePage(ctx context.Context, rows []models.Payout, report *ReconcileReport) error {
	var orderIDs, qualificationIDs []uuid.UUID
	for _, payout := range rows {
		switch payout.SourceType {
		case SourceTypeOrder:
			orderIDs = append(orderIDs, payout.SourceID)
		case SourceTypeRankQualification:
			qualificationIDs = append(qualificationIDs, payout.SourceID)
		}
	}
	sourceOrders, err := e.orders.FindMany(ctx, orderIDs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load source orders")
	}
	qualifications, err := e.ranks.FindQualifications(ctx, qualificationIDs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load source qualifications")
	}

	for _, payout := range rows {
		report.Scanned++
		if err := e.reconcileOne(ctx, payout, sourceOrders, qualifications, report); err != nil {
			report.Failed++
			report.Err = multierr.Append(report.Err, fmt.Errorf("payout %s: %w", payout.ID, err))
			e.logg.Error(e.logg.WithField(ctx, "payout_id", payout.ID.String()), "reconcile payout failed", err)
		}
	}
	return nil
}

func (e *Engine) reconcileOne(
	ctx context.Context,
	payout models.Payout,
	sourceOrders map[uuid.UUID]models.Order,
	qualifications map[uuid.UUID]models.RankQualification,
	report *ReconcileReport,
) error {
	hasCredit, err := e.ledger.HasEvent(ctx, payout.ID, enums.LedgerEventTypePayoutCredit)
	if err != nil {
		return err
	}
	if !hasCredit {
		if _, err := e.ledger.RecordEvent(ctx, creditInput(&payout)); err != nil {
			return err
		}
		report.CreditsRepaired++
	}

	if payout.Status == enums.PayoutStatusCompleted {
		hasDebit, err := e.ledger.HasEvent(ctx, payout.ID, enums.LedgerEventTypePayoutDebit)
		if err != nil {
			return err
		}
		if !hasDebit {
			if _, err := e.ledger.RecordEvent(ctx, debitInput(&payout)); err != nil {
				return err
			}
			report.DebitsRepaired++
		}
	}

	switch payout.SourceType {
	case SourceTypeOrder:
		order, ok := sourceOrders[payout.SourceID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeIntegrity, "payout source order missing")
		}
		if !orders.BonusPaid(order, payout.BonusType) {
			set, err := e.orders.MarkBonusPaid(ctx, order.ID, payout.BonusType, payout.CreatedAt)
			if err != nil {
				return err
			}
			if set {
				report.FlagsRepaired++
			}
		}
	case SourceTypeRankQualification:
		qualification, ok := qualifications[payout.SourceID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeIntegrity, "payout source qualification missing")
		}
		if qualification.BonusPaidAt == nil {
			set, err := e.ranks.MarkBonusPaid(ctx, qualification.ID, payout.CreatedAt)
			if err != nil {
				return err
			}
			if set {
				report.FlagsRepaired++
			}
		}
	}
	return nil
}

func creditInput(payout *models.Payout) ledger.RecordLedgerEventInput {
	return ledger.RecordLedgerEventInput{
		MemberID: payout.BeneficiaryID,
		PayoutID: payout.ID,
		Type:     enums.LedgerEventTypePayoutCredit,
		Amount:   payout.Gross,
		Metadata: payoutMetadata(payout),
	}
}

func debitInput(payout *models.Payout) ledger.RecordLedgerEventInput {
	return ledger.RecordLedgerEventInput{
		MemberID: payout.BeneficiaryID,
		PayoutID: payout.ID,
		Type:     enums.LedgerEventTypePayoutDebit,
		Amount:   payout.Gross,
		Metadata: payoutMetadata(payout),
	}
}

func payoutMetadata(payout *models.Payout) json.RawMessage {
	raw, err := json.Marshal(map[string]any{
		"bonus_type":   payout.BonusType,
		"source_type":  payout.SourceType,
		"source_id":    payout.SourceID,
		"window_start": payout.WindowStart,
		"window_end":   payout.WindowEnd,
	})
	if err != nil {
		return nil
	}
	return raw
}

func percentOf(value, percent decimal.Decimal) decimal.Decimal {
	return value.Mul(percent).Div(hundred).Round(2)
}
