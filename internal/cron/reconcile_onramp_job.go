package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/openagora/agora-backend/pkg/config"
	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	"github.com/openagora/agora-backend/pkg/logger"
	"github.com/openagora/agora-backend/pkg/metrics"
)

type ledgerEntryStore interface {
	ListLedgerEntriesByStatus(ctx context.Context, status enums.LedgerEntryStatus, staleBefore time.Time, limit int) ([]models.LedgerEntry, error)
	UpdateLedgerEntry(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type entryMinter interface {
	MintFromEntry(ctx context.Context, entry *models.LedgerEntry) error
}

// ReconcileOnrampJobParams configure the deposit reconciliation sweep.
type ReconcileOnrampJobParams struct {
	Logger  *logger.Logger
	Store   ledgerEntryStore
	Minter  entryMinter
	Config  config.ReconConfig
	Metrics *metrics.LedgerMetrics
}

// NewReconcileOnrampJob builds the sweep that finishes deposits stuck
// between the external charge and the internal mint.
func NewReconcileOnrampJob(params ReconcileOnrampJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("ledger entry store required")
	}
	if params.Minter == nil {
		return nil, fmt.Errorf("entry minter required")
	}
	return &reconcileOnrampJob{
		logg:    params.Logger,
		store:   params.Store,
		minter:  params.Minter,
		cfg:     params.Config,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

type reconcileOnrampJob struct {
	logg    *logger.Logger
	store   ledgerEntryStore
	minter  entryMinter
	cfg     config.ReconConfig
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

func (j *reconcileOnrampJob) Name() string { return "reconcile-onramp" }

func (j *reconcileOnrampJob) Run(ctx context.Context) error {
	staleBefore := j.now().UTC().Add(-j.cfg.StaleAfter)

	var errs []error
	resumed, err := j.resumeExternalCompleted(ctx, staleBefore)
	if err != nil {
		errs = append(errs, err)
	}
	flagged, err := j.flagStalePending(ctx, staleBefore)
	if err != nil {
		errs = append(errs, err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"stale_before": staleBefore,
		"resumed":      resumed,
		"flagged":      flagged,
	})
	j.logg.Info(logCtx, "onramp reconciliation sweep complete")
	return multierr.Combine(errs...)
}

// resumeExternalCompleted replays the mint for charges that settled but
// never credited the wallet. MintFromEntry is idempotent per entry, so a
// crash mid-sweep just means the next sweep picks the entry up again.
func (j *reconcileOnrampJob) resumeExternalCompleted(ctx context.Context, staleBefore time.Time) (int, error) {
	entries, err := j.store.ListLedgerEntriesByStatus(ctx, enums.LedgerEntryStatusExternalCompleted, staleBefore, j.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list external_completed entries: %w", err)
	}

	resumed := 0
	for i := range entries {
		entry := entries[i]
		if err := j.minter.MintFromEntry(ctx, &entry); err != nil {
			j.handleMintFailure(ctx, entry, err)
			continue
		}
		resumed++
	}
	return resumed, nil
}

func (j *reconcileOnrampJob) handleMintFailure(ctx context.Context, entry models.LedgerEntry, cause error) {
	entryCtx := j.logg.WithField(ctx, "ledger_entry_id", entry.ID.String())
	j.logg.Error(entryCtx, "mint replay failed", cause)

	updates := map[string]any{
		"attempts":       gorm.Expr("attempts + 1"),
		"failure_reason": cause.Error(),
	}
	// After enough failed replays the entry needs a human.
	if entry.Attempts+1 >= j.cfg.MaxAttempts {
		updates["status"] = enums.LedgerEntryStatusManualReview
		if j.metrics != nil {
			j.metrics.IncOnramp(string(enums.LedgerEntryStatusManualReview))
		}
	}
	if err := j.store.UpdateLedgerEntry(ctx, entry.ID, updates); err != nil {
		j.logg.Error(entryCtx, "failed to record mint failure", err)
	}
}

// flagStalePending handles entries where the charge outcome is unknown:
// the card may or may not have been billed, so they go to manual review
// rather than failed.
func (j *reconcileOnrampJob) flagStalePending(ctx context.Context, staleBefore time.Time) (int, error) {
	entries, err := j.store.ListLedgerEntriesByStatus(ctx, enums.LedgerEntryStatusPending, staleBefore, j.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending entries: %w", err)
	}

	flagged := 0
	for _, entry := range entries {
		err := j.store.UpdateLedgerEntry(ctx, entry.ID, map[string]any{
			"status":         enums.LedgerEntryStatusManualReview,
			"failure_reason": "charge outcome unknown after stale window",
		})
		if err != nil {
			j.logg.Error(j.logg.WithField(ctx, "ledger_entry_id", entry.ID.String()), "failed to flag stale entry", err)
			continue
		}
		flagged++
		if j.metrics != nil {
			j.metrics.IncOnramp(string(enums.LedgerEntryStatusManualReview))
		}
	}
	return flagged, nil
}
