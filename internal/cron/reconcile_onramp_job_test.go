package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/config"
	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	"github.com/openagora/agora-backend/pkg/logger"
)

type fakeLedgerStore struct {
	entries map[enums.LedgerEntryStatus][]models.LedgerEntry
	updates map[uuid.UUID][]map[string]any
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{
		entries: map[enums.LedgerEntryStatus][]models.LedgerEntry{},
		updates: map[uuid.UUID][]map[string]any{},
	}
}

func (f *fakeLedgerStore) ListLedgerEntriesByStatus(ctx context.Context, status enums.LedgerEntryStatus, staleBefore time.Time, limit int) ([]models.LedgerEntry, error) {
	rows := f.entries[status]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeLedgerStore) UpdateLedgerEntry(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	f.updates[id] = append(f.updates[id], updates)
	return nil
}

type fakeMinter struct {
	err    error
	minted []uuid.UUID
}

func (f *fakeMinter) MintFromEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if f.err != nil {
		return f.err
	}
	f.minted = append(f.minted, entry.ID)
	return nil
}

func newReconJob(t *testing.T, store *fakeLedgerStore, minter *fakeMinter) Job {
	t.Helper()
	job, err := NewReconcileOnrampJob(ReconcileOnrampJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Store:  store,
		Minter: minter,
		Config: config.ReconConfig{
			BatchSize:   100,
			StaleAfter:  15 * time.Minute,
			MaxAttempts: 5,
		},
	})
	if err != nil {
		t.Fatalf("NewReconcileOnrampJob: %v", err)
	}
	return job
}

func TestReconcileOnrampResumesSettledCharges(t *testing.T) {
	store := newFakeLedgerStore()
	stuck := models.LedgerEntry{
		ID:          uuid.New(),
		WalletID:    uuid.New(),
		Type:        enums.LedgerEntryTypeOnramp,
		Status:      enums.LedgerEntryStatusExternalCompleted,
		AmountCents: 5_000,
		ProviderRef: "sq-stuck",
	}
	store.entries[enums.LedgerEntryStatusExternalCompleted] = []models.LedgerEntry{stuck}
	minter := &fakeMinter{}

	if err := newReconJob(t, store, minter).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(minter.minted) != 1 || minter.minted[0] != stuck.ID {
		t.Fatalf("expected stuck entry to be minted, got %v", minter.minted)
	}
}

func TestReconcileOnrampEscalatesAfterMaxAttempts(t *testing.T) {
	store := newFakeLedgerStore()
	worn := models.LedgerEntry{
		ID:       uuid.New(),
		Status:   enums.LedgerEntryStatusExternalCompleted,
		Attempts: 4,
	}
	store.entries[enums.LedgerEntryStatusExternalCompleted] = []models.LedgerEntry{worn}
	minter := &fakeMinter{err: errors.New("mint keeps failing")}

	if err := newReconJob(t, store, minter).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	updates := store.updates[worn.ID]
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0]["status"] != enums.LedgerEntryStatusManualReview {
		t.Fatalf("expected escalation to manual review, got %v", updates[0]["status"])
	}
}

func TestReconcileOnrampFlagsStalePending(t *testing.T) {
	store := newFakeLedgerStore()
	unknown := models.LedgerEntry{
		ID:     uuid.New(),
		Status: enums.LedgerEntryStatusPending,
	}
	store.entries[enums.LedgerEntryStatusPending] = []models.LedgerEntry{unknown}
	minter := &fakeMinter{}

	if err := newReconJob(t, store, minter).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	updates := store.updates[unknown.ID]
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0]["status"] != enums.LedgerEntryStatusManualReview {
		t.Fatalf("expected manual review, got %v", updates[0]["status"])
	}
}
