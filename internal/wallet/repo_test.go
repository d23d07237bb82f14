package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	"github.com/openagora/agora-backend/pkg/pagination"
)

func setupWalletTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	wallets := `
CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  agent_id TEXT,
  kind TEXT NOT NULL DEFAULT 'agent',
  status TEXT NOT NULL DEFAULT 'active',
  currency TEXT NOT NULL DEFAULT 'USD',
  provider_ref TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  from_wallet_id TEXT,
  to_wallet_id TEXT,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  status TEXT NOT NULL DEFAULT 'pending',
  external_ref TEXT,
  idempotency_key TEXT,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(wallets).Error)
	require.NoError(t, db.Exec(transactions).Error)
	return db
}

func insertWallet(t *testing.T, db *gorm.DB) *models.Wallet {
	t.Helper()

	agentID := uuid.New()
	w := &models.Wallet{
		ID:          uuid.New(),
		AgentID:     &agentID,
		Kind:        enums.WalletKindAgent,
		Status:      enums.WalletStatusActive,
		Currency:    enums.CurrencyUSD,
		ProviderRef: "cust-" + uuid.NewString()[:8],
	}
	require.NoError(t, db.Create(w).Error)
	return w
}

func insertTransaction(t *testing.T, db *gorm.DB, from, to *uuid.UUID, amount int64, status enums.TransactionStatus, created time.Time) *models.Transaction {
	t.Helper()

	txnType := enums.TransactionTypeTransfer
	if from == nil {
		txnType = enums.TransactionTypeMint
	}
	txn := &models.Transaction{
		ID:           uuid.New(),
		Type:         txnType,
		FromWalletID: from,
		ToWalletID:   to,
		AmountCents:  amount,
		Currency:     enums.CurrencyUSD,
		Status:       status,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	require.NoError(t, db.Create(txn).Error)
	return txn
}

func TestRepositorySumCompletedBalance(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	w := insertWallet(t, db)
	other := insertWallet(t, db)
	now := time.Now().UTC()

	// Completed credits and debits count; everything else is ignored.
	insertTransaction(t, db, nil, &w.ID, 10_000, enums.TransactionStatusCompleted, now.Add(-4*time.Minute))
	insertTransaction(t, db, &other.ID, &w.ID, 2_500, enums.TransactionStatusCompleted, now.Add(-3*time.Minute))
	insertTransaction(t, db, &w.ID, &other.ID, 4_000, enums.TransactionStatusCompleted, now.Add(-2*time.Minute))
	insertTransaction(t, db, &other.ID, &w.ID, 9_999, enums.TransactionStatusPending, now.Add(-time.Minute))
	insertTransaction(t, db, &w.ID, &other.ID, 8_888, enums.TransactionStatusFailed, now)

	balance, err := repo.SumCompletedBalance(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8_500), balance)

	// The counterparty sees the mirror image of the transfer legs.
	counter, err := repo.SumCompletedBalance(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500), counter)

	empty, err := repo.SumCompletedBalance(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestRepositoryListTransactions_cursor(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	w := insertWallet(t, db)
	other := insertWallet(t, db)
	now := time.Now().UTC().Truncate(time.Second)

	oldest := insertTransaction(t, db, nil, &w.ID, 1_000, enums.TransactionStatusCompleted, now.Add(-2*time.Hour))
	middle := insertTransaction(t, db, &w.ID, &other.ID, 2_000, enums.TransactionStatusCompleted, now.Add(-time.Hour))
	newest := insertTransaction(t, db, &other.ID, &w.ID, 3_000, enums.TransactionStatusCompleted, now)

	first, err := repo.ListTransactions(ctx, w.ID, 2, nil)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, newest.ID, first[0].ID)
	assert.Equal(t, middle.ID, first[1].ID)

	rest, err := repo.ListTransactions(ctx, w.ID, 2, &pagination.Cursor{
		CreatedAt: first[1].CreatedAt,
		ID:        first[1].ID,
	})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, oldest.ID, rest[0].ID)
}

func TestRepositoryFindTransactionByIdempotencyKey(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	w := insertWallet(t, db)
	other := insertWallet(t, db)
	txn := insertTransaction(t, db, &w.ID, &other.ID, 5_000, enums.TransactionStatusCompleted, time.Now().UTC())
	key := "escrow-release-" + uuid.NewString()
	require.NoError(t, db.Model(&models.Transaction{}).Where("id = ?", txn.ID).Update("idempotency_key", key).Error)

	found, err := repo.FindTransactionByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, found.ID)

	_, err = repo.FindTransactionByIdempotencyKey(ctx, "escrow-release-"+uuid.NewString())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
