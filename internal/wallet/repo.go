package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	"github.com/openagora/agora-backend/pkg/pagination"
)

// Repository manages persistence for wallets, transactions, ledger
// entries, and provisioning intents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	FindWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	FindWalletByAgent(ctx context.Context, agentID uuid.UUID) (*models.Wallet, error)
	FindWalletByKind(ctx context.Context, kind enums.WalletKind) (*models.Wallet, error)
	CreateWallet(ctx context.Context, wallet *models.Wallet) error

	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	FindTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error
	CompleteTransaction(ctx context.Context, id uuid.UUID, externalRef string) error
	SumCompletedBalance(ctx context.Context, walletID uuid.UUID) (int64, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Transaction, error)

	CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	FindLedgerEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	FindLedgerEntryByProviderRef(ctx context.Context, providerRef string) (*models.LedgerEntry, error)
	UpdateLedgerEntry(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListLedgerEntriesByStatus(ctx context.Context, status enums.LedgerEntryStatus, staleBefore time.Time, limit int) ([]models.LedgerEntry, error)

	CreateWalletIntent(ctx context.Context, intent *models.WalletIntent) error
	FindWalletIntentByAgent(ctx context.Context, agentID uuid.UUID) (*models.WalletIntent, error)
	UpdateWalletIntent(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListWalletIntentsByStatus(ctx context.Context, status enums.WalletIntentStatus, limit int) ([]models.WalletIntent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindWalletByAgent(ctx context.Context, agentID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("agent_id = ?", agentID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindWalletByKind(ctx context.Context, kind enums.WalletKind) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("kind = ?", kind).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) CompleteTransaction(ctx context.Context, id uuid.UUID, externalRef string) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       enums.TransactionStatusCompleted,
			"external_ref": externalRef,
		}).Error
}

// SumCompletedBalance folds the transaction log: completed credits into
// the wallet minus completed debits out of it.
func (r *repository) SumCompletedBalance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select(`COALESCE(SUM(CASE
			WHEN to_wallet_id = ? THEN amount_cents
			WHEN from_wallet_id = ? THEN -amount_cents
			ELSE 0 END), 0)`,
			walletID, walletID).
		Where("status = ?", enums.TransactionStatusCompleted).
		Where("to_wallet_id = ? OR from_wallet_id = ?", walletID, walletID).
		Scan(&balance).Error
	return balance, err
}

func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("to_wallet_id = ? OR from_wallet_id = ?", walletID, walletID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var rows []models.Transaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindLedgerEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindLedgerEntryByProviderRef(ctx context.Context, providerRef string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).Where("provider_ref = ?", providerRef).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) UpdateLedgerEntry(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListLedgerEntriesByStatus(ctx context.Context, status enums.LedgerEntryStatus, staleBefore time.Time, limit int) ([]models.LedgerEntry, error) {
	var rows []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, staleBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CreateWalletIntent(ctx context.Context, intent *models.WalletIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *repository) FindWalletIntentByAgent(ctx context.Context, agentID uuid.UUID) (*models.WalletIntent, error) {
	var intent models.WalletIntent
	if err := r.db.WithContext(ctx).Where("agent_id = ?", agentID).First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) UpdateWalletIntent(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.WalletIntent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListWalletIntentsByStatus(ctx context.Context, status enums.WalletIntentStatus, limit int) ([]models.WalletIntent, error) {
	var rows []models.WalletIntent
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
