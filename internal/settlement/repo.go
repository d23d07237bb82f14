package settlement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
)

// Repository persists escrow locks and settlements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateEscrowLock(ctx context.Context, lock *models.EscrowLock) error
	FindEscrowLock(ctx context.Context, id uuid.UUID) (*models.EscrowLock, error)
	FindEscrowLockByBid(ctx context.Context, bidID uuid.UUID) (*models.EscrowLock, error)
	FindEscrowLockByAsk(ctx context.Context, askID uuid.UUID) (*models.EscrowLock, error)
	UpdateEscrowLockStatus(ctx context.Context, id uuid.UUID, status enums.EscrowLockStatus) error

	CreateSettlement(ctx context.Context, settlement *models.Settlement) error
	FindSettlement(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
	FindSettlementByLock(ctx context.Context, escrowLockID uuid.UUID) (*models.Settlement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a gorm-backed settlement repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateEscrowLock(ctx context.Context, lock *models.EscrowLock) error {
	return r.db.WithContext(ctx).Create(lock).Error
}

func (r *repository) FindEscrowLock(ctx context.Context, id uuid.UUID) (*models.EscrowLock, error) {
	var lock models.EscrowLock
	if err := r.db.WithContext(ctx).First(&lock, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lock, nil
}

func (r *repository) FindEscrowLockByBid(ctx context.Context, bidID uuid.UUID) (*models.EscrowLock, error) {
	var lock models.EscrowLock
	if err := r.db.WithContext(ctx).First(&lock, "bid_id = ?", bidID).Error; err != nil {
		return nil, err
	}
	return &lock, nil
}

func (r *repository) FindEscrowLockByAsk(ctx context.Context, askID uuid.UUID) (*models.EscrowLock, error) {
	var lock models.EscrowLock
	err := r.db.WithContext(ctx).
		Where("ask_id = ?", askID).
		Order("created_at DESC").
		First(&lock).Error
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

func (r *repository) UpdateEscrowLockStatus(ctx context.Context, id uuid.UUID, status enums.EscrowLockStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.EscrowLock{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	return r.db.WithContext(ctx).Create(settlement).Error
}

func (r *repository) FindSettlement(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var s models.Settlement
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) FindSettlementByLock(ctx context.Context, escrowLockID uuid.UUID) (*models.Settlement, error) {
	var s models.Settlement
	if err := r.db.WithContext(ctx).First(&s, "escrow_lock_id = ?", escrowLockID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
