package tendering

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	"github.com/openagora/agora-backend/pkg/pagination"
)

// Repository persists asks and bids.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateAsk(ctx context.Context, ask *models.Ask) error
	FindAsk(ctx context.Context, id uuid.UUID) (*models.Ask, error)
	FindAskForUpdate(ctx context.Context, id uuid.UUID) (*models.Ask, error)
	UpdateAsk(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateAskStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.AskStatus) (bool, error)
	ListAsks(ctx context.Context, status *enums.AskStatus, limit int, cursor *pagination.Cursor) ([]models.Ask, error)

	CreateBid(ctx context.Context, bid *models.Bid) error
	FindBid(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	FindBidForUpdate(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	UpdateBidStatus(ctx context.Context, id uuid.UUID, status enums.BidStatus) error
	ListBidsForAsk(ctx context.Context, askID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Bid, error)
	RejectPendingBids(ctx context.Context, askID, exceptBidID uuid.UUID) ([]uuid.UUID, error)
	RestoreBidsToPending(ctx context.Context, bidIDs []uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a gorm-backed tendering repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAsk(ctx context.Context, ask *models.Ask) error {
	return r.db.WithContext(ctx).Create(ask).Error
}

func (r *repository) FindAsk(ctx context.Context, id uuid.UUID) (*models.Ask, error) {
	var ask models.Ask
	if err := r.db.WithContext(ctx).First(&ask, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ask, nil
}

func (r *repository) FindAskForUpdate(ctx context.Context, id uuid.UUID) (*models.Ask, error) {
	var ask models.Ask
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&ask, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &ask, nil
}

func (r *repository) UpdateAsk(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Ask{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateAskStatusGuarded flips status only when the row is still in the
// expected state. Returns false when another writer got there first.
func (r *repository) UpdateAskStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.AskStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Ask{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListAsks(ctx context.Context, status *enums.AskStatus, limit int, cursor *pagination.Cursor) ([]models.Ask, error) {
	query := r.db.WithContext(ctx).Model(&models.Ask{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var asks []models.Ask
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&asks).Error
	return asks, err
}

func (r *repository) CreateBid(ctx context.Context, bid *models.Bid) error {
	return r.db.WithContext(ctx).Create(bid).Error
}

func (r *repository) FindBid(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	if err := r.db.WithContext(ctx).First(&bid, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *repository) FindBidForUpdate(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&bid, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *repository) UpdateBidStatus(ctx context.Context, id uuid.UUID, status enums.BidStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) ListBidsForAsk(ctx context.Context, askID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Bid, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("ask_id = ?", askID)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var bids []models.Bid
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&bids).Error
	return bids, err
}

// RejectPendingBids flips every sibling still pending and returns their
// ids so a failed accept can put them back.
func (r *repository) RejectPendingBids(ctx context.Context, askID, exceptBidID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("ask_id = ? AND id <> ? AND status = ?", askID, exceptBidID, enums.BidStatusPending).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	err = r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id IN ?", ids).
		Update("status", enums.BidStatusRejected).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) RestoreBidsToPending(ctx context.Context, bidIDs []uuid.UUID) error {
	if len(bidIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id IN ?", bidIDs).
		Update("status", enums.BidStatusPending).Error
}
