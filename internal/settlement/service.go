package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/openagora/agora-backend/internal/wallet"
	"github.com/openagora/agora-backend/pkg/config"
	dbpkg "github.com/openagora/agora-backend/pkg/db"
	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	pkgerrors "github.com/openagora/agora-backend/pkg/errors"
	"github.com/openagora/agora-backend/pkg/logger"
	"github.com/openagora/agora-backend/pkg/outbox"
	"github.com/openagora/agora-backend/pkg/outbox/payloads"
	pkgredis "github.com/openagora/agora-backend/pkg/redis"
)

const (
	revenueRetryBase    = 200 * time.Millisecond
	revenueRetryMax     = 4
	releaseGuardTTL     = 10 * time.Minute
	idempotencyScopeRel = "settlement.release"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// walletOps is the slice of the wallet service the settlement engine needs.
type walletOps interface {
	Transfer(ctx context.Context, input wallet.TransferInput) (*models.Transaction, error)
	PlatformWallet(ctx context.Context, kind enums.WalletKind) (*models.Wallet, error)
}

// LockInput describes the escrow hold taken when a bid is accepted.
type LockInput struct {
	AskID           uuid.UUID
	BidID           uuid.UUID
	BuyerWalletID   uuid.UUID
	BaseAmountCents int64
	Currency        enums.Currency
}

// ReleaseInput settles a held lock toward the winning seller.
type ReleaseInput struct {
	EscrowLockID   uuid.UUID
	SellerWalletID uuid.UUID
}

// Service is the escrow settlement engine: it holds buyer funds when a
// bid wins and splits them into payout and platform revenue on delivery.
type Service interface {
	Quote(baseCents int64) FeeBreakdown
	LockFunds(ctx context.Context, input LockInput) (*models.EscrowLock, error)
	ReleaseFunds(ctx context.Context, input ReleaseInput) (*models.Settlement, error)
	RefundLock(ctx context.Context, escrowLockID uuid.UUID) (*models.EscrowLock, error)
	GetLockByBid(ctx context.Context, bidID uuid.UUID) (*models.EscrowLock, error)
	GetSettlementByLock(ctx context.Context, escrowLockID uuid.UUID) (*models.Settlement, error)
}

// ServiceParams groups dependencies for the settlement service.
type ServiceParams struct {
	Repo        Repository
	Tx          txRunner
	Outbox      outboxPublisher
	Wallets     walletOps
	Fees        config.FeesConfig
	Idempotency pkgredis.IdempotencyStore
	Logger      *logger.Logger
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	wallets     walletOps
	fees        config.FeesConfig
	idempotency pkgredis.IdempotencyStore
	logg        *logger.Logger
}

// NewService builds the settlement engine. The idempotency store is
// optional; without it concurrent releases fall back to the settlement
// unique index alone.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		outbox:      params.Outbox,
		wallets:     params.Wallets,
		fees:        params.Fees,
		idempotency: params.Idempotency,
		logg:        params.Logger,
	}, nil
}

func (s *service) Quote(baseCents int64) FeeBreakdown {
	return ComputeFees(baseCents, s.fees)
}

// LockFunds moves price plus buyer fee from the buyer wallet into the
// escrow wallet and records the hold. A second lock for the same bid is
// a state conflict; the bid unique index backs this up at the database.
func (s *service) LockFunds(ctx context.Context, input LockInput) (*models.EscrowLock, error) {
	if input.AskID == uuid.Nil || input.BidID == uuid.Nil || input.BuyerWalletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ask, bid and buyer wallet ids required")
	}
	if input.BaseAmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base amount must be positive")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", input.Currency))
	}

	if existing, err := s.repo.FindEscrowLockByBid(ctx, input.BidID); err == nil {
		return existing, pkgerrors.New(pkgerrors.CodeStateConflict, "bid already has an escrow lock")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing lock")
	}

	escrowWallet, err := s.wallets.PlatformWallet(ctx, enums.WalletKindEscrow)
	if err != nil {
		return nil, err
	}

	breakdown := s.Quote(input.BaseAmountCents)
	metadata, _ := json.Marshal(map[string]string{
		"ask_id": input.AskID.String(),
		"bid_id": input.BidID.String(),
	})

	lockTxn, err := s.wallets.Transfer(ctx, wallet.TransferInput{
		FromWalletID:   input.BuyerWalletID,
		ToWalletID:     escrowWallet.ID,
		AmountCents:    breakdown.TotalCents,
		Currency:       input.Currency,
		Type:           enums.TransactionTypeEscrowLock,
		IdempotencyKey: fmt.Sprintf("escrow-lock-%s", input.BidID),
		Metadata:       metadata,
	})
	if err != nil {
		return nil, err
	}

	lock := &models.EscrowLock{
		AskID:             input.AskID,
		BidID:             input.BidID,
		BuyerWalletID:     input.BuyerWalletID,
		BaseAmountCents:   breakdown.BaseCents,
		BuyerFeeCents:     breakdown.BuyerFeeCents,
		TotalAmountCents:  breakdown.TotalCents,
		Currency:          input.Currency,
		Status:            enums.EscrowLockStatusLocked,
		LockTransactionID: &lockTxn.ID,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateEscrowLock(ctx, lock); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEscrowLocked,
			AggregateType: enums.AggregateEscrowLock,
			AggregateID:   lock.ID,
			Version:       1,
			Data: payloads.EscrowLockedEvent{
				EscrowLockID:     lock.ID,
				AskID:            input.AskID,
				BidID:            input.BidID,
				BuyerWalletID:    input.BuyerWalletID,
				TotalAmountCents: breakdown.TotalCents,
			},
		})
	})
	if err != nil {
		// The hold already moved; push it back before surfacing the error.
		s.compensateLock(ctx, escrowWallet.ID, input, breakdown.TotalCents)
		if dbpkg.IsUniqueViolation(err, "ux_escrow_locks_bid_id") {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "bid already has an escrow lock")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record escrow lock")
	}

	s.logg.Info(s.logg.WithAskID(ctx, input.AskID.String()), "escrow funds locked")
	return lock, nil
}

func (s *service) compensateLock(ctx context.Context, escrowWalletID uuid.UUID, input LockInput, totalCents int64) {
	_, err := s.wallets.Transfer(ctx, wallet.TransferInput{
		FromWalletID:   escrowWalletID,
		ToWalletID:     input.BuyerWalletID,
		AmountCents:    totalCents,
		Currency:       input.Currency,
		Type:           enums.TransactionTypeEscrowRelease,
		IdempotencyKey: fmt.Sprintf("escrow-lock-compensate-%s", input.BidID),
	})
	if err != nil {
		s.logg.Error(ctx, "escrow lock compensation failed, funds stranded in escrow", err)
	}
}

// ReleaseFunds splits a locked hold: base minus seller fee to the seller,
// both fees to the revenue wallet, one settlement row per lock.
func (s *service) ReleaseFunds(ctx context.Context, input ReleaseInput) (*models.Settlement, error) {
	if input.EscrowLockID == uuid.Nil || input.SellerWalletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "escrow lock and seller wallet ids required")
	}

	lock, err := s.repo.FindEscrowLock(ctx, input.EscrowLockID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow lock not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow lock")
	}
	if lock.Status == enums.EscrowLockStatusReleased {
		// An earlier release may have settled the lock but its caller
		// failed afterwards. Retries converge on the recorded row.
		settled, findErr := s.repo.FindSettlementByLock(ctx, lock.ID)
		if findErr == nil {
			return settled, nil
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load settlement for released lock")
		}
	}
	if lock.Status != enums.EscrowLockStatusLocked {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("escrow lock is %s, not locked", lock.Status))
	}

	if err := s.acquireReleaseGuard(ctx, lock.ID); err != nil {
		return nil, err
	}

	escrowWallet, err := s.wallets.PlatformWallet(ctx, enums.WalletKindEscrow)
	if err != nil {
		return nil, err
	}
	revenueWallet, err := s.wallets.PlatformWallet(ctx, enums.WalletKindRevenue)
	if err != nil {
		return nil, err
	}

	breakdown := s.Quote(lock.BaseAmountCents)

	payoutTxn, err := s.wallets.Transfer(ctx, wallet.TransferInput{
		FromWalletID:   escrowWallet.ID,
		ToWalletID:     input.SellerWalletID,
		AmountCents:    breakdown.PayoutCents,
		Currency:       lock.Currency,
		Type:           enums.TransactionTypeEscrowRelease,
		IdempotencyKey: fmt.Sprintf("escrow-release-%s", lock.ID),
	})
	if err != nil {
		s.releaseGuard(ctx, lock.ID)
		return nil, err
	}

	// The payout already left escrow; the revenue leg must land, so it
	// retries through transient provider errors.
	var revenueTxn *models.Transaction
	backoff := retry.WithMaxRetries(revenueRetryMax, retry.NewExponential(revenueRetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		txn, txErr := s.wallets.Transfer(ctx, wallet.TransferInput{
			FromWalletID:   escrowWallet.ID,
			ToWalletID:     revenueWallet.ID,
			AmountCents:    breakdown.RevenueCents,
			Currency:       lock.Currency,
			Type:           enums.TransactionTypeFee,
			IdempotencyKey: fmt.Sprintf("escrow-revenue-%s", lock.ID),
		})
		if txErr != nil {
			if pkgerrors.HasCode(txErr, pkgerrors.CodeDependency) {
				return retry.RetryableError(txErr)
			}
			return txErr
		}
		revenueTxn = txn
		return nil
	})
	if err != nil {
		s.logg.Error(ctx, "revenue sweep failed after payout, settlement incomplete", err)
		// Clear the guard so the next attempt can finish the sweep; the
		// transfer idempotency keys keep the legs from doubling up.
		s.releaseGuard(ctx, lock.ID)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "collect platform revenue")
	}

	settlement := &models.Settlement{
		EscrowLockID:         lock.ID,
		AskID:                lock.AskID,
		SellerWalletID:       input.SellerWalletID,
		BaseAmountCents:      breakdown.BaseCents,
		BuyerFeeCents:        breakdown.BuyerFeeCents,
		SellerFeeCents:       breakdown.SellerFeeCents,
		PayoutCents:          breakdown.PayoutCents,
		RevenueCents:         breakdown.RevenueCents,
		Currency:             lock.Currency,
		PayoutTransactionID:  &payoutTxn.ID,
		RevenueTransactionID: &revenueTxn.ID,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateSettlement(ctx, settlement); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_settlements_escrow_lock_id") {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow lock already settled")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create settlement")
		}
		if err := repo.UpdateEscrowLockStatus(ctx, lock.ID, enums.EscrowLockStatusReleased); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release escrow lock")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEscrowReleased,
			AggregateType: enums.AggregateEscrowLock,
			AggregateID:   lock.ID,
			Version:       1,
			Data: payloads.EscrowReleasedEvent{
				EscrowLockID:   lock.ID,
				SettlementID:   settlement.ID,
				SellerWalletID: input.SellerWalletID,
				PayoutCents:    breakdown.PayoutCents,
				RevenueCents:   breakdown.RevenueCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithAskID(ctx, lock.AskID.String()), "escrow released")
	return settlement, nil
}

// RefundLock returns the full hold, fee included, to the buyer. Used when
// an ask is cancelled after funds were locked.
func (s *service) RefundLock(ctx context.Context, escrowLockID uuid.UUID) (*models.EscrowLock, error) {
	if escrowLockID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "escrow lock id required")
	}
	lock, err := s.repo.FindEscrowLock(ctx, escrowLockID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow lock not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow lock")
	}
	if lock.Status != enums.EscrowLockStatusLocked {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("escrow lock is %s, not locked", lock.Status))
	}

	escrowWallet, err := s.wallets.PlatformWallet(ctx, enums.WalletKindEscrow)
	if err != nil {
		return nil, err
	}
	if _, err := s.wallets.Transfer(ctx, wallet.TransferInput{
		FromWalletID:   escrowWallet.ID,
		ToWalletID:     lock.BuyerWalletID,
		AmountCents:    lock.TotalAmountCents,
		Currency:       lock.Currency,
		Type:           enums.TransactionTypeEscrowRelease,
		IdempotencyKey: fmt.Sprintf("escrow-refund-%s", lock.ID),
	}); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateEscrowLockStatus(ctx, lock.ID, enums.EscrowLockStatusRefunded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark lock refunded")
	}
	lock.Status = enums.EscrowLockStatusRefunded
	return lock, nil
}

func (s *service) GetLockByBid(ctx context.Context, bidID uuid.UUID) (*models.EscrowLock, error) {
	lock, err := s.repo.FindEscrowLockByBid(ctx, bidID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow lock not found for bid")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow lock")
	}
	return lock, nil
}

func (s *service) GetSettlementByLock(ctx context.Context, escrowLockID uuid.UUID) (*models.Settlement, error) {
	settlement, err := s.repo.FindSettlementByLock(ctx, escrowLockID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement")
	}
	return settlement, nil
}

func (s *service) acquireReleaseGuard(ctx context.Context, lockID uuid.UUID) error {
	if s.idempotency == nil {
		return nil
	}
	key := s.idempotency.IdempotencyKey(idempotencyScopeRel, lockID.String())
	ok, err := s.idempotency.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), releaseGuardTTL)
	if err != nil {
		// Redis being down must not block settlements.
		s.logg.Error(ctx, "release guard unavailable", err)
		return nil
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "release already in progress")
	}
	return nil
}

func (s *service) releaseGuard(ctx context.Context, lockID uuid.UUID) {
	if s.idempotency == nil {
		return
	}
	key := s.idempotency.IdempotencyKey(idempotencyScopeRel, lockID.String())
	if err := s.idempotency.Del(ctx, key); err != nil {
		s.logg.Error(ctx, "failed to clear release guard", err)
	}
}
