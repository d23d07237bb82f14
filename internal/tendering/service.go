package tendering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openagora/agora-backend/internal/settlement"
	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	pkgerrors "github.com/openagora/agora-backend/pkg/errors"
	"github.com/openagora/agora-backend/pkg/identity"
	"github.com/openagora/agora-backend/pkg/logger"
	"github.com/openagora/agora-backend/pkg/outbox"
	"github.com/openagora/agora-backend/pkg/outbox/payloads"
	"github.com/openagora/agora-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// settlementOps is the slice of the settlement engine the tendering
// lifecycle drives.
type settlementOps interface {
	LockFunds(ctx context.Context, input settlement.LockInput) (*models.EscrowLock, error)
	ReleaseFunds(ctx context.Context, input settlement.ReleaseInput) (*models.Settlement, error)
	GetLockByBid(ctx context.Context, bidID uuid.UUID) (*models.EscrowLock, error)
}

type walletResolver interface {
	EnsureWallet(ctx context.Context, agentID uuid.UUID) (*models.Wallet, error)
}

// CreateAskInput carries a buyer's new work request.
type CreateAskInput struct {
	CreatorAgentID  uuid.UUID
	Title           string
	Description     string
	Requirements    json.RawMessage
	MinBudgetCents  int64
	MaxBudgetCents  int64
	BudgetFlexCents *int64
	Currency        enums.Currency
}

// PlaceBidInput carries a seller's priced proposal.
type PlaceBidInput struct {
	BidderAgentID uuid.UUID
	AskID         uuid.UUID
	PriceCents    int64
	Proposal      string
	EstimatedSecs *int64
	Currency      enums.Currency
}

// AcceptResult bundles the winning bid with its escrow hold.
type AcceptResult struct {
	Ask        *models.Ask
	Bid        *models.Bid
	EscrowLock *models.EscrowLock
}

// DeliveryResult bundles the completed ask with its settlement.
type DeliveryResult struct {
	Ask        *models.Ask
	Settlement *models.Settlement
}

// Service runs the ask/bid tendering lifecycle.
type Service interface {
	CreateAsk(ctx context.Context, input CreateAskInput) (*models.Ask, error)
	PlaceBid(ctx context.Context, input PlaceBidInput) (*models.Bid, error)
	AcceptBid(ctx context.Context, callerAgentID, bidID uuid.UUID) (*AcceptResult, error)
	CancelAsk(ctx context.Context, callerAgentID, askID uuid.UUID) (*models.Ask, error)
	SubmitDelivery(ctx context.Context, callerAgentID, bidID uuid.UUID, deliveryProof json.RawMessage) (*DeliveryResult, error)

	GetAsk(ctx context.Context, askID uuid.UUID) (*models.Ask, error)
	GetBid(ctx context.Context, bidID uuid.UUID) (*models.Bid, error)
	ListAsks(ctx context.Context, status *enums.AskStatus, params pagination.Params) (pagination.Page[models.Ask], error)
	ListBids(ctx context.Context, askID uuid.UUID, params pagination.Params) (pagination.Page[models.Bid], error)
}

// ServiceParams groups dependencies for the tendering service.
type ServiceParams struct {
	Repo        Repository
	Tx          txRunner
	Outbox      outboxPublisher
	Settlements settlementOps
	Wallets     walletResolver
	Directory   identity.Directory
	Logger      *logger.Logger
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	settlements settlementOps
	wallets     walletResolver
	directory   identity.Directory
	logg        *logger.Logger
}

// NewService builds the tendering service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("tendering repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Settlements == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if params.Directory == nil {
		return nil, fmt.Errorf("agent directory required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		outbox:      params.Outbox,
		settlements: params.Settlements,
		wallets:     params.Wallets,
		directory:   params.Directory,
		logg:        params.Logger,
	}, nil
}

// CreateAsk validates the buyer's role and budget range and opens the ask.
func (s *service) CreateAsk(ctx context.Context, input CreateAskInput) (*models.Ask, error) {
	if input.CreatorAgentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator agent id required")
	}
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.MinBudgetCents <= 0 || input.MaxBudgetCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "budget must be positive")
	}
	if input.MaxBudgetCents < input.MinBudgetCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max budget must not be below min budget")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", input.Currency))
	}

	agent, err := s.directory.GetAgent(ctx, input.CreatorAgentID)
	if err != nil {
		return nil, err
	}
	if !agent.Role.CanBuy() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "agent role cannot post asks")
	}

	ask := &models.Ask{
		Title:           input.Title,
		Description:     input.Description,
		Requirements:    input.Requirements,
		MinBudgetCents:  input.MinBudgetCents,
		MaxBudgetCents:  input.MaxBudgetCents,
		BudgetFlexCents: input.BudgetFlexCents,
		CreatorAgentID:  input.CreatorAgentID,
		Status:          enums.AskStatusOpen,
		Currency:        input.Currency,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateAsk(ctx, ask); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ask")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAskCreated,
			AggregateType: enums.AggregateAsk,
			AggregateID:   ask.ID,
			Actor:         &outbox.ActorRef{AgentID: input.CreatorAgentID},
			Version:       1,
			Data: payloads.AskCreatedEvent{
				AskID:          ask.ID,
				CreatorAgentID: input.CreatorAgentID,
				MinBudgetCents: input.MinBudgetCents,
				MaxBudgetCents: input.MaxBudgetCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithAskID(ctx, ask.ID.String()), "ask created")
	return ask, nil
}

// PlaceBid validates the seller's role and the ask state and records the bid.
func (s *service) PlaceBid(ctx context.Context, input PlaceBidInput) (*models.Bid, error) {
	if input.BidderAgentID == uuid.Nil || input.AskID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bidder and ask ids required")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", input.Currency))
	}

	agent, err := s.directory.GetAgent(ctx, input.BidderAgentID)
	if err != nil {
		return nil, err
	}
	if !agent.Role.CanSell() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "agent role cannot place bids")
	}

	ask, err := s.GetAsk(ctx, input.AskID)
	if err != nil {
		return nil, err
	}
	if ask.Status != enums.AskStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("ask is %s, not open for bidding", ask.Status))
	}
	if ask.Currency != input.Currency {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid currency must match the ask")
	}

	bid := &models.Bid{
		AskID:         ask.ID,
		BidderAgentID: input.BidderAgentID,
		PriceCents:    input.PriceCents,
		Currency:      input.Currency,
		Proposal:      input.Proposal,
		EstimatedSecs: input.EstimatedSecs,
		Status:        enums.BidStatusPending,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateBid(ctx, bid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bid")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBidPlaced,
			AggregateType: enums.AggregateBid,
			AggregateID:   bid.ID,
			Actor:         &outbox.ActorRef{AgentID: input.BidderAgentID},
			Version:       1,
			Data: payloads.BidPlacedEvent{
				BidID:         bid.ID,
				AskID:         ask.ID,
				BidderAgentID: input.BidderAgentID,
				PriceCents:    input.PriceCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// AcceptBid picks the winner: the ask moves to in_progress, the winning
// bid to accepted, every pending sibling to rejected, then the escrow
// hold is taken. If the hold fails the local transitions are reverted
// and the settlement error surfaces untouched.
func (s *service) AcceptBid(ctx context.Context, callerAgentID, bidID uuid.UUID) (*AcceptResult, error) {
	if callerAgentID == uuid.Nil || bidID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "caller and bid ids required")
	}

	var (
		ask         *models.Ask
		bid         *models.Bid
		rejectedIDs []uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		bid, err = repo.FindBidForUpdate(ctx, bidID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bid")
		}
		ask, err = repo.FindAskForUpdate(ctx, bid.AskID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ask")
		}

		if ask.CreatorAgentID != callerAgentID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the ask creator can accept bids")
		}
		if bid.Status != enums.BidStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("bid is %s, not pending", bid.Status))
		}

		// The guarded flip is the single-winner gate: the first accept
		// wins the row, every racer sees zero rows affected.
		flipped, err := repo.UpdateAskStatusGuarded(ctx, ask.ID, enums.AskStatusOpen, enums.AskStatusInProgress)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition ask")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("ask is %s, not open", ask.Status))
		}
		ask.Status = enums.AskStatusInProgress

		if err := repo.UpdateBidStatus(ctx, bid.ID, enums.BidStatusAccepted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept bid")
		}
		bid.Status = enums.BidStatusAccepted

		rejectedIDs, err = repo.RejectPendingBids(ctx, ask.ID, bid.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject sibling bids")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBidAccepted,
			AggregateType: enums.AggregateBid,
			AggregateID:   bid.ID,
			Actor:         &outbox.ActorRef{AgentID: callerAgentID},
			Version:       1,
			Data: payloads.BidAcceptedEvent{
				BidID:         bid.ID,
				AskID:         ask.ID,
				BidderAgentID: bid.BidderAgentID,
				PriceCents:    bid.PriceCents,
				RejectedBids:  len(rejectedIDs),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	buyerWallet, err := s.wallets.EnsureWallet(ctx, ask.CreatorAgentID)
	if err != nil {
		s.revertAccept(ctx, ask, bid, rejectedIDs)
		return nil, err
	}

	lock, err := s.settlements.LockFunds(ctx, settlement.LockInput{
		AskID:           ask.ID,
		BidID:           bid.ID,
		BuyerWalletID:   buyerWallet.ID,
		BaseAmountCents: bid.PriceCents,
		Currency:        bid.Currency,
	})
	if err != nil {
		s.revertAccept(ctx, ask, bid, rejectedIDs)
		return nil, err
	}

	s.logg.Info(s.logg.WithAskID(ctx, ask.ID.String()), "bid accepted, escrow locked")
	return &AcceptResult{Ask: ask, Bid: bid, EscrowLock: lock}, nil
}

// revertAccept is the compensating step when the escrow hold cannot be
// taken: ask back to open, winner back to pending, siblings restored.
func (s *service) revertAccept(ctx context.Context, ask *models.Ask, bid *models.Bid, rejectedIDs []uuid.UUID) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.UpdateAskStatusGuarded(ctx, ask.ID, enums.AskStatusInProgress, enums.AskStatusOpen); err != nil {
			return err
		}
		if err := repo.UpdateBidStatus(ctx, bid.ID, enums.BidStatusPending); err != nil {
			return err
		}
		return repo.RestoreBidsToPending(ctx, rejectedIDs)
	})
	if err != nil {
		s.logg.Error(s.logg.WithAskID(ctx, ask.ID.String()), "accept revert failed, ask needs manual attention", err)
		return
	}
	ask.Status = enums.AskStatusOpen
	bid.Status = enums.BidStatusPending
	s.logg.Info(s.logg.WithAskID(ctx, ask.ID.String()), "accept reverted after lock failure")
}

// CancelAsk withdraws an open ask. Nothing is held yet, so no reversal.
func (s *service) CancelAsk(ctx context.Context, callerAgentID, askID uuid.UUID) (*models.Ask, error) {
	if callerAgentID == uuid.Nil || askID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "caller and ask ids required")
	}

	var ask *models.Ask
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		ask, err = repo.FindAskForUpdate(ctx, askID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ask not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ask")
		}
		if ask.CreatorAgentID != callerAgentID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the ask creator can cancel")
		}
		flipped, err := repo.UpdateAskStatusGuarded(ctx, ask.ID, enums.AskStatusOpen, enums.AskStatusCancelled)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel ask")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("ask is %s, not open", ask.Status))
		}
		ask.Status = enums.AskStatusCancelled

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAskCancelled,
			AggregateType: enums.AggregateAsk,
			AggregateID:   ask.ID,
			Actor:         &outbox.ActorRef{AgentID: callerAgentID},
			Version:       1,
			Data: payloads.AskCancelledEvent{
				AskID:          ask.ID,
				CreatorAgentID: ask.CreatorAgentID,
				CancelledAt:    time.Now().UTC(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return ask, nil
}

// SubmitDelivery releases escrow toward the seller and completes the ask.
func (s *service) SubmitDelivery(ctx context.Context, callerAgentID, bidID uuid.UUID, deliveryProof json.RawMessage) (*DeliveryResult, error) {
	if callerAgentID == uuid.Nil || bidID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "caller and bid ids required")
	}

	bid, err := s.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.BidderAgentID != callerAgentID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the winning bidder can submit delivery")
	}
	if bid.Status != enums.BidStatusAccepted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("bid is %s, not accepted", bid.Status))
	}
	ask, err := s.GetAsk(ctx, bid.AskID)
	if err != nil {
		return nil, err
	}
	if ask.Status != enums.AskStatusInProgress {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("ask is %s, not in progress", ask.Status))
	}

	// An accepted bid with no hold means a prior accept half-finished.
	lock, err := s.settlements.GetLockByBid(ctx, bid.ID)
	if err != nil {
		return nil, err
	}

	sellerWallet, err := s.wallets.EnsureWallet(ctx, bid.BidderAgentID)
	if err != nil {
		return nil, err
	}

	stl, err := s.settlements.ReleaseFunds(ctx, settlement.ReleaseInput{
		EscrowLockID:   lock.ID,
		SellerWalletID: sellerWallet.ID,
	})
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updates := map[string]any{
			"status":        enums.AskStatusCompleted,
			"delivery_data": deliveryProof,
		}
		if err := repo.UpdateAsk(ctx, ask.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete ask")
		}
		ask.Status = enums.AskStatusCompleted
		ask.DeliveryData = deliveryProof

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAskCompleted,
			AggregateType: enums.AggregateAsk,
			AggregateID:   ask.ID,
			Actor:         &outbox.ActorRef{AgentID: callerAgentID},
			Version:       1,
			Data: payloads.AskCompletedEvent{
				AskID:        ask.ID,
				SettlementID: stl.ID,
				PayoutCents:  stl.PayoutCents,
				RevenueCents: stl.RevenueCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithAskID(ctx, ask.ID.String()), "delivery accepted, ask completed")
	return &DeliveryResult{Ask: ask, Settlement: stl}, nil
}

func (s *service) GetAsk(ctx context.Context, askID uuid.UUID) (*models.Ask, error) {
	ask, err := s.repo.FindAsk(ctx, askID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ask not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ask")
	}
	return ask, nil
}

func (s *service) GetBid(ctx context.Context, bidID uuid.UUID) (*models.Bid, error) {
	bid, err := s.repo.FindBid(ctx, bidID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bid")
	}
	return bid, nil
}

func (s *service) ListAsks(ctx context.Context, status *enums.AskStatus, params pagination.Params) (pagination.Page[models.Ask], error) {
	var page pagination.Page[models.Ask]
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return page, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListAsks(ctx, status, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return page, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list asks")
	}
	return pagination.BuildPage(rows, params.Limit, func(a models.Ask) pagination.Cursor {
		return pagination.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	}), nil
}

func (s *service) ListBids(ctx context.Context, askID uuid.UUID, params pagination.Params) (pagination.Page[models.Bid], error) {
	var page pagination.Page[models.Bid]
	if askID == uuid.Nil {
		return page, pkgerrors.New(pkgerrors.CodeValidation, "ask id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return page, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListBidsForAsk(ctx, askID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return page, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}
	return pagination.BuildPage(rows, params.Limit, func(b models.Bid) pagination.Cursor {
		return pagination.Cursor{CreatedAt: b.CreatedAt, ID: b.ID}
	}), nil
}
