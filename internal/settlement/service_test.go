package settlement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openagora/agora-backend/internal/wallet"
	"github.com/openagora/agora-backend/pkg/config"
	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	pkgerrors "github.com/openagora/agora-backend/pkg/errors"
	"github.com/openagora/agora-backend/pkg/logger"
	"github.com/openagora/agora-backend/pkg/outbox"
)

func TestComputeFees(t *testing.T) {
	fees := config.FeesConfig{BuyerFeeBps: 250, SellerFeeBps: 250}

	b := ComputeFees(120_000, fees)
	assert.Equal(t, int64(3_000), b.BuyerFeeCents)
	assert.Equal(t, int64(3_000), b.SellerFeeCents)
	assert.Equal(t, int64(123_000), b.TotalCents)
	assert.Equal(t, int64(117_000), b.PayoutCents)
	assert.Equal(t, int64(6_000), b.RevenueCents)

	// Conservation: everything the buyer pays reaches seller or platform.
	assert.Equal(t, b.TotalCents, b.PayoutCents+b.RevenueCents)

	small := ComputeFees(25, fees)
	assert.Equal(t, int64(1), small.BuyerFeeCents)

	tiny := ComputeFees(19, fees)
	assert.Equal(t, int64(0), tiny.BuyerFeeCents)
	assert.Equal(t, tiny.BaseCents, tiny.PayoutCents)
}

type fakeSettlementRepo struct {
	locks       map[uuid.UUID]*models.EscrowLock
	settlements map[uuid.UUID]*models.Settlement

	createLockErr       error
	createSettlementErr error
}

func newFakeSettlementRepo() *fakeSettlementRepo {
	return &fakeSettlementRepo{
		locks:       map[uuid.UUID]*models.EscrowLock{},
		settlements: map[uuid.UUID]*models.Settlement{},
	}
}

func (f *fakeSettlementRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeSettlementRepo) CreateEscrowLock(ctx context.Context, lock *models.EscrowLock) error {
	if f.createLockErr != nil {
		return f.createLockErr
	}
	if lock.ID == uuid.Nil {
		lock.ID = uuid.New()
	}
	f.locks[lock.ID] = lock
	return nil
}

func (f *fakeSettlementRepo) FindEscrowLock(ctx context.Context, id uuid.UUID) (*models.EscrowLock, error) {
	if l, ok := f.locks[id]; ok {
		return l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSettlementRepo) FindEscrowLockByBid(ctx context.Context, bidID uuid.UUID) (*models.EscrowLock, error) {
	for _, l := range f.locks {
		if l.BidID == bidID {
			return l, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSettlementRepo) FindEscrowLockByAsk(ctx context.Context, askID uuid.UUID) (*models.EscrowLock, error) {
	for _, l := range f.locks {
		if l.AskID == askID {
			return l, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSettlementRepo) UpdateEscrowLockStatus(ctx context.Context, id uuid.UUID, status enums.EscrowLockStatus) error {
	l, ok := f.locks[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.Status = status
	return nil
}

func (f *fakeSettlementRepo) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	if f.createSettlementErr != nil {
		return f.createSettlementErr
	}
	if settlement.ID == uuid.Nil {
		settlement.ID = uuid.New()
	}
	f.settlements[settlement.ID] = settlement
	return nil
}

func (f *fakeSettlementRepo) FindSettlement(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	if s, ok := f.settlements[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSettlementRepo) FindSettlementByLock(ctx context.Context, escrowLockID uuid.UUID) (*models.Settlement, error) {
	for _, s := range f.settlements {
		if s.EscrowLockID == escrowLockID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeWalletOps struct {
	escrowWallet  *models.Wallet
	revenueWallet *models.Wallet
	transfers     []wallet.TransferInput
	failTypes     map[enums.TransactionType]error
	failCount     map[enums.TransactionType]int
}

func newFakeWalletOps() *fakeWalletOps {
	return &fakeWalletOps{
		escrowWallet:  &models.Wallet{ID: uuid.New(), Kind: enums.WalletKindEscrow, Status: enums.WalletStatusActive, Currency: enums.CurrencyUSD},
		revenueWallet: &models.Wallet{ID: uuid.New(), Kind: enums.WalletKindRevenue, Status: enums.WalletStatusActive, Currency: enums.CurrencyUSD},
		failTypes:     map[enums.TransactionType]error{},
		failCount:     map[enums.TransactionType]int{},
	}
}

func (f *fakeWalletOps) Transfer(ctx context.Context, input wallet.TransferInput) (*models.Transaction, error) {
	if err, ok := f.failTypes[input.Type]; ok {
		remaining := f.failCount[input.Type]
		if remaining != 0 {
			if remaining > 0 {
				f.failCount[input.Type] = remaining - 1
			}
			return nil, err
		}
	}
	f.transfers = append(f.transfers, input)
	return &models.Transaction{
		ID:           uuid.New(),
		Type:         input.Type,
		FromWalletID: &input.FromWalletID,
		ToWalletID:   &input.ToWalletID,
		AmountCents:  input.AmountCents,
		Currency:     input.Currency,
		Status:       enums.TransactionStatusCompleted,
		CreatedAt:    time.Now(),
	}, nil
}

func (f *fakeWalletOps) PlatformWallet(ctx context.Context, kind enums.WalletKind) (*models.Wallet, error) {
	switch kind {
	case enums.WalletKindEscrow:
		return f.escrowWallet, nil
	case enums.WalletKindRevenue:
		return f.revenueWallet, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform wallet kind required")
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeGuardStore struct {
	keys    map[string]string
	deleted []string
}

func newFakeGuardStore() *fakeGuardStore {
	return &fakeGuardStore{keys: map[string]string{}}
}

func (f *fakeGuardStore) Get(ctx context.Context, key string) (string, error) {
	return f.keys[key], nil
}

func (f *fakeGuardStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeGuardStore) IdempotencyKey(scope, id string) string {
	return "agora:idempotency:" + scope + ":" + id
}

func (f *fakeGuardStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
		f.deleted = append(f.deleted, key)
	}
	return nil
}

func newTestService(t *testing.T, repo *fakeSettlementRepo, wallets *fakeWalletOps) (Service, *fakeOutbox) {
	t.Helper()
	ob := &fakeOutbox{}
	svc, err := NewService(ServiceParams{
		Repo:    repo,
		Tx:      fakeTxRunner{},
		Outbox:  ob,
		Wallets: wallets,
		Fees:    config.FeesConfig{BuyerFeeBps: 250, SellerFeeBps: 250},
		Logger:  logger.New(logger.Options{ServiceName: "settlement-test", Level: zerolog.ErrorLevel}),
	})
	require.NoError(t, err)
	return svc, ob
}

func TestLockFunds(t *testing.T) {
	repo := newFakeSettlementRepo()
	wallets := newFakeWalletOps()
	svc, ob := newTestService(t, repo, wallets)

	input := LockInput{
		AskID:           uuid.New(),
		BidID:           uuid.New(),
		BuyerWalletID:   uuid.New(),
		BaseAmountCents: 120_000,
		Currency:        enums.CurrencyUSD,
	}
	lock, err := svc.LockFunds(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowLockStatusLocked, lock.Status)
	assert.Equal(t, int64(120_000), lock.BaseAmountCents)
	assert.Equal(t, int64(3_000), lock.BuyerFeeCents)
	assert.Equal(t, int64(123_000), lock.TotalAmountCents)
	require.NotNil(t, lock.LockTransactionID)

	require.Len(t, wallets.transfers, 1)
	moved := wallets.transfers[0]
	assert.Equal(t, enums.TransactionTypeEscrowLock, moved.Type)
	assert.Equal(t, int64(123_000), moved.AmountCents)
	assert.Equal(t, input.BuyerWalletID, moved.FromWalletID)
	assert.Equal(t, wallets.escrowWallet.ID, moved.ToWalletID)

	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventEscrowLocked, ob.events[0].EventType)

	// Same bid cannot be locked twice.
	_, err = svc.LockFunds(context.Background(), input)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	assert.Len(t, wallets.transfers, 1)
}

func TestLockFundsInsufficientBalance(t *testing.T) {
	repo := newFakeSettlementRepo()
	wallets := newFakeWalletOps()
	wallets.failTypes[enums.TransactionTypeEscrowLock] = pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient funds")
	wallets.failCount[enums.TransactionTypeEscrowLock] = -1
	svc, ob := newTestService(t, repo, wallets)

	_, err := svc.LockFunds(context.Background(), LockInput{
		AskID:           uuid.New(),
		BidID:           uuid.New(),
		BuyerWalletID:   uuid.New(),
		BaseAmountCents: 120_000,
		Currency:        enums.CurrencyUSD,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds))
	assert.Empty(t, repo.locks)
	assert.Empty(t, ob.events)
}

func seedLock(repo *fakeSettlementRepo) *models.EscrowLock {
	txnID := uuid.New()
	lock := &models.EscrowLock{
		ID:                uuid.New(),
		AskID:             uuid.New(),
		BidID:             uuid.New(),
		BuyerWalletID:     uuid.New(),
		BaseAmountCents:   120_000,
		BuyerFeeCents:     3_000,
		TotalAmountCents:  123_000,
		Currency:          enums.CurrencyUSD,
		Status:            enums.EscrowLockStatusLocked,
		LockTransactionID: &txnID,
	}
	repo.locks[lock.ID] = lock
	return lock
}

func TestReleaseFunds(t *testing.T) {
	repo := newFakeSettlementRepo()
	wallets := newFakeWalletOps()
	svc, ob := newTestService(t, repo, wallets)
	lock := seedLock(repo)
	sellerWalletID := uuid.New()

	settlement, err := svc.ReleaseFunds(context.Background(), ReleaseInput{
		EscrowLockID:   lock.ID,
		SellerWalletID: sellerWalletID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(117_000), settlement.PayoutCents)
	assert.Equal(t, int64(6_000), settlement.RevenueCents)
	assert.Equal(t, int64(3_000), settlement.SellerFeeCents)
	require.NotNil(t, settlement.PayoutTransactionID)
	require.NotNil(t, settlement.RevenueTransactionID)
	assert.Equal(t, enums.EscrowLockStatusReleased, repo.locks[lock.ID].Status)

	require.Len(t, wallets.transfers, 2)
	payout, revenue := wallets.transfers[0], wallets.transfers[1]
	assert.Equal(t, enums.TransactionTypeEscrowRelease, payout.Type)
	assert.Equal(t, sellerWalletID, payout.ToWalletID)
	assert.Equal(t, int64(117_000), payout.AmountCents)
	assert.Equal(t, enums.TransactionTypeFee, revenue.Type)
	assert.Equal(t, wallets.revenueWallet.ID, revenue.ToWalletID)
	assert.Equal(t, int64(6_000), revenue.AmountCents)

	// Full conservation across both legs.
	assert.Equal(t, lock.TotalAmountCents, payout.AmountCents+revenue.AmountCents)

	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventEscrowReleased, ob.events[0].EventType)

	// A second release converges on the recorded settlement without
	// moving any more funds.
	again, err := svc.ReleaseFunds(context.Background(), ReleaseInput{
		EscrowLockID:   lock.ID,
		SellerWalletID: sellerWalletID,
	})
	require.NoError(t, err)
	assert.Equal(t, settlement.ID, again.ID)
	assert.Len(t, wallets.transfers, 2)
	assert.Len(t, ob.events, 1)
}

func TestReleaseFundsReturnsSettlementForReleasedLock(t *testing.T) {
	repo := newFakeSettlementRepo()
	wallets := newFakeWalletOps()
	svc, _ := newTestService(t, repo, wallets)
	lock := seedLock(repo)
	lock.Status = enums.EscrowLockStatusReleased

	settled := &models.Settlement{
		ID:             uuid.New(),
		EscrowLockID:   lock.ID,
		AskID:          lock.AskID,
		SellerWalletID: uuid.New(),
		PayoutCents:    117_000,
		RevenueCents:   6_000,
	}
	repo.settlements[settled.ID] = settled

	got, err := svc.ReleaseFunds(context.Background(), ReleaseInput{
		EscrowLockID:   lock.ID,
		SellerWalletID: settled.SellerWalletID,
	})
	require.NoError(t, err)
	assert.Equal(t, settled.ID, got.ID)
	assert.Empty(t, wallets.transfers)
}

func TestReleaseFundsRetriesRevenueLeg(t *testing.T) {
	repo := newFakeSettlementRepo()
	wallets := newFakeWalletOps()
	wallets.failTypes[enums.TransactionTypeFee] = pkgerrors.New(pkgerrors.CodeDependency, "provider blip")
	wallets.failCount[enums.TransactionTypeFee] = 2
	svc, _ := newTestService(t, repo, wallets)
	lock := seedLock(repo)

	settlement, err := svc.ReleaseFunds(context.Background(), ReleaseInput{
		EscrowLockID:   lock.ID,
		SellerWalletID: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6_000), settlement.RevenueCents)
	assert.Len(t, wallets.transfers, 2)
}

func TestReleaseFundsClearsGuardWhenRevenueLegExhausted(t *testing.T) {
	repo := newFakeSettlementRepo()
	wallets := newFakeWalletOps()
	wallets.failTypes[enums.TransactionTypeFee] = pkgerrors.New(pkgerrors.CodeDependency, "provider outage")
	wallets.failCount[enums.TransactionTypeFee] = -1
	guard := newFakeGuardStore()
	ob := &fakeOutbox{}
	svc, err := NewService(ServiceParams{
		Repo:        repo,
		Tx:          fakeTxRunner{},
		Outbox:      ob,
		Wallets:     wallets,
		Fees:        config.FeesConfig{BuyerFeeBps: 250, SellerFeeBps: 250},
		Idempotency: guard,
		Logger:      logger.New(logger.Options{ServiceName: "settlement-test", Level: zerolog.ErrorLevel}),
	})
	require.NoError(t, err)
	lock := seedLock(repo)

	_, err = svc.ReleaseFunds(context.Background(), ReleaseInput{
		EscrowLockID:   lock.ID,
		SellerWalletID: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	// The guard must not stay held, a later attempt has to be able to
	// finish the sweep.
	key := guard.IdempotencyKey(idempotencyScopeRel, lock.ID.String())
	assert.Contains(t, guard.deleted, key)
	assert.NotContains(t, guard.keys, key)

	delete(wallets.failTypes, enums.TransactionTypeFee)
	settlement, err := svc.ReleaseFunds(context.Background(), ReleaseInput{
		EscrowLockID:   lock.ID,
		SellerWalletID: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowLockStatusReleased, repo.locks[lock.ID].Status)
	assert.Equal(t, lock.ID, settlement.EscrowLockID)
}

func TestRefundLock(t *testing.T) {
	repo := newFakeSettlementRepo()
	wallets := newFakeWalletOps()
	svc, _ := newTestService(t, repo, wallets)
	lock := seedLock(repo)

	refunded, err := svc.RefundLock(context.Background(), lock.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowLockStatusRefunded, refunded.Status)

	require.Len(t, wallets.transfers, 1)
	back := wallets.transfers[0]
	assert.Equal(t, lock.BuyerWalletID, back.ToWalletID)
	assert.Equal(t, lock.TotalAmountCents, back.AmountCents)

	// Refunded locks cannot be released.
	_, err = svc.ReleaseFunds(context.Background(), ReleaseInput{
		EscrowLockID:   lock.ID,
		SellerWalletID: uuid.New(),
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}
