package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/openagora/agora-backend/pkg/db"
	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	pkgerrors "github.com/openagora/agora-backend/pkg/errors"
	"github.com/openagora/agora-backend/pkg/logger"
	"github.com/openagora/agora-backend/pkg/metrics"
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

// CustodialProvider moves value between provider custody accounts.
type CustodialProvider interface {
	CreateAccount(ctx context.Context, agentID uuid.UUID) (ref string, err error)
	Transfer(ctx context.Context, fromRef, toRef string, amountCents int64, currency, idempotencyKey string) (providerRef string, err error)
}

// CardCharger charges an external card source for onramp deposits.
type CardCharger interface {
	Charge(ctx context.Context, amountCents int64, currency, sourceID, referenceID string) (providerRef string, err error)
}

// TransferInput describes one internal wallet-to-wallet movement.
type TransferInput struct {
	FromWalletID   uuid.UUID
	ToWalletID     uuid.UUID
	AmountCents    int64
	Currency       enums.Currency
	Type           enums.TransactionType
	IdempotencyKey string
	Metadata       json.RawMessage
}

// DepositInput starts a card onramp into an agent wallet.
type DepositInput struct {
	WalletID    uuid.UUID
	AmountCents int64
	Currency    enums.Currency
	SourceID    string
}

// Service exposes the wallet ledger operations.
type Service interface {
	EnsureWallet(ctx context.Context, agentID uuid.UUID) (*models.Wallet, error)
	GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	GetWalletByAgent(ctx context.Context, agentID uuid.UUID) (*models.Wallet, error)
	PlatformWallet(ctx context.Context, kind enums.WalletKind) (*models.Wallet, error)
	GetBalance(ctx context.Context, walletID uuid.UUID) (int64, error)
	Transfer(ctx context.Context, input TransferInput) (*models.Transaction, error)
	Deposit(ctx context.Context, input DepositInput) (*models.LedgerEntry, error)
	GetTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) (pagination.Page[models.Transaction], error)

	// Recovery hooks used by the background sweeps.
	MintFromEntry(ctx context.Context, entry *models.LedgerEntry) error
	ProvisionIntent(ctx context.Context, intent *models.WalletIntent) (*models.Wallet, error)
}

// ServiceParams groups dependencies for the wallet service.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Custodial CustodialProvider
	Charger   CardCharger
	Logger    *logger.Logger
	Metrics   *metrics.LedgerMetrics
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	custodial CustodialProvider
	charger   CardCharger
	logg      *logger.Logger
	metrics   *metrics.LedgerMetrics
}

// NewService builds a wallet service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Custodial == nil {
		return nil, fmt.Errorf("custodial provider required")
	}
	if params.Charger == nil {
		return nil, fmt.Errorf("card charger required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		outbox:    params.Outbox,
		custodial: params.Custodial,
		charger:   params.Charger,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// EnsureWallet returns the agent's wallet, provisioning one with the
// custodial provider on first use. A stuck intent is left pending so the
// provisioning sweep can finish it later.
func (s *service) EnsureWallet(ctx context.Context, agentID uuid.UUID) (*models.Wallet, error) {
	if agentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}

	existing, err := s.repo.FindWalletByAgent(ctx, agentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	intent := &models.WalletIntent{AgentID: agentID, Status: enums.WalletIntentStatusPending}
	if err := s.repo.CreateWalletIntent(ctx, intent); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_wallet_intents_agent_id") {
			// Another request won the race; reuse its intent.
			intent, err = s.repo.FindWalletIntentByAgent(ctx, agentID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet intent")
			}
			if intent.Status == enums.WalletIntentStatusCompleted && intent.WalletID != nil {
				return s.repo.FindWallet(ctx, *intent.WalletID)
			}
		} else {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet intent")
		}
	}

	return s.ProvisionIntent(ctx, intent)
}

// ProvisionIntent drives a wallet intent to completion: provider account,
// wallet row, then the provisioned event. Safe to call again on failure.
func (s *service) ProvisionIntent(ctx context.Context, intent *models.WalletIntent) (*models.Wallet, error) {
	if intent == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet intent required")
	}

	providerRef := intent.ProviderRef
	if providerRef == "" {
		ref, err := s.custodial.CreateAccount(ctx, intent.AgentID)
		if err != nil {
			s.failIntent(ctx, intent.ID, err)
			return nil, err
		}
		providerRef = ref
		if err := s.repo.UpdateWalletIntent(ctx, intent.ID, map[string]any{
			"provider_ref": providerRef,
			"attempts":     gorm.Expr("attempts + 1"),
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record provider ref")
		}
	}

	wallet := &models.Wallet{
		AgentID:     &intent.AgentID,
		Kind:        enums.WalletKindAgent,
		Status:      enums.WalletStatusActive,
		Currency:    enums.CurrencyUSD,
		ProviderRef: providerRef,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateWallet(ctx, wallet); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_wallets_agent_id") {
				existing, findErr := repo.FindWalletByAgent(ctx, intent.AgentID)
				if findErr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load wallet after conflict")
				}
				*wallet = *existing
			} else {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
			}
		}
		if err := repo.UpdateWalletIntent(ctx, intent.ID, map[string]any{
			"status":    enums.WalletIntentStatusCompleted,
			"wallet_id": wallet.ID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete wallet intent")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWalletProvisioned,
			AggregateType: enums.AggregateWallet,
			AggregateID:   wallet.ID,
			Version:       1,
			Data: payloads.WalletProvisionedEvent{
				WalletID: wallet.ID,
				AgentID:  intent.AgentID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithWalletID(s.logg.WithAgentID(ctx, intent.AgentID.String()), wallet.ID.String())
	s.logg.Info(logCtx, "wallet provisioned")
	return wallet, nil
}

func (s *service) failIntent(ctx context.Context, intentID uuid.UUID, cause error) {
	updates := map[string]any{
		"last_error": cause.Error(),
		"attempts":   gorm.Expr("attempts + 1"),
	}
	if err := s.repo.UpdateWalletIntent(ctx, intentID, updates); err != nil {
		s.logg.Error(ctx, "failed to record wallet intent error", err)
	}
}

func (s *service) GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	if walletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id required")
	}
	wallet, err := s.repo.FindWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) GetWalletByAgent(ctx context.Context, agentID uuid.UUID) (*models.Wallet, error) {
	if agentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	wallet, err := s.repo.FindWalletByAgent(ctx, agentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) PlatformWallet(ctx context.Context, kind enums.WalletKind) (*models.Wallet, error) {
	if kind == enums.WalletKindAgent {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform wallet kind required")
	}
	wallet, err := s.repo.FindWalletByKind(ctx, kind)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("load %s wallet", kind))
	}
	return wallet, nil
}

// GetBalance folds completed transactions; pending rows never count.
func (s *service) GetBalance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	if walletID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "wallet id required")
	}
	balance, err := s.repo.SumCompletedBalance(ctx, walletID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum wallet balance")
	}
	return balance, nil
}

// Transfer moves funds between two internal wallets. The transaction row
// is written pending before the custodial call and only flips to
// completed when the provider confirms, so a crash mid-flight leaves an
// auditable pending row instead of phantom balance. A replay with the
// same idempotency key reuses the earlier row, so one custody movement
// is never logged twice.
func (s *service) Transfer(ctx context.Context, input TransferInput) (*models.Transaction, error) {
	if err := validateTransferInput(input); err != nil {
		return nil, err
	}

	var (
		txn      *models.Transaction
		fromRef  string
		toRef    string
		replayed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if input.IdempotencyKey != "" {
			existing, err := repo.FindTransactionByIdempotencyKey(ctx, input.IdempotencyKey)
			switch {
			case err == nil:
				txn = existing
				if existing.Status == enums.TransactionStatusCompleted {
					replayed = true
					return nil
				}
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up transfer by idempotency key")
			}
		}

		from, err := repo.FindWalletForUpdate(ctx, input.FromWalletID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "source wallet not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load source wallet")
		}
		to, err := repo.FindWallet(ctx, input.ToWalletID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "destination wallet not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load destination wallet")
		}
		if from.Status != enums.WalletStatusActive || to.Status != enums.WalletStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "wallet is not active")
		}

		balance, err := repo.SumCompletedBalance(ctx, from.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum wallet balance")
		}
		if balance < input.AmountCents {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient funds").
				WithDetails(map[string]int64{
					"balance_cents":   balance,
					"requested_cents": input.AmountCents,
				})
		}

		// A pending or failed row for this key is picked back up
		// instead of inserted again.
		if txn == nil {
			txn = &models.Transaction{
				Type:           input.Type,
				FromWalletID:   &from.ID,
				ToWalletID:     &to.ID,
				AmountCents:    input.AmountCents,
				Currency:       input.Currency,
				Status:         enums.TransactionStatusPending,
				IdempotencyKey: input.IdempotencyKey,
				Metadata:       input.Metadata,
			}
			if err := repo.CreateTransaction(ctx, txn); err != nil {
				if dbpkg.IsUniqueViolation(err, "ux_transactions_idempotency_key") {
					return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "transfer already in flight for idempotency key")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
			}
		}
		fromRef = from.ProviderRef
		toRef = to.ProviderRef
		return nil
	})
	if err != nil {
		s.countTransfer(input.Type, "rejected")
		return nil, err
	}
	if replayed {
		return txn, nil
	}

	idempotencyKey := input.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = txn.ID.String()
	}
	providerRef, err := s.custodial.Transfer(ctx, fromRef, toRef, input.AmountCents, string(input.Currency), idempotencyKey)
	if err != nil {
		if markErr := s.repo.UpdateTransactionStatus(ctx, txn.ID, enums.TransactionStatusFailed); markErr != nil {
			s.logg.Error(ctx, "failed to mark transaction failed", markErr)
		}
		s.countTransfer(input.Type, "failed")
		return nil, err
	}

	if err := s.repo.CompleteTransaction(ctx, txn.ID, providerRef); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete transaction")
	}
	txn.ExternalRef = providerRef
	txn.Status = enums.TransactionStatusCompleted

	s.countTransfer(input.Type, "completed")
	if s.metrics != nil {
		s.metrics.AddTransferAmount(string(input.Type), input.AmountCents)
	}
	return txn, nil
}

func validateTransferInput(input TransferInput) error {
	if input.FromWalletID == uuid.Nil || input.ToWalletID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "wallet ids required")
	}
	if input.FromWalletID == input.ToWalletID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot transfer within the same wallet")
	}
	if input.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Type.IsValid() || input.Type == enums.TransactionTypeMint {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transfer type %q", input.Type))
	}
	if !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", input.Currency))
	}
	return nil
}

// Deposit runs the card onramp: ledger entry pending, provider charge,
// mint transaction, reconcile. Each step leaves a resumable state for
// the reconciliation sweep.
func (s *service) Deposit(ctx context.Context, input DepositInput) (*models.LedgerEntry, error) {
	if input.WalletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.SourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card source required")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", input.Currency))
	}

	wallet, err := s.GetWallet(ctx, input.WalletID)
	if err != nil {
		return nil, err
	}
	if wallet.Status != enums.WalletStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "wallet is not active")
	}

	entry := &models.LedgerEntry{
		WalletID:    wallet.ID,
		Type:        enums.LedgerEntryTypeOnramp,
		Status:      enums.LedgerEntryStatusPending,
		AmountCents: input.AmountCents,
		Currency:    input.Currency,
	}
	if err := s.repo.CreateLedgerEntry(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ledger entry")
	}

	providerRef, err := s.charger.Charge(ctx, input.AmountCents, string(input.Currency), input.SourceID, entry.ID.String())
	if err != nil {
		s.transitionLedgerEntry(ctx, entry, enums.LedgerEntryStatusFailed, map[string]any{
			"failure_reason": err.Error(),
		})
		s.countOnramp(enums.LedgerEntryStatusFailed)
		return entry, err
	}
	if err := s.transitionLedgerEntry(ctx, entry, enums.LedgerEntryStatusExternalCompleted, map[string]any{
		"provider_ref": providerRef,
	}); err != nil {
		return entry, err
	}

	if err := s.MintFromEntry(ctx, entry); err != nil {
		// The charge settled; the sweep resumes from external_completed.
		return entry, err
	}
	return entry, nil
}

// MintFromEntry writes the mint transaction for a settled external charge
// and walks the entry to reconciled. Used by Deposit and the sweep.
func (s *service) MintFromEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "ledger entry required")
	}
	if entry.Status != enums.LedgerEntryStatusExternalCompleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot mint ledger entry in status %q", entry.Status))
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		mint := &models.Transaction{
			Type:        enums.TransactionTypeMint,
			ToWalletID:  &entry.WalletID,
			AmountCents: entry.AmountCents,
			Currency:    entry.Currency,
			Status:      enums.TransactionStatusCompleted,
			ExternalRef: entry.ProviderRef,
		}
		if err := repo.CreateTransaction(ctx, mint); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create mint transaction")
		}
		if err := repo.UpdateLedgerEntry(ctx, entry.ID, map[string]any{
			"status":              enums.LedgerEntryStatusInternalCompleted,
			"mint_transaction_id": mint.ID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance ledger entry")
		}
		entry.Status = enums.LedgerEntryStatusInternalCompleted
		entry.MintTransactionID = &mint.ID

		now := time.Now().UTC()
		if err := repo.UpdateLedgerEntry(ctx, entry.ID, map[string]any{
			"status":        enums.LedgerEntryStatusReconciled,
			"reconciled_at": now,
			"notes":         fmt.Sprintf("mint %s matched provider ref %s", mint.ID, entry.ProviderRef),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile ledger entry")
		}
		entry.Status = enums.LedgerEntryStatusReconciled
		entry.ReconciledAt = &now

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDepositRecorded,
			AggregateType: enums.AggregateLedgerEntry,
			AggregateID:   entry.ID,
			Version:       1,
			Data: payloads.DepositRecordedEvent{
				LedgerEntryID: entry.ID,
				WalletID:      entry.WalletID,
				AmountCents:   entry.AmountCents,
				Status:        enums.LedgerEntryStatusReconciled,
				ProviderRef:   entry.ProviderRef,
			},
		})
	})
	if err != nil {
		return err
	}
	s.countOnramp(enums.LedgerEntryStatusReconciled)
	return nil
}

func (s *service) transitionLedgerEntry(ctx context.Context, entry *models.LedgerEntry, next enums.LedgerEntryStatus, extra map[string]any) error {
	if !entry.Status.CanTransitionTo(next) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("ledger entry cannot move from %q to %q", entry.Status, next))
	}
	updates := map[string]any{"status": next}
	for k, v := range extra {
		updates[k] = v
	}
	if err := s.repo.UpdateLedgerEntry(ctx, entry.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ledger entry")
	}
	entry.Status = next
	if ref, ok := extra["provider_ref"].(string); ok {
		entry.ProviderRef = ref
	}
	if reason, ok := extra["failure_reason"].(string); ok {
		entry.FailureReason = reason
	}
	return nil
}

func (s *service) GetTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) (pagination.Page[models.Transaction], error) {
	var page pagination.Page[models.Transaction]
	if walletID == uuid.Nil {
		return page, pkgerrors.New(pkgerrors.CodeValidation, "wallet id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return page, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListTransactions(ctx, walletID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return page, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return pagination.BuildPage(rows, params.Limit, func(t models.Transaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	}), nil
}

func (s *service) countTransfer(txType enums.TransactionType, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncTransfer(string(txType), outcome)
}

func (s *service) countOnramp(status enums.LedgerEntryStatus) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncOnramp(string(status))
}
