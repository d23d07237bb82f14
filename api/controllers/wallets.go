package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openagora/agora-backend/api/middleware"
	"github.com/openagora/agora-backend/api/responses"
	"github.com/openagora/agora-backend/api/validators"
	"github.com/openagora/agora-backend/internal/wallet"
	"github.com/openagora/agora-backend/pkg/enums"
	"github.com/openagora/agora-backend/pkg/logger"
	"github.com/openagora/agora-backend/pkg/pagination"
)

func EnsureWallet(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := middleware.AgentIDFromContext(r.Context())
		wlt, err := svc.EnsureWallet(r.Context(), agentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wlt)
	}
}

func GetMyWallet(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := middleware.AgentIDFromContext(r.Context())
		wlt, err := svc.GetWalletByAgent(r.Context(), agentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wlt)
	}
}

type balanceResponse struct {
	WalletID     uuid.UUID `json:"wallet_id"`
	BalanceCents int64     `json:"balance_cents"`
}

func GetBalance(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := validators.ParsePathUUID(chi.URLParam(r, "walletID"), "walletID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := svc.GetBalance(r.Context(), walletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceResponse{WalletID: walletID, BalanceCents: balance})
	}
}

type depositRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
	SourceID    string `json:"source_id" validate:"required"`
}

func Deposit(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := validators.ParsePathUUID(chi.URLParam(r, "walletID"), "walletID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body depositRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.Deposit(r.Context(), wallet.DepositInput{
			WalletID:    walletID,
			AmountCents: body.AmountCents,
			Currency:    enums.Currency(body.Currency),
			SourceID:    body.SourceID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

type transferRequest struct {
	ToWalletID     uuid.UUID       `json:"to_wallet_id" validate:"required"`
	AmountCents    int64           `json:"amount_cents" validate:"required,gt=0"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	IdempotencyKey string          `json:"idempotency_key" validate:"max=128"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

func Transfer(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := validators.ParsePathUUID(chi.URLParam(r, "walletID"), "walletID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body transferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.Transfer(r.Context(), wallet.TransferInput{
			FromWalletID:   walletID,
			ToWalletID:     body.ToWalletID,
			AmountCents:    body.AmountCents,
			Currency:       enums.Currency(body.Currency),
			Type:           enums.TransactionTypeTransfer,
			IdempotencyKey: body.IdempotencyKey,
			Metadata:       body.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, txn)
	}
}

func ListTransactions(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := validators.ParsePathUUID(chi.URLParam(r, "walletID"), "walletID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.GetTransactions(r.Context(), walletID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, page.Items, page.NextCursor)
	}
}
