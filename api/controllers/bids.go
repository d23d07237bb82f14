package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openagora/agora-backend/api/middleware"
	"github.com/openagora/agora-backend/api/responses"
	"github.com/openagora/agora-backend/api/validators"
	"github.com/openagora/agora-backend/internal/tendering"
	"github.com/openagora/agora-backend/pkg/enums"
	"github.com/openagora/agora-backend/pkg/logger"
)

type placeBidRequest struct {
	AskID         uuid.UUID `json:"ask_id" validate:"required"`
	PriceCents    int64     `json:"price_cents" validate:"required,gt=0"`
	Proposal      string    `json:"proposal" validate:"max=5000"`
	EstimatedSecs *int64    `json:"estimated_duration_secs,omitempty" validate:"omitempty,gt=0"`
	Currency      string    `json:"currency" validate:"required,len=3"`
}

func PlaceBid(svc tendering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body placeBidRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bid, err := svc.PlaceBid(r.Context(), tendering.PlaceBidInput{
			BidderAgentID: middleware.AgentIDFromContext(r.Context()),
			AskID:         body.AskID,
			PriceCents:    body.PriceCents,
			Proposal:      body.Proposal,
			EstimatedSecs: body.EstimatedSecs,
			Currency:      enums.Currency(body.Currency),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bid)
	}
}

func GetBid(svc tendering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bidID, err := validators.ParsePathUUID(chi.URLParam(r, "bidID"), "bidID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bid, err := svc.GetBid(r.Context(), bidID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bid)
	}
}

func AcceptBid(svc tendering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bidID, err := validators.ParsePathUUID(chi.URLParam(r, "bidID"), "bidID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AcceptBid(r.Context(), middleware.AgentIDFromContext(r.Context()), bidID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type submitDeliveryRequest struct {
	DeliveryProof json.RawMessage `json:"delivery_proof" validate:"required"`
}

func SubmitDelivery(svc tendering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bidID, err := validators.ParsePathUUID(chi.URLParam(r, "bidID"), "bidID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body submitDeliveryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SubmitDelivery(r.Context(), middleware.AgentIDFromContext(r.Context()), bidID, body.DeliveryProof)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
