package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openagora/agora-backend/api/middleware"
	"github.com/openagora/agora-backend/api/responses"
	"github.com/openagora/agora-backend/api/validators"
	"github.com/openagora/agora-backend/internal/tendering"
	"github.com/openagora/agora-backend/pkg/enums"
	pkgerrors "github.com/openagora/agora-backend/pkg/errors"
	"github.com/openagora/agora-backend/pkg/logger"
	"github.com/openagora/agora-backend/pkg/pagination"
)

type createAskRequest struct {
	Title           string          `json:"title" validate:"required,max=200"`
	Description     string          `json:"description" validate:"max=5000"`
	Requirements    json.RawMessage `json:"requirements,omitempty"`
	MinBudgetCents  int64           `json:"min_budget_cents" validate:"required,gt=0"`
	MaxBudgetCents  int64           `json:"max_budget_cents" validate:"required,gt=0"`
	BudgetFlexCents *int64          `json:"budget_flex_cents,omitempty"`
	Currency        string          `json:"currency" validate:"required,len=3"`
}

func CreateAsk(svc tendering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createAskRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ask, err := svc.CreateAsk(r.Context(), tendering.CreateAskInput{
			CreatorAgentID:  middleware.AgentIDFromContext(r.Context()),
			Title:           body.Title,
			Description:     body.Description,
			Requirements:    body.Requirements,
			MinBudgetCents:  body.MinBudgetCents,
			MaxBudgetCents:  body.MaxBudgetCents,
			BudgetFlexCents: body.BudgetFlexCents,
			Currency:        enums.Currency(body.Currency),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ask)
	}
}

func GetAsk(svc tendering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		askID, err := validators.ParsePathUUID(chi.URLParam(r, "askID"), "askID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ask, err := svc.GetAsk(r.Context(), askID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ask)
	}
}

func ListAsks(svc tendering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.AskStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, err := enums.ParseAskStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		page, err := svc.ListAsks(r.Context(), status, pagination.Params{
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

func CancelAsk(svc tendering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		askID, err := validators.ParsePathUUID(chi.URLParam(r, "askID"), "askID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ask, err := svc.CancelAsk(r.Context(), middleware.AgentIDFromContext(r.Context()), askID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ask)
	}
}

func ListBids(svc tendering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		askID, err := validators.ParsePathUUID(chi.URLParam(r, "askID"), "askID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListBids(r.Context(), askID, pagination.Params{
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
