package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/api/responses"
	pkgerrors "github.com/openagora/agora-backend/pkg/errors"
	"github.com/openagora/agora-backend/pkg/logger"
)

const agentIDHeader = "X-Agent-Id"

type contextKey string

const ctxAgentID contextKey = "agent_id"

// AgentIDFromContext returns the calling agent's id, or uuid.Nil when
// the request carried none.
func AgentIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxAgentID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithAgentID injects the agent identifier into the context.
func WithAgentID(ctx context.Context, agentID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAgentID, agentID)
}

// RequireAgent extracts the calling agent id from the request header.
// Callers are internal services acting on behalf of an already
// authenticated agent; the directory check happens in the services.
func RequireAgent(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(agentIDHeader)
			if raw == "" {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "agent id header required"))
				return
			}
			agentID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "agent id header must be a uuid"))
				return
			}

			ctx := WithAgentID(r.Context(), agentID)
			if logg != nil {
				ctx = logg.WithAgentID(ctx, agentID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
