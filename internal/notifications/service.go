package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/db/models"
	pkgerrors "github.com/openagora/agora-backend/pkg/errors"
	"github.com/openagora/agora-backend/pkg/pagination"
)

// ListInput configures pagination for an agent's notification feed.
type ListInput struct {
	AgentID    uuid.UUID
	UnreadOnly bool
	Params     pagination.Params
}

// Service exposes the notification feed operations.
type Service interface {
	List(ctx context.Context, input ListInput) (pagination.Page[models.Notification], error)
	MarkRead(ctx context.Context, agentID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, agentID uuid.UUID) (int64, error)
}

type service struct {
	repo Repository
}

// NewService wires the notifications service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (pagination.Page[models.Notification], error) {
	var empty pagination.Page[models.Notification]
	if input.AgentID == uuid.Nil {
		return empty, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}

	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, input.AgentID, input.UnreadOnly, pagination.LimitWithBuffer(input.Params.Limit), cursor)
	if err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return pagination.BuildPage(rows, input.Params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	}), nil
}

func (s *service) MarkRead(ctx context.Context, agentID, notificationID uuid.UUID) error {
	if agentID == uuid.Nil || notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "agent and notification ids required")
	}
	found, err := s.repo.MarkRead(ctx, agentID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, agentID uuid.UUID) (int64, error) {
	if agentID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	updated, err := s.repo.MarkAllRead(ctx, agentID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return updated, nil
}
