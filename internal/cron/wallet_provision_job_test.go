package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	"github.com/openagora/agora-backend/pkg/logger"
)

type fakeIntentStore struct {
	pending []models.WalletIntent
}

func (f *fakeIntentStore) ListWalletIntentsByStatus(ctx context.Context, status enums.WalletIntentStatus, limit int) ([]models.WalletIntent, error) {
	if status != enums.WalletIntentStatusPending {
		return nil, nil
	}
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

type fakeProvisioner struct {
	failFor     map[uuid.UUID]error
	provisioned []uuid.UUID
}

func (f *fakeProvisioner) ProvisionIntent(ctx context.Context, intent *models.WalletIntent) (*models.Wallet, error) {
	if err, ok := f.failFor[intent.ID]; ok {
		return nil, err
	}
	f.provisioned = append(f.provisioned, intent.ID)
	return &models.Wallet{ID: uuid.New(), AgentID: &intent.AgentID}, nil
}

func TestWalletProvisionJobRetriesPendingIntents(t *testing.T) {
	good := models.WalletIntent{ID: uuid.New(), AgentID: uuid.New(), Status: enums.WalletIntentStatusPending}
	bad := models.WalletIntent{ID: uuid.New(), AgentID: uuid.New(), Status: enums.WalletIntentStatusPending}
	store := &fakeIntentStore{pending: []models.WalletIntent{good, bad}}
	prov := &fakeProvisioner{failFor: map[uuid.UUID]error{bad.ID: errors.New("provider down")}}

	job, err := NewWalletProvisionJob(WalletProvisionJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "cron-test"}),
		Store:       store,
		Provisioner: prov,
	})
	if err != nil {
		t.Fatalf("NewWalletProvisionJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(prov.provisioned) != 1 || prov.provisioned[0] != good.ID {
		t.Fatalf("expected only the good intent provisioned, got %v", prov.provisioned)
	}
}
