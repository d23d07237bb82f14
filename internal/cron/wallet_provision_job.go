package cron

import (
	"context"
	"fmt"

	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	"github.com/openagora/agora-backend/pkg/logger"
)

const provisionBatchSize = 50

type walletIntentStore interface {
	ListWalletIntentsByStatus(ctx context.Context, status enums.WalletIntentStatus, limit int) ([]models.WalletIntent, error)
}

type intentProvisioner interface {
	ProvisionIntent(ctx context.Context, intent *models.WalletIntent) (*models.Wallet, error)
}

// WalletProvisionJobParams configure the wallet provisioning sweep.
type WalletProvisionJobParams struct {
	Logger      *logger.Logger
	Store       walletIntentStore
	Provisioner intentProvisioner
	BatchSize   int
}

// NewWalletProvisionJob builds the sweep that finishes wallet intents a
// crashed or failed EnsureWallet call left pending. Every agent ends up
// with exactly one wallet eventually.
func NewWalletProvisionJob(params WalletProvisionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("wallet intent store required")
	}
	if params.Provisioner == nil {
		return nil, fmt.Errorf("intent provisioner required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = provisionBatchSize
	}
	return &walletProvisionJob{
		logg:        params.Logger,
		store:       params.Store,
		provisioner: params.Provisioner,
		batchSize:   batch,
	}, nil
}

type walletProvisionJob struct {
	logg        *logger.Logger
	store       walletIntentStore
	provisioner intentProvisioner
	batchSize   int
}

func (j *walletProvisionJob) Name() string { return "wallet-provision" }

func (j *walletProvisionJob) Run(ctx context.Context) error {
	intents, err := j.store.ListWalletIntentsByStatus(ctx, enums.WalletIntentStatusPending, j.batchSize)
	if err != nil {
		return fmt.Errorf("list pending wallet intents: %w", err)
	}

	completed := 0
	for i := range intents {
		intent := intents[i]
		intentCtx := j.logg.WithAgentID(ctx, intent.AgentID.String())
		if _, err := j.provisioner.ProvisionIntent(ctx, &intent); err != nil {
			// ProvisionIntent records the failure on the intent row.
			j.logg.Error(intentCtx, "wallet provisioning retry failed", err)
			continue
		}
		completed++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"pending":   len(intents),
		"completed": completed,
	})
	j.logg.Info(logCtx, "wallet provisioning sweep complete")
	return nil
}
