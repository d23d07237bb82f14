package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/custodial"
	pkgerrors "github.com/openagora/agora-backend/pkg/errors"
	"github.com/openagora/agora-backend/pkg/square"
)

type custodialAdapter struct {
	client *custodial.Client
}

// NewCustodialProvider wraps the custodial REST client behind the
// narrow interface the service consumes.
func NewCustodialProvider(client *custodial.Client) (CustodialProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("custodial client required")
	}
	return &custodialAdapter{client: client}, nil
}

func (a *custodialAdapter) CreateAccount(ctx context.Context, agentID uuid.UUID) (string, error) {
	acct, err := a.client.CreateWallet(ctx, agentID)
	if err != nil {
		return "", err
	}
	return acct.Ref, nil
}

func (a *custodialAdapter) Transfer(ctx context.Context, fromRef, toRef string, amountCents int64, currency, idempotencyKey string) (string, error) {
	transfer, err := a.client.Transfer(ctx, custodial.TransferParams{
		FromRef:        fromRef,
		ToRef:          toRef,
		AmountCents:    amountCents,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return "", err
	}
	return transfer.Ref, nil
}

type squareCharger struct {
	client *square.Client
}

// NewCardCharger adapts the Square payments client for deposit onramps.
func NewCardCharger(client *square.Client) (CardCharger, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &squareCharger{client: client}, nil
}

func (c *squareCharger) Charge(ctx context.Context, amountCents int64, currency, sourceID, referenceID string) (string, error) {
	payment, err := c.client.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    amountCents,
		Currency:       currency,
		LocationID:     c.client.LocationID(),
		SourceID:       sourceID,
		IdempotencyKey: referenceID,
		ReferenceID:    referenceID,
		Note:           "wallet deposit",
	})
	if err != nil {
		return "", err
	}
	if payment == nil || payment.GetID() == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "square returned no payment id")
	}
	return *payment.GetID(), nil
}
