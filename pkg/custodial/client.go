package custodial

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/config"
	pkgerrors "github.com/openagora/agora-backend/pkg/errors"
	"github.com/openagora/agora-backend/pkg/logger"
)

var (
	errBaseURLRequired = errors.New("custodial base url is required")
	errLoggerRequired  = errors.New("custodial logger is required")
)

// Wallet is the provider-side record backing an internal wallet.
type Wallet struct {
	Ref      string `json:"ref"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// TransferParams describes one provider-side value movement.
type TransferParams struct {
	FromRef        string `json:"from_ref"`
	ToRef          string `json:"to_ref"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Transfer is the provider's view of a movement between custody accounts.
type Transfer struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
}

// Client talks to the custodial wallet provider over its REST surface.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logger.Logger
}

// NewClient validates the configuration and builds the provider client.
func NewClient(cfg config.CustodialConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		logger:     logg,
	}, nil
}

// CreateWallet provisions a custody account for the given agent.
func (c *Client) CreateWallet(ctx context.Context, agentID uuid.UUID) (*Wallet, error) {
	body := map[string]string{"external_id": agentID.String()}
	var out Wallet
	if err := c.do(ctx, http.MethodPost, "/v1/wallets", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transfer moves value between two custody accounts. The idempotency key
// makes replays safe; the provider returns the original transfer for a
// reused key.
func (c *Client) Transfer(ctx context.Context, params TransferParams) (*Transfer, error) {
	if params.FromRef == "" || params.ToRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer refs are required")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}
	var out Transfer
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTransfer fetches a transfer so reconciliation can confirm its state.
func (c *Client) GetTransfer(ctx context.Context, ref string) (*Transfer, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer ref is required")
	}
	var out Transfer
	if err := c.do(ctx, http.MethodGet, "/v1/transfers/"+ref, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode custodial request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build custodial request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logError(ctx, path, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "custodial request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.mapStatus(ctx, path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode custodial response")
	}
	return nil
}

type providerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) mapStatus(ctx context.Context, path string, resp *http.Response) error {
	var pe providerError
	_ = json.NewDecoder(resp.Body).Decode(&pe)
	msg := pe.Message
	if msg == "" {
		msg = fmt.Sprintf("custodial provider returned %d", resp.StatusCode)
	}
	err := fmt.Errorf("custodial %s: %s", path, msg)
	c.logError(ctx, path, err)

	if pe.Code == "insufficient_funds" {
		return pkgerrors.Wrap(pkgerrors.CodeInsufficientFunds, err, "insufficient provider balance")
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "custodial auth failed")
	case http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "custodial resource not found")
	case http.StatusConflict:
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "custodial conflict")
	case http.StatusUnprocessableEntity:
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "custodial rejected request")
	case http.StatusTooManyRequests:
		return pkgerrors.Wrap(pkgerrors.CodeRateLimit, err, "custodial rate limited")
	default:
		if resp.StatusCode < 500 {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "custodial rejected request")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "custodial unavailable")
	}
}

func (c *Client) logError(ctx context.Context, path string, err error) {
	if c.logger == nil {
		return
	}
	ctx = c.logger.WithFields(ctx, map[string]any{"path": path})
	c.logger.Error(ctx, "custodial request error", err)
}
