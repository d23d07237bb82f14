package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/config"
	"github.com/openagora/agora-backend/pkg/enums"
	pkgerrors "github.com/openagora/agora-backend/pkg/errors"
	"github.com/openagora/agora-backend/pkg/logger"
)

var (
	errBaseURLRequired = errors.New("identity base url is required")
	errLoggerRequired  = errors.New("identity logger is required")
)

// Agent is the directory's view of a marketplace participant.
type Agent struct {
	ID     uuid.UUID       `json:"id"`
	Role   enums.AgentRole `json:"role"`
	Active bool            `json:"active"`
}

// Directory resolves agents and their marketplace roles.
type Directory interface {
	GetAgent(ctx context.Context, agentID uuid.UUID) (*Agent, error)
}

// Client talks to the external agent directory service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

// NewClient validates the configuration and builds the directory client.
func NewClient(cfg config.IdentityConfig, logg *logger.Logger) (*Client, error) {
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
		logger:     logg,
	}, nil
}

// GetAgent looks up an agent by id.
func (c *Client) GetAgent(ctx context.Context, agentID uuid.UUID) (*Agent, error) {
	if agentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id is required")
	}

	url := fmt.Sprintf("%s/v1/agents/%s", c.baseURL, agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build identity request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logError(ctx, agentID, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "identity request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agent not found")
	case resp.StatusCode >= 400:
		err := fmt.Errorf("identity returned %d for agent %s", resp.StatusCode, agentID)
		c.logError(ctx, agentID, err)
		if resp.StatusCode < 500 {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "identity rejected request")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "identity unavailable")
	}

	var agent Agent
	if err := json.NewDecoder(resp.Body).Decode(&agent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode identity response")
	}
	if !agent.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("identity returned unknown role %q", agent.Role))
	}
	return &agent, nil
}

func (c *Client) logError(ctx context.Context, agentID uuid.UUID, err error) {
	if c.logger == nil {
		return
	}
	ctx = c.logger.WithAgentID(ctx, agentID.String())
	c.logger.Error(ctx, "identity request error", err)
}
