// Package ticketing fetches tickets from the ticketing gateway's REST API.
package ticketing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/tenant"
	"github.com/kailas-cloud/ticketlens/internal/domain/ticket"
	"github.com/kailas-cloud/ticketlens/internal/logger"
	"github.com/kailas-cloud/ticketlens/internal/resilience"
)

const maxErrorBody = 4 << 10

// Config holds the gateway settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retry   resilience.RetryConfig
	Logger  *zap.Logger
}

// Client implements the workflow's ticket source.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      resilience.RetryConfig
	logger     *zap.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		retry:      cfg.Retry,
		logger:     log,
	}
}

// Fetch loads one ticket with its conversation, scoped to the tenant and platform.
func (c *Client) Fetch(ctx context.Context, cfg tenant.Config, ticketID string) (ticket.Ticket, error) {
	if strings.TrimSpace(ticketID) == "" {
		return ticket.Ticket{}, fmt.Errorf("ticket id is required: %w", domain.ErrValidation)
	}

	retry := c.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(logger.FromContextOr(ctx, c.logger), "ticket_fetch")
	}
	return resilience.DoVal(ctx, retry, func(ctx context.Context) (ticket.Ticket, error) {
		return c.fetch(ctx, cfg, ticketID)
	})
}

func (c *Client) fetch(ctx context.Context, cfg tenant.Config, ticketID string) (ticket.Ticket, error) {
	endpoint := c.baseURL + "/v1/tickets/" + url.PathEscape(ticketID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return ticket.Ticket{}, fmt.Errorf("build ticket request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Tenant-ID", cfg.TenantID)
	req.Header.Set("X-Platform", cfg.Platform)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ticket.Ticket{}, fmt.Errorf("fetch ticket %s: %w", ticketID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ticket.Ticket{}, fmt.Errorf("ticket %s: %w", ticketID, domain.ErrTicketNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ticket.Ticket{}, fmt.Errorf("ticketing gateway refused tenant %s: %w", cfg.TenantID, domain.ErrUnauthorized)
	case resp.StatusCode >= http.StatusMultipleChoices:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := fmt.Errorf("ticketing API error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return ticket.Ticket{}, resilience.NewTransientError(err, resp.StatusCode)
		}
		return ticket.Ticket{}, err
	}

	var t ticket.Ticket
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return ticket.Ticket{}, fmt.Errorf("decode ticket %s: %w", ticketID, err)
	}
	if t.ID == "" {
		t.ID = ticketID
	}
	return t, nil
}
