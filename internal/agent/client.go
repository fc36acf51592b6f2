// Package agent provides the HTTP client the agent uses to announce itself to the controller.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MacJediWizard/firekeeper/pkg/models"
	"github.com/rs/zerolog"
)

// PingPath is the controller endpoint that registers agent instances.
const PingPath = "/api/agents/ping"

// DefaultPingTimeout bounds the registration ping.
const DefaultPingTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// ErrNoController is returned when no controller URL is configured.
var ErrNoController = errors.New("controller url not configured")

// Client is an HTTP client for communicating with the controller.
type Client struct {
	controllerURL string
	token         string
	httpClient    *http.Client
	logger        zerolog.Logger
}

// NewClient creates a new controller client. A nil httpClient uses a 30s default client.
func NewClient(controllerURL, token string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		controllerURL: controllerURL,
		token:         token,
		httpClient:    httpClient,
		logger:        logger.With().Str("component", "controller_client").Logger(),
	}
}

// Ping registers this agent instance with the controller.
func (c *Client) Ping(ctx context.Context, req models.PingRequest) error {
	if c.controllerURL == "" {
		return ErrNoController
	}
	if err := c.post(ctx, PingPath, req); err != nil {
		return fmt.Errorf("ping controller: %w", err)
	}
	return nil
}

// PingAsync sends the registration ping from a detached goroutine. The ping gets its
// own timeout and is not tied to ctx cancellation beyond its values. Failures are
// logged at warn level only. The returned channel closes when the attempt finishes.
func (c *Client) PingAsync(ctx context.Context, req models.PingRequest, timeout time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}

	go func() {
		defer close(done)

		pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		if err := c.Ping(pingCtx, req); err != nil {
			c.logger.Warn().Err(err).Str("agent_url", req.URL).Msg("controller ping failed")
			return
		}
		c.logger.Info().Str("agent_url", req.URL).Msg("registered with controller")
	}()

	return done
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.controllerURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("controller returned %d: %s", resp.StatusCode, string(body))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
