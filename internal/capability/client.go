package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
	"github.com/sentra-sec/sentra/internal/config"
)

// HTTPClient abstracts *http.Client so tests can intercept transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client invokes one capability service endpoint over HTTP JSON. Transient
// failures (5xx, transport errors) retry with exponential backoff; deadline
// expiry and permanent API errors come back as the typed sentinels from
// api/schemas so the orchestrator can record them per task.
type Client struct {
	capability schemas.Capability
	endpoint   string
	timeout    time.Duration
	maxRetries int
	httpClient HTTPClient
	logger     *zap.Logger
}

// -- Capability Service Request/Response Structures --

type invokeRequest struct {
	Capability string `json:"capability"`
	SessionID  string `json:"session_id"`
	Input      string `json:"input"`
}

type invokeResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// NewClient builds a client for a single capability endpoint.
func NewClient(cap schemas.Capability, ep config.CapabilityEndpoint, defaultTimeout time.Duration, logger *zap.Logger) (*Client, error) {
	if ep.URL == "" {
		return nil, fmt.Errorf("capability %s has no endpoint URL", cap)
	}

	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := ep.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	return &Client{
		capability: cap,
		endpoint:   ep.URL,
		timeout:    timeout,
		maxRetries: retries,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("capability").With(zap.String("capability", string(cap))),
	}, nil
}

// Invoke sends the input to the capability service and returns its textual
// output. The per-call timeout bounds worst-case task duration.
func (c *Client) Invoke(ctx context.Context, sessionID, input string) (string, error) {
	body, err := json.Marshal(invokeRequest{
		Capability: string(c.capability),
		SessionID:  sessionID,
		Input:      input,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal invoke request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 5 * time.Second

	var output string
	attempts := 0

	operation := func() error {
		attempts++
		if attempts > c.maxRetries {
			return backoff.Permanent(fmt.Errorf("%w: %s gave no successful response after %d attempts",
				schemas.ErrCapabilityUnavailable, c.capability, c.maxRetries))
		}

		httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			var netErr net.Error
			if callCtx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
				return backoff.Permanent(fmt.Errorf("%w: %s exceeded %s", schemas.ErrCapabilityTimeout, c.capability, c.timeout))
			}
			c.logger.Warn("Transport error during capability call, retrying", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.classifyStatus(resp.StatusCode, respBody)
		}

		var payload invokeResponse
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode capability response: %w", err))
		}
		if payload.Error != "" {
			return backoff.Permanent(fmt.Errorf("%w: %s reported: %s", schemas.ErrCapabilityUnavailable, c.capability, payload.Error))
		}

		c.logger.Debug("Capability call complete",
			zap.Duration("duration", time.Since(start)),
			zap.Int("output_bytes", len(payload.Output)),
		)
		output = payload.Output
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, callCtx)); err != nil {
		if errors.Is(err, schemas.ErrCapabilityTimeout) || errors.Is(err, schemas.ErrCapabilityUnavailable) {
			return "", err
		}
		if callCtx.Err() != nil {
			return "", fmt.Errorf("%w: %s exceeded %s", schemas.ErrCapabilityTimeout, c.capability, c.timeout)
		}
		return "", fmt.Errorf("%w: %v", schemas.ErrCapabilityUnavailable, err)
	}
	return output, nil
}

// classifyStatus decides whether an HTTP error status is worth retrying.
func (c *Client) classifyStatus(statusCode int, body []byte) error {
	err := fmt.Errorf("capability %s returned status %d: %s", c.capability, statusCode, string(body))
	c.logger.Warn("Capability service returned error status", zap.Int("status", statusCode))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable,
		http.StatusBadGateway, http.StatusInternalServerError:
		return err // Transient, retry.
	default:
		return backoff.Permanent(fmt.Errorf("%w: %v", schemas.ErrCapabilityUnavailable, err))
	}
}
