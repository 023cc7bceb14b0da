package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"villa-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxTries       = 3
	initialBackoff = 200 * time.Millisecond
)

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(config utils.GatewayConfig, log *zap.Logger) CheckoutGateway {
	return &client{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		http: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		log: log.With(zap.String("client", "payment_gateway")),
	}
}

type createSessionRequest struct {
	ReferenceID string `json:"reference_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

func (c *client) CreateCheckoutSession(ctx context.Context, reservationID uuid.UUID, amountCents int64, currency string) (*CheckoutSession, error) {
	body, err := json.Marshal(createSessionRequest{
		ReferenceID: reservationID.String(),
		AmountCents: amountCents,
		Currency:    currency,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal checkout session request: %w", err)
	}

	var session CheckoutSession
	err = c.doWithRetry(ctx, http.MethodPost, "/v1/checkout_sessions", body, &session)
	if err != nil {
		return nil, err
	}

	c.log.Info("Checkout session created",
		zap.String("reservation_id", reservationID.String()),
		zap.String("external_session_id", session.ExternalSessionID),
		zap.Int64("amount_cents", amountCents),
	)
	return &session, nil
}

func (c *client) GetStatus(ctx context.Context, externalSessionID string) (*PaymentEvent, error) {
	var event PaymentEvent
	err := c.doWithRetry(ctx, http.MethodGet, "/v1/checkout_sessions/"+externalSessionID, nil, &event)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// doWithRetry runs one provider call with bounded exponential backoff.
// Only transport errors and 5xx responses are retried; a 4xx is final.
func (c *client) doWithRetry(ctx context.Context, method, path string, body []byte, out any) error {
	backoff := initialBackoff

	var lastErr error
	for try := 1; try <= maxTries; try++ {
		if try > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = c.do(ctx, method, path, body, out)
		if lastErr == nil {
			return nil
		}

		var finalErr *requestError
		if errors.As(lastErr, &finalErr) && !finalErr.retryable {
			return lastErr
		}

		c.log.Warn("Gateway call failed, retrying",
			zap.Error(lastErr),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("try", try),
		)
	}

	return fmt.Errorf("%s %s after %d tries: %w", method, path, maxTries, ErrGatewayUnavailable)
}

type requestError struct {
	status    int
	retryable bool
}

func (e *requestError) Error() string {
	return fmt.Sprintf("gateway responded %d", e.status)
}

func (c *client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &requestError{status: resp.StatusCode, retryable: true}
	}
	if resp.StatusCode >= 400 {
		return &requestError{status: resp.StatusCode, retryable: false}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
	}

	return nil
}
