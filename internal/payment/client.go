// Package payment implements the REST client for the external payment
// service.  Every call runs through the resilience breaker so retries,
// backoff and circuit-breaking apply uniformly to capture, refund and
// status lookups.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/confera/attendance/internal/config"
	"github.com/confera/attendance/internal/monitoring"
	"github.com/confera/attendance/internal/resilience"
)

// CaptureRequest carries one payment capture to the gateway.  Metadata
// is forwarded verbatim; the engine enriches it with the registration
// ID and event title for gateway-side reconciliation.
type CaptureRequest struct {
	EventID       uint64          `json:"event_id"`
	AttendeeEmail string          `json:"attendee_email"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Metadata      map[string]any  `json:"metadata"`
}

// Payment is the gateway's view of a captured payment.
type Payment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Refund is the gateway's record of an issued refund.
type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// RefundResult is the response to a refund request: the payment's new
// status plus the refund record when the gateway returns one.
type RefundResult struct {
	Status string  `json:"status"`
	Refund *Refund `json:"refund,omitempty"`
}

// Client talks to the payment service over JSON/HTTP.  A single breaker
// guards all operations: the gateway is one dependency and its health
// is shared across captures and refunds.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
	breaker *resilience.Breaker
}

// New builds a Client from the payment configuration.  The breaker's
// state changes are exported as a gauge.
func New(cfg config.Payment) *Client {
	b := resilience.New("payment-service", resilience.Policy{
		MaxAttempts:      cfg.MaxAttempts,
		BackoffFactor:    cfg.BackoffFactor,
		MaxBackoff:       cfg.MaxBackoff,
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
	})
	b.OnStateChange = monitoring.SetBreakerOpen
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.Secret,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: b,
	}
}

// Capture charges the attendee for a confirmed registration.
func (c *Client) Capture(ctx context.Context, req CaptureRequest) (*Payment, error) {
	// Some gateway versions wrap the payment, others return it flat;
	// accept both.
	var resp struct {
		Payment
		Wrapped *Payment `json:"payment"`
	}
	if err := c.do(ctx, http.MethodPost, "/payments/capture", req, &resp); err != nil {
		monitoring.TrackPaymentCall("capture", "error")
		return nil, err
	}
	monitoring.TrackPaymentCall("capture", "ok")
	p := resp.Payment
	if resp.Wrapped != nil {
		p = *resp.Wrapped
	}
	if p.Status == "" {
		p.Status = "captured"
	}
	return &p, nil
}

// Refund reverses a captured payment.
func (c *Client) Refund(ctx context.Context, paymentID, reason string) (*RefundResult, error) {
	var body any
	if reason != "" {
		body = map[string]string{"reason": reason}
	}
	var resp RefundResult
	if err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/refund", body, &resp); err != nil {
		monitoring.TrackPaymentCall("refund", "error")
		return nil, err
	}
	monitoring.TrackPaymentCall("refund", "ok")
	if resp.Status == "" {
		resp.Status = "refunded"
	}
	return &resp, nil
}

// Status looks up the current state of a payment.
func (c *Client) Status(ctx context.Context, paymentID string) (*Payment, error) {
	var resp struct {
		Payment
		Wrapped *Payment `json:"payment"`
	}
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Wrapped != nil {
		return resp.Wrapped, nil
	}
	return &resp.Payment, nil
}

// do runs one logical request through the breaker.  Each retry attempt
// rebuilds the request from the same payload, so the gateway sees the
// identical body every time.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal payment request: %w", err)
		}
		payload = b
	}
	url := c.baseURL + path

	return c.breaker.Do(ctx, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("build payment request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.secret != "" {
			req.Header.Set("Authorization", "Bearer "+c.secret)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("call %s: %w", url, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("payment service returned %d for %s: %s", resp.StatusCode, url, msg)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode payment response from %s: %w", url, err)
		}
		return nil
	})
}
