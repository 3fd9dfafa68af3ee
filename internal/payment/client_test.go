package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/attendance/internal/config"
)

func testConfig(url string) config.Payment {
	return config.Payment{
		BaseURL: url,
		Secret:  "sekrit",
		Timeout: 2 * time.Second,

		MaxAttempts:      3,
		BackoffFactor:    time.Millisecond,
		MaxBackoff:       5 * time.Millisecond,
		FailureThreshold: 5,
		ResetTimeout:     time.Second,
	}
}

func TestCaptureSendsPayloadAndDecodesWrappedResponse(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments/capture", r.URL.Path)
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"payment":{"id":"pay_42","status":"captured"}}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	p, err := c.Capture(context.Background(), CaptureRequest{
		EventID:       7,
		AttendeeEmail: "a@x.com",
		Amount:        decimal.RequireFromString("25.50"),
		Currency:      "EUR",
		Metadata:      map[string]any{"registration_id": float64(3)},
	})

	require.NoError(t, err)
	assert.Equal(t, "pay_42", p.ID)
	assert.Equal(t, "captured", p.Status)
	assert.Equal(t, float64(7), got["event_id"])
	assert.Equal(t, "a@x.com", got["attendee_email"])
	assert.Equal(t, float64(25.5), got["amount"])
	assert.Equal(t, "EUR", got["currency"])
}

func TestCaptureAcceptsFlatResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pay_9","status":"captured"}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	p, err := c.Capture(context.Background(), CaptureRequest{Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "pay_9", p.ID)
}

func TestCaptureRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "temporary", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"payment":{"id":"pay_1","status":"captured"}}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	p, err := c.Capture(context.Background(), CaptureRequest{Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "pay_1", p.ID)
	assert.Equal(t, 3, calls)
}

func TestCaptureSurfacesErrorAfterExhaustedAttempts(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.Capture(context.Background(), CaptureRequest{Currency: "EUR"})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, strings.Contains(err.Error(), "500"))
}

func TestRefundPostsReasonAndDecodesRefund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_42/refund", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "event 7 registration cancelled", body["reason"])
		_, _ = w.Write([]byte(`{"status":"refunded","refund":{"id":"ref_1","status":"completed"}}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	res, err := c.Refund(context.Background(), "pay_42", "event 7 registration cancelled")
	require.NoError(t, err)
	assert.Equal(t, "refunded", res.Status)
	require.NotNil(t, res.Refund)
	assert.Equal(t, "ref_1", res.Refund.ID)
}

func TestStatusLooksUpPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/payments/pay_7", r.URL.Path)
		_, _ = w.Write([]byte(`{"payment":{"id":"pay_7","status":"captured"}}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	p, err := c.Status(context.Background(), "pay_7")
	require.NoError(t, err)
	assert.Equal(t, "captured", p.Status)
}
