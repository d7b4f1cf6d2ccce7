// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/lootledger/lootledger/internal/logging"
)

// Deliverer posts a notification payload to a destination. Implementations
// must be safe for concurrent use by multiple dispatcher workers.
type Deliverer interface {
	Deliver(ctx context.Context, url string, payload []byte) error
}

// transientError marks a delivery failure worth retrying.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// IsTransientDelivery reports whether err is a retryable delivery failure.
func IsTransientDelivery(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// HTTPDeliverer posts payloads as JSON webhooks, wrapped in a circuit
// breaker so a dead destination cannot tie up dispatcher workers.
type HTTPDeliverer struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[any]
}

// NewHTTPDeliverer creates a webhook deliverer with the given request
// timeout.
func NewHTTPDeliverer(timeout time.Duration) *HTTPDeliverer {
	settings := gobreaker.Settings{
		Name:        "notification-delivery",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Delivery circuit breaker state changed")
		},
	}
	return &HTTPDeliverer{
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Deliver posts the payload. 2xx succeeds; 429 and 5xx are transient;
// other statuses are terminal.
func (d *HTTPDeliverer) Deliver(ctx context.Context, url string, payload []byte) error {
	_, err := d.breaker.Execute(func() (any, error) {
		return nil, d.post(ctx, url, payload)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return &transientError{err: err}
	}
	return err
}

func (d *HTTPDeliverer) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return &transientError{err: fmt.Errorf("delivery request failed: %w", err)}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &transientError{err: fmt.Errorf("destination returned %d", resp.StatusCode)}
	default:
		return fmt.Errorf("destination rejected payload with %d", resp.StatusCode)
	}
}
