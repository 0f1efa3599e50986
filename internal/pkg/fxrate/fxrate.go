// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package fxrate defines the interface implemented by the exchange rate clients.
package fxrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bufdev/tsctl/internal/standard/xtime"
	"github.com/shopspring/decimal"
)

// ErrNoRate is returned when a provider has no rate for the pair and date.
var ErrNoRate = errors.New("no exchange rate available")

// Provider fetches daily exchange rates.
type Provider interface {
	// GetRate returns the rate that converts one unit of base into quote on the date.
	//
	// Currency codes are ISO 4217. Returns an error wrapping ErrNoRate if the
	// provider has no rate for the date.
	GetRate(ctx context.Context, base string, quote string, date xtime.Date) (decimal.Decimal, error)
}

// StatusError is returned when a provider responds with an unexpected HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether the error is a rate limit or server error that may
// succeed when retried.
func IsRetryable(err error) bool {
	statusError := &StatusError{}
	if !errors.As(err, &statusError) {
		return false
	}
	return statusError.StatusCode == http.StatusTooManyRequests || statusError.StatusCode >= 500
}

// Get issues a GET request and returns the body of a 200 response.
//
// Any other status is returned as a *StatusError.
func Get(ctx context.Context, httpClient *http.Client, requestURL string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")
	response, err := httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}
	if response.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: response.StatusCode, Body: string(body)}
	}
	return body, nil
}
