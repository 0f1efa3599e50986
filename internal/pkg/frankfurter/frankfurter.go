// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package frankfurter provides a client for fetching exchange rates from frankfurter.dev.
//
// The frankfurter.dev API is free and does not require an API key or authentication.
// Rates are the European Central Bank reference rates. For a date without a rate
// (weekends, holidays) the rate of the previous business day is returned.
// See https://frankfurter.dev for usage details and rate limits.
package frankfurter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bufdev/tsctl/internal/pkg/fxrate"
	"github.com/bufdev/tsctl/internal/standard/xtime"
	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the frankfurter.dev API base URL.
const DefaultBaseURL = "https://api.frankfurter.dev/v1"

// ClientOption is a functional option for NewClient.
type ClientOption func(*client)

// ClientWithBaseURL overrides DefaultBaseURL.
func ClientWithBaseURL(baseURL string) ClientOption {
	return func(c *client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// ClientWithHTTPClient sets the HTTP client to use for requests.
func ClientWithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// NewClient returns a new fxrate.Provider backed by frankfurter.dev.
func NewClient(options ...ClientOption) fxrate.Provider {
	c := &client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// *** PRIVATE ***

type client struct {
	baseURL    string
	httpClient *http.Client
}

// frankfurterResponse is the JSON response from the frankfurter.dev API for a single date.
type frankfurterResponse struct {
	Date  string                 `json:"date"`
	Rates map[string]json.Number `json:"rates"`
}

func (c *client) GetRate(ctx context.Context, base string, quote string, date xtime.Date) (decimal.Decimal, error) {
	base = strings.ToUpper(base)
	quote = strings.ToUpper(quote)
	values := url.Values{}
	values.Set("base", base)
	values.Set("symbols", quote)
	body, err := fxrate.Get(ctx, c.httpClient, c.baseURL+"/"+date.String()+"?"+values.Encode())
	if err != nil {
		return decimal.Decimal{}, err
	}
	var response frankfurterResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing response: %w", err)
	}
	rate, ok := response.Rates[quote]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%s.%s on %s: %w", base, quote, date, fxrate.ErrNoRate)
	}
	return decimal.NewFromString(rate.String())
}
