// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package oanda provides a client for the OANDA historical rates data endpoint.
//
// The endpoint backs the public historical rates page and requires no
// authentication. The daily mid rate is used.
package oanda

import (
	"bytes"
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

// DefaultBaseURL is the OANDA historical rates data endpoint.
const DefaultBaseURL = "https://www.oanda.com/fx-for-business/historical-rates/api/data/update/"

// ClientOption is a functional option for NewClient.
type ClientOption func(*client)

// ClientWithBaseURL overrides DefaultBaseURL.
func ClientWithBaseURL(baseURL string) ClientOption {
	return func(c *client) {
		c.baseURL = baseURL
	}
}

// ClientWithHTTPClient sets the HTTP client to use for requests.
func ClientWithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// NewClient returns a new fxrate.Provider backed by OANDA.
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

type oandaResponse struct {
	Widget []struct {
		// Average is a number or a numeric string depending on the view.
		Average any `json:"average"`
	} `json:"widget"`
}

func (c *client) GetRate(ctx context.Context, base string, quote string, date xtime.Date) (decimal.Decimal, error) {
	base = strings.ToUpper(base)
	quote = strings.ToUpper(quote)
	values := url.Values{}
	values.Set("source", "OANDA")
	values.Set("adjustment", "0")
	values.Set("base_currency", base)
	values.Set("start_date", date.String())
	values.Set("end_date", date.String())
	values.Set("period", "daily")
	values.Set("price", "mid")
	values.Set("view", "graph")
	values.Set("quote_currency_0", quote)
	body, err := fxrate.Get(ctx, c.httpClient, c.baseURL+"?"+values.Encode())
	if err != nil {
		return decimal.Decimal{}, err
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var response oandaResponse
	if err := decoder.Decode(&response); err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing response: %w", err)
	}
	if len(response.Widget) == 0 || response.Widget[0].Average == nil {
		return decimal.Decimal{}, fmt.Errorf("%s.%s on %s: %w", base, quote, date, fxrate.ErrNoRate)
	}
	var rate decimal.Decimal
	switch average := response.Widget[0].Average.(type) {
	case json.Number:
		rate, err = decimal.NewFromString(average.String())
	case string:
		rate, err = decimal.NewFromString(strings.TrimSpace(average))
	default:
		err = fmt.Errorf("unexpected average type %T", average)
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing %s.%s rate: %w", base, quote, err)
	}
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%s.%s on %s: rate %s: %w", base, quote, date, rate, fxrate.ErrNoRate)
	}
	return rate, nil
}
