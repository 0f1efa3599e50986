// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package bankofcanada provides an exchange rate client for the Bank of Canada valet API.
//
// The valet API provides daily exchange rates quoted in CAD. Series names follow the
// pattern FX{base}CAD (e.g., FXUSDCAD for USD→CAD). Pairs that do not involve CAD
// are crossed through CAD. The API is free and does not require authentication.
//
// See https://www.bankofcanada.ca/valet/docs for API documentation.
package bankofcanada

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

// DefaultBaseURL is the Bank of Canada valet observations base URL.
const DefaultBaseURL = "https://www.bankofcanada.ca/valet/observations"

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

// NewClient returns a new fxrate.Provider backed by the Bank of Canada.
//
// There are no rates on Canadian holidays and weekends, for which an error wrapping
// fxrate.ErrNoRate is returned.
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

const cad = "CAD"

type client struct {
	baseURL    string
	httpClient *http.Client
}

func (c *client) GetRate(ctx context.Context, base string, quote string, date xtime.Date) (decimal.Decimal, error) {
	base = strings.ToUpper(base)
	quote = strings.ToUpper(quote)
	switch {
	case base == quote:
		return decimal.NewFromInt(1), nil
	case quote == cad:
		return c.getCADRate(ctx, base, date)
	case base == cad:
		quoteRate, err := c.getCADRate(ctx, quote, date)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromInt(1).Div(quoteRate), nil
	default:
		baseRate, err := c.getCADRate(ctx, base, date)
		if err != nil {
			return decimal.Decimal{}, err
		}
		quoteRate, err := c.getCADRate(ctx, quote, date)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return baseRate.Div(quoteRate), nil
	}
}

// getCADRate returns the currency→CAD rate on the date.
func (c *client) getCADRate(ctx context.Context, currency string, date xtime.Date) (decimal.Decimal, error) {
	seriesName := "FX" + currency + cad
	values := url.Values{}
	values.Set("start_date", date.String())
	values.Set("end_date", date.String())
	body, err := fxrate.Get(ctx, c.httpClient, c.baseURL+"/"+seriesName+"/json?"+values.Encode())
	if err != nil {
		return decimal.Decimal{}, err
	}
	var response valetResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing response: %w", err)
	}
	for _, observation := range response.Observations {
		if observation.Date != date.String() {
			continue
		}
		rateValue, ok := observation.Rates[seriesName]
		// Holidays have observations without a value.
		if !ok || rateValue.Value == "" {
			break
		}
		rate, err := decimal.NewFromString(rateValue.Value)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("parsing %s rate %q: %w", seriesName, rateValue.Value, err)
		}
		if !rate.IsPositive() {
			break
		}
		return rate, nil
	}
	return decimal.Decimal{}, fmt.Errorf("%s on %s: %w", seriesName, date, fxrate.ErrNoRate)
}

// valetResponse is the JSON response from the Bank of Canada valet API.
type valetResponse struct {
	Observations []valetObservation `json:"observations"`
}

// valetObservation is a single daily observation from the valet API.
type valetObservation struct {
	// Date is the observation date (YYYY-MM-DD).
	Date string `json:"d"`
	// Rates maps series names (e.g., "FXUSDCAD") to their values.
	Rates map[string]valetRateValue `json:"-"`
}

// valetRateValue is the rate value within an observation.
type valetRateValue struct {
	// Value is the exchange rate as a string (e.g., "1.3685").
	Value string `json:"v"`
}

// UnmarshalJSON implements json.Unmarshaler.
//
// The observation is a flat object with "d" for the date and series-named keys
// (e.g., "FXUSDCAD": {"v": "1.3685"}) for the rates.
func (o *valetObservation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if dateRaw, ok := raw["d"]; ok {
		if err := json.Unmarshal(dateRaw, &o.Date); err != nil {
			return fmt.Errorf("parsing date: %w", err)
		}
	}
	o.Rates = make(map[string]valetRateValue)
	for key, value := range raw {
		if key == "d" {
			continue
		}
		var rateValue valetRateValue
		if err := json.Unmarshal(value, &rateValue); err != nil {
			// Not a rate series.
			continue
		}
		o.Rates[key] = rateValue
	}
	return nil
}
