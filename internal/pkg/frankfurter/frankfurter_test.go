// Copyright 2026 Peter Edge
//
// All rights reserved.

package frankfurter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bufdev/tsctl/internal/pkg/fxrate"
	"github.com/bufdev/tsctl/internal/standard/xtime"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestGetRate(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/2024-03-05" ||
			request.URL.Query().Get("base") != "GBP" ||
			request.URL.Query().Get("symbols") != "USD" {
			http.NotFound(writer, request)
			return
		}
		_, _ = fmt.Fprint(writer, `{"amount":1.0,"base":"GBP","date":"2024-03-05","rates":{"USD":1.2712}}`)
	}))
	t.Cleanup(server.Close)
	client := NewClient(ClientWithBaseURL(server.URL), ClientWithHTTPClient(server.Client()))
	rate, err := client.GetRate(context.Background(), "gbp", "usd", xtime.Date{Year: 2024, Month: time.March, Day: 5})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("1.2712").Equal(rate), rate.String())
}

func TestGetRateMissingQuote(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(writer, `{"amount":1.0,"base":"GBP","date":"2024-03-05","rates":{}}`)
	}))
	t.Cleanup(server.Close)
	client := NewClient(ClientWithBaseURL(server.URL))
	_, err := client.GetRate(context.Background(), "GBP", "XYZ", xtime.Date{Year: 2024, Month: time.March, Day: 5})
	require.ErrorIs(t, err, fxrate.ErrNoRate)
}
