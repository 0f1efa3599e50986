// Copyright 2026 Peter Edge
//
// All rights reserved.

package bankofcanada

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bufdev/tsctl/internal/pkg/fxrate"
	"github.com/bufdev/tsctl/internal/standard/xtime"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testDate = xtime.Date{Year: 2024, Month: time.March, Day: 5}

func TestGetRate(t *testing.T) {
	t.Parallel()
	server, requests := newTestServer(t, map[string]string{"FXUSDCAD": "1.3500", "FXGBPCAD": "1.7145"})
	client := NewClient(ClientWithBaseURL(server.URL), ClientWithHTTPClient(server.Client()))
	ctx := context.Background()

	rate, err := client.GetRate(ctx, "usd", "cad", testDate)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("1.35").Equal(rate), rate.String())

	rate, err = client.GetRate(ctx, "CAD", "USD", testDate)
	require.NoError(t, err)
	require.Equal(t, "0.7407", rate.StringFixed(4))

	rate, err = client.GetRate(ctx, "GBP", "USD", testDate)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("1.27").Equal(rate), rate.String())

	rate, err = client.GetRate(ctx, "CAD", "CAD", testDate)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(1).Equal(rate))

	require.Equal(
		t,
		[]string{
			"/FXUSDCAD/json?end_date=2024-03-05&start_date=2024-03-05",
			"/FXUSDCAD/json?end_date=2024-03-05&start_date=2024-03-05",
			"/FXGBPCAD/json?end_date=2024-03-05&start_date=2024-03-05",
			"/FXUSDCAD/json?end_date=2024-03-05&start_date=2024-03-05",
		},
		requests(),
	)
}

func TestGetRateHoliday(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t, map[string]string{"FXUSDCAD": ""})
	client := NewClient(ClientWithBaseURL(server.URL))
	_, err := client.GetRate(context.Background(), "USD", "CAD", testDate)
	require.ErrorIs(t, err, fxrate.ErrNoRate)
}

func TestGetRateStatus(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		http.Error(writer, "busy", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	_, err := NewClient(ClientWithBaseURL(server.URL)).GetRate(context.Background(), "USD", "CAD", testDate)
	require.Error(t, err)
	require.True(t, fxrate.IsRetryable(err))
}

// newTestServer serves one observation on testDate for each series.
// An empty value is served as a holiday observation without a value.
func newTestServer(t *testing.T, series map[string]string) (*httptest.Server, func() []string) {
	t.Helper()
	var lock sync.Mutex
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		lock.Lock()
		requests = append(requests, request.URL.RequestURI())
		lock.Unlock()
		seriesName := strings.TrimSuffix(strings.TrimPrefix(request.URL.Path, "/"), "/json")
		value, ok := series[seriesName]
		if !ok {
			http.NotFound(writer, request)
			return
		}
		rate := `{"v":"` + value + `"}`
		if value == "" {
			rate = `{}`
		}
		_, _ = fmt.Fprintf(
			writer,
			`{"terms":{"url":"https://www.bankofcanada.ca/terms/"},"observations":[{"d":%q,%q:%s}]}`,
			request.URL.Query().Get("start_date"),
			seriesName,
			rate,
		)
	}))
	t.Cleanup(server.Close)
	return server, func() []string {
		lock.Lock()
		defer lock.Unlock()
		return append([]string(nil), requests...)
	}
}
