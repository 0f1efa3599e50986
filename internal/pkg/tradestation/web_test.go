// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradestation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bufdev/tsctl/internal/standard/xtime"
	"github.com/stretchr/testify/require"
)

var (
	testDate    = xtime.Date{Year: 2024, Month: time.March, Day: 5}
	testAccount = Account{ID: "123", Name: "SIM123", TypeDescription: "Margin", Currency: "USD"}
)

func TestWebClientNotLoggedIn(t *testing.T) {
	t.Parallel()
	webClient := NewWebClient(slog.New(slog.DiscardHandler), newTestLoginStrategy())
	_, err := webClient.GetTrades(
		context.Background(),
		testAccount,
		TradesQuery{Kind: TradeKindCash, From: testDate, To: testDate},
	)
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestWebClientGetTrades(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/v1/Account/SIM123/Margin/Trades/Trades/2024-03-05/2024-03-05" {
			http.NotFound(writer, request)
			return
		}
		if request.URL.RawQuery != "orderBy=ContractDescription&page=2&pageSize=100&sortOrder=Descending" {
			http.Error(writer, request.URL.RawQuery, http.StatusBadRequest)
			return
		}
		writer.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = fmt.Fprint(writer, `{"Results":[{"Contract":"ESM4 ","Commission":2.50,"Fees":0.62}],"TotalCount":1}`)
	}))
	t.Cleanup(server.Close)
	webClient := NewWebClient(
		slog.New(slog.DiscardHandler),
		newTestLoginStrategy(),
		WebClientWithClientCenterURL(server.URL+"/"),
	)
	require.NoError(t, webClient.Login(context.Background()))
	records, err := webClient.GetTrades(
		context.Background(),
		testAccount,
		TradesQuery{
			Kind:       TradeKindTrades,
			From:       testDate,
			To:         testDate,
			Page:       2,
			PageSize:   100,
			OrderBy:    "ContractDescription",
			Descending: true,
		},
	)
	require.NoError(t, err)
	require.Equal(
		t,
		[]Record{
			{
				"Contract":   "ESM4 ",
				"Commission": json.Number("2.50"),
				"Fees":       json.Number("0.62"),
			},
		},
		records,
	)
}

func TestWebClientGetTradesExpiredSession(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(writer, testLoginPage)
	}))
	t.Cleanup(server.Close)
	webClient := NewWebClient(
		slog.New(slog.DiscardHandler),
		newTestLoginStrategy(),
		WebClientWithClientCenterURL(server.URL),
	)
	require.NoError(t, webClient.Login(context.Background()))
	_, err := webClient.GetTrades(
		context.Background(),
		testAccount,
		TradesQuery{Kind: TradeKindPurchaseSale, From: testDate, To: testDate},
	)
	require.ErrorContains(t, err, "not JSON")
}

func TestWebClientGetTradesStatus(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		http.Error(writer, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	webClient := NewWebClient(
		slog.New(slog.DiscardHandler),
		newTestLoginStrategy(),
		WebClientWithClientCenterURL(server.URL),
	)
	require.NoError(t, webClient.Login(context.Background()))
	_, err := webClient.GetTrades(
		context.Background(),
		testAccount,
		TradesQuery{Kind: TradeKindCash, From: testDate, To: testDate},
	)
	require.ErrorContains(t, err, "503")
}

func TestWebClientLoginNotAuthenticated(t *testing.T) {
	t.Parallel()
	webClient := NewWebClient(
		slog.New(slog.DiscardHandler),
		loginStrategyFunc(func(context.Context) (*WebSession, error) {
			session, err := NewWebSession()
			if err != nil {
				return nil, err
			}
			session.State = LoginStatePrimarySubmitted
			return session, nil
		}),
	)
	err := webClient.Login(context.Background())
	authError := &AuthError{}
	require.ErrorAs(t, err, &authError)
	require.False(t, webClient.Authenticated())
}

func TestTradesURLUnknownKind(t *testing.T) {
	t.Parallel()
	webClient := NewWebClient(slog.New(slog.DiscardHandler), newTestLoginStrategy())
	_, err := webClient.tradesURL(testAccount, TradesQuery{From: testDate, To: testDate})
	require.Error(t, err)
	_, err = webClient.tradesURL(Account{ID: "123"}, TradesQuery{Kind: TradeKindCash, From: testDate, To: testDate})
	require.Error(t, err)
}

type loginStrategyFunc func(ctx context.Context) (*WebSession, error)

func (f loginStrategyFunc) Establish(ctx context.Context) (*WebSession, error) {
	return f(ctx)
}

func newTestLoginStrategy() LoginStrategy {
	return loginStrategyFunc(func(context.Context) (*WebSession, error) {
		session, err := NewWebSession()
		if err != nil {
			return nil, err
		}
		session.State = LoginStateAuthenticated
		return session, nil
	})
}
