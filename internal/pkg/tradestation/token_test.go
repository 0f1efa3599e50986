// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradestation

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRepairTokenResponse(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		raw  string
	}{
		{
			name: "missing",
			raw:  `{"access_token":"a","refresh_token":"r","expires_in":1200,"userid":"jdoe"}`,
		},
		{
			name: "mis-cased and padded",
			raw:  `{"access_token":"a","refresh_token":"r","expires_in":1200,"userid":"jdoe","token_type":"bearer "}`,
		},
		{
			name: "already correct",
			raw:  `{"access_token":"a","refresh_token":"r","expires_in":1200,"userid":"jdoe","token_type":"Bearer"}`,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			repaired, err := RepairTokenResponse([]byte(testCase.raw))
			require.NoError(t, err)
			var before map[string]any
			require.NoError(t, json.Unmarshal([]byte(testCase.raw), &before))
			var after map[string]any
			require.NoError(t, json.Unmarshal(repaired, &after))
			require.Equal(t, "Bearer", after["token_type"])
			delete(before, "token_type")
			delete(after, "token_type")
			require.Equal(t, before, after)
		})
	}
}

func TestRepairTokenResponseKeepsNumbersExact(t *testing.T) {
	t.Parallel()
	repaired, err := RepairTokenResponse([]byte(`{"expires_in":1200.000,"token_type":"bearer"}`))
	require.NoError(t, err)
	require.Contains(t, string(repaired), `"expires_in":1200.000`)
}

func TestRepairTokenResponseNotObject(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{`[]`, `null`, `"token"`, `<html></html>`} {
		_, err := RepairTokenResponse([]byte(raw))
		require.Error(t, err, raw)
	}
}

func TestTokenExpired(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	require.True(t, (&Token{}).Expired(now))
	require.False(t, (&Token{AccessToken: "a"}).Expired(now))
	require.False(t, (&Token{AccessToken: "a", Expiry: now.Add(time.Minute)}).Expired(now))
	require.True(t, (&Token{AccessToken: "a", Expiry: now.Add(5 * time.Second)}).Expired(now))
	require.True(t, (&Token{AccessToken: "a", Expiry: now.Add(-time.Minute)}).Expired(now))
}

func TestTokenRepairTransport(t *testing.T) {
	t.Parallel()
	transport := &tokenRepairTransport{
		base: roundTripFunc(func(request *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"text/plain"}},
				Body:       io.NopCloser(strings.NewReader(`{"access_token":"a","token_type":"bearer ","userid":"jdoe"}`)),
				Request:    request,
			}, nil
		}),
	}
	request, err := http.NewRequest(http.MethodPost, "https://example.com/Security/Authorize", nil)
	require.NoError(t, err)
	response, err := transport.RoundTrip(request)
	require.NoError(t, err)
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.Equal(t, "application/json", response.Header.Get("Content-Type"))
	require.Equal(t, int64(len(body)), response.ContentLength)
	require.JSONEq(t, `{"access_token":"a","token_type":"Bearer","userid":"jdoe"}`, string(body))
	require.Equal(t, "jdoe", transport.lastPayload["userid"])
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(request *http.Request) (*http.Response, error) {
	return f(request)
}
