// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradestation

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestToHTTPCookies(t *testing.T) {
	t.Parallel()
	expires := time.Date(2030, time.January, 2, 3, 4, 5, 0, time.UTC)
	httpCookies := toHTTPCookies(
		[]*network.Cookie{
			{
				Name:     "session",
				Value:    "abc",
				Domain:   "clientcenter.tradestation.com",
				Path:     "/",
				Expires:  -1,
				Secure:   true,
				HTTPOnly: true,
				Session:  true,
			},
			{
				Name:    "prefs",
				Value:   "dark",
				Domain:  ".tradestation.com",
				Path:    "/api",
				Expires: float64(expires.Unix()),
			},
		},
	)
	require.Equal(
		t,
		[]*http.Cookie{
			{
				Name:     "session",
				Value:    "abc",
				Domain:   "clientcenter.tradestation.com",
				Path:     "/",
				Secure:   true,
				HttpOnly: true,
			},
			{
				Name:    "prefs",
				Value:   "dark",
				Domain:  ".tradestation.com",
				Path:    "/api",
				Expires: time.Unix(expires.Unix(), 0),
			},
		},
		httpCookies,
	)
	require.True(t, httpCookies[0].Expires.IsZero())
	require.Empty(t, toHTTPCookies(nil))
}

func TestStepErrorTimeout(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	err := stepError("second factor", 30*time.Second, ctx.Err())
	var authError *AuthError
	require.ErrorAs(t, err, &authError)
	require.Equal(t, "second factor", authError.Op)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Contains(t, err.Error(), "timed out after 30s")
}

func TestStepErrorOther(t *testing.T) {
	t.Parallel()
	cause := errors.New("node not found")
	err := stepError("primary login", time.Second, cause)
	var authError *AuthError
	require.ErrorAs(t, err, &authError)
	require.Equal(t, "primary login", authError.Op)
	require.ErrorIs(t, err, cause)
	require.NotContains(t, err.Error(), "timed out")
}

func TestSecurityQuestionLabelText(t *testing.T) {
	t.Parallel()
	script := securityQuestionLabelText("#loginForm form", `#loginForm form input[name="Answer"]`)
	require.Contains(t, script, `document.querySelector("#loginForm form")`)
	require.Contains(t, script, `document.querySelector("#loginForm form input[name=\"Answer\"]")`)
	require.Contains(t, script, `form.querySelector("label")`)
}
