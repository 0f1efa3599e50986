// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradestation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// BearerTokenType is the only token type the API accepts.
const BearerTokenType = "Bearer"

// expiryDelta is how long before its expiry a token is already treated as expired.
const expiryDelta = 10 * time.Second

// Token is an OAuth2 token for the v2 API.
type Token struct {
	// AccessToken is the bearer credential.
	AccessToken string
	// RefreshToken is used to obtain a new access token.
	RefreshToken string
	// TokenType is always BearerTokenType once the token has been received.
	TokenType string
	// Expiry is when the access token expires. Zero means unknown.
	Expiry time.Time
	// UserID is the brokerage user id returned with the token ("userid").
	UserID string
	// Extra holds any other fields returned by the token endpoint.
	Extra map[string]any
}

// Expired reports whether the access token is missing or expires within expiryDelta of now.
func (t *Token) Expired(now time.Time) bool {
	if t.AccessToken == "" {
		return true
	}
	if t.Expiry.IsZero() {
		return false
	}
	return t.Expiry.Add(-expiryDelta).Before(now)
}

// RepairTokenResponse rewrites a raw token endpoint payload so that token_type is "Bearer".
//
// The brokerage omits the field or returns it mis-cased and padded (e.g. "bearer "),
// which standard OAuth2 clients reject or propagate into the Authorization header.
// All other fields are preserved as-is.
func RepairTokenResponse(raw []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("token response is not a JSON object: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("token response is not a JSON object: %s", string(raw))
	}
	fields["token_type"] = json.RawMessage(strconv.Quote(BearerTokenType))
	return json.Marshal(fields)
}

// *** PRIVATE ***

// knownTokenFields are the fields that are not copied into Token.Extra.
var knownTokenFields = map[string]struct{}{
	"access_token":  {},
	"refresh_token": {},
	"token_type":    {},
	"expires_in":    {},
	"expires_at":    {},
	"expiry":        {},
	"userid":        {},
}

// tokenRepairTransport repairs every successful token endpoint response before the
// oauth2 package parses it, and remembers the repaired payload so that fields the
// oauth2 package does not expose (the user id, extras) can be recovered.
type tokenRepairTransport struct {
	base        http.RoundTripper
	lastPayload map[string]any
}

func (t *tokenRepairTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	response, err := t.base.RoundTrip(request)
	if err != nil {
		return nil, err
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return response, nil
	}
	body, err := io.ReadAll(response.Body)
	closeErr := response.Body.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}
	repaired, err := RepairTokenResponse(body)
	if err != nil {
		// Leave the payload alone, the oauth2 package reports the parse failure.
		repaired = body
	} else {
		// Some responses are labeled text/plain, which oauth2 would parse as a form.
		response.Header.Set("Content-Type", "application/json")
		if payload, err := decodeObject(repaired); err == nil {
			t.lastPayload = payload
		}
	}
	response.Body = io.NopCloser(bytes.NewReader(repaired))
	response.ContentLength = int64(len(repaired))
	response.Header.Set("Content-Length", strconv.Itoa(len(repaired)))
	return response, nil
}

// newTokenFromOAuth2 builds a Token from an oauth2 token and the raw repaired payload.
func newTokenFromOAuth2(oauth2Token *oauth2.Token, payload map[string]any) *Token {
	token := &Token{
		AccessToken:  oauth2Token.AccessToken,
		RefreshToken: oauth2Token.RefreshToken,
		TokenType:    BearerTokenType,
		Expiry:       oauth2Token.Expiry,
		UserID:       stringField(payload, "userid"),
	}
	for key, value := range payload {
		if _, ok := knownTokenFields[key]; ok {
			continue
		}
		if token.Extra == nil {
			token.Extra = make(map[string]any)
		}
		token.Extra[key] = value
	}
	return token
}
