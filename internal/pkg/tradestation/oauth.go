// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradestation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bufdev/tsctl/internal/pkg/prompt"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// OAuthClient is the bearer-token channel to the v2 API.
//
// The token is loaded from the TokenStore, or acquired with an interactive
// authorization-code exchange on first use. It is refreshed when it is known to be
// expired, and when a call is rejected with 401, in which case the call is retried
// exactly once. Every new token is persisted.
//
// An OAuthClient is not safe for concurrent use.
type OAuthClient struct {
	logger      *slog.Logger
	credentials Credentials
	store       TokenStore
	prompter    prompt.Prompter
	apiURL      string
	redirectURL string
	httpClient  *http.Client
	newState    func() string
	now         func() time.Time

	token          *Token
	tokenTransport *tokenRepairTransport
	tokenClient    *http.Client
}

// OAuthClientOption is a functional option for NewOAuthClient.
type OAuthClientOption func(*OAuthClient)

// OAuthClientWithAPIURL overrides DefaultAPIURL.
func OAuthClientWithAPIURL(apiURL string) OAuthClientOption {
	return func(c *OAuthClient) {
		c.apiURL = strings.TrimSuffix(apiURL, "/")
	}
}

// OAuthClientWithRedirectURL overrides DefaultRedirectURL.
func OAuthClientWithRedirectURL(redirectURL string) OAuthClientOption {
	return func(c *OAuthClient) {
		c.redirectURL = redirectURL
	}
}

// OAuthClientWithHTTPClient sets the HTTP client used for API and token requests.
func OAuthClientWithHTTPClient(httpClient *http.Client) OAuthClientOption {
	return func(c *OAuthClient) {
		c.httpClient = httpClient
	}
}

// OAuthClientWithStateGenerator sets the generator of the OAuth2 state parameter.
func OAuthClientWithStateGenerator(newState func() string) OAuthClientOption {
	return func(c *OAuthClient) {
		c.newState = newState
	}
}

// OAuthClientWithClock sets the clock used to check token expiry.
func OAuthClientWithClock(now func() time.Time) OAuthClientOption {
	return func(c *OAuthClient) {
		c.now = now
	}
}

// NewOAuthClient returns a new OAuthClient.
//
// The prompter is only used when no token has been persisted yet.
func NewOAuthClient(
	logger *slog.Logger,
	credentials Credentials,
	store TokenStore,
	prompter prompt.Prompter,
	options ...OAuthClientOption,
) *OAuthClient {
	c := &OAuthClient{
		logger:      logger,
		credentials: credentials,
		store:       store,
		prompter:    prompter,
		apiURL:      DefaultAPIURL,
		redirectURL: DefaultRedirectURL,
		httpClient:  http.DefaultClient,
		newState:    uuid.NewString,
		now:         time.Now,
	}
	for _, option := range options {
		option(c)
	}
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.tokenTransport = &tokenRepairTransport{base: base}
	c.tokenClient = &http.Client{
		Transport: c.tokenTransport,
		Timeout:   c.httpClient.Timeout,
	}
	return c
}

// AcquireToken returns the current token, loading it from the store or running the
// authorization-code flow if needed.
func (c *OAuthClient) AcquireToken(ctx context.Context) (*Token, error) {
	if c.token != nil {
		return c.token, nil
	}
	token, err := c.store.Load()
	if err == nil {
		c.logger.Debug("loaded persisted token", "user_id", token.UserID)
		c.token = token
		return token, nil
	}
	if !errors.Is(err, ErrNoToken) {
		return nil, err
	}
	if err := c.authorize(ctx); err != nil {
		return nil, err
	}
	return c.token, nil
}

// Call issues an authenticated request and returns the JSON response body.
//
// The path is relative to the API URL. A 401 response triggers one refresh and one retry.
func (c *OAuthClient) Call(ctx context.Context, method string, path string) (json.RawMessage, error) {
	token, err := c.AcquireToken(ctx)
	if err != nil {
		return nil, err
	}
	if token.Expired(c.now()) {
		c.logger.Debug("token expired, refreshing")
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
	}
	statusCode, body, err := c.do(ctx, method, path)
	if err != nil {
		return nil, err
	}
	if statusCode == http.StatusUnauthorized {
		c.logger.Debug("call rejected with 401, refreshing token", "path", path)
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
		statusCode, body, err = c.do(ctx, method, path)
		if err != nil {
			return nil, err
		}
		if statusCode == http.StatusUnauthorized {
			return nil, newAuthError("call "+path, fmt.Errorf("still unauthorized after token refresh: %s", string(body)))
		}
	}
	if statusCode < 200 || statusCode > 299 {
		return nil, fmt.Errorf("%s %s: unexpected status %d: %s", method, path, statusCode, string(body))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s %s: response is not JSON", method, path)
	}
	return body, nil
}

// Accounts returns the accounts of the user.
func (c *OAuthClient) Accounts(ctx context.Context) ([]Account, error) {
	body, err := c.Call(ctx, http.MethodGet, "/users/"+url.PathEscape(c.credentials.Username)+"/accounts")
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	var accounts []Account
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("parsing accounts: %w", err)
	}
	return accounts, nil
}

// Orders returns the orders of an account as returned by the API.
func (c *OAuthClient) Orders(ctx context.Context, accountID string) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, "/accounts/"+url.PathEscape(accountID)+"/orders")
}

// Positions returns the positions of an account as returned by the API.
func (c *OAuthClient) Positions(ctx context.Context, accountID string) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, "/accounts/"+url.PathEscape(accountID)+"/positions")
}

// Quotes returns quotes for the symbols as returned by the API.
func (c *OAuthClient) Quotes(ctx context.Context, symbols ...string) (json.RawMessage, error) {
	if len(symbols) == 0 {
		return nil, errors.New("at least one symbol is required")
	}
	escaped := make([]string, len(symbols))
	for i, symbol := range symbols {
		escaped[i] = url.PathEscape(symbol)
	}
	return c.Call(ctx, http.MethodGet, "/data/quote/"+strings.Join(escaped, ","))
}

// *** PRIVATE ***

func (c *OAuthClient) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.credentials.ClientID,
		ClientSecret: c.credentials.ClientSecret,
		RedirectURL:  c.redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.apiURL + "/authorize",
			TokenURL:  c.apiURL + "/Security/Authorize",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// tokenContext makes the oauth2 package use the repairing transport.
func (c *OAuthClient) tokenContext(ctx context.Context) context.Context {
	c.tokenTransport.lastPayload = nil
	return context.WithValue(ctx, oauth2.HTTPClient, c.tokenClient)
}

func (c *OAuthClient) authorize(ctx context.Context) error {
	if c.prompter == nil {
		return newAuthError("authorize", prompt.ErrNoPrompter)
	}
	config := c.oauth2Config()
	state := c.newState()
	authorizationURL := config.AuthCodeURL(state)
	callbackURL, err := c.prompter.Prompt(ctx, prompt.Request{
		Kind:    prompt.KindAuthorizationCallback,
		Message: fmt.Sprintf("Please go to %s and authorize access.\nEnter the full callback URL: ", authorizationURL),
	})
	if err != nil {
		return newAuthError("authorize", err)
	}
	code, err := parseCallbackURL(callbackURL, state)
	if err != nil {
		return newAuthError("authorize", err)
	}
	oauth2Token, err := config.Exchange(c.tokenContext(ctx), code)
	if err != nil {
		return newAuthError("exchange", err)
	}
	token := newTokenFromOAuth2(oauth2Token, c.tokenTransport.lastPayload)
	if err := c.store.Save(token); err != nil {
		return fmt.Errorf("persisting token: %w", err)
	}
	c.token = token
	c.logger.Info("authorization complete", "user_id", token.UserID)
	return nil
}

func (c *OAuthClient) refresh(ctx context.Context) error {
	previous := c.token
	if previous.RefreshToken == "" {
		return newAuthError("refresh", errors.New("no refresh token, delete the token file and log in again"))
	}
	tokenSource := c.oauth2Config().TokenSource(
		c.tokenContext(ctx),
		&oauth2.Token{RefreshToken: previous.RefreshToken},
	)
	oauth2Token, err := tokenSource.Token()
	if err != nil {
		return newAuthError("refresh", err)
	}
	token := newTokenFromOAuth2(oauth2Token, c.tokenTransport.lastPayload)
	if token.UserID == "" {
		token.UserID = previous.UserID
	}
	if token.Extra == nil {
		token.Extra = previous.Extra
	}
	if err := c.store.Save(token); err != nil {
		return fmt.Errorf("persisting refreshed token: %w", err)
	}
	c.token = token
	c.logger.Debug("token refreshed", "expiry", token.Expiry)
	return nil
}

func (c *OAuthClient) do(ctx context.Context, method string, path string) (int, []byte, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, nil)
	if err != nil {
		return 0, nil, err
	}
	request.Header.Set("Authorization", BearerTokenType+" "+c.token.AccessToken)
	request.Header.Set("Accept", "application/json")
	response, err := c.httpClient.Do(request)
	if err != nil {
		return 0, nil, err
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return 0, nil, err
	}
	return response.StatusCode, body, nil
}

// parseCallbackURL validates the redirect the operator pasted and returns the code.
func parseCallbackURL(callbackURL string, state string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(callbackURL))
	if err != nil {
		return "", fmt.Errorf("parsing callback URL: %w", err)
	}
	query := parsed.Query()
	if errorCode := query.Get("error"); errorCode != "" {
		return "", fmt.Errorf("authorization denied: %s %s", errorCode, query.Get("error_description"))
	}
	if query.Get("state") != state {
		return "", errors.New("callback state does not match the authorization request")
	}
	code := query.Get("code")
	if code == "" {
		return "", errors.New("callback URL has no code parameter")
	}
	return code, nil
}
