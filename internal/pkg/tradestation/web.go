// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradestation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"

	"github.com/bufdev/tsctl/internal/standard/xtime"
	"golang.org/x/net/publicsuffix"
)

// LoginState is the state of a web session login.
type LoginState int

const (
	// LoginStateAnonymous is a session with no credentials submitted.
	LoginStateAnonymous LoginState = iota
	// LoginStatePrimarySubmitted is a session whose username and password have been accepted
	// and that is waiting for the second factor.
	LoginStatePrimarySubmitted
	// LoginStateAuthenticated is a session that can call the client center.
	LoginStateAuthenticated
)

// String implements fmt.Stringer.
func (s LoginState) String() string {
	switch s {
	case LoginStateAnonymous:
		return "anonymous"
	case LoginStatePrimarySubmitted:
		return "primary_submitted"
	case LoginStateAuthenticated:
		return "authenticated"
	default:
		return strconv.Itoa(int(s))
	}
}

// WebSession is a cookie-authenticated client center session.
type WebSession struct {
	// Jar holds the session cookies.
	Jar http.CookieJar
	// State is how far the login ceremony got.
	State LoginState
}

// Authenticated reports whether the session can call the client center.
func (s *WebSession) Authenticated() bool {
	return s != nil && s.State == LoginStateAuthenticated
}

// NewWebSession returns a new anonymous session with an empty cookie jar.
func NewWebSession() (*WebSession, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &WebSession{Jar: jar, State: LoginStateAnonymous}, nil
}

// LoginStrategy establishes an authenticated web session.
type LoginStrategy interface {
	// Establish runs the login ceremony.
	//
	// Failures are returned as *AuthError or *UnrecognizedChallengeError.
	Establish(ctx context.Context) (*WebSession, error)
}

// TradeKind is one of the daily client center reports.
type TradeKind int

const (
	// TradeKindCash is the cash journal report.
	TradeKindCash TradeKind = iota + 1
	// TradeKindPurchaseSale is the closed positions report.
	TradeKindPurchaseSale
	// TradeKindTrades is the per-contract trades report that carries fees and commissions.
	TradeKindTrades
)

// String implements fmt.Stringer.
func (k TradeKind) String() string {
	switch k {
	case TradeKindCash:
		return "cash"
	case TradeKindPurchaseSale:
		return "purchase_sale"
	case TradeKindTrades:
		return "trades"
	default:
		return strconv.Itoa(int(k))
	}
}

// TradesQuery is a page of a client center report for an account and date range.
type TradesQuery struct {
	Kind TradeKind
	From xtime.Date
	To   xtime.Date
	// Page is 1-based. Zero means 1.
	Page     int
	PageSize int
	OrderBy  string
	// Descending sorts descending. The default is ascending.
	Descending bool
}

// WebClientOption is a functional option for NewWebClient.
type WebClientOption func(*webClientOptions)

// WebClientWithClientCenterURL overrides DefaultClientCenterURL.
func WebClientWithClientCenterURL(clientCenterURL string) WebClientOption {
	return func(options *webClientOptions) {
		options.clientCenterURL = strings.TrimSuffix(clientCenterURL, "/")
	}
}

// WebClientWithTransport sets the HTTP transport for client center calls.
func WebClientWithTransport(transport http.RoundTripper) WebClientOption {
	return func(options *webClientOptions) {
		options.transport = transport
	}
}

// WebClient calls the client center with a session established by a LoginStrategy.
//
// A WebClient is not safe for concurrent use.
type WebClient struct {
	logger          *slog.Logger
	strategy        LoginStrategy
	clientCenterURL string
	transport       http.RoundTripper
	session         *WebSession
	httpClient      *http.Client
}

// NewWebClient returns a new WebClient.
func NewWebClient(logger *slog.Logger, strategy LoginStrategy, options ...WebClientOption) *WebClient {
	webClientOptions := &webClientOptions{
		clientCenterURL: DefaultClientCenterURL,
	}
	for _, option := range options {
		option(webClientOptions)
	}
	return &WebClient{
		logger:          logger,
		strategy:        strategy,
		clientCenterURL: webClientOptions.clientCenterURL,
		transport:       webClientOptions.transport,
	}
}

// Login establishes the session. It may be called again to replace an expired session.
func (c *WebClient) Login(ctx context.Context) error {
	session, err := c.strategy.Establish(ctx)
	if err != nil {
		return err
	}
	if !session.Authenticated() {
		return newAuthError("login", fmt.Errorf("login ended in state %s", session.State))
	}
	c.session = session
	c.httpClient = &http.Client{
		Transport: c.transport,
		Jar:       session.Jar,
	}
	c.logger.Info("web session established")
	return nil
}

// Authenticated reports whether Login has succeeded.
func (c *WebClient) Authenticated() bool {
	return c.session.Authenticated()
}

// GetTrades returns the records of one page of a client center report.
//
// Numbers in the records are json.Number values.
func (c *WebClient) GetTrades(ctx context.Context, account Account, query TradesQuery) ([]Record, error) {
	if !c.Authenticated() {
		return nil, ErrNotLoggedIn
	}
	requestURL, err := c.tradesURL(account, query)
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", response.Request.URL.Path, response.StatusCode)
	}
	// An expired session is answered with the login page and a 200.
	if mediaType, _, _ := mime.ParseMediaType(response.Header.Get("Content-Type")); mediaType == "text/html" || !json.Valid(body) {
		return nil, fmt.Errorf("GET %s: response is not JSON, the web session may have expired", response.Request.URL.Path)
	}
	var page struct {
		Results []Record `json:"Results"`
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&page); err != nil {
		return nil, fmt.Errorf("parsing %s report: %w", query.Kind, err)
	}
	c.logger.Debug(
		"fetched report page",
		"account", account.Name,
		"kind", query.Kind.String(),
		"from", query.From.String(),
		"to", query.To.String(),
		"count", len(page.Results),
	)
	return page.Results, nil
}

// *** PRIVATE ***

type webClientOptions struct {
	clientCenterURL string
	transport       http.RoundTripper
}

func (c *WebClient) tradesURL(account Account, query TradesQuery) (string, error) {
	var segment string
	switch query.Kind {
	case TradeKindCash:
		segment = "Cash"
	case TradeKindPurchaseSale:
		segment = "PS"
	case TradeKindTrades:
		segment = "Trades"
	default:
		return "", fmt.Errorf("unknown trade kind: %v", query.Kind)
	}
	if account.Name == "" || account.TypeDescription == "" {
		return "", fmt.Errorf("account %q has no name or type description", account.ID)
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	sortOrder := "Ascending"
	if query.Descending {
		sortOrder = "Descending"
	}
	values := url.Values{}
	values.Set("page", strconv.Itoa(page))
	values.Set("pageSize", strconv.Itoa(query.PageSize))
	values.Set("orderBy", query.OrderBy)
	values.Set("sortOrder", sortOrder)
	return c.clientCenterURL +
		"/api/v1/Account/" +
		url.PathEscape(account.Name) + "/" +
		url.PathEscape(account.TypeDescription) +
		"/Trades/" + segment + "/" +
		query.From.String() + "/" +
		query.To.String() +
		"?" + values.Encode(), nil
}
