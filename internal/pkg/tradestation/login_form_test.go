// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradestation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/bufdev/tsctl/internal/pkg/otp"
	"github.com/bufdev/tsctl/internal/pkg/prompt"
	"github.com/stretchr/testify/require"
)

const (
	testSecurityQuestion = "What was the name of your first pet?"
	testLoginPage        = `<html><body><div id="loginForm"><form action="/login/primary" method="post">
<input type="hidden" name="__RequestVerificationToken" value="token-1">
<input type="text" name="UserName"><input type="password" name="Password">
</form></div></body></html>`
)

func TestFormPostLoginSecurityQuestion(t *testing.T) {
	t.Parallel()
	sites := newTestLoginSites(t, challengeSecurityQuestion)
	credentials := testCredentials()
	credentials.SecurityAnswers = map[string]string{testSecurityQuestion: "Rex"}
	webClient := NewWebClient(
		slog.New(slog.DiscardHandler),
		sites.newFormPostLogin(credentials, nil),
		WebClientWithClientCenterURL(sites.clientCenter.URL),
	)
	require.False(t, webClient.Authenticated())
	require.NoError(t, webClient.Login(context.Background()))
	require.True(t, webClient.Authenticated())
	challengePosts, challengeValues := sites.challengeResult()
	require.Equal(t, 1, challengePosts)
	require.Equal(t, url.Values{"__RequestVerificationToken": {"token-2"}, "Answer": {"Rex"}}, challengeValues)

	records, err := webClient.GetTrades(
		context.Background(),
		Account{ID: "123", Name: "SIM123", TypeDescription: "Margin"},
		TradesQuery{Kind: TradeKindCash, From: testDate, To: testDate, PageSize: 1000, OrderBy: "TradeDate"},
	)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Monthly fee ", records[0].StringField("Description"))
}

func TestFormPostLoginSecurityQuestionLabelForAnswer(t *testing.T) {
	t.Parallel()
	sites := newTestLoginSites(t, challengeSecurityQuestionRememberDevice)
	credentials := testCredentials()
	credentials.SecurityAnswers = map[string]string{testSecurityQuestion: "Rex"}
	session, err := sites.newFormPostLogin(credentials, nil).Establish(context.Background())
	require.NoError(t, err)
	require.True(t, session.Authenticated())
	challengePosts, challengeValues := sites.challengeResult()
	require.Equal(t, 1, challengePosts)
	require.Equal(t, "Rex", challengeValues.Get("Answer"))
}

func TestFormPostLoginOneTimeCode(t *testing.T) {
	t.Parallel()
	sites := newTestLoginSites(t, challengeOneTimeCode)
	session, err := sites.newFormPostLogin(
		testCredentials(),
		nil,
	).Establish(context.Background())
	require.NoError(t, err)
	require.True(t, session.Authenticated())
	_, challengeValues := sites.challengeResult()
	require.Equal(t, "123456", challengeValues.Get("Code"))
}

func TestFormPostLoginUnrecognizedQuestion(t *testing.T) {
	t.Parallel()
	sites := newTestLoginSites(t, challengeSecurityQuestion)
	credentials := testCredentials()
	credentials.SecurityAnswers = map[string]string{"What is your favorite color?": "Blue"}
	_, err := sites.newFormPostLogin(credentials, nil).Establish(context.Background())
	challengeError := &UnrecognizedChallengeError{}
	require.ErrorAs(t, err, &challengeError)
	require.Equal(t, testSecurityQuestion, challengeError.Question)
	challengePosts, _ := sites.challengeResult()
	require.Equal(t, 0, challengePosts)
}

func TestFormPostLoginPromptsForAnswer(t *testing.T) {
	t.Parallel()
	sites := newTestLoginSites(t, challengeSecurityQuestion)
	var requests []prompt.Request
	_, err := sites.newFormPostLogin(
		testCredentials(),
		prompt.Func(func(_ context.Context, request prompt.Request) (string, error) {
			requests = append(requests, request)
			return "Rex", nil
		}),
		FormPostLoginWithPromptSecurityAnswers(),
	).Establish(context.Background())
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, prompt.KindSecurityAnswer, requests[0].Kind)
	require.Contains(t, requests[0].Message, testSecurityQuestion)
	_, challengeValues := sites.challengeResult()
	require.Equal(t, "Rex", challengeValues.Get("Answer"))
}

func TestFormPostLoginWrongPassword(t *testing.T) {
	t.Parallel()
	sites := newTestLoginSites(t, challengeSecurityQuestion)
	credentials := testCredentials()
	credentials.Password = "wrong"
	_, err := sites.newFormPostLogin(credentials, nil).Establish(context.Background())
	authError := &AuthError{}
	require.ErrorAs(t, err, &authError)
	require.ErrorIs(t, err, ErrLoginPageChanged)
	challengePosts, _ := sites.challengeResult()
	require.Equal(t, 0, challengePosts)
}

func TestFormPostLoginPageChanged(t *testing.T) {
	t.Parallel()
	sites := newTestLoginSitesWithLoginPage(
		t,
		challengeSecurityQuestion,
		`<html><body><form action="/login/primary"></form></body></html>`,
	)
	_, err := sites.newFormPostLogin(testCredentials(), nil).Establish(context.Background())
	authError := &AuthError{}
	require.ErrorAs(t, err, &authError)
	require.Equal(t, "primary login", authError.Op)
	require.ErrorIs(t, err, ErrLoginPageChanged)
}

type testChallenge int

const (
	challengeSecurityQuestion testChallenge = iota + 1
	challengeOneTimeCode
	challengeSecurityQuestionRememberDevice
)

type testLoginSites struct {
	auth         *httptest.Server
	clientCenter *httptest.Server
	challenge    testChallenge
	loginPage    string

	lock            sync.Mutex
	challengePosts  int
	challengeValues url.Values
}

func newTestLoginSites(t *testing.T, challenge testChallenge) *testLoginSites {
	return newTestLoginSitesWithLoginPage(t, challenge, testLoginPage)
}

func newTestLoginSitesWithLoginPage(t *testing.T, challenge testChallenge, loginPage string) *testLoginSites {
	sites := &testLoginSites{
		challenge: challenge,
		loginPage: loginPage,
	}

	clientCenterMux := http.NewServeMux()
	clientCenterMux.HandleFunc("GET /{$}", func(writer http.ResponseWriter, request *http.Request) {
		if !hasSessionCookie(request) {
			http.Redirect(writer, request, sites.auth.URL+"/login", http.StatusFound)
			return
		}
		_, _ = fmt.Fprint(writer, `<html><body>Client Center</body></html>`)
	})
	clientCenterMux.HandleFunc("GET /signin", func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Query().Get("ticket") != "ticket-1" {
			http.Error(writer, "bad ticket", http.StatusForbidden)
			return
		}
		http.SetCookie(writer, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
		http.Redirect(writer, request, "/", http.StatusFound)
	})
	clientCenterMux.HandleFunc("GET /api/v1/Account/SIM123/Margin/Trades/Cash/2024-03-05/2024-03-05", func(writer http.ResponseWriter, request *http.Request) {
		if !hasSessionCookie(request) {
			_, _ = fmt.Fprint(writer, sites.loginPage)
			return
		}
		query := request.URL.Query()
		if query.Get("page") != "1" || query.Get("pageSize") != "1000" || query.Get("orderBy") != "TradeDate" || query.Get("sortOrder") != "Ascending" {
			http.Error(writer, "bad query "+request.URL.RawQuery, http.StatusBadRequest)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(writer, `{"Results":[{"Description":"Monthly fee ","DebitCredit":-5.00,"Currency":"USD"}]}`)
	})
	sites.clientCenter = httptest.NewUnstartedServer(clientCenterMux)

	authMux := http.NewServeMux()
	authMux.HandleFunc("GET /login", func(writer http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(writer, sites.loginPage)
	})
	authMux.HandleFunc("POST /login/primary", func(writer http.ResponseWriter, request *http.Request) {
		if err := request.ParseForm(); err != nil {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		if request.PostForm.Get("__RequestVerificationToken") != "token-1" ||
			request.PostForm.Get("UserName") != "jdoe" ||
			request.PostForm.Get("Password") != "hunter2" {
			_, _ = fmt.Fprint(writer, `<html><body><p>Invalid username or password.</p></body></html>`)
			return
		}
		switch sites.challenge {
		case challengeSecurityQuestion:
			_, _ = fmt.Fprintf(writer, `<html><body><div id="loginForm"><form action="/login/challenge" method="post">
<input type="hidden" name="__RequestVerificationToken" value="token-2">
<div><div>Security question</div><div><label for="Answer"> %s </label><input type="password" name="Answer"></div></div>
</form></div></body></html>`, testSecurityQuestion)
		case challengeSecurityQuestionRememberDevice:
			_, _ = fmt.Fprintf(writer, `<html><body><div id="loginForm"><form action="/login/challenge" method="post">
<input type="hidden" name="__RequestVerificationToken" value="token-2">
<div><label for="RememberDevice">Remember this device</label><input type="checkbox" id="RememberDevice" name="RememberDevice" value="true"></div>
<div><label for="SecurityAnswer">%s</label><input type="password" id="SecurityAnswer" name="Answer"></div>
</form></div></body></html>`, testSecurityQuestion)
		case challengeOneTimeCode:
			_, _ = fmt.Fprint(writer, `<html><body><div id="loginForm"><form action="/login/challenge" method="post">
<input type="hidden" name="__RequestVerificationToken" value="token-2">
<label for="Code">Enter the code from your authenticator app</label><input type="text" name="Code">
</form></div></body></html>`)
		}
	})
	authMux.HandleFunc("POST /login/challenge", func(writer http.ResponseWriter, request *http.Request) {
		if err := request.ParseForm(); err != nil {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		sites.lock.Lock()
		sites.challengePosts++
		sites.challengeValues = request.PostForm
		sites.lock.Unlock()
		http.Redirect(writer, request, sites.clientCenter.URL+"/signin?ticket=ticket-1", http.StatusFound)
	})
	sites.auth = httptest.NewUnstartedServer(authMux)
	sites.clientCenter.Start()
	t.Cleanup(sites.clientCenter.Close)
	sites.auth.Start()
	t.Cleanup(sites.auth.Close)
	return sites
}

func (s *testLoginSites) challengeResult() (int, url.Values) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.challengePosts, s.challengeValues
}

func (s *testLoginSites) newFormPostLogin(
	credentials Credentials,
	prompter prompt.Prompter,
	options ...FormPostLoginOption,
) *FormPostLogin {
	return NewFormPostLogin(
		slog.New(slog.DiscardHandler),
		credentials,
		testOTPProvider("123456"),
		prompter,
		append(
			[]FormPostLoginOption{
				FormPostLoginWithClientCenterURL(s.clientCenter.URL),
				FormPostLoginWithAuthURL(s.auth.URL),
			},
			options...,
		)...,
	)
}

func hasSessionCookie(request *http.Request) bool {
	cookie, err := request.Cookie("session")
	return err == nil && cookie.Value == "ok"
}

type testOTPProvider string

func (p testOTPProvider) NextCode(context.Context) (string, error) {
	return string(p), nil
}

var _ otp.Provider = testOTPProvider("")
