// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradestation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bufdev/tsctl/internal/pkg/otp"
	"github.com/bufdev/tsctl/internal/pkg/prompt"
)

const (
	loginFormSelector     = "#loginForm form"
	usernameFieldName     = "UserName"
	passwordFieldName     = "Password"
	answerFieldName       = "Answer"
	codeFieldName         = "Code"
	loginFormContentTypes = "text/html,application/xhtml+xml"
)

// FormPostLoginOption is a functional option for NewFormPostLogin.
type FormPostLoginOption func(*FormPostLogin)

// FormPostLoginWithClientCenterURL overrides DefaultClientCenterURL.
func FormPostLoginWithClientCenterURL(clientCenterURL string) FormPostLoginOption {
	return func(l *FormPostLogin) {
		l.clientCenterURL = strings.TrimSuffix(clientCenterURL, "/")
	}
}

// FormPostLoginWithAuthURL overrides DefaultAuthURL.
func FormPostLoginWithAuthURL(authURL string) FormPostLoginOption {
	return func(l *FormPostLogin) {
		l.authURL = strings.TrimSuffix(authURL, "/")
	}
}

// FormPostLoginWithTransport sets the HTTP transport used for the login requests.
func FormPostLoginWithTransport(transport http.RoundTripper) FormPostLoginOption {
	return func(l *FormPostLogin) {
		l.transport = transport
	}
}

// FormPostLoginWithPromptSecurityAnswers makes security questions without a configured
// answer prompt the operator instead of failing.
func FormPostLoginWithPromptSecurityAnswers() FormPostLoginOption {
	return func(l *FormPostLogin) {
		l.promptSecurityAnswers = true
	}
}

// FormPostLogin is a LoginStrategy that submits the login forms over plain HTTP.
type FormPostLogin struct {
	logger                *slog.Logger
	credentials           Credentials
	otpProvider           otp.Provider
	prompter              prompt.Prompter
	clientCenterURL       string
	authURL               string
	transport             http.RoundTripper
	promptSecurityAnswers bool
}

// NewFormPostLogin returns a new FormPostLogin.
//
// The otpProvider is used when the second factor is a one-time code. The prompter may
// be nil unless security answers are prompted for.
func NewFormPostLogin(
	logger *slog.Logger,
	credentials Credentials,
	otpProvider otp.Provider,
	prompter prompt.Prompter,
	options ...FormPostLoginOption,
) *FormPostLogin {
	l := &FormPostLogin{
		logger:          logger,
		credentials:     credentials,
		otpProvider:     otpProvider,
		prompter:        prompter,
		clientCenterURL: DefaultClientCenterURL,
		authURL:         DefaultAuthURL,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// Establish implements LoginStrategy.
func (l *FormPostLogin) Establish(ctx context.Context) (*WebSession, error) {
	session, err := NewWebSession()
	if err != nil {
		return nil, err
	}
	client := &http.Client{
		Transport: l.transport,
		Jar:       session.Jar,
	}
	clientCenterURL, err := url.Parse(l.clientCenterURL)
	if err != nil {
		return nil, fmt.Errorf("parsing client center URL: %w", err)
	}

	// Primary credentials.
	document, _, err := l.get(ctx, client, l.clientCenterURL)
	if err != nil {
		return nil, newAuthError("load login page", err)
	}
	form, action, err := l.findLoginForm("primary login", document)
	if err != nil {
		return nil, err
	}
	values := hiddenInputValues(form)
	values.Set(usernameFieldName, l.credentials.Username)
	values.Set(passwordFieldName, l.credentials.Password)
	l.logger.Debug("submitting primary credentials", "action", action)
	document, finalURL, err := l.post(ctx, client, action, values)
	if err != nil {
		return nil, newAuthError("primary login", err)
	}
	session.State = LoginStatePrimarySubmitted
	if finalURL.Host == clientCenterURL.Host {
		// No second factor was asked for.
		session.State = LoginStateAuthenticated
		return session, nil
	}

	// Second factor.
	form, action, err = l.findLoginForm("second factor", document)
	if err != nil {
		return nil, err
	}
	values = hiddenInputValues(form)
	switch {
	case form.Find(inputSelector(answerFieldName)).Length() > 0:
		question := securityQuestion(form)
		if question == "" {
			return nil, newPageChangedError("second factor", "security question has no label")
		}
		answer, err := l.answer(ctx, question)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("answering security question")
		values.Set(answerFieldName, answer)
	case form.Find(inputSelector(codeFieldName)).Length() > 0:
		code, err := l.otpProvider.NextCode(ctx)
		if err != nil {
			return nil, newAuthError("one-time code", err)
		}
		l.logger.Debug("submitting one-time code")
		values.Set(codeFieldName, code)
	default:
		return nil, newPageChangedError("second factor", "form has neither an %s nor a %s input", answerFieldName, codeFieldName)
	}
	_, finalURL, err = l.post(ctx, client, action, values)
	if err != nil {
		return nil, newAuthError("second factor", err)
	}
	if finalURL.Host != clientCenterURL.Host {
		return nil, newAuthError("second factor", fmt.Errorf("login ended on %s instead of the client center", finalURL.Host))
	}
	session.State = LoginStateAuthenticated
	return session, nil
}

// *** PRIVATE ***

func (l *FormPostLogin) answer(ctx context.Context, question string) (string, error) {
	return answerSecurityQuestion(ctx, l.credentials, l.prompter, l.promptSecurityAnswers, question)
}

// answerSecurityQuestion returns the configured answer for the question, or prompts for
// one if enabled. No answer is an *UnrecognizedChallengeError.
func answerSecurityQuestion(
	ctx context.Context,
	credentials Credentials,
	prompter prompt.Prompter,
	promptSecurityAnswers bool,
	question string,
) (string, error) {
	if answer, ok := credentials.SecurityAnswers[question]; ok {
		return answer, nil
	}
	if !promptSecurityAnswers || prompter == nil {
		return "", &UnrecognizedChallengeError{Question: question}
	}
	answer, err := prompter.Prompt(ctx, prompt.Request{
		Kind:    prompt.KindSecurityAnswer,
		Message: question + " ",
	})
	if err != nil {
		return "", newAuthError("security question", err)
	}
	if answer == "" {
		return "", &UnrecognizedChallengeError{Question: question}
	}
	return answer, nil
}

// findLoginForm returns the login form and its action resolved against the auth URL.
func (l *FormPostLogin) findLoginForm(op string, document *goquery.Document) (*goquery.Selection, string, error) {
	form := document.Find(loginFormSelector).First()
	if form.Length() == 0 {
		return nil, "", newPageChangedError(op, "no %q element", loginFormSelector)
	}
	action, ok := form.Attr("action")
	if !ok || action == "" {
		return nil, "", newPageChangedError(op, "login form has no action")
	}
	authURL, err := url.Parse(l.authURL + "/")
	if err != nil {
		return nil, "", fmt.Errorf("parsing auth URL: %w", err)
	}
	actionURL, err := url.Parse(action)
	if err != nil {
		return nil, "", newPageChangedError(op, "login form action %q: %v", action, err)
	}
	return form, authURL.ResolveReference(actionURL).String(), nil
}

func (l *FormPostLogin) get(ctx context.Context, client *http.Client, requestURL string) (*goquery.Document, *url.URL, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, nil, err
	}
	return sendForm(client, request)
}

func (l *FormPostLogin) post(ctx context.Context, client *http.Client, requestURL string, values url.Values) (*goquery.Document, *url.URL, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, nil, err
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return sendForm(client, request)
}

// sendForm sends the request, follows redirects, and parses the final page.
func sendForm(client *http.Client, request *http.Request) (_ *goquery.Document, _ *url.URL, retErr error) {
	request.Header.Set("Accept", loginFormContentTypes)
	response, err := client.Do(request)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		retErr = errors.Join(retErr, response.Body.Close())
	}()
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, nil, fmt.Errorf("%s %s: unexpected status %d", request.Method, response.Request.URL.Redacted(), response.StatusCode)
	}
	document, err := goquery.NewDocumentFromReader(response.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", response.Request.URL.Redacted(), err)
	}
	return document, response.Request.URL, nil
}

func hiddenInputValues(form *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find(`input[type="hidden"]`).Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		values.Set(name, input.AttrOr("value", ""))
	})
	return values
}

// securityQuestion returns the text of the label bound to the answer input,
// falling back to the first label in the form.
func securityQuestion(form *goquery.Selection) string {
	if id, ok := form.Find(inputSelector(answerFieldName)).First().Attr("id"); ok && id != "" {
		if label := form.Find(fmt.Sprintf("label[for=%q]", id)).First(); label.Length() > 0 {
			return strings.TrimSpace(label.Text())
		}
	}
	return strings.TrimSpace(form.Find("label").First().Text())
}

func inputSelector(name string) string {
	return fmt.Sprintf("input[name=%q]", name)
}
