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
	"strconv"
	"strings"
	"time"

	"github.com/bufdev/tsctl/internal/pkg/otp"
	"github.com/bufdev/tsctl/internal/pkg/prompt"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	// DefaultBrowserStepTimeout is how long the browser login waits for each element.
	DefaultBrowserStepTimeout = 30 * time.Second
	// DefaultBrowserRedirectTimeout is how long the browser login waits to land on the client center.
	DefaultBrowserRedirectTimeout = 60 * time.Second
)

// BrowserDrivenLoginOption is a functional option for NewBrowserDrivenLogin.
type BrowserDrivenLoginOption func(*BrowserDrivenLogin)

// BrowserDrivenLoginWithClientCenterURL overrides DefaultClientCenterURL.
func BrowserDrivenLoginWithClientCenterURL(clientCenterURL string) BrowserDrivenLoginOption {
	return func(l *BrowserDrivenLogin) {
		l.clientCenterURL = strings.TrimSuffix(clientCenterURL, "/")
	}
}

// BrowserDrivenLoginWithExecPath sets the Chrome binary. The default is found on the PATH.
func BrowserDrivenLoginWithExecPath(execPath string) BrowserDrivenLoginOption {
	return func(l *BrowserDrivenLogin) {
		l.execPath = execPath
	}
}

// BrowserDrivenLoginWithHeadful shows the browser window.
func BrowserDrivenLoginWithHeadful() BrowserDrivenLoginOption {
	return func(l *BrowserDrivenLogin) {
		l.headless = false
	}
}

// BrowserDrivenLoginWithTimeouts overrides DefaultBrowserStepTimeout and DefaultBrowserRedirectTimeout.
func BrowserDrivenLoginWithTimeouts(step time.Duration, redirect time.Duration) BrowserDrivenLoginOption {
	return func(l *BrowserDrivenLogin) {
		l.stepTimeout = step
		l.redirectTimeout = redirect
	}
}

// BrowserDrivenLoginWithPromptSecurityAnswers makes security questions without a configured
// answer prompt the operator instead of failing.
func BrowserDrivenLoginWithPromptSecurityAnswers() BrowserDrivenLoginOption {
	return func(l *BrowserDrivenLogin) {
		l.promptSecurityAnswers = true
	}
}

// BrowserDrivenLogin is a LoginStrategy that drives a headless Chrome through the login
// pages and copies the resulting cookies into the session.
type BrowserDrivenLogin struct {
	logger                *slog.Logger
	credentials           Credentials
	otpProvider           otp.Provider
	prompter              prompt.Prompter
	clientCenterURL       string
	execPath              string
	headless              bool
	stepTimeout           time.Duration
	redirectTimeout       time.Duration
	promptSecurityAnswers bool
}

// NewBrowserDrivenLogin returns a new BrowserDrivenLogin.
func NewBrowserDrivenLogin(
	logger *slog.Logger,
	credentials Credentials,
	otpProvider otp.Provider,
	prompter prompt.Prompter,
	options ...BrowserDrivenLoginOption,
) *BrowserDrivenLogin {
	l := &BrowserDrivenLogin{
		logger:          logger,
		credentials:     credentials,
		otpProvider:     otpProvider,
		prompter:        prompter,
		clientCenterURL: DefaultClientCenterURL,
		headless:        true,
		stepTimeout:     DefaultBrowserStepTimeout,
		redirectTimeout: DefaultBrowserRedirectTimeout,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// Establish implements LoginStrategy.
func (l *BrowserDrivenLogin) Establish(ctx context.Context) (*WebSession, error) {
	clientCenterURL, err := url.Parse(l.clientCenterURL)
	if err != nil {
		return nil, fmt.Errorf("parsing client center URL: %w", err)
	}
	session, err := NewWebSession()
	if err != nil {
		return nil, err
	}
	allocatorOptions := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.headless),
	)
	if l.execPath != "" {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(l.execPath))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, allocatorOptions...)
	defer allocatorCancel()
	browserCtx, browserCancel := chromedp.NewContext(
		allocatorCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			l.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()
	// Start the browser on the long-lived context so step timeouts do not close it.
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, newAuthError("start browser", err)
	}

	userNameSelector := loginFormSelector + " " + inputSelector(usernameFieldName)
	passwordSelector := loginFormSelector + " " + inputSelector(passwordFieldName)
	answerSelector := loginFormSelector + " " + inputSelector(answerFieldName)
	codeSelector := loginFormSelector + " " + inputSelector(codeFieldName)

	l.logger.Debug("submitting primary credentials in browser")
	if err := l.runStep(
		browserCtx,
		l.stepTimeout,
		"primary login",
		chromedp.Navigate(l.clientCenterURL),
		chromedp.WaitVisible(userNameSelector, chromedp.ByQuery),
		chromedp.SendKeys(userNameSelector, l.credentials.Username, chromedp.ByQuery),
		chromedp.SendKeys(passwordSelector, l.credentials.Password, chromedp.ByQuery),
		chromedp.Submit(loginFormSelector, chromedp.ByQuery),
	); err != nil {
		return nil, err
	}
	session.State = LoginStatePrimarySubmitted

	var hasAnswer bool
	var hasCode bool
	if err := l.runStep(
		browserCtx,
		l.stepTimeout,
		"second factor",
		chromedp.WaitVisible(answerSelector+", "+codeSelector, chromedp.ByQuery),
		chromedp.Evaluate(querySelectorExists(answerSelector), &hasAnswer),
		chromedp.Evaluate(querySelectorExists(codeSelector), &hasCode),
	); err != nil {
		return nil, err
	}
	switch {
	case hasAnswer:
		var question string
		if err := l.runStep(
			browserCtx,
			l.stepTimeout,
			"second factor",
			chromedp.Evaluate(securityQuestionLabelText(loginFormSelector, answerSelector), &question),
		); err != nil {
			return nil, err
		}
		question = strings.TrimSpace(question)
		if question == "" {
			return nil, newPageChangedError("second factor", "security question has no label")
		}
		answer, err := l.answer(ctx, question)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("answering security question in browser")
		if err := l.runStep(
			browserCtx,
			l.stepTimeout,
			"security question",
			chromedp.SendKeys(answerSelector, answer, chromedp.ByQuery),
			chromedp.Submit(loginFormSelector, chromedp.ByQuery),
		); err != nil {
			return nil, err
		}
	case hasCode:
		code, err := l.otpProvider.NextCode(ctx)
		if err != nil {
			return nil, newAuthError("one-time code", err)
		}
		l.logger.Debug("submitting one-time code in browser")
		if err := l.runStep(
			browserCtx,
			l.stepTimeout,
			"one-time code",
			chromedp.SendKeys(codeSelector, code, chromedp.ByQuery),
			chromedp.Submit(loginFormSelector, chromedp.ByQuery),
		); err != nil {
			return nil, err
		}
	default:
		return nil, newPageChangedError("second factor", "form has neither an %s nor a %s input", answerFieldName, codeFieldName)
	}

	var landed bool
	var cookies []*network.Cookie
	if err := l.runStep(
		browserCtx,
		l.redirectTimeout,
		"redirect to client center",
		chromedp.Poll(
			"window.location.host === "+strconv.Quote(clientCenterURL.Host),
			&landed,
			chromedp.WithPollingInterval(500*time.Millisecond),
		),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().WithURLs([]string{l.clientCenterURL}).Do(ctx)
			return err
		}),
	); err != nil {
		return nil, err
	}
	session.Jar.SetCookies(clientCenterURL, toHTTPCookies(cookies))
	session.State = LoginStateAuthenticated
	l.logger.Debug("copied browser cookies", "count", len(cookies))
	return session, nil
}

// *** PRIVATE ***

func (l *BrowserDrivenLogin) runStep(
	ctx context.Context,
	timeout time.Duration,
	op string,
	actions ...chromedp.Action,
) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(stepCtx, actions...); err != nil {
		return stepError(op, timeout, err)
	}
	return nil
}

func (l *BrowserDrivenLogin) answer(ctx context.Context, question string) (string, error) {
	return answerSecurityQuestion(ctx, l.credentials, l.prompter, l.promptSecurityAnswers, question)
}

func stepError(op string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newAuthError(op, fmt.Errorf("timed out after %v: %w", timeout, err))
	}
	return newAuthError(op, err)
}

func querySelectorExists(selector string) string {
	return "document.querySelector(" + strconv.Quote(selector) + ") !== null"
}

// securityQuestionLabelText returns a script that reads the label bound to the answer
// input, falling back to the first label in the form.
func securityQuestionLabelText(formSelector string, answerSelector string) string {
	return `(() => {
	const form = document.querySelector(` + strconv.Quote(formSelector) + `);
	if (form === null) {
		return "";
	}
	const input = document.querySelector(` + strconv.Quote(answerSelector) + `);
	let label = null;
	if (input !== null && input.id) {
		label = form.querySelector('label[for="' + CSS.escape(input.id) + '"]');
	}
	if (label === null) {
		label = form.querySelector("label");
	}
	return label === null ? "" : label.textContent;
})()`
}

func toHTTPCookies(cookies []*network.Cookie) []*http.Cookie {
	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, cookie := range cookies {
		httpCookie := &http.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Path:     cookie.Path,
			Domain:   cookie.Domain,
			Secure:   cookie.Secure,
			HttpOnly: cookie.HTTPOnly,
		}
		// Session cookies report an expiry of -1.
		if cookie.Expires > 0 {
			httpCookie.Expires = time.Unix(int64(cookie.Expires), 0)
		}
		httpCookies = append(httpCookies, httpCookie)
	}
	return httpCookies
}
