// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradestation

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken is returned by a TokenStore when no token has been persisted yet.
	ErrNoToken = errors.New("no persisted token")
	// ErrNotLoggedIn is returned by web channel calls made before a successful login.
	ErrNotLoggedIn = errors.New("web session is not authenticated, log in first")
	// ErrLoginPageChanged is wrapped by AuthError when an expected login form or
	// element is missing. Retrying an unparseable page cannot succeed.
	ErrLoginPageChanged = errors.New("login page did not have the expected structure")
)

// AuthError is returned when a login step, the token exchange, or a token refresh fails.
//
// It is fatal for the current run: no further brokerage calls can succeed.
type AuthError struct {
	// Op is the step that failed (e.g. "exchange", "refresh", "primary login").
	Op string
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *AuthError) Error() string {
	return fmt.Sprintf("tradestation auth: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// UnrecognizedChallengeError is returned when the login flow asks a security
// question that has no pre-supplied answer.
type UnrecognizedChallengeError struct {
	// Question is the literal question text, so the operator can add an answer for it.
	Question string
}

// Error implements error.
func (e *UnrecognizedChallengeError) Error() string {
	return fmt.Sprintf("no answer configured for security question %q", e.Question)
}

func newAuthError(op string, err error) error {
	return &AuthError{Op: op, Err: err}
}

func newPageChangedError(op string, format string, args ...any) error {
	return newAuthError(op, fmt.Errorf("%w: "+format, append([]any{ErrLoginPageChanged}, args...)...))
}
