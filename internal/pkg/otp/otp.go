// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package otp provides one-time passwords for the second login factor.
//
// With a shared secret, codes are computed locally (RFC 6238, 30 second period,
// 6 digits, SHA1). A code that is about to rotate is never returned: if less than
// the safety margin remains in the current window, the provider waits for the next
// window and computes a fresh code. Without a secret, the operator is prompted.
package otp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bufdev/tsctl/internal/pkg/prompt"
	pquernaotp "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the validity window of a code.
	Period = 30 * time.Second
	// DefaultSafetyMargin is the minimum time a returned code must remain valid.
	DefaultSafetyMargin = 3 * time.Second
	// maxPromptAttempts bounds re-prompting on blank input.
	maxPromptAttempts = 3
)

// Provider produces one-time passwords.
type Provider interface {
	// NextCode returns a code that is valid for at least the safety margin.
	// The returned code is never empty.
	NextCode(ctx context.Context) (string, error)
}

// ProviderOption is a functional option for NewSecretProvider.
type ProviderOption func(*secretProvider)

// ProviderWithClock sets the clock used to compute codes.
func ProviderWithClock(now func() time.Time) ProviderOption {
	return func(p *secretProvider) {
		p.now = now
	}
}

// ProviderWithSleep sets the function used to wait for the next window.
func ProviderWithSleep(sleep func(ctx context.Context, d time.Duration) error) ProviderOption {
	return func(p *secretProvider) {
		p.sleep = sleep
	}
}

// ProviderWithSafetyMargin overrides DefaultSafetyMargin.
func ProviderWithSafetyMargin(margin time.Duration) ProviderOption {
	return func(p *secretProvider) {
		p.margin = margin
	}
}

// NewSecretProvider returns a Provider computing codes from a base32 shared secret.
func NewSecretProvider(secret string, options ...ProviderOption) (Provider, error) {
	secret = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	if secret == "" {
		return nil, errors.New("otp secret is empty")
	}
	p := &secretProvider{
		secret: secret,
		now:    time.Now,
		sleep:  sleepContext,
		margin: DefaultSafetyMargin,
	}
	for _, option := range options {
		option(p)
	}
	// Fail early on a malformed secret rather than in the middle of a login.
	if _, err := p.generate(p.now()); err != nil {
		return nil, err
	}
	return p, nil
}

// NewPromptProvider returns a Provider that asks the operator for each code.
func NewPromptProvider(prompter prompt.Prompter) Provider {
	return &promptProvider{prompter: prompter}
}

// NewProvider returns a secret-based Provider if secret is set, otherwise a prompting one.
func NewProvider(secret string, prompter prompt.Prompter) (Provider, error) {
	if strings.TrimSpace(secret) != "" {
		return NewSecretProvider(secret)
	}
	if prompter == nil {
		return nil, fmt.Errorf("no otp secret configured: %w", prompt.ErrNoPrompter)
	}
	return NewPromptProvider(prompter), nil
}

// Remaining returns how long the code computed at now stays valid.
func Remaining(now time.Time) time.Duration {
	elapsed := time.Duration(now.UnixNano() % int64(Period))
	return Period - elapsed
}

// *** PRIVATE ***

type secretProvider struct {
	secret string
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	margin time.Duration
}

func (p *secretProvider) NextCode(ctx context.Context) (string, error) {
	now := p.now()
	if remaining := Remaining(now); remaining < p.margin {
		// Submitting now would race the rotation.
		if err := p.sleep(ctx, remaining); err != nil {
			return "", err
		}
		now = p.now()
	}
	return p.generate(now)
}

func (p *secretProvider) generate(now time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(p.secret, now, totp.ValidateOpts{
		Period:    uint(Period / time.Second),
		Digits:    pquernaotp.DigitsSix,
		Algorithm: pquernaotp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generating otp code: %w", err)
	}
	if code == "" {
		return "", errors.New("generated an empty otp code")
	}
	return code, nil
}

type promptProvider struct {
	prompter prompt.Prompter
}

func (p *promptProvider) NextCode(ctx context.Context) (string, error) {
	for range maxPromptAttempts {
		code, err := p.prompter.Prompt(ctx, prompt.Request{
			Kind:    prompt.KindOTP,
			Message: "Enter the one-time password: ",
		})
		if err != nil {
			return "", err
		}
		if code = strings.TrimSpace(code); code != "" {
			return code, nil
		}
	}
	return "", fmt.Errorf("no one-time password entered after %d attempts", maxPromptAttempts)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
