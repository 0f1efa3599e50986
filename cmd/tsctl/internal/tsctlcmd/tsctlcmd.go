// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tsctlcmd provides shared wiring for tsctl commands that talk to the brokerage
// (reading secrets, constructing the two channels, the rate store and the date range).
package tsctlcmd

import (
	"errors"
	"fmt"
	"time"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/bufdev/tsctl/internal/pkg/bankofcanada"
	"github.com/bufdev/tsctl/internal/pkg/frankfurter"
	"github.com/bufdev/tsctl/internal/pkg/fxrate"
	"github.com/bufdev/tsctl/internal/pkg/oanda"
	"github.com/bufdev/tsctl/internal/pkg/otp"
	"github.com/bufdev/tsctl/internal/pkg/prompt"
	"github.com/bufdev/tsctl/internal/pkg/tradestation"
	"github.com/bufdev/tsctl/internal/standard/xtime"
	"github.com/bufdev/tsctl/internal/tsctl/tsctlconfig"
	"github.com/bufdev/tsctl/internal/tsctl/tsctlfxrates"
	"github.com/bufdev/tsctl/internal/tsctl/tsctlpath"
)

const (
	// DirFlagName is the flag name for the base directory containing tsctl.yaml.
	DirFlagName = "dir"

	// PasswordEnvVar is the environment variable for the brokerage password.
	PasswordEnvVar = "TRADESTATION_PASSWORD"
	// ClientSecretEnvVar is the environment variable for the OAuth2 API secret.
	ClientSecretEnvVar = "TRADESTATION_CLIENT_SECRET"
	// OTPSecretEnvVar is the optional environment variable for the base32 TOTP secret.
	OTPSecretEnvVar = "TRADESTATION_OTP_SECRET"
)

// NewCredentials reads the configured identity and the secrets from the environment.
//
// Missing secrets are reported by the constructors that need them.
func NewCredentials(container appext.Container, config *tsctlconfig.Config) tradestation.Credentials {
	return tradestation.Credentials{
		Username:        config.Username,
		Password:        container.Env(PasswordEnvVar),
		ClientID:        config.ClientID,
		ClientSecret:    container.Env(ClientSecretEnvVar),
		OTPSecret:       container.Env(OTPSecretEnvVar),
		SecurityAnswers: config.SecurityAnswers,
	}
}

// NewPrompter returns a Prompter that reads from stdin and writes to stderr.
func NewPrompter(container appext.Container) prompt.Prompter {
	return prompt.NewTerminalPrompter(container.Stdin(), container.Stderr())
}

// NewOAuthClient constructs the OAuth2 channel with the token persisted under the base directory.
func NewOAuthClient(container appext.Container, config *tsctlconfig.Config) (*tradestation.OAuthClient, error) {
	credentials := NewCredentials(container, config)
	if credentials.ClientSecret == "" {
		return nil, fmt.Errorf("%s environment variable is required, set it to your TradeStation API secret", ClientSecretEnvVar)
	}
	return tradestation.NewOAuthClient(
		container.Logger(),
		credentials,
		tradestation.NewFileTokenStore(tsctlpath.TokenFilePath(config.DirPath, config.ClientID)),
		NewPrompter(container),
		tradestation.OAuthClientWithAPIURL(config.APIURL),
		tradestation.OAuthClientWithRedirectURL(config.RedirectURL),
	), nil
}

// NewWebClient constructs the cookie channel with the configured login strategy.
//
// The client is not logged in.
func NewWebClient(container appext.Container, config *tsctlconfig.Config) (*tradestation.WebClient, error) {
	credentials := NewCredentials(container, config)
	if credentials.Password == "" {
		return nil, fmt.Errorf("%s environment variable is required, set it to your TradeStation password", PasswordEnvVar)
	}
	prompter := NewPrompter(container)
	otpProvider, err := otp.NewProvider(credentials.OTPSecret, prompter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OTPSecretEnvVar, err)
	}
	logger := container.Logger()
	var strategy tradestation.LoginStrategy
	switch config.Login {
	case tsctlconfig.LoginBrowser:
		options := []tradestation.BrowserDrivenLoginOption{
			tradestation.BrowserDrivenLoginWithClientCenterURL(config.ClientCenterURL),
		}
		if config.BrowserPath != "" {
			options = append(options, tradestation.BrowserDrivenLoginWithExecPath(config.BrowserPath))
		}
		if config.PromptSecurityAnswers {
			options = append(options, tradestation.BrowserDrivenLoginWithPromptSecurityAnswers())
		}
		strategy = tradestation.NewBrowserDrivenLogin(logger, credentials, otpProvider, prompter, options...)
	case tsctlconfig.LoginForm:
		options := []tradestation.FormPostLoginOption{
			tradestation.FormPostLoginWithClientCenterURL(config.ClientCenterURL),
			tradestation.FormPostLoginWithAuthURL(config.AuthURL),
		}
		if config.PromptSecurityAnswers {
			options = append(options, tradestation.FormPostLoginWithPromptSecurityAnswers())
		}
		strategy = tradestation.NewFormPostLogin(logger, credentials, otpProvider, prompter, options...)
	default:
		return nil, fmt.Errorf("unknown login %q", config.Login)
	}
	return tradestation.NewWebClient(
		logger,
		strategy,
		tradestation.WebClientWithClientCenterURL(config.ClientCenterURL),
	), nil
}

// NewRateStore constructs the cached FX rate store for the configured provider.
func NewRateStore(container appext.Container, config *tsctlconfig.Config) (*tsctlfxrates.Store, error) {
	var provider fxrate.Provider
	switch config.FXProvider {
	case tsctlconfig.FXProviderOANDA:
		provider = oanda.NewClient()
	case tsctlconfig.FXProviderFrankfurter:
		provider = frankfurter.NewClient()
	case tsctlconfig.FXProviderBankOfCanada:
		provider = bankofcanada.NewClient()
	default:
		return nil, fmt.Errorf("unknown fx provider %q", config.FXProvider)
	}
	return tsctlfxrates.NewStore(container.Logger(), tsctlpath.CacheFXDirPath(config.DirPath), provider), nil
}

// DateRange resolves the --from, --to and --days-back flags into a date range.
//
// The end date defaults to yesterday in the configured timezone. The start date
// defaults to daysBack days before the end date. A negative daysBack uses the
// configured value.
func DateRange(config *tsctlconfig.Config, now time.Time, fromFlag string, toFlag string, daysBack int) (xtime.Date, xtime.Date, error) {
	if daysBack < 0 {
		daysBack = config.DaysBack
	}
	to := xtime.Yesterday(now, config.Location)
	if toFlag != "" {
		parsed, err := xtime.ParseDate(toFlag)
		if err != nil {
			return xtime.Date{}, xtime.Date{}, appcmd.NewInvalidArgumentErrorf("invalid --to: %v", err)
		}
		to = parsed
	}
	from := to.AddDays(-daysBack)
	if fromFlag != "" {
		parsed, err := xtime.ParseDate(fromFlag)
		if err != nil {
			return xtime.Date{}, xtime.Date{}, appcmd.NewInvalidArgumentErrorf("invalid --from: %v", err)
		}
		from = parsed
	}
	if to.Before(from) {
		return xtime.Date{}, xtime.Date{}, appcmd.NewInvalidArgumentErrorf("--from %s is after --to %s", from, to)
	}
	return from, to, nil
}

// SelectAccounts returns the accounts whose name or id is in names, in the brokerage order.
//
// An empty names returns all accounts. Unknown names are an error.
func SelectAccounts(accounts []tradestation.Account, names []string) ([]tradestation.Account, error) {
	if len(names) == 0 {
		return accounts, nil
	}
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}
	var selected []tradestation.Account
	for _, account := range accounts {
		_, byName := wanted[account.Name]
		_, byID := wanted[account.ID]
		if byName || byID {
			selected = append(selected, account)
			delete(wanted, account.Name)
			delete(wanted, account.ID)
		}
	}
	var errs []error
	for _, name := range names {
		if _, ok := wanted[name]; ok {
			errs = append(errs, fmt.Errorf("unknown account %q", name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return selected, nil
}
