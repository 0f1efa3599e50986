// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tsctlconfig provides configuration parsing and validation for tsctl.
//
// Configuration is stored at tsctl.yaml within the base directory. Secrets are never
// stored in the configuration file, they are read from the environment.
package tsctlconfig

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	// The configured timezone must load on hosts without a zoneinfo database.
	_ "time/tzdata"

	"github.com/bufdev/tsctl/internal/pkg/tradestation"
	"github.com/bufdev/tsctl/internal/standard/xos"
	"github.com/bufdev/tsctl/internal/tsctl/tsctlpath"
	"gopkg.in/yaml.v3"
)

const (
	// LoginForm selects the plain HTTP form login.
	LoginForm = "form"
	// LoginBrowser selects the headless browser login.
	LoginBrowser = "browser"

	// FXProviderOANDA selects the OANDA rate provider.
	FXProviderOANDA = "oanda"
	// FXProviderFrankfurter selects the Frankfurter (ECB) rate provider.
	FXProviderFrankfurter = "frankfurter"
	// FXProviderBankOfCanada selects the Bank of Canada rate provider.
	FXProviderBankOfCanada = "bankofcanada"

	// DefaultTimezone is the timezone used to compute "yesterday".
	DefaultTimezone = "US/Central"
	// DefaultDaysBack is the number of days before the end date that the default range starts at.
	DefaultDaysBack = 0
)

// configTemplate is the default configuration file template with comments.
// yaml.v3 does not preserve comments, so we hardcode the template string.
const configTemplate = `# The configuration file version.
#
# Required. The only current valid version is v1.
version: v1
# TradeStation configuration.
#
# The password and OAuth2 client secret must be set via the TRADESTATION_PASSWORD
# and TRADESTATION_CLIENT_SECRET environment variables (a .env file in the working
# directory is also read). If TRADESTATION_OTP_SECRET is set, one-time codes are
# generated from it, otherwise you are prompted for them.
tradestation:
  # The brokerage login.
  #
  # Required.
  username: ""
  # The OAuth2 API key.
  #
  # Required.
  client_id: ""
  # How to log in to the client center, either form or browser.
  #
  # Optional. Defaults to form. browser requires Chrome or Chromium.
  # login: form
  # Answers to the security questions of the web login, keyed by the exact question text.
  #
  # Optional.
  # security_answers:
  #   "What was the name of your first pet?": "Rex"
  # Prompt on the terminal for security questions not listed above.
  #
  # Optional. Defaults to false.
  # prompt_security_answers: false
# Transaction collection configuration.
#
# Optional.
transactions:
  # The timezone used to compute yesterday, the default end of the date range.
  #
  # Optional. Defaults to US/Central.
  timezone: US/Central
  # The number of days before the end date that the default range starts at.
  #
  # Optional. Defaults to 0.
  days_back: 0
# FX rate configuration.
#
# Optional.
# fx:
#   # The rate provider, one of oanda, frankfurter or bankofcanada. Defaults to oanda.
#   provider: oanda
`

// ExternalConfig is the YAML-serializable configuration file structure.
type ExternalConfig struct {
	// Version is the configuration file version (must be "v1").
	Version string `yaml:"version"`
	// TradeStation holds the brokerage configuration.
	TradeStation ExternalTradeStationConfig `yaml:"tradestation"`
	// Transactions holds the transaction collection configuration.
	Transactions ExternalTransactionsConfig `yaml:"transactions"`
	// FX holds the FX rate configuration.
	FX ExternalFXConfig `yaml:"fx"`
}

// ExternalTradeStationConfig holds brokerage-specific configuration.
type ExternalTradeStationConfig struct {
	Username              string            `yaml:"username"`
	ClientID              string            `yaml:"client_id"`
	APIURL                string            `yaml:"api_url"`
	RedirectURL           string            `yaml:"redirect_url"`
	ClientCenterURL       string            `yaml:"client_center_url"`
	AuthURL               string            `yaml:"auth_url"`
	Login                 string            `yaml:"login"`
	SecurityAnswers       map[string]string `yaml:"security_answers"`
	PromptSecurityAnswers bool              `yaml:"prompt_security_answers"`
	// BrowserPath is the optional path to the Chrome executable.
	BrowserPath string `yaml:"browser_path"`
}

// ExternalTransactionsConfig holds transaction collection configuration.
type ExternalTransactionsConfig struct {
	Timezone string `yaml:"timezone"`
	// DaysBack is a pointer so that an explicit 0 is distinguishable from unset.
	DaysBack *int `yaml:"days_back"`
}

// ExternalFXConfig holds FX rate configuration.
type ExternalFXConfig struct {
	Provider string `yaml:"provider"`
}

// Config is the validated runtime configuration derived from the config file.
type Config struct {
	// DirPath is the base directory the config was read from.
	DirPath string
	// Username is the brokerage login.
	Username string
	// ClientID is the OAuth2 API key.
	ClientID string
	// APIURL is the base URL of the OAuth2 API.
	APIURL string
	// RedirectURL is the registered OAuth2 redirect URI.
	RedirectURL string
	// ClientCenterURL is the base URL of the web client.
	ClientCenterURL string
	// AuthURL is the base URL of the web login forms.
	AuthURL string
	// Login is either LoginForm or LoginBrowser.
	Login string
	// SecurityAnswers maps security question text to its answer.
	SecurityAnswers map[string]string
	// PromptSecurityAnswers enables prompting for unknown security questions.
	PromptSecurityAnswers bool
	// BrowserPath is the Chrome executable path, empty for the default lookup.
	BrowserPath string
	// Location is the timezone used to compute yesterday.
	Location *time.Location
	// DaysBack is the default number of days before the end date.
	DaysBack int
	// FXProvider is one of the FXProvider constants.
	FXProvider string
}

// NewConfig validates an ExternalConfig and returns a runtime Config.
func NewConfig(dirPath string, externalConfig ExternalConfig) (*Config, error) {
	if externalConfig.Version != "v1" {
		return nil, fmt.Errorf("unsupported config version %q, must be v1", externalConfig.Version)
	}
	tradeStation := externalConfig.TradeStation
	if tradeStation.Username == "" {
		return nil, errors.New("tradestation.username is required")
	}
	if tradeStation.ClientID == "" {
		return nil, errors.New("tradestation.client_id is required")
	}
	// ClientID is used as a file name for the token.
	if strings.ContainsAny(tradeStation.ClientID, `/\`) {
		return nil, fmt.Errorf("tradestation.client_id %q must not contain path separators", tradeStation.ClientID)
	}
	config := &Config{
		DirPath:               dirPath,
		Username:              tradeStation.Username,
		ClientID:              tradeStation.ClientID,
		APIURL:                tradestation.DefaultAPIURL,
		RedirectURL:           tradestation.DefaultRedirectURL,
		ClientCenterURL:       tradestation.DefaultClientCenterURL,
		AuthURL:               tradestation.DefaultAuthURL,
		Login:                 LoginForm,
		SecurityAnswers:       make(map[string]string, len(tradeStation.SecurityAnswers)),
		PromptSecurityAnswers: tradeStation.PromptSecurityAnswers,
		DaysBack:              DefaultDaysBack,
		FXProvider:            FXProviderOANDA,
	}
	for _, urlField := range []struct {
		name  string
		value string
		dest  *string
		// The redirect URI must match the registered value exactly, trailing slash included.
		exact bool
	}{
		{name: "api_url", value: tradeStation.APIURL, dest: &config.APIURL},
		{name: "redirect_url", value: tradeStation.RedirectURL, dest: &config.RedirectURL, exact: true},
		{name: "client_center_url", value: tradeStation.ClientCenterURL, dest: &config.ClientCenterURL},
		{name: "auth_url", value: tradeStation.AuthURL, dest: &config.AuthURL},
	} {
		if urlField.value == "" {
			continue
		}
		if err := validateURL(urlField.value); err != nil {
			return nil, fmt.Errorf("tradestation.%s: %w", urlField.name, err)
		}
		if urlField.exact {
			*urlField.dest = urlField.value
		} else {
			*urlField.dest = strings.TrimSuffix(urlField.value, "/")
		}
	}
	switch strings.ToLower(tradeStation.Login) {
	case "", LoginForm:
	case LoginBrowser:
		config.Login = LoginBrowser
	default:
		return nil, fmt.Errorf("tradestation.login must be %s or %s, got %q", LoginForm, LoginBrowser, tradeStation.Login)
	}
	if tradeStation.BrowserPath != "" {
		browserPath, err := xos.ExpandHome(tradeStation.BrowserPath)
		if err != nil {
			return nil, fmt.Errorf("tradestation.browser_path: %w", err)
		}
		config.BrowserPath = browserPath
	}
	for question, answer := range tradeStation.SecurityAnswers {
		question = strings.TrimSpace(question)
		if question == "" {
			return nil, errors.New("tradestation.security_answers has an empty question")
		}
		if answer == "" {
			return nil, fmt.Errorf("tradestation.security_answers has an empty answer for %q", question)
		}
		if _, ok := config.SecurityAnswers[question]; ok {
			return nil, fmt.Errorf("duplicate security question %q", question)
		}
		config.SecurityAnswers[question] = answer
	}
	timezone := externalConfig.Transactions.Timezone
	if timezone == "" {
		timezone = DefaultTimezone
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("transactions.timezone: %w", err)
	}
	config.Location = location
	if daysBack := externalConfig.Transactions.DaysBack; daysBack != nil {
		if *daysBack < 0 {
			return nil, fmt.Errorf("transactions.days_back must not be negative, got %d", *daysBack)
		}
		config.DaysBack = *daysBack
	}
	switch strings.ToLower(externalConfig.FX.Provider) {
	case "", FXProviderOANDA:
	case FXProviderFrankfurter:
		config.FXProvider = FXProviderFrankfurter
	case FXProviderBankOfCanada:
		config.FXProvider = FXProviderBankOfCanada
	default:
		return nil, fmt.Errorf(
			"fx.provider must be one of %s, %s, %s, got %q",
			FXProviderOANDA,
			FXProviderFrankfurter,
			FXProviderBankOfCanada,
			externalConfig.FX.Provider,
		)
	}
	return config, nil
}

// ReadConfig reads and validates the configuration file from the given base directory.
// Returns a clear error message directing users to run "tsctl config init" if the file is missing.
func ReadConfig(dirPath string) (*Config, error) {
	filePath := tsctlpath.ConfigFilePath(dirPath)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found at %s, run \"tsctl config init\" to create one", filePath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var externalConfig ExternalConfig
	if err := unmarshalYAMLStrict(data, &externalConfig); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
	}
	config, err := NewConfig(dirPath, externalConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filePath, err)
	}
	return config, nil
}

// InitConfig creates a new configuration file with a documented template.
// Creates the base directory if it does not exist.
// Returns the path to the created file, or an error if the file already exists.
func InitConfig(dirPath string) (string, error) {
	filePath := tsctlpath.ConfigFilePath(dirPath)
	if _, err := os.Stat(filePath); err == nil {
		return "", fmt.Errorf("configuration file already exists: %s", filePath)
	}
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(filePath, []byte(configTemplate), 0o644); err != nil {
		return "", err
	}
	return filePath, nil
}

// ValidateConfig reads and validates the configuration file from the given base directory.
func ValidateConfig(dirPath string) error {
	_, err := ReadConfig(dirPath)
	return err
}

// *** PRIVATE ***

func validateURL(value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%q must be an http or https URL", value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%q has no host", value)
	}
	return nil
}

// unmarshalYAMLStrict unmarshals the data as YAML with strict field checking.
// If the data length is 0, this is a no-op.
func unmarshalYAMLStrict(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	yamlDecoder := yaml.NewDecoder(bytes.NewReader(data))
	// Reject unknown fields.
	yamlDecoder.KnownFields(true)
	if err := yamlDecoder.Decode(v); err != nil {
		return fmt.Errorf("could not unmarshal as YAML: %w", err)
	}
	return nil
}
