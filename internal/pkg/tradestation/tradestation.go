// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tradestation provides a client for the two authentication surfaces of
// TradeStation.
//
// The OAuth2 channel (OAuthClient) talks to the formal v2 API with a bearer token.
// The token endpoint answers with a token_type the standard OAuth2 machinery cannot
// use, so every grant and refresh response is repaired before it is parsed. Tokens
// are persisted through a TokenStore and refreshed lazily.
//
// The web channel (WebClient) talks to the client center, the cookie-authenticated
// web application that exposes the daily cash, purchase/sale and trade reports. Its
// session is established by a LoginStrategy: FormPostLogin posts the login forms
// directly, BrowserDrivenLogin drives headless Chrome through the same ceremony.
package tradestation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

const (
	// DefaultAPIURL is the base URL of the v2 OAuth2 API.
	DefaultAPIURL = "https://api.tradestation.com/v2"
	// DefaultRedirectURL is the OAuth2 redirect URI registered for the client.
	DefaultRedirectURL = "https://127.0.0.1/"
	// DefaultClientCenterURL is the base URL of the cookie-authenticated web client.
	DefaultClientCenterURL = "https://clientcenter.tradestation.com"
	// DefaultAuthURL is the base URL of the web login forms.
	DefaultAuthURL = "https://auth.tradestation.com"
)

// Credentials are the secrets and identity used by both channels.
//
// Credentials are immutable for the process lifetime.
type Credentials struct {
	// Username is the brokerage login.
	Username string
	// Password is the brokerage password.
	Password string
	// ClientID is the OAuth2 API key.
	ClientID string
	// ClientSecret is the OAuth2 API secret.
	ClientSecret string
	// OTPSecret is the optional base32 TOTP secret for the web login.
	OTPSecret string
	// SecurityAnswers maps security question text to its answer.
	SecurityAnswers map[string]string
}

// Account is a brokerage account as returned by the accounts endpoint.
type Account struct {
	// ID is the brokerage account key.
	ID string
	// Name is the account name used by the client center URLs.
	Name string
	// TypeDescription is the account type used by the client center URLs (e.g. "Margin").
	TypeDescription string
	// Currency is the account base currency.
	Currency string
	// Fields holds every field returned by the brokerage.
	Fields map[string]any
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Account) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*a = Account{
		ID:              stringField(fields, "Key"),
		Name:            stringField(fields, "Name"),
		TypeDescription: stringField(fields, "TypeDescription"),
		Currency:        stringField(fields, "Currency"),
		Fields:          fields,
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Account) MarshalJSON() ([]byte, error) {
	fields := maps.Clone(a.Fields)
	if fields == nil {
		fields = make(map[string]any, 4)
	}
	setStringField(fields, "Key", a.ID)
	setStringField(fields, "Name", a.Name)
	setStringField(fields, "TypeDescription", a.TypeDescription)
	setStringField(fields, "Currency", a.Currency)
	return json.Marshal(fields)
}

// Record is one raw report row from the client center.
//
// Numbers are decoded as json.Number so amounts keep their exact decimal representation.
type Record map[string]any

// StringField returns the field as a string, or "" if it is absent.
func (r Record) StringField(key string) string {
	return stringField(r, key)
}

// *** PRIVATE ***

func decodeObject(data []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// setStringField sets key to value unless fields already holds an equivalent value,
// so that brokerage values keep their original JSON type.
func setStringField(fields map[string]any, key string, value string) {
	if _, ok := fields[key]; ok && stringField(fields, key) == value {
		return
	}
	fields[key] = value
}

func stringField(fields map[string]any, key string) string {
	switch value := fields[key].(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}
