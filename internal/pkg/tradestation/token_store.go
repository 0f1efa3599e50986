// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradestation

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/bufdev/tsctl/internal/standard/xos"
)

// TokenStore persists the OAuth2 token between runs.
type TokenStore interface {
	// Load returns the persisted token, or an error wrapping ErrNoToken if there is none.
	Load() (*Token, error)
	// Save persists the token, replacing any previous one.
	Save(token *Token) error
}

// NewFileTokenStore returns a TokenStore backed by a JSON file.
//
// The file holds a single JSON object with sorted keys. Files written by earlier
// tooling that record "expires_at" as Unix seconds are also accepted.
func NewFileTokenStore(filePath string) TokenStore {
	return &fileTokenStore{filePath: filePath}
}

// *** PRIVATE ***

type fileTokenStore struct {
	filePath string
}

func (s *fileTokenStore) Load() (*Token, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", s.filePath, ErrNoToken)
		}
		return nil, err
	}
	fields, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("parsing token file %s: %w", s.filePath, err)
	}
	token := &Token{
		AccessToken:  stringField(fields, "access_token"),
		RefreshToken: stringField(fields, "refresh_token"),
		// The persisted value is not trusted either.
		TokenType: BearerTokenType,
		UserID:    stringField(fields, "userid"),
	}
	if expiry := stringField(fields, "expiry"); expiry != "" {
		token.Expiry, err = time.Parse(time.RFC3339, expiry)
		if err != nil {
			return nil, fmt.Errorf("parsing token expiry %q: %w", expiry, err)
		}
	} else if number, ok := fields["expires_at"].(json.Number); ok {
		seconds, err := number.Float64()
		if err != nil {
			return nil, fmt.Errorf("parsing token expires_at %q: %w", number, err)
		}
		whole, frac := math.Modf(seconds)
		token.Expiry = time.Unix(int64(whole), int64(frac*1e9))
	}
	for key, value := range fields {
		if _, ok := knownTokenFields[key]; ok {
			continue
		}
		if token.Extra == nil {
			token.Extra = make(map[string]any)
		}
		token.Extra[key] = value
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s has neither access_token nor refresh_token", s.filePath)
	}
	return token, nil
}

func (s *fileTokenStore) Save(token *Token) error {
	fields := maps.Clone(token.Extra)
	if fields == nil {
		fields = make(map[string]any, 5)
	}
	fields["access_token"] = token.AccessToken
	fields["refresh_token"] = token.RefreshToken
	fields["token_type"] = BearerTokenType
	fields["userid"] = token.UserID
	if !token.Expiry.IsZero() {
		fields["expiry"] = token.Expiry.UTC().Format(time.RFC3339)
	}
	// encoding/json sorts map keys.
	data, err := json.MarshalIndent(fields, "", "    ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	return xos.WriteFileAtomic(s.filePath, data, 0o600)
}
