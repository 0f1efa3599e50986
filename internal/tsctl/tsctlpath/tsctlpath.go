// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tsctlpath derives file paths from the tsctl base directory.
//
// The base directory (--dir flag) contains:
//
//	tsctl.yaml                        Config file
//	tokens/<client_id>.json           Persisted OAuth2 token, one per application
//	cache/fx/<BASE>.<QUOTE>/          FX rate data
//	transactions/<from>_<to>.jsonl    Saved transaction exports
package tsctlpath

import (
	"fmt"
	"path/filepath"

	"github.com/bufdev/tsctl/internal/standard/xtime"
)

// ConfigFileName is the well-known config file name within the base directory.
const ConfigFileName = "tsctl.yaml"

// ConfigFilePath returns the path to the config file within the base directory.
func ConfigFilePath(dirPath string) string {
	return filepath.Join(dirPath, ConfigFileName)
}

// TokensDirPath returns the directory for persisted tokens.
func TokensDirPath(dirPath string) string {
	return filepath.Join(dirPath, "tokens")
}

// TokenFilePath returns the token file for the given OAuth2 client id.
func TokenFilePath(dirPath string, clientID string) string {
	return filepath.Join(dirPath, "tokens", clientID+".json")
}

// CacheFXDirPath returns the directory for cached FX rate data.
func CacheFXDirPath(dirPath string) string {
	return filepath.Join(dirPath, "cache", "fx")
}

// TransactionsDirPath returns the directory for saved transaction exports.
func TransactionsDirPath(dirPath string) string {
	return filepath.Join(dirPath, "transactions")
}

// TransactionsFilePath returns the export file for the given date range.
func TransactionsFilePath(dirPath string, from xtime.Date, to xtime.Date) string {
	return filepath.Join(dirPath, "transactions", fmt.Sprintf("%s_%s.jsonl", from, to))
}
