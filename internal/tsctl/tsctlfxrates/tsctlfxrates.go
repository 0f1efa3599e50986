// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tsctlfxrates provides cached FX rate lookups.
//
// Rates are stored in per-pair directories under the FX cache directory:
// fx/{BASE}.{QUOTE}/rates.json. Each rates.json is a newline-separated JSON
// file with one {"date","rate"} entry per date.
//
// The Store lazily loads rate files on first access per pair and caches them in
// memory. Rates missing from the cache are fetched from the provider, retried
// with backoff when rate limited, and appended to the pair's file.
package tsctlfxrates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bufdev/tsctl/internal/pkg/backoff"
	"github.com/bufdev/tsctl/internal/pkg/fxrate"
	"github.com/bufdev/tsctl/internal/pkg/jsonlines"
	"github.com/bufdev/tsctl/internal/standard/xtime"
	"github.com/shopspring/decimal"
)

const ratesFileName = "rates.json"

// StoreOption is a functional option for NewStore.
type StoreOption func(*Store)

// StoreWithRetryPolicy overrides backoff.DefaultPolicy for provider requests.
func StoreWithRetryPolicy(policy backoff.Policy) StoreOption {
	return func(s *Store) {
		s.retryPolicy = policy
	}
}

// Store provides FX rate lookups backed by per-pair rate files on disk and a provider.
type Store struct {
	logger   *slog.Logger
	provider fxrate.Provider
	// fxDirPath is the root FX cache directory (e.g., cache/fx).
	fxDirPath   string
	retryPolicy backoff.Policy
	// mu protects pairs and serializes fetches so that a rate is fetched once.
	mu sync.Mutex
	// pairs maps "BASE.QUOTE" to the loaded rates for that pair.
	pairs map[string]map[xtime.Date]decimal.Decimal
}

// NewStore returns a new Store that caches under fxDirPath.
func NewStore(logger *slog.Logger, fxDirPath string, provider fxrate.Provider, options ...StoreOption) *Store {
	s := &Store{
		logger:      logger,
		provider:    provider,
		fxDirPath:   fxDirPath,
		retryPolicy: backoff.DefaultPolicy,
		pairs:       make(map[string]map[xtime.Date]decimal.Decimal),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Rate returns the rate that converts one unit of base into quote on the date.
//
// The rate for a currency into itself is 1.
func (s *Store) Rate(ctx context.Context, base string, quote string, date xtime.Date) (decimal.Decimal, error) {
	base = strings.ToUpper(base)
	quote = strings.ToUpper(quote)
	if base == quote {
		return decimal.NewFromInt(1), nil
	}
	pairKey := base + "." + quote
	s.mu.Lock()
	defer s.mu.Unlock()
	rates, err := s.loadPair(pairKey)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if rate, ok := rates[date]; ok {
		return rate, nil
	}
	rate, err := backoff.Retry(
		ctx,
		s.retryPolicy,
		fxrate.IsRetryable,
		func(ctx context.Context, attempt int) (decimal.Decimal, error) {
			if attempt > 0 {
				s.logger.Debug("retrying exchange rate request", "pair", pairKey, "date", date.String(), "attempt", attempt+1)
			}
			return s.provider.GetRate(ctx, base, quote, date)
		},
	)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetching %s rate for %s: %w", pairKey, date, err)
	}
	pairDirPath := filepath.Join(s.fxDirPath, pairKey)
	if err := os.MkdirAll(pairDirPath, 0o755); err != nil {
		return decimal.Decimal{}, fmt.Errorf("creating FX cache directory: %w", err)
	}
	if err := jsonlines.AppendFile(filepath.Join(pairDirPath, ratesFileName), rateEntry{Date: date, Rate: rate}); err != nil {
		return decimal.Decimal{}, fmt.Errorf("caching %s rate: %w", pairKey, err)
	}
	rates[date] = rate
	s.logger.Debug("fetched exchange rate", "pair", pairKey, "date", date.String(), "rate", rate.String())
	return rate, nil
}

// *** PRIVATE ***

// rateEntry is one line of a rates.json file.
type rateEntry struct {
	Date xtime.Date      `json:"date"`
	Rate decimal.Decimal `json:"rate"`
}

// loadPair lazily loads the rate file for a currency pair. Must be called with mu held.
func (s *Store) loadPair(pairKey string) (map[xtime.Date]decimal.Decimal, error) {
	if rates, ok := s.pairs[pairKey]; ok {
		return rates, nil
	}
	rates := make(map[xtime.Date]decimal.Decimal)
	entries, err := jsonlines.ReadFile[rateEntry](filepath.Join(s.fxDirPath, pairKey, ratesFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s rates: %w", pairKey, err)
	}
	for _, entry := range entries {
		rates[entry.Date] = entry.Rate
	}
	s.pairs[pairKey] = rates
	return rates, nil
}
