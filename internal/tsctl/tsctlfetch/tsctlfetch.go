// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tsctlfetch fetches the daily client center reports of an account.
package tsctlfetch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bufdev/tsctl/internal/pkg/tradestation"
	"github.com/bufdev/tsctl/internal/standard/xtime"
	"github.com/bufdev/tsctl/internal/tsctl/tsctltransaction"
)

// TradesClient is the web channel call the fetchers use.
//
// It is implemented by *tradestation.WebClient.
type TradesClient interface {
	GetTrades(ctx context.Context, account tradestation.Account, query tradestation.TradesQuery) ([]tradestation.Record, error)
}

// Fetcher fetches the transactions of one report for an account and trade date.
type Fetcher interface {
	// Type is the type of the transactions returned.
	Type() tsctltransaction.Type
	// Fetch returns the transactions in report order.
	//
	// Failures are returned as *FetchError.
	Fetch(ctx context.Context, account tradestation.Account, date xtime.Date) ([]tsctltransaction.Transaction, error)
}

// FetchError is returned when one (account, date, kind) report could not be fetched.
type FetchError struct {
	AccountID string
	Date      xtime.Date
	Kind      tsctltransaction.Type
	Err       error
}

// Error implements error.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s for account %s on %s: %v", e.Kind, e.AccountID, e.Date, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewCashFetcher returns the Fetcher for the cash journal report.
//
// Transfers, currency conversions and incoming wires are dropped.
func NewCashFetcher(logger *slog.Logger, client TradesClient) Fetcher {
	return &fetcher{
		logger:          logger,
		client:          client,
		kind:            tradestation.TradeKindCash,
		transactionType: tsctltransaction.TypeCashJournal,
		pageSize:        1000,
		orderBy:         "TradeDate",
		descriptionKey:  "Description",
		filter:          true,
	}
}

// NewPurchaseSaleFetcher returns the Fetcher for the closed positions report.
func NewPurchaseSaleFetcher(logger *slog.Logger, client TradesClient) Fetcher {
	return &fetcher{
		logger:          logger,
		client:          client,
		kind:            tradestation.TradeKindPurchaseSale,
		transactionType: tsctltransaction.TypePurchaseSale,
		pageSize:        1000,
		orderBy:         "ContractDescription",
		descriptionKey:  "Contract",
	}
}

// NewFeesFetcher returns the Fetcher for the per-contract fees and commissions report.
func NewFeesFetcher(logger *slog.Logger, client TradesClient) Fetcher {
	return &fetcher{
		logger:          logger,
		client:          client,
		kind:            tradestation.TradeKindTrades,
		transactionType: tsctltransaction.TypeFees,
		pageSize:        100,
		orderBy:         "ContractDescription",
		descriptionKey:  "Contract",
	}
}

// NewFetchers returns the cash, purchase/sale and fees fetchers, in that order.
func NewFetchers(logger *slog.Logger, client TradesClient) []Fetcher {
	return []Fetcher{
		NewCashFetcher(logger, client),
		NewPurchaseSaleFetcher(logger, client),
		NewFeesFetcher(logger, client),
	}
}

// *** PRIVATE ***

type fetcher struct {
	logger          *slog.Logger
	client          TradesClient
	kind            tradestation.TradeKind
	transactionType tsctltransaction.Type
	pageSize        int
	orderBy         string
	descriptionKey  string
	filter          bool
}

func (f *fetcher) Type() tsctltransaction.Type {
	return f.transactionType
}

func (f *fetcher) Fetch(ctx context.Context, account tradestation.Account, date xtime.Date) ([]tsctltransaction.Transaction, error) {
	records, err := f.client.GetTrades(
		ctx,
		account,
		tradestation.TradesQuery{
			Kind:     f.kind,
			From:     date,
			To:       date,
			Page:     1,
			PageSize: f.pageSize,
			OrderBy:  f.orderBy,
		},
	)
	if err != nil {
		return nil, &FetchError{
			AccountID: account.ID,
			Date:      date,
			Kind:      f.transactionType,
			Err:       err,
		}
	}
	if len(records) >= f.pageSize {
		// Only the first page is requested.
		f.logger.Warn(
			"report page is full, later records may be missing",
			"account", account.Name,
			"date", date.String(),
			"kind", f.transactionType.String(),
			"count", len(records),
		)
	}
	transactions := make([]tsctltransaction.Transaction, 0, len(records))
	for _, record := range records {
		transaction := tsctltransaction.New(account, date, f.transactionType, record, f.descriptionKey)
		if f.filter && !tsctltransaction.Include(transaction.Description) {
			f.logger.Debug(
				"excluding transaction",
				"account", account.Name,
				"date", date.String(),
				"description", transaction.Description,
			)
			continue
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}
