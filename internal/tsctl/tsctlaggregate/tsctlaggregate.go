// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tsctlaggregate collects the transactions of accounts over a date range.
package tsctlaggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bufdev/tsctl/internal/pkg/tradestation"
	"github.com/bufdev/tsctl/internal/standard/xtime"
	"github.com/bufdev/tsctl/internal/tsctl/tsctlfetch"
	"github.com/bufdev/tsctl/internal/tsctl/tsctltransaction"
)

// Aggregator collects transactions from the daily reports.
type Aggregator interface {
	// Collect walks the business days in [from, to] in chronological order, and for
	// each day and each account, runs every fetcher in order and converts the
	// transactions into the account currency.
	//
	// By default the first failure aborts the run. Weekend days are not fetched.
	Collect(ctx context.Context, accounts []tradestation.Account, from xtime.Date, to xtime.Date) (*Result, error)
}

// AggregatorOption is a functional option for NewAggregator.
type AggregatorOption func(*aggregator)

// AggregatorWithSkipFailedSlices makes a failed (account, date, kind) fetch record a
// Gap and continue instead of aborting the run.
func AggregatorWithSkipFailedSlices() AggregatorOption {
	return func(a *aggregator) {
		a.skipFailedSlices = true
	}
}

// NewAggregator returns a new Aggregator.
//
// The fetchers run in the given order for each account and date.
func NewAggregator(
	logger *slog.Logger,
	fetchers []tsctlfetch.Fetcher,
	rate tsctltransaction.RateFunc,
	options ...AggregatorOption,
) Aggregator {
	a := &aggregator{
		logger:   logger,
		fetchers: fetchers,
		rate:     rate,
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// AccountTransactions are the transactions collected for one account.
type AccountTransactions struct {
	Account      tradestation.Account
	Transactions []tsctltransaction.Transaction
}

// Gap is a report that could not be fetched.
type Gap struct {
	AccountID string
	Date      xtime.Date
	Kind      tsctltransaction.Type
	Err       error
}

// Result is the outcome of Collect.
type Result struct {
	// Accounts is in the order the accounts were given.
	Accounts []*AccountTransactions
	// Gaps are the skipped reports, in the order they failed.
	Gaps []Gap
}

// All returns the transactions of all accounts.
//
// Transactions are ordered by date, then account, then report, then report order.
func (r *Result) All() []tsctltransaction.Transaction {
	var total int
	for _, accountTransactions := range r.Accounts {
		total += len(accountTransactions.Transactions)
	}
	all := make([]tsctltransaction.Transaction, 0, total)
	// Each account list is already ordered by date, so merge by date.
	indexes := make([]int, len(r.Accounts))
	for len(all) < total {
		var date xtime.Date
		found := false
		for i, accountTransactions := range r.Accounts {
			if indexes[i] >= len(accountTransactions.Transactions) {
				continue
			}
			candidate := accountTransactions.Transactions[indexes[i]].TradeDate
			if !found || candidate.Before(date) {
				date = candidate
				found = true
			}
		}
		for i, accountTransactions := range r.Accounts {
			for indexes[i] < len(accountTransactions.Transactions) &&
				accountTransactions.Transactions[indexes[i]].TradeDate == date {
				all = append(all, accountTransactions.Transactions[indexes[i]])
				indexes[i]++
			}
		}
	}
	return all
}

// *** PRIVATE ***

type aggregator struct {
	logger           *slog.Logger
	fetchers         []tsctlfetch.Fetcher
	rate             tsctltransaction.RateFunc
	skipFailedSlices bool
}

func (a *aggregator) Collect(
	ctx context.Context,
	accounts []tradestation.Account,
	from xtime.Date,
	to xtime.Date,
) (*Result, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("from date %s is after to date %s", from, to)
	}
	result := &Result{
		Accounts: make([]*AccountTransactions, len(accounts)),
	}
	for i, account := range accounts {
		result.Accounts[i] = &AccountTransactions{Account: account}
	}
	for date := range xtime.BusinessDays(from, to) {
		a.logger.Info("getting transactions", "date", date.String())
		for i, account := range accounts {
			for _, fetcher := range a.fetchers {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				transactions, err := a.fetch(ctx, fetcher, account, date)
				if err != nil {
					fetchError := &tsctlfetch.FetchError{}
					if !a.skipFailedSlices || !errors.As(err, &fetchError) {
						return nil, err
					}
					a.logger.Warn(
						"skipping failed report",
						"account", account.Name,
						"date", date.String(),
						"kind", fetchError.Kind.String(),
						"error", fetchError.Err,
					)
					result.Gaps = append(
						result.Gaps,
						Gap{
							AccountID: fetchError.AccountID,
							Date:      fetchError.Date,
							Kind:      fetchError.Kind,
							Err:       fetchError.Err,
						},
					)
					continue
				}
				result.Accounts[i].Transactions = append(result.Accounts[i].Transactions, transactions...)
			}
		}
	}
	return result, nil
}

// fetch runs the fetcher and converts the currency of each transaction.
//
// A conversion failure is reported as a FetchError for the slice.
func (a *aggregator) fetch(
	ctx context.Context,
	fetcher tsctlfetch.Fetcher,
	account tradestation.Account,
	date xtime.Date,
) ([]tsctltransaction.Transaction, error) {
	transactions, err := fetcher.Fetch(ctx, account, date)
	if err != nil {
		return nil, err
	}
	for i := range transactions {
		if err := tsctltransaction.ConvertCurrency(ctx, &transactions[i], account, a.rate); err != nil {
			return nil, &tsctlfetch.FetchError{
				AccountID: account.ID,
				Date:      date,
				Kind:      fetcher.Type(),
				Err:       err,
			}
		}
	}
	if len(transactions) > 0 {
		a.logger.Debug(
			"fetched transactions",
			"account", account.Name,
			"date", date.String(),
			"kind", fetcher.Type().String(),
			"count", len(transactions),
		)
	}
	return transactions, nil
}
