// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package transactions implements the "transactions" command.
package transactions

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/bufdev/tsctl/cmd/tsctl/internal/tsctlcmd"
	"github.com/bufdev/tsctl/internal/pkg/cliio"
	"github.com/bufdev/tsctl/internal/pkg/jsonlines"
	"github.com/bufdev/tsctl/internal/standard/xtime"
	"github.com/bufdev/tsctl/internal/tsctl/tsctlaggregate"
	"github.com/bufdev/tsctl/internal/tsctl/tsctlconfig"
	"github.com/bufdev/tsctl/internal/tsctl/tsctlfetch"
	"github.com/bufdev/tsctl/internal/tsctl/tsctlpath"
	"github.com/bufdev/tsctl/internal/tsctl/tsctltransaction"
	"github.com/spf13/pflag"
)

const (
	fromFlagName       = "from"
	toFlagName         = "to"
	daysBackFlagName   = "days-back"
	accountFlagName    = "account"
	flatFlagName       = "flat"
	skipErrorsFlagName = "skip-errors"
	formatFlagName     = "format"
	saveFlagName       = "save"
)

// NewCommand returns a new transactions command that collects the daily report transactions.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Collect cash journal, closed position and fee transactions",
		Long: `Collect cash journal, closed position and fee transactions.

Every business day in the date range is fetched for every account, one report at a
time. Amounts not in the account currency are converted at the trade date rate.

By default the range is yesterday in the configured timezone, extended back by
transactions.days_back days. The first failed report aborts the run unless
--skip-errors is set, in which case the failed reports are listed on stderr.`,
		Args: appcmd.NoArgs,
		Run: builder.NewRunFunc(
			func(ctx context.Context, container appext.Container) error {
				return run(ctx, container, flags)
			},
		),
		BindFlags: flags.Bind,
	}
}

type flags struct {
	// Dir is the tsctl directory containing tsctl.yaml.
	Dir string
	// From is the first date of the range.
	From string
	// To is the last date of the range.
	To string
	// DaysBack overrides transactions.days_back when not negative.
	DaysBack int
	// Accounts filters by account name or id. Empty means all accounts.
	Accounts []string
	// Flat merges all accounts into one list ordered by date.
	Flat bool
	// SkipErrors records failed reports instead of aborting.
	SkipErrors bool
	// Format is the output format (table, csv, json).
	Format string
	// Save writes the transactions to the transactions directory as JSON lines.
	Save bool
}

func newFlags() *flags {
	return &flags{}
}

// Bind registers the flag definitions with the given flag set.
func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.Dir, tsctlcmd.DirFlagName, ".", "The tsctl directory containing tsctl.yaml")
	flagSet.StringVar(&f.From, fromFlagName, "", "The first trade date (YYYY-MM-DD)")
	flagSet.StringVar(&f.To, toFlagName, "", "The last trade date (YYYY-MM-DD), defaults to yesterday")
	flagSet.IntVar(&f.DaysBack, daysBackFlagName, -1, "The number of days before --to to start at, defaults to transactions.days_back")
	flagSet.StringSliceVar(&f.Accounts, accountFlagName, nil, "Filter by account name or id (repeatable)")
	flagSet.BoolVar(&f.Flat, flatFlagName, false, "Merge all accounts into one list ordered by date")
	flagSet.BoolVar(&f.SkipErrors, skipErrorsFlagName, false, "Skip reports that fail to fetch instead of aborting")
	flagSet.StringVar(&f.Format, formatFlagName, "table", "Output format (table, csv, json)")
	flagSet.BoolVar(&f.Save, saveFlagName, false, "Also save the transactions under the transactions directory")
}

func run(ctx context.Context, container appext.Container, flags *flags) error {
	format, err := cliio.ParseFormat(flags.Format)
	if err != nil {
		return appcmd.NewInvalidArgumentError(err.Error())
	}
	config, err := tsctlconfig.ReadConfig(flags.Dir)
	if err != nil {
		return err
	}
	from, to, err := tsctlcmd.DateRange(config, time.Now(), flags.From, flags.To, flags.DaysBack)
	if err != nil {
		return err
	}
	logger := container.Logger()
	// The account list comes from the API channel, the reports from the web channel.
	oauthClient, err := tsctlcmd.NewOAuthClient(container, config)
	if err != nil {
		return err
	}
	accounts, err := oauthClient.Accounts(ctx)
	if err != nil {
		return err
	}
	accounts, err = tsctlcmd.SelectAccounts(accounts, flags.Accounts)
	if err != nil {
		return appcmd.NewInvalidArgumentError(err.Error())
	}
	webClient, err := tsctlcmd.NewWebClient(container, config)
	if err != nil {
		return err
	}
	if err := webClient.Login(ctx); err != nil {
		return err
	}
	rateStore, err := tsctlcmd.NewRateStore(container, config)
	if err != nil {
		return err
	}
	var aggregatorOptions []tsctlaggregate.AggregatorOption
	if flags.SkipErrors {
		aggregatorOptions = append(aggregatorOptions, tsctlaggregate.AggregatorWithSkipFailedSlices())
	}
	aggregator := tsctlaggregate.NewAggregator(
		logger,
		tsctlfetch.NewFetchers(logger, webClient),
		rateStore.Rate,
		aggregatorOptions...,
	)
	result, err := aggregator.Collect(ctx, accounts, from, to)
	if err != nil {
		return err
	}
	if err := writeGaps(container.Stderr(), result.Gaps); err != nil {
		return err
	}
	if flags.Save {
		if err := save(flags.Dir, from, to, result.All()); err != nil {
			return err
		}
	}
	if flags.Flat {
		return write(container.Stdout(), format, result.All())
	}
	return writeByAccount(container.Stdout(), format, result)
}

func write(writer io.Writer, format cliio.Format, transactions []tsctltransaction.Transaction) error {
	rows := make([][]string, 0, len(transactions))
	for _, transaction := range transactions {
		row, err := transaction.TableRow()
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return cliio.Write(writer, format, tsctltransaction.TableHeaders(), rows, transactions)
}

// writeByAccount writes one table per account. CSV and JSON are written as one list
// grouped by account.
func writeByAccount(writer io.Writer, format cliio.Format, result *tsctlaggregate.Result) error {
	if format != cliio.FormatTable {
		var transactions []tsctltransaction.Transaction
		for _, accountTransactions := range result.Accounts {
			transactions = append(transactions, accountTransactions.Transactions...)
		}
		return write(writer, format, transactions)
	}
	for i, accountTransactions := range result.Accounts {
		if i > 0 {
			if _, err := fmt.Fprintln(writer); err != nil {
				return err
			}
		}
		account := accountTransactions.Account
		if _, err := fmt.Fprintf(writer, "%s (%s, %s)\n", account.Name, account.TypeDescription, account.Currency); err != nil {
			return err
		}
		if err := write(writer, format, accountTransactions.Transactions); err != nil {
			return err
		}
	}
	return nil
}

func writeGaps(writer io.Writer, gaps []tsctlaggregate.Gap) error {
	for _, gap := range gaps {
		if _, err := fmt.Fprintf(writer, "skipped %s for account %s on %s: %v\n", gap.Kind.Label(), gap.AccountID, gap.Date, gap.Err); err != nil {
			return err
		}
	}
	return nil
}

func save(dirPath string, from xtime.Date, to xtime.Date, transactions []tsctltransaction.Transaction) error {
	if err := os.MkdirAll(tsctlpath.TransactionsDirPath(dirPath), 0o755); err != nil {
		return err
	}
	return jsonlines.WriteFile(tsctlpath.TransactionsFilePath(dirPath, from, to), transactions)
}
