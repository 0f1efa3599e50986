// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package accounts implements the "accounts" command.
package accounts

import (
	"context"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/bufdev/tsctl/cmd/tsctl/internal/tsctlcmd"
	"github.com/bufdev/tsctl/internal/pkg/cliio"
	"github.com/bufdev/tsctl/internal/tsctl/tsctlconfig"
	"github.com/spf13/pflag"
)

const (
	// formatFlagName is the flag name for the output format.
	formatFlagName = "format"
)

// NewCommand returns a new accounts command that lists the brokerage accounts.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "List brokerage accounts",
		Args:  appcmd.NoArgs,
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
	// Format is the output format (table, csv, json).
	Format string
}

func newFlags() *flags {
	return &flags{}
}

// Bind registers the flag definitions with the given flag set.
func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.Dir, tsctlcmd.DirFlagName, ".", "The tsctl directory containing tsctl.yaml")
	flagSet.StringVar(&f.Format, formatFlagName, "table", "Output format (table, csv, json)")
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
	oauthClient, err := tsctlcmd.NewOAuthClient(container, config)
	if err != nil {
		return err
	}
	accounts, err := oauthClient.Accounts(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(accounts))
	for _, account := range accounts {
		rows = append(rows, []string{account.ID, account.Name, account.TypeDescription, account.Currency})
	}
	return cliio.Write(container.Stdout(), format, []string{"ID", "NAME", "TYPE", "CURRENCY"}, rows, accounts)
}
