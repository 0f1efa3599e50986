// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package orders implements the "orders" command.
package orders

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
	// accountFlagName is the flag name for the account id.
	accountFlagName = "account"
)

// NewCommand returns a new orders command that prints the brokerage response as JSON.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "List the orders of an account",
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
	// Account is the account id.
	Account string
}

func newFlags() *flags {
	return &flags{}
}

// Bind registers the flag definitions with the given flag set.
func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.Dir, tsctlcmd.DirFlagName, ".", "The tsctl directory containing tsctl.yaml")
	flagSet.StringVar(&f.Account, accountFlagName, "", "The account id")
}

func run(ctx context.Context, container appext.Container, flags *flags) error {
	if flags.Account == "" {
		return appcmd.NewInvalidArgumentErrorf("--%s is required", accountFlagName)
	}
	config, err := tsctlconfig.ReadConfig(flags.Dir)
	if err != nil {
		return err
	}
	oauthClient, err := tsctlcmd.NewOAuthClient(container, config)
	if err != nil {
		return err
	}
	data, err := oauthClient.Orders(ctx, flags.Account)
	if err != nil {
		return err
	}
	return cliio.WriteIndentedJSON(container.Stdout(), data)
}
