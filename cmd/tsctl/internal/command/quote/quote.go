// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package quote implements the "quote" command.
package quote

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
	// symbolFlagName is the flag name for the symbols to quote.
	symbolFlagName = "symbol"
)

// NewCommand returns a new quote command that prints quotes for symbols as JSON.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Get quotes for symbols",
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
	// Symbols are the symbols to quote.
	Symbols []string
}

func newFlags() *flags {
	return &flags{}
}

// Bind registers the flag definitions with the given flag set.
func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.Dir, tsctlcmd.DirFlagName, ".", "The tsctl directory containing tsctl.yaml")
	flagSet.StringSliceVar(&f.Symbols, symbolFlagName, nil, "The symbols to quote (repeatable or comma-separated)")
}

func run(ctx context.Context, container appext.Container, flags *flags) error {
	if len(flags.Symbols) == 0 {
		return appcmd.NewInvalidArgumentErrorf("--%s is required", symbolFlagName)
	}
	config, err := tsctlconfig.ReadConfig(flags.Dir)
	if err != nil {
		return err
	}
	oauthClient, err := tsctlcmd.NewOAuthClient(container, config)
	if err != nil {
		return err
	}
	data, err := oauthClient.Quotes(ctx, flags.Symbols...)
	if err != nil {
		return err
	}
	return cliio.WriteIndentedJSON(container.Stdout(), data)
}
