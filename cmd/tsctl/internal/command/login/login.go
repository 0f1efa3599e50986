// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package login implements the "login" command.
package login

import (
	"context"
	"fmt"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/bufdev/tsctl/cmd/tsctl/internal/tsctlcmd"
	"github.com/bufdev/tsctl/internal/tsctl/tsctlconfig"
	"github.com/spf13/pflag"
)

const (
	// apiOnlyFlagName is the flag name for skipping the web login.
	apiOnlyFlagName = "api-only"
)

// NewCommand returns a new login command that acquires the API token and checks the web login.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Log in to TradeStation",
		Long: `Log in to TradeStation.

If no API token has been saved yet, an authorization URL is printed and the URL the
browser is redirected to must be pasted back. The token is saved under the tsctl
directory and refreshed automatically afterwards.

The web login is then run once to check the password and second factor.`,
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
	// APIOnly skips the web login.
	APIOnly bool
}

func newFlags() *flags {
	return &flags{}
}

// Bind registers the flag definitions with the given flag set.
func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.Dir, tsctlcmd.DirFlagName, ".", "The tsctl directory containing tsctl.yaml")
	flagSet.BoolVar(&f.APIOnly, apiOnlyFlagName, false, "Only acquire the API token, skip the web login")
}

func run(ctx context.Context, container appext.Container, flags *flags) error {
	config, err := tsctlconfig.ReadConfig(flags.Dir)
	if err != nil {
		return err
	}
	oauthClient, err := tsctlcmd.NewOAuthClient(container, config)
	if err != nil {
		return err
	}
	token, err := oauthClient.AcquireToken(ctx)
	if err != nil {
		return err
	}
	expiry := "at an unknown time"
	if !token.Expiry.IsZero() {
		expiry = token.Expiry.Local().Format("2006-01-02 15:04:05 MST")
	}
	if _, err := fmt.Fprintf(container.Stdout(), "api: token for %s expires %s\n", config.Username, expiry); err != nil {
		return err
	}
	if flags.APIOnly {
		return nil
	}
	webClient, err := tsctlcmd.NewWebClient(container, config)
	if err != nil {
		return err
	}
	if err := webClient.Login(ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintf(container.Stdout(), "web: logged in as %s\n", config.Username)
	return err
}
