// Copyright 2026 Peter Edge
//
// All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/bufdev/tsctl/cmd/tsctl/internal/command/accounts"
	"github.com/bufdev/tsctl/cmd/tsctl/internal/command/config"
	"github.com/bufdev/tsctl/cmd/tsctl/internal/command/login"
	"github.com/bufdev/tsctl/cmd/tsctl/internal/command/orders"
	"github.com/bufdev/tsctl/cmd/tsctl/internal/command/positions"
	"github.com/bufdev/tsctl/cmd/tsctl/internal/command/quote"
	"github.com/bufdev/tsctl/cmd/tsctl/internal/command/transactions"
	"github.com/joho/godotenv"
)

func main() {
	// Secrets may be kept in a .env file in the working directory.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}
	appcmd.Main(context.Background(), newRootCommand("tsctl"))
}

// newRootCommand creates the root tsctl command with all sub-commands.
func newRootCommand(name string) *appcmd.Command {
	builder := appext.NewBuilder(name)
	return &appcmd.Command{
		Use:                 name,
		Short:               "Collect TradeStation accounts, orders and daily transactions",
		BindPersistentFlags: builder.BindRoot,
		SubCommands: []*appcmd.Command{
			config.NewCommand("config", builder),
			login.NewCommand("login", builder),
			accounts.NewCommand("accounts", builder),
			orders.NewCommand("orders", builder),
			positions.NewCommand("positions", builder),
			quote.NewCommand("quote", builder),
			transactions.NewCommand("transactions", builder),
		},
	}
}
