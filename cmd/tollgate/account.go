// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/config"
)

// AccountDeps contains injectable dependencies for the account commands.
type AccountDeps struct {
	// StoreOpener opens the account store selected by the configuration.
	// Default: openStore
	StoreOpener func(ctx context.Context, cfg *config.Config) (*AccountStore, error)
}

func (d *AccountDeps) opener() func(context.Context, *config.Config) (*AccountStore, error) {
	if d != nil && d.StoreOpener != nil {
		return d.StoreOpener
	}
	return openStore
}

type accountAction struct {
	use   string
	short string
	run   func(svc *auth.AccountService, ctx context.Context, id int64) (*auth.Account, error)
}

var accountActions = []accountAction{
	{"activate ID", "Allow a deactivated account to log in again", (*auth.AccountService).Activate},
	{"deactivate ID", "Block an account from logging in and from using its tokens", (*auth.AccountService).Deactivate},
	{"verify ID", "Mark an account's email as verified", (*auth.AccountService).MarkVerified},
}

// NewAccountCmd creates the account subcommand.
func NewAccountCmd() *cobra.Command {
	return newAccountCmd(nil)
}

func newAccountCmd(deps *AccountDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage account lifecycle",
		Long:  `Activate, deactivate or verify accounts in the configured store.`,
	}

	for _, action := range accountActions {
		sub := &cobra.Command{
			Use:   action.use,
			Short: action.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseAccountID(args[0])
				if err != nil {
					return err
				}
				format, _ := cmd.Flags().GetString("output")
				return withAccounts(cmd.Context(), deps, func(svc *auth.AccountService) error {
					account, err := action.run(svc, cmd.Context(), id)
					if err != nil {
						return err
					}
					if format != "text" {
						return writeStructured(cmd.OutOrStdout(), format, account.Public())
					}
					return printAccount(cmd.OutOrStdout(), account)
				})
			},
		}
		sub.Flags().StringP("output", "o", "text", "output format (text, json, yaml)")
		cmd.AddCommand(sub)
	}

	return cmd
}

func withAccounts(ctx context.Context, deps *AccountDeps, fn func(*auth.AccountService) error) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if cfg.Store.Driver == config.DriverPostgres && cfg.Secrets.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").With("field", "DATABASE_URL").Errorf("DATABASE_URL environment variable is required")
	}

	accountStore, err := deps.opener()(ctx, cfg)
	if err != nil {
		return err
	}
	defer accountStore.Close()

	svc, err := auth.NewAccountService(accountStore.Accounts, slog.Default())
	if err != nil {
		return err
	}
	return fn(svc)
}

func parseAccountID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, oops.Code("INVALID_ACCOUNT_ID").With("id", arg).Errorf("account id must be a positive integer")
	}
	return id, nil
}

func printAccount(w io.Writer, account *auth.Account) error {
	_, err := fmt.Fprintf(w, "Account %d (%s): status %s, verified %t\n",
		account.ID, account.Username, account.Status, account.Verified)
	return err
}
