// Package client contains Cobra CLI commands for ledgerq.
package client

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// NewLedgerCommand constructs the `ledger` command group and subcommands.
func NewLedgerCommand(baseURL BaseURLFunc) *cobra.Command {
	ledgerCmd := &cobra.Command{Use: "ledger", Short: "Ledger operations"}
	ledgerCmd.AddCommand(
		newLedgerCreateCommand(baseURL),
		newLedgerListCommand(baseURL),
	)
	return ledgerCmd
}

func newLedgerCreateCommand(baseURL BaseURLFunc) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			var meta map[string]any
			code, err := postJSON(baseURL(), "/v1/ledgers/create", map[string]string{"ledger": name}, &meta)
			if err != nil {
				return err
			}
			if code != http.StatusCreated {
				return fmt.Errorf("create ledger: status %d: %v", code, meta)
			}
			printJSON(cmd.OutOrStdout(), meta)
			return nil
		},
	}
	createCmd.Flags().String("name", "default", "Ledger name")
	return createCmd
}

func newLedgerListCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List ledgers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out map[string]any
			code, err := getJSON(baseURL(), "/v1/ledgers", &out)
			if err != nil {
				return err
			}
			if code != http.StatusOK {
				return fmt.Errorf("list ledgers: status %d: %v", code, out)
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
