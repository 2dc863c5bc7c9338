package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the ledgerq client.
// It registers the ledger and obligation command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerq",
		Short: "ledgerq client commands",
	}
	root.AddCommand(NewLedgerCommand(baseURL))
	root.AddCommand(NewObligationCommand(baseURL))
	return root
}
