package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the credit balance of the account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctrl, cli, _, err := newController(false)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		if err := requireAccount(cli); err != nil {
			return err
		}
		if _, err := ctrl.Init(cmd.Context(), cli.Account); err != nil {
			return err
		}

		snap := ctrl.State().Credits
		if ok, err := printJSON(cmd.OutOrStdout(), snap); ok || err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d credits\n", snap.AccountID, snap.Balance)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
