package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/vitwit/jobcredits/payment"
	"github.com/vitwit/jobcredits/types"
)

var errAborted = errors.New("purchase aborted")

var purchaseCmd = &cobra.Command{
	Use:   "purchase",
	Short: "Buy a credit bundle with the configured keypair",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctrl, cli, log, err := newController(true)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		if err := requireAccount(cli); err != nil {
			return err
		}
		if _, err := ctrl.Init(cmd.Context(), cli.Account); err != nil {
			log.Warn("could not load balance before purchase", map[string]any{"error": err})
		}

		session, err := ctrl.ConnectWallet(cmd.Context())
		if err != nil {
			return err
		}

		terms := ctrl.Terms()
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			prompt := promptui.Prompt{
				Label:     purchaseLabel(terms, session.PublicKey, ctrl.Network()),
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				return errAborted
			}
		}

		receipt, err := ctrl.Purchase(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if ok, err := printJSON(out, receipt); ok || err != nil {
			return err
		}
		fmt.Fprintf(out, "Purchased %d credits (tx %s, slot %d). Balance: %d\n",
			receipt.Credits, receipt.Signature, receipt.Slot, ctrl.Credits())
		return nil
	},
}

// purchaseLabel describes the transfer; real funds on a non-test cluster are
// called out.
func purchaseLabel(terms payment.Terms, payer string, network types.Network) string {
	label := fmt.Sprintf("Pay %s SOL from %s to %s for %d credits on %s",
		types.LamportsToSOL(terms.Lamports), payer, terms.Recipient, terms.Credits, network)
	if !network.IsTestnet() {
		label = "WARNING: real SOL. " + label
	}
	return label
}

func init() {
	purchaseCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(purchaseCmd)
}
