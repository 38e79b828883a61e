package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vitwit/jobcredits/types"
)

var profileCmd = &cobra.Command{
	Use:   "profile [userId]",
	Short: "Show a user profile, the account's by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, cli, _, err := newController(false)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		userID := cli.Account
		if len(args) == 1 {
			userID = args[0]
		} else if err := requireAccount(cli); err != nil {
			return err
		}

		user, err := ctrl.API().GetUser(cmd.Context(), userID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if ok, err := printJSON(out, user); ok || err != nil {
			return err
		}
		printProfile(out, user)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
}

func printProfile(out io.Writer, u *types.UserProfile) {
	fmt.Fprintf(out, "%s <%s>\n", u.Name, u.Email)
	for _, line := range []struct{ label, value string }{
		{"Title", u.Title},
		{"Role", u.Role},
		{"Location", u.Location},
		{"Skills", strings.Join(u.Skills, ", ")},
	} {
		if line.value != "" {
			fmt.Fprintf(out, "%-9s %s\n", line.label+":", line.value)
		}
	}
}
