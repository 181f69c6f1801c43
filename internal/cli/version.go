package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// appVersion is stamped by the release build; "dev" otherwise.
var appVersion = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the toolforge version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			// keep output simple for scripting
			fmt.Fprintln(cmd.OutOrStdout(), appVersion)
		},
	}
}
