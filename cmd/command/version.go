package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X gitlab.com/arbfn-2025.net/cmd/command.Version=..."
var (
	Version   = "dev"
	GitHash   = "unknown"
	BuildDate = "unknown"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the version of arbfn",
		// do not load configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "arbfn version %q (%s) %s\n", Version, GitHash, BuildDate)
		},
	}
}
