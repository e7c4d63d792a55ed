package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firewatch-dev/firewatch/internal/buildinfo"
)

// Command returns the version command.
func Command(info *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
		},
	}
}
