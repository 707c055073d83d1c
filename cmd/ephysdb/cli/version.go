package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

type VersionInfo struct {
	Version string
	Commit  string
}

func NewVersionCommand(info VersionInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ephysdb %s (commit %s, %s %s/%s)\n",
				info.Version, info.Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
