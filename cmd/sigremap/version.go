package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"helm.sh/helm/v3/cmd/helm/require"
)

var (
	toolVersion string
)

// ToolVersion returns the tool version.
func ToolVersion() string {
	return toolVersion
}

func newVersionCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the sigremap version information",
		Long:  "Print the sigremap version information",
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(out, "%s %s %s/%s\n", toolName, toolVersion, runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
	return cmd
}
