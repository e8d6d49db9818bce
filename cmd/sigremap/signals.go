package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"helm.sh/helm/v3/cmd/helm/require"

	"github.com/atframework/sigremap/internal/pkg/signals"
)

const signalsDesc = `
List the signal names accepted by --from and --to. Names may be given with or
without the SIG prefix, in any case, or as a signal number.
`

func newSignalsCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "List supported signal names",
		Long:  signalsDesc,
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range signals.Supported() {
				sig, err := signals.Parse(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%2d %s\n", int(sig), name)
			}
			return nil
		},
	}
	return cmd
}
