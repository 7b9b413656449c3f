package commands

import (
	"fmt"

	"github.com/dyluth/sagastore/internal/inspect"
	"github.com/dyluth/sagastore/internal/printer"
	"github.com/spf13/cobra"
)

func newProbeCmd(root *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Describe the configured saga repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "default" && output != "json" {
				return printer.Error(
					"invalid output format",
					fmt.Sprintf("Unknown format: %s", output),
					[]string{"Valid formats: default, json"},
				)
			}

			rt, err := openRuntime(cmd, root)
			if err != nil {
				return err
			}
			defer rt.Close()

			result := rt.repo.Probe()
			if output == "json" {
				return inspect.FormatSingleJSON(cmd.OutOrStdout(), result)
			}
			inspect.FormatProbe(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "default", "Output format (default or json)")
	return cmd
}
