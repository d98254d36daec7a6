package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"pkt.systems/measurements"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "pkt.systems/measurements %s\n", measurements.Version())
			return err
		},
	}
}
