package main

import (
	"github.com/spf13/cobra"
	"pkt.systems/measurements"
)

func newConcatCmd() *cobra.Command {
	concatCmd := &cobra.Command{
		Use:   "concat",
		Short: "Concatenate exported measurements JSON documents",
		Args:  cobra.NoArgs,
		RunE:  concatE,
	}

	addLoggingFlags(concatCmd.Flags())
	concatCmd.Flags().StringArray("json", nil, "Measurements JSON document (repeatable, output order)")
	concatCmd.Flags().String("default-collection", "", "Key of the collection shown first")
	concatCmd.Flags().Bool("minify-json", false, "Write compact JSON (env MEASUREMENTS_MINIFY_JSON)")
	concatCmd.Flags().String("output-json", "", "Output path or s3://bucket/key")
	_ = concatCmd.MarkFlagRequired("json")
	_ = concatCmd.MarkFlagRequired("output-json")
	return concatCmd
}

func concatE(cmd *cobra.Command, args []string) error {
	logger := loggerFromCmd(cmd)

	st, err := measurements.LoadSettings()
	if err != nil {
		return reportFailure(cmd.ErrOrStderr(), err)
	}
	inputs, _ := cmd.Flags().GetStringArray("json")
	defaultCollection, _ := cmd.Flags().GetString("default-collection")
	output, _ := cmd.Flags().GetString("output-json")

	sum, err := measurements.Concat(cmd.Context(), measurements.ConcatOptions{
		Inputs:            inputs,
		DefaultCollection: defaultCollection,
		Output:            output,
		Minify:            minifyJSON(cmd, st),
		Settings:          st,
		Logger:            logger,
	})
	if err != nil {
		return reportFailure(cmd.ErrOrStderr(), err)
	}
	logger.Info("summary", "inputs", sum.Inputs, "collections", sum.Collections, "output", sum.Output)
	return nil
}
