package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/datarecording"
	"github.com/spf13/cobra"
)

var resultsCmd = &cobra.Command{
	Use:   "results <database>",
	Short: "Print what a recorded run stored.",
	Long: "`results [database]` prints the test results of a database " +
		"written with --record. With --signal it prints the value " +
		"changes of that signal instead.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return errors.Wrap(err, "opening recording")
		}

		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		sig, _ := cmd.Flags().GetString("signal")
		limit, _ := cmd.Flags().GetInt("limit")

		if sig != "" {
			return printChanges(cmd, reader, sig, limit)
		}

		return printResults(cmd, reader)
	},
}

func init() {
	resultsCmd.Flags().String("signal", "", "print the changes of this signal")
	resultsCmd.Flags().Int("limit", 0, "print at most this many changes")

	rootCmd.AddCommand(resultsCmd)
}

func printResults(cmd *cobra.Command, reader datarecording.DataReader) error {
	reader.MapTable(datarecording.ResultTable, datarecording.ResultEntry{})

	rows, _, err := reader.Query(cmd.Context(), datarecording.ResultTable,
		datarecording.QueryParams{})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TEST\tSTATUS\tSIM TIME (ns)\tREAL TIME (s)\tSEED\tMESSAGE")

	for _, row := range rows {
		r := row.(*datarecording.ResultEntry)
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.3f\t%d\t%s\n",
			r.TestName, r.Status, r.SimTimeNS, r.RealTimeSec, r.Seed, r.Message)
	}

	return w.Flush()
}

func printChanges(
	cmd *cobra.Command,
	reader datarecording.DataReader,
	sig string,
	limit int,
) error {
	reader.MapTable(datarecording.ChangeTable, datarecording.ChangeEntry{})

	rows, total, err := reader.Query(cmd.Context(), datarecording.ChangeTable,
		datarecording.QueryParams{
			Where:   "SignalName = ?",
			Args:    []any{sig},
			OrderBy: "TimeFS",
			Limit:   limit,
		})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TEST\tTIME (fs)\tOLD\tNEW")

	for _, row := range rows {
		c := row.(*datarecording.ChangeEntry)
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			c.TestName, c.TimeFS, c.OldValue, c.NewValue)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if len(rows) < total {
		fmt.Fprintf(cmd.OutOrStdout(), "(%d of %d changes)\n", len(rows), total)
	}

	return nil
}
