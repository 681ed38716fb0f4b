package main

import (
	"os"

	"github.com/franz/music-ledger/internal/report"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the most recent play count and rating changes",
	RunE:  runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)

	logCmd.Flags().IntP("limit", "n", 25, "show at most this many changes (0 for all)")
}

func runLog(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	reporter, err := loadReporter()
	if err != nil {
		return err
	}

	return report.WriteLog(os.Stdout, reporter.Log(limit))
}
