package main

import (
	"fmt"
	"os"

	"github.com/franz/music-ledger/internal/library"
	"github.com/franz/music-ledger/internal/track"
	"github.com/franz/music-ledger/internal/util"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write the latest state of every track as a JSON library export",
	Long: `Write the latest metadata, play count and rating of every track in the
history as JSON. The output can be read back with "update --export", for
example to seed a new database.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	reporter, err := loadReporter()
	if err != nil {
		return err
	}

	snapshots := reporter.Snapshots()
	tracks := make([]track.Track, len(snapshots))
	for i, s := range snapshots {
		tracks[i] = s
	}

	data, err := library.EncodeExport(tracks)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		_, err = fmt.Println(string(data))
		return err
	}

	if err := os.WriteFile(args[0], data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	util.SuccessLog("Exported %d tracks to %s", len(tracks), args[0])
	return nil
}
