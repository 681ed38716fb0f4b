package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/music-ledger/internal/library"
	"github.com/franz/music-ledger/internal/report"
	"github.com/franz/music-ledger/internal/store"
	"github.com/franz/music-ledger/internal/track"
	"github.com/franz/music-ledger/internal/update"
	"github.com/franz/music-ledger/internal/util"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Record the current state of a music library into the history",
	Long: `Read every track of a music library and record it into the history.

Metadata (title, artist, album, genre, year, ...) keeps its latest value.
Play counts and ratings are appended with the current time only when they
differ from the last recorded value, so running update twice in a row
records nothing the second time.

The library is either a directory of audio files (--library) or a JSON
export (--export). With --dry-run every change is logged but nothing is
saved.`,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().StringP("library", "l", "", "music directory to read")
	updateCmd.Flags().String("export", "", "JSON library export to read instead of a directory")
	updateCmd.Flags().Bool("dry-run", false, "log changes without saving them")
	updateCmd.Flags().String("events", "", "directory for the JSONL audit log (disabled if empty)")
	updateCmd.Flags().String("summary", "", "write a Markdown run summary to this file")
	updateCmd.Flags().String("summary-window", "30D", "window for the top movers in the summary")
	updateCmd.Flags().Duration("lock-timeout", 0, "wait this long for another writer instead of failing")
	updateCmd.Flags().Int("concurrency", 4, "files read in parallel")
	updateCmd.Flags().StringSlice("ext", nil, "additional audio extensions to read")
	updateCmd.Flags().Bool("no-probe", false, "do not run ffprobe for audio properties")

	viper.BindPFlag("library", updateCmd.Flags().Lookup("library"))
	viper.BindPFlag("export", updateCmd.Flags().Lookup("export"))
	viper.BindPFlag("events", updateCmd.Flags().Lookup("events"))
	viper.BindPFlag("concurrency", updateCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("extensions", updateCmd.Flags().Lookup("ext"))
}

// librarySource builds the configured media source
func librarySource(cmd *cobra.Command) (library.Source, error) {
	dir := viper.GetString("library")
	export := viper.GetString("export")

	switch {
	case dir != "" && export != "":
		return nil, fmt.Errorf("%w: use either --library or --export, not both", util.ErrInvalidConfig)

	case export != "":
		return library.NewExportSource(export), nil

	case dir != "":
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("library directory does not exist: %s", dir)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", util.ErrInvalidConfig, dir)
		}
		noProbe, _ := cmd.Flags().GetBool("no-probe")
		return library.NewDirSource(&library.DirConfig{
			Root:           dir,
			AdditionalExts: GetConfigStringSlice("extensions"),
			Concurrency:    GetConfigInt("concurrency", 4),
			Probe:          !noProbe,
		}), nil

	default:
		return nil, fmt.Errorf("%w: a library is required (use --library/-l, --export or set in config)", util.ErrInvalidConfig)
	}
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	src, err := librarySource(cmd)
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	lockTimeout, _ := cmd.Flags().GetDuration("lock-timeout")

	mode := store.ReadWrite
	if dryRun {
		mode = store.DryRun
		util.WarnLog("DRY RUN - nothing will be saved")
	}

	db, err := openStore(mode, lockTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			util.ErrorLog("Failed to close database: %v", err)
		}
	}()

	logger := report.NullLogger()
	if dir := viper.GetString("events"); dir != "" {
		logger, err = report.NewEventLogger(dir, eventLevel(), dryRun)
		if err != nil {
			util.WarnLog("Failed to create event logger: %v", err)
			logger = report.NullLogger()
		}
	}
	defer logger.Close()

	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Updating"),
				progressbar.OptionSetWidth(min(40, util.GetTerminalWidth()/3)),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("tracks"),
				progressbar.OptionThrottle(200*time.Millisecond),
				progressbar.OptionClearOnFinish(),
				progressbar.OptionSetRenderBlankState(true),
			)
		}
		bar.Set(done)
	}

	cfg := &update.Config{
		Store:  db,
		Clock:  util.SystemClock{},
		Events: logger,
	}
	if util.ShowProgress() && !viper.GetBool("verbose") {
		cfg.Progress = progress
	}

	updater, err := update.New(cfg)
	if err != nil {
		return err
	}

	startTime := time.Now()
	result, err := updater.Run(ctx, src)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	duration := time.Since(startTime)

	if err := updater.Commit(); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}

	util.SuccessLog("Update complete in %v", duration.Round(time.Millisecond))
	util.InfoLog("  Tracks: %s", humanize.Comma(int64(result.Tracks)))
	util.InfoLog("  %d metadata rows created, %d metadata fields changed", result.MetaCreated, result.MetaFieldsUpdated)
	util.InfoLog("  %d play-count events, %d rating events", result.PlayCountEvents, result.RatingEvents)
	if len(result.Errors) > 0 {
		util.WarnLog("  Errors: %d", len(result.Errors))
	}

	if path, _ := cmd.Flags().GetString("summary"); path != "" {
		summary := buildSummary(cmd, db, src, result, logger, duration)
		if err := report.WriteMarkdownReport(summary, path); err != nil {
			return err
		}
		util.SuccessLog("Summary written to %s", path)
	}

	return nil
}

// buildSummary collects the run counters, table sizes and top movers. It
// reads through the update session so a dry run summarizes its own writes.
func buildSummary(cmd *cobra.Command, db *store.Store, src library.Source, result *update.Result, logger *report.EventLogger, duration time.Duration) *report.RunSummary {
	now := time.Now()
	summary := &report.RunSummary{
		GeneratedAt:       now,
		Duration:          duration,
		Source:            src.Name(),
		DatabasePath:      db.Path(),
		EventLogPath:      logger.Path(),
		DryRun:            db.Mode() == store.DryRun,
		Tracks:            result.Tracks,
		MetaCreated:       result.MetaCreated,
		MetaFieldsUpdated: result.MetaFieldsUpdated,
		PlayCountEvents:   result.PlayCountEvents,
		RatingEvents:      result.RatingEvents,
		TableRows:         make(map[string]int64),
	}

	for _, err := range result.Errors {
		summary.Errors = append(summary.Errors, err.Error())
	}
	for _, table := range store.Tables {
		if n, err := db.CountRows(table); err == nil {
			summary.TableRows[table] = n
		}
	}
	if info, err := os.Stat(db.Path()); err == nil {
		summary.DBSize = info.Size()
	}

	window, _ := cmd.Flags().GetString("summary-window")
	since, err := report.ParseWindow(window, now)
	if err != nil {
		util.WarnLog("Skipping top movers: %v", err)
		return summary
	}

	reporter, err := report.New(db)
	if err != nil {
		util.WarnLog("Skipping top movers: %v", err)
		return summary
	}

	// The next second includes changes recorded during this run
	movers, err := reporter.Report(report.Options{
		GroupBy: []string{track.GroupPersistentID},
		SortBy:  report.PropPlayCount,
		From:    since,
		To:      now.Add(time.Second),
		Limit:   10,
	})
	if err != nil {
		util.WarnLog("Skipping top movers: %v", err)
		return summary
	}

	titles := make(map[string]string)
	for _, s := range reporter.Snapshots() {
		titles[s.PersistentID()] = s.Title()
	}
	for _, row := range movers {
		if row.Delta <= 0 {
			break
		}
		if title := titles[row.Name]; title != "" {
			row.Label = title
		}
		summary.Movers = append(summary.Movers, row)
	}
	summary.MoversProp = report.PropPlayCount
	summary.MoversSince = since

	return summary
}
