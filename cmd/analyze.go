package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/beatscope/internal/app"
)

var (
	analyzeSeries     []string
	analyzeOutputFile string
	analyzeNoProgress bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <audio>",
	Short: "Extract features from a track and print a summary",
	Long: `Decode a track, run the full feature extraction and print a summary of
every series: mean, deviation, range and the time of the peak, plus tempo
and beat count.

Examples:
  # Summarize every series as a table
  beatscope analyze song.mp3

  # Only loudness and onset strength, as JSON
  beatscope analyze --series rms,onset -o json song.mp3

  # Write per-frame values to a CSV file
  BEATSCOPE_OUTPUT_FRAMES=true beatscope analyze -o csv --file song.csv song.flac`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringSliceVar(&analyzeSeries, "series", nil,
		"series to include, comma separated (default all)")
	analyzeCmd.Flags().StringVarP(&analyzeOutputFile, "file", "f", "",
		"write the summary to this file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzeNoProgress, "no-progress", false,
		"hide the progress bar")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCtx := &app.Context{
		Input:      args[0],
		OutputFile: analyzeOutputFile,
		Series:     analyzeSeries,
		Verbose:    verbose,
		Quiet:      quiet,
		LogLevel:   logLevel,
	}
	if cmd.Flags().Changed("output") {
		appCtx.OutputFormat = outputFormat
	}
	if !analyzeNoProgress && !quiet {
		progress := newProgressBar(os.Stderr)
		defer progress.Wait()
		appCtx.Progress = progress.Report
	}

	analyzer, err := app.NewVisualizerApp(appCtx)
	if err != nil {
		return err
	}
	return analyzer.Analyze(ctx)
}
