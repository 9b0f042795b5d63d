package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/beatscope/internal/app"
)

var (
	playChart       string
	playFPS         int
	playWidth       int
	playHeight      int
	playNoAudio     bool
	playHeadless    bool
	playMaxDuration time.Duration
)

var playCmd = &cobra.Command{
	Use:   "play [audio|show.yaml]",
	Short: "Analyze a track and play it with visuals",
	Long: `Analyze a track, then play it back while rendering scenes in the terminal.

The argument is either an audio file (mp3, wav, flac, ogg) or a show file
(.yaml, .yml, .json) that names the audio and schedules scenes. Without a
show file the track is split into bars, pulse and spectrum scenes.

Examples:
  # Play a track with the default scenes
  beatscope play song.mp3

  # Play a show with a rhythm chart
  beatscope play --chart song-hard.json show.yaml

  # Render without audio output, stopping after ten seconds
  beatscope play --no-audio --max-duration 10s song.mp3

  # Headless run at a fixed frame rate, for testing a show
  beatscope play --headless --fps 30 show.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVar(&playChart, "chart", "",
		"rhythm chart JSON for note scenes (overrides the show file)")
	playCmd.Flags().IntVar(&playFPS, "fps", 0,
		"frames per second (default from config or show)")
	playCmd.Flags().IntVar(&playWidth, "width", 0,
		"frame width in pixels")
	playCmd.Flags().IntVar(&playHeight, "height", 0,
		"frame height in pixels")
	playCmd.Flags().BoolVar(&playNoAudio, "no-audio", false,
		"do not open an audio device; render against a silent clock")
	playCmd.Flags().BoolVar(&playHeadless, "headless", false,
		"render without presenting frames")
	playCmd.Flags().DurationVar(&playMaxDuration, "max-duration", 0,
		"stop after this long (0 plays the whole track)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCtx := &app.Context{
		Input:       args[0],
		ChartFile:   playChart,
		FPS:         playFPS,
		Width:       playWidth,
		Height:      playHeight,
		NoAudio:     playNoAudio,
		Headless:    playHeadless,
		MaxDuration: playMaxDuration,
		Verbose:     verbose,
		Quiet:       quiet,
		LogLevel:    logLevel,
	}
	if !playHeadless && !quiet {
		progress := newProgressBar(os.Stderr)
		defer progress.Wait()
		appCtx.Progress = progress.Report
	}

	visualizer, err := app.NewVisualizerApp(appCtx)
	if err != nil {
		return err
	}
	if err := visualizer.Run(ctx); err != nil {
		return err
	}

	session := visualizer.LastSession()
	if session == nil || !verbose {
		return nil
	}
	stdout = os.Stderr
	printSection("Session " + session.ID)
	printKeyValue("Frames", fmt.Sprintf("%d (%d skipped, %d idle)", session.Stats.Frames,
		session.Stats.SkippedFrames, session.Stats.IdleFrames))
	printKeyValue("Average FPS", fmt.Sprintf("%.1f", session.Stats.AverageFPS()))
	printKeyValue("Scene changes", fmt.Sprintf("%d", session.Stats.Transitions))
	if session.Degraded {
		printWarning("audio output failed during playback; finished silently")
	}
	for _, w := range session.Warnings {
		printWarning("%s: %s", w.Code, w.Message)
	}
	return nil
}
