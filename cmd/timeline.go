package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/beatscope/internal/app"
	"github.com/RyanBlaney/beatscope/internal/scene"
	"github.com/RyanBlaney/beatscope/pkg/audio/decode"
)

var (
	timelineDuration float64
	timelineStrict   bool
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Inspect show timelines",
}

var timelineValidateCmd = &cobra.Command{
	Use:   "validate <show>",
	Short: "Check a show file's timeline for overlaps, gaps and unknown scenes",
	Long: `Load a show file and report every problem with its timeline.

Unknown scene names are errors. Overlapping entries, gaps and uncovered
parts of the track are warnings, since playback still works: the earlier
entry wins an overlap and idle time follows the render idle mode.

Percentages and "end" need the track length. It is read from the show's
audio file unless --duration is given.

Examples:
  beatscope timeline validate show.yaml
  beatscope timeline validate --duration 184.5 --strict show.json`,
	Args: cobra.ExactArgs(1),
	RunE: runTimelineValidate,
}

func init() {
	rootCmd.AddCommand(timelineCmd)
	timelineCmd.AddCommand(timelineValidateCmd)

	timelineValidateCmd.Flags().Float64Var(&timelineDuration, "duration", 0,
		"track length in seconds (default: decode the show's audio)")
	timelineValidateCmd.Flags().BoolVar(&timelineStrict, "strict", false,
		"fail when there are warnings")
}

func runTimelineValidate(cmd *cobra.Command, args []string) error {
	show, err := app.LoadShow(args[0])
	if err != nil {
		return err
	}

	printHeader("Timeline", args[0])

	duration := timelineDuration
	if duration <= 0 {
		duration = trackDuration(cmd.Context(), show.AudioPath())
	}
	if duration > 0 {
		printInfo("track length %.3fs", duration)
	} else {
		printWarning("track length unknown; percentage times were not checked")
	}

	entries := show.Scenes
	if len(entries) == 0 {
		printInfo("no timeline; using the default scene split")
		entries = app.DefaultEntries(show.Chart != "")
	}
	for i, e := range entries {
		printKeyValue(fmt.Sprintf("[%d] %s", i, e.Scene), fmt.Sprintf("%s to %s", e.Start, e.End))
	}

	warnings, err := app.ValidateShow(show, duration, scene.Builtins())
	if err != nil {
		printError("%v", err)
		return err
	}

	printSection("Result")
	if len(warnings) == 0 {
		printSuccess("timeline is valid")
		return nil
	}
	for _, w := range warnings {
		printWarning("%s: %s", w.Code, w.Message)
	}
	if timelineStrict {
		return fmt.Errorf("%d timeline warnings", len(warnings))
	}
	return nil
}

// trackDuration decodes the track to measure it, returning 0 on failure
func trackDuration(ctx context.Context, path string) float64 {
	if ctx == nil {
		ctx = context.Background()
	}
	buf, err := decode.NewDefaultDecoder(viper.GetInt("audio.sample_rate"), true).Decode(ctx, path)
	if err != nil {
		printWarning("could not read %s: %v", path, err)
		return 0
	}
	return buf.TimeDuration().Seconds()
}
