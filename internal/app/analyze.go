package app

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/beatscope/pkg/audio/features"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/latency-benchmark-common/output"
)

// SeriesSummary describes one normalized series across the track
type SeriesSummary struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	// time of the highest value, seconds
	PeakTime float64 `json:"peak_time" yaml:"peak_time"`
}

// Analyze extracts the feature table and writes a summary through the
// configured output formatter
func (app *VisualizerApp) Analyze(ctx context.Context) error {
	logger := app.logger.WithFields(logging.Fields{
		"function": "Analyze",
	})

	_, table, err := app.extract(ctx)
	if err != nil {
		return err
	}

	data, err := app.summarize(table)
	if err != nil {
		return err
	}

	formatted, err := formatterFor(app.config.OutputFormat).Format(data, true)
	if err != nil {
		return fmt.Errorf("failed to format output data: %w", err)
	}

	if app.config.Output.File != "" {
		return app.writeToFile(formatted)
	}

	if _, err := app.out.Write(formatted); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	logger.Debug("Analysis written", logging.Fields{
		"format":     app.config.OutputFormat,
		"size_bytes": len(formatted),
	})
	return nil
}

// summarize builds the analysis output. Unknown series names are an error
// so typos on --series do not silently produce empty output.
func (app *VisualizerApp) summarize(table *features.Table) (map[string]any, error) {
	names := app.config.Output.Series
	if len(names) == 0 {
		names = table.Mix.SeriesNames()
	}

	precision := app.config.Output.Precision
	series := make(map[string]SeriesSummary, len(names))
	for _, name := range names {
		s, ok := table.Series(name)
		if !ok {
			return nil, fmt.Errorf("unknown series %q (known: %v)", name, table.Mix.SeriesNames())
		}
		series[name] = summarizeSeries(s, table.Times, precision)
	}

	summary := map[string]any{
		"path":        table.Path,
		"duration":    round(table.Duration, precision),
		"sample_rate": table.SampleRate,
		"hop_length":  table.HopLength,
		"window_size": table.WindowSize,
		"frames":      table.Len(),
		"frame_rate":  round(table.FrameRate(), precision),
		"tempo":       round(table.Tempo, precision),
		"beats":       len(table.BeatTimes),
		"stereo":      table.IsStereo(),
		"series":      series,
	}
	if table.Metadata != nil {
		summary["metadata"] = table.Metadata
	}

	if app.config.Output.Frames {
		rows := make([]map[string]any, table.Len())
		for i, t := range table.Times {
			row := map[string]any{"time": round(t, precision)}
			for _, name := range names {
				row[name] = round(table.Value(name, i), precision)
			}
			rows[i] = row
		}
		summary["frames_data"] = rows
	}
	return summary, nil
}

func summarizeSeries(s, times []float64, precision int) SeriesSummary {
	if len(s) == 0 {
		return SeriesSummary{}
	}
	mean, std := stat.MeanStdDev(s, nil)
	if math.IsNaN(std) {
		std = 0
	}
	peak := floats.MaxIdx(s)
	peakTime := 0.0
	if peak < len(times) {
		peakTime = times[peak]
	}
	return SeriesSummary{
		Mean:     round(mean, precision),
		StdDev:   round(std, precision),
		Min:      round(floats.Min(s), precision),
		Max:      round(s[peak], precision),
		PeakTime: round(peakTime, precision),
	}
}

func round(v float64, precision int) float64 {
	if precision <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}

func formatterFor(format string) output.Formatter {
	switch format {
	case "yaml":
		return &output.YAMLFormatter{}
	case "csv":
		return &output.CSVFormatter{}
	case "table":
		return &output.TableFormatter{}
	default:
		return &output.JSONFormatter{}
	}
}

// writeToFile writes data to the configured output file
func (app *VisualizerApp) writeToFile(data []byte) error {
	path := app.config.Output.File
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	app.logger.Debug("Results written to file", logging.Fields{
		"output_file": path,
		"size_bytes":  len(data),
	})
	return nil
}
