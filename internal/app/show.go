package app

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/beatscope/internal/scene"
	"github.com/RyanBlaney/beatscope/internal/timeline"
	"github.com/RyanBlaney/beatscope/pkg/audio/common"
	"github.com/RyanBlaney/beatscope/pkg/chart"
)

// Show is a show file: the track, an optional chart and the scene timeline
type Show struct {
	Audio  string      `json:"audio" yaml:"audio"`
	Chart  string      `json:"chart,omitempty" yaml:"chart,omitempty"`
	Width  int         `json:"width,omitempty" yaml:"width,omitempty"`
	Height int         `json:"height,omitempty" yaml:"height,omitempty"`
	FPS    int         `json:"fps,omitempty" yaml:"fps,omitempty"`
	Idle   string      `json:"idle,omitempty" yaml:"idle,omitempty"`
	Scenes []ShowEntry `json:"timeline" yaml:"timeline"`

	// directory the show was loaded from; relative paths resolve against it
	dir string
}

// ShowEntry is one timeline entry as written in a show file
type ShowEntry struct {
	Start  ShowTime     `json:"start" yaml:"start"`
	End    ShowTime     `json:"end" yaml:"end"`
	Scene  string       `json:"scene" yaml:"scene"`
	Params scene.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// ShowTime is a point in the track: seconds ("12.5"), a clock position
// ("1:02.250", "0:01:02.250"), a percentage of the track ("40%") or "end".
type ShowTime struct {
	Seconds  float64
	Percent  float64
	Relative bool
}

// Seconds returns an absolute show time
func Seconds(sec float64) ShowTime {
	return ShowTime{Seconds: sec}
}

// Percent returns a show time relative to the track length
func Percent(p float64) ShowTime {
	return ShowTime{Percent: p, Relative: true}
}

// Resolve converts the time to seconds for a track of the given duration
func (s ShowTime) Resolve(duration float64) float64 {
	if s.Relative {
		return s.Percent / 100 * duration
	}
	return s.Seconds
}

func (s ShowTime) String() string {
	if s.Relative {
		return strconv.FormatFloat(s.Percent, 'f', -1, 64) + "%"
	}
	return strconv.FormatFloat(s.Seconds, 'f', -1, 64)
}

// ParseShowTime reads any of the accepted show time forms
func ParseShowTime(ts string) (ShowTime, error) {
	ts = strings.TrimSpace(strings.ReplaceAll(ts, "\uFEFF", ""))
	if ts == "" {
		return ShowTime{}, fmt.Errorf("empty time")
	}
	if strings.EqualFold(ts, "end") {
		return Percent(100), nil
	}

	if p, ok := strings.CutSuffix(ts, "%"); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 || math.IsInf(v, 0) {
			return ShowTime{}, fmt.Errorf("bad percentage %q", ts)
		}
		return Percent(v), nil
	}

	// plain seconds
	if !strings.Contains(ts, ":") {
		sec, err := strconv.ParseFloat(ts, 64)
		if err != nil || math.IsInf(sec, 0) || math.IsNaN(sec) {
			return ShowTime{}, fmt.Errorf("bad time %q", ts)
		}
		return Seconds(sec), nil
	}

	// HH:MM:SS(.mmm) or MM:SS(.mmm)
	parts := strings.Split(ts, ":")
	if len(parts) > 3 {
		return ShowTime{}, fmt.Errorf("bad time %q; use MM:SS.mmm or HH:MM:SS.mmm", ts)
	}
	var h, m int64
	var err error
	if len(parts) == 3 {
		if h, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
			return ShowTime{}, fmt.Errorf("bad hours in %q", ts)
		}
		parts = parts[1:]
	}
	if m, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return ShowTime{}, fmt.Errorf("bad minutes in %q", ts)
	}
	sec, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || sec < 0 || sec >= 60 {
		return ShowTime{}, fmt.Errorf("bad seconds in %q", ts)
	}
	return Seconds(float64(h*3600+m*60) + sec), nil
}

func (s *ShowTime) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: time must be a scalar", node.Line)
	}
	t, err := ParseShowTime(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = t
	return nil
}

func (s ShowTime) MarshalYAML() (any, error) {
	if s.Relative {
		return s.String(), nil
	}
	return s.Seconds, nil
}

func (s *ShowTime) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*s = Seconds(x)
		return nil
	case string:
		t, err := ParseShowTime(x)
		if err != nil {
			return err
		}
		*s = t
		return nil
	}
	return fmt.Errorf("time must be a number or a string, got %s", string(data))
}

func (s ShowTime) MarshalJSON() ([]byte, error) {
	if s.Relative {
		return json.Marshal(s.String())
	}
	return json.Marshal(s.Seconds)
}

// LoadShow reads a YAML or JSON show file, chosen by extension
func LoadShow(path string) (*Show, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read show file: %w", err)
	}

	var show Show
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &show); err != nil {
			return nil, fmt.Errorf("failed to parse JSON show file %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &show); err != nil {
			return nil, fmt.Errorf("failed to parse YAML show file %s: %w", path, err)
		}
	}

	if show.Audio == "" {
		return nil, fmt.Errorf("show file %s has no audio path", path)
	}
	show.dir = filepath.Dir(path)
	return &show, nil
}

// IsShowFile reports whether path looks like a show file rather than audio
func IsShowFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func (s *Show) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

// AudioPath returns the audio path resolved against the show's directory
func (s *Show) AudioPath() string {
	return s.resolvePath(s.Audio)
}

// ChartPath returns the chart path resolved against the show's directory
func (s *Show) ChartPath() string {
	return s.resolvePath(s.Chart)
}

// DefaultEntries splits the track into bars, pulse (or the chart lanes
// when a chart is loaded) and the chroma wheel at 40% and 60%
func DefaultEntries(hasChart bool) []ShowEntry {
	middle := "pulse"
	if hasChart {
		middle = "notes"
	}
	return []ShowEntry{
		{Start: Percent(0), End: Percent(40), Scene: "bars"},
		{Start: Percent(40), End: Percent(60), Scene: middle},
		{Start: Percent(60), End: Percent(100), Scene: "spectrum"},
	}
}

// BuildTimeline constructs every entry's scene. Each entry gets its own
// scene instance so scenes never share state.
func BuildTimeline(entries []ShowEntry, duration float64, registry *scene.Registry, env scene.Env) ([]timeline.Entry, error) {
	out := make([]timeline.Entry, 0, len(entries))
	for i, e := range entries {
		s, err := registry.New(e.Scene, e.Params, env)
		if err != nil {
			return nil, fmt.Errorf("timeline entry %d: %w", i, err)
		}
		out = append(out, timeline.Entry{
			Start: e.Start.Resolve(duration),
			End:   e.End.Resolve(duration),
			Name:  e.Scene,
			Scene: s,
		})
	}
	return out, nil
}

// ValidateShow checks a show against a track duration. Unknown scenes are
// errors; layout problems are warnings. With duration <= 0 relative times
// cannot be checked and only absolute entries are considered.
func ValidateShow(show *Show, duration float64, registry *scene.Registry) ([]common.ConfigurationWarning, error) {
	if show.FPS < 0 || show.Width < 0 || show.Height < 0 {
		return nil, fmt.Errorf("fps, width and height cannot be negative")
	}
	entries := show.Scenes
	if len(entries) == 0 {
		entries = DefaultEntries(show.Chart != "")
	}

	tl := make([]timeline.Entry, 0, len(entries))
	for i, e := range entries {
		if duration <= 0 && (e.Start.Relative || e.End.Relative) {
			continue
		}
		if !registry.Has(e.Scene) {
			return nil, fmt.Errorf("timeline entry %d: unknown scene %q (known: %s)", i, e.Scene, strings.Join(registry.Names(), ", "))
		}
		tl = append(tl, timeline.Entry{
			Start: e.Start.Resolve(duration),
			End:   e.End.Resolve(duration),
			Name:  e.Scene,
			// validation only looks at bounds
			Scene: placeholder{},
		})
	}
	return timeline.New(tl, nil).Validate(duration), nil
}

type placeholder struct{ scene.Scene }

// GenerateExampleShow writes an annotated show file for audioPath
func GenerateExampleShow(path, audioPath string) error {
	show := Show{
		Audio:  audioPath,
		Width:  1280,
		Height: 720,
		FPS:    60,
		Idle:   "hold",
		Scenes: []ShowEntry{
			{Start: Seconds(0), End: Percent(40), Scene: "bars", Params: scene.Params{"color": "hotpink"}},
			{Start: Percent(40), End: Percent(60), Scene: "pulse", Params: scene.Params{"color": "deepskyblue"}},
			{Start: Percent(60), End: Percent(90), Scene: "spectrum"},
			{Start: Percent(90), End: Percent(100), Scene: "beatflash", Params: scene.Params{"meter": 4}},
		},
	}

	var data []byte
	var err error
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		data, err = json.MarshalIndent(show, "", "  ")
	} else {
		data, err = yaml.Marshal(show)
		if err == nil {
			header := "# beatscope show file\n" +
				"# times: seconds (12.5), MM:SS.mmm, HH:MM:SS.mmm, a percentage of the track (40%) or end\n" +
				fmt.Sprintf("# scenes: %s\n", strings.Join(scene.Builtins().Names(), ", "))
			data = append([]byte(header), data...)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to encode example show: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create show directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write example show: %w", err)
	}
	return nil
}

// loadChart reads the show's chart, if any. A missing chart is not fatal.
func loadChart(path string, duration float64) (*chart.Chart, error) {
	if path == "" {
		return nil, nil
	}
	return chart.Load(path, duration)
}
