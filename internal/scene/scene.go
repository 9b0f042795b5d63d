// Package scene defines the visual scene contract and the built-in scenes.
package scene

import (
	"fmt"
	"image"
	"image/draw"
	"slices"
	"sync"

	"github.com/RyanBlaney/beatscope/pkg/audio/features"
	"github.com/RyanBlaney/beatscope/pkg/chart"
)

// Scene turns feature frames into pictures. Update receives the elapsed
// time since the previous tick, the playback time, the shared table and the
// resolved frame index; it must not modify the table and must accept any
// index. Draw renders the current state and must not block or do I/O.
type Scene interface {
	Update(dt, t float64, table *features.Table, idx int) error
	Draw(dst draw.Image) error
}

// Enterer is implemented by scenes that reset state when they become active
type Enterer interface {
	Enter()
}

// Exiter is implemented by scenes that want to know when they are left
type Exiter interface {
	Exit()
}

// Env is what a scene gets to know about its surroundings at construction
type Env struct {
	Size  image.Point
	Chart *chart.Chart
}

// Constructor builds a scene from its timeline parameters
type Constructor func(env Env, params Params) (Scene, error)

type registration struct {
	description string
	constructor Constructor
}

// Registry maps scene names to constructors
type Registry struct {
	mu     sync.RWMutex
	scenes map[string]registration
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		scenes: make(map[string]registration),
	}
}

// Register adds a scene type. Names must be unique.
func (r *Registry) Register(name, description string, c Constructor) error {
	if name == "" {
		return fmt.Errorf("scene name cannot be empty")
	}
	if c == nil {
		return fmt.Errorf("scene %q has no constructor", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.scenes[name]; exists {
		return fmt.Errorf("scene %q already registered", name)
	}
	r.scenes[name] = registration{description: description, constructor: c}
	return nil
}

// New constructs a registered scene
func (r *Registry) New(name string, params Params, env Env) (Scene, error) {
	r.mu.RLock()
	reg, ok := r.scenes[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown scene %q", name)
	}

	if params == nil {
		params = Params{}
	}
	s, err := reg.constructor(env, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create scene %q: %w", name, err)
	}
	return s, nil
}

// Names lists registered scenes, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.scenes))
	for name := range r.scenes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Describe returns a scene's one-line description
func (r *Registry) Describe(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scenes[name].description
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.scenes[name]
	return ok
}

// Builtins returns a registry holding every built-in scene
func Builtins() *Registry {
	r := NewRegistry()
	for _, b := range []struct {
		name        string
		description string
		constructor Constructor
	}{
		{"bars", "vertical stripes driven by the band energies, with falling caps", NewBars},
		{"pulse", "a circle breathing with rms and ringing on onsets", NewPulse},
		{"beatflash", "full-screen flash on every tracked beat with a bar counter", NewBeatFlash},
		{"spectrum", "chroma wheel with one wedge per pitch class", NewChromaWheel},
		{"hud", "track info, tempo, clock and novelty meters", NewHUD},
		{"notes", "rhythm chart lanes with scrolling notes", NewNotes},
	} {
		if err := r.Register(b.name, b.description, b.constructor); err != nil {
			panic(err)
		}
	}
	return r
}

// vectorAt reads one frame of a vector series on the mix, clamping idx
func vectorAt(table *features.Table, name string, idx int) []float64 {
	if table == nil || table.Mix == nil {
		return nil
	}
	m, ok := table.Mix.Vectors(name)
	if !ok || len(m) == 0 {
		return nil
	}
	return m[max(0, min(idx, len(m)-1))]
}

// valueAt reads a scalar series, tolerating a nil table
func valueAt(table *features.Table, name string, idx int) float64 {
	if table == nil || table.Mix == nil {
		return 0
	}
	return table.Value(name, idx)
}
