package features

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/beatscope/pkg/audio/common"
	"github.com/RyanBlaney/beatscope/pkg/audio/config"
	"github.com/RyanBlaney/beatscope/pkg/audio/decode"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/sourcegraph/conc/pool"
)

// Extraction stage names reported through ProcessingError and Progress
const (
	StageDecode      = "decode"
	StageInput       = "input"
	StageFraming     = "framing"
	StageSpectrogram = "spectrogram"
	StageFeatures    = "features"
	StageRhythm      = "rhythm"
	StageAssemble    = "assemble"
)

// ProgressFunc receives coarse extraction progress
type ProgressFunc func(stage string, done, total int)

// Extractor turns an audio file into a feature Table
type Extractor struct {
	decoder decode.Decoder
	config  *config.FeatureConfig
	logger  logging.Logger

	// Progress is optional and called from the extracting goroutine
	Progress ProgressFunc
}

// NewExtractor creates an extractor. A nil config uses the defaults.
func NewExtractor(decoder decode.Decoder, cfg *config.FeatureConfig) *Extractor {
	if cfg == nil {
		cfg = config.DefaultFeatureConfig()
	}
	return &Extractor{
		decoder: decoder,
		config:  cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_extractor",
		}),
	}
}

// Config returns the analysis settings in use
func (e *Extractor) Config() *config.FeatureConfig {
	return e.config
}

// Extract decodes path and computes its feature table. Decode failures are
// returned as *common.DecodeError, analysis failures as
// *common.ProcessingError.
func (e *Extractor) Extract(ctx context.Context, path string) (*Table, error) {
	logger := e.logger.WithFields(logging.Fields{
		"function": "Extract",
		"path":     path,
	})

	if e.decoder == nil {
		return nil, common.NewDecodeError(path, "", common.ErrCodeDecodeOpen, "no decoder configured", nil)
	}

	e.report(StageDecode, 0, 1)
	buf, err := e.decoder.Decode(ctx, path)
	if err != nil {
		logger.Error(err, "Failed to decode audio")
		return nil, err
	}
	e.report(StageDecode, 1, 1)

	table, err := e.ExtractBuffer(ctx, buf)
	if err != nil {
		return nil, err
	}
	table.Metadata = buf.Metadata

	logger.Info("Feature extraction complete", logging.Fields{
		"frames":   table.Len(),
		"duration": table.Duration,
		"tempo":    table.Tempo,
		"beats":    len(table.BeatTimes),
		"stereo":   table.IsStereo(),
	})
	return table, nil
}

// ExtractBuffer computes the feature table of an already decoded buffer
func (e *Extractor) ExtractBuffer(ctx context.Context, buf *decode.Buffer) (table *Table, err error) {
	path := ""
	if buf != nil {
		path = buf.Path
	}
	logger := e.logger.WithFields(logging.Fields{
		"function": "ExtractBuffer",
		"path":     path,
	})

	defer func() {
		if r := recover(); r != nil {
			table = nil
			err = common.NewProcessingError(path, StageFeatures, common.ErrCodeTransform,
				fmt.Sprintf("analysis panicked: %v", r), nil)
			logger.Error(err, "Feature extraction panicked")
		}
	}()

	if err := e.config.Validate(); err != nil {
		return nil, common.NewProcessingError(path, StageInput, common.ErrCodeInvalid,
			"invalid feature configuration", err)
	}
	if buf == nil || buf.NumChannels() == 0 || buf.SampleRate <= 0 {
		return nil, common.NewProcessingError(path, StageInput, common.ErrCodeInvalid,
			"buffer has no channels or no sample rate", nil)
	}

	g, err := newGrid(buf.Len(), buf.SampleRate, e.config.WindowSize, e.config.HopSize)
	if err != nil {
		return nil, common.NewProcessingError(path, StageFraming, common.ErrCodeTooShort,
			"audio is too short to analyze", err)
	}

	stereo := !e.config.Mono && buf.NumChannels() == 2
	logger.Debug("Starting feature extraction", logging.Fields{
		"frames":      g.frames,
		"sample_rate": g.sampleRate,
		"window":      g.window,
		"hop":         g.hop,
		"stereo":      stereo,
	})

	signals := [][]float64{buf.Mono()}
	if stereo {
		signals = append(signals, buf.Channels[0], buf.Channels[1])
	}
	results := make([]*channelFeatures, len(signals))

	total := len(signals) + 2
	e.report(StageFeatures, 0, total)

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(len(signals))
	for i, signal := range signals {
		p.Go(func(ctx context.Context) error {
			res, err := e.analyzeChannel(ctx, path, signal, g)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Error(err, "Channel analysis failed")
		return nil, err
	}
	e.report(StageFeatures, len(signals), total)

	mix := results[0]
	frameRate := float64(g.sampleRate) / float64(g.hop)
	tempo := estimateTempo(mix.onsetRaw, frameRate, e.config.TempoMin, e.config.TempoMax)
	beatFrames := trackBeats(mix.onsetRaw, frameRate, tempo)
	if beatFrames == nil {
		beatFrames = []int{}
	}
	times := g.times()
	beatTimes := make([]float64, len(beatFrames))
	for i, f := range beatFrames {
		beatTimes[i] = times[f]
	}
	e.report(StageRhythm, len(signals)+1, total)

	table = &Table{
		Path:       path,
		SampleRate: g.sampleRate,
		Duration:   buf.Duration(),
		HopLength:  g.hop,
		WindowSize: g.window,
		Tempo:      tempo,
		Times:      times,
		BeatFrames: beatFrames,
		BeatTimes:  beatTimes,
		Mix:        mix.features,
	}
	if stereo {
		table.Left = results[1].features
		table.Right = results[2].features
	}

	if err := table.Validate(); err != nil {
		return nil, common.NewProcessingError(path, StageAssemble, common.ErrCodeInvalid,
			"feature table failed validation", err)
	}
	e.report(StageAssemble, total, total)

	return table, nil
}

func (e *Extractor) report(stage string, done, total int) {
	if e.Progress != nil {
		e.Progress(stage, done, total)
	}
}

type channelFeatures struct {
	features *Features
	onsetRaw []float64
}

// analyzeChannel runs the full per-frame pipeline on one signal
func (e *Extractor) analyzeChannel(ctx context.Context, path string, signal []float64, g grid) (*channelFeatures, error) {
	cfg := e.config
	n := g.frames

	padded := g.center(signal)
	mag, err := g.spectrogram(padded)
	if err != nil {
		return nil, common.NewProcessingError(path, StageSpectrogram, common.ErrCodeTransform,
			"short-time Fourier transform failed", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	freqs := g.frequencies()
	pow := power(mag)
	melDB := melPowerDB(melSpectrogram(pow, g))

	rms := g.frameRMS(padded)
	zcr := g.frameZCR(padded)
	bands := bandEnergies(mag, g, cfg.Bands)
	sh := spectralShape(mag, g, cfg)
	loud := loudness(pow, g)

	harmonic, percussive := hpss(mag, cfg.HPSSKernel)
	harmonicRMS := spectralRMS(harmonic)
	percussiveRMS := spectralRMS(percussive)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	onset := onsetStrength(melDB)
	onsetRaw := append([]float64(nil), onset...)
	tempogram := tempogramStrength(onset)

	chroma := chromagram(harmonic, freqs)
	tonal := tonnetz(chroma)

	coeffs, err := mfcc(mag, g, cfg.MFCCCoefficients)
	if err != nil {
		return nil, common.NewProcessingError(path, StageFeatures, common.ErrCodeTransform,
			"cepstral analysis failed", err)
	}
	d1 := delta(coeffs, cfg.DeltaWidth)
	d2 := delta(d1, cfg.DeltaWidth)

	columns := [][]float64{rms, sh.centroid, sh.rolloff, sh.flatness, sh.bandwidth, harmonicRMS, percussiveRMS}
	columns = append(columns, transpose(coeffs)...)
	columns = append(columns, transpose(chroma)...)
	novelty := noveltyCurve(standardize(columns, n), cfg.NoveltyKernel)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := &Features{
		RMS:           minMax(align(rms, n)),
		Bands:         make(map[string][]float64, len(bands)),
		Onset:         minMax(align(onset, n)),
		Novelty:       minMax(align(novelty, n)),
		Centroid:      minMax(align(sh.centroid, n)),
		Rolloff:       minMax(align(sh.rolloff, n)),
		Flatness:      minMax(align(sh.flatness, n)),
		Bandwidth:     minMax(align(sh.bandwidth, n)),
		Contrast:      minMax(align(rowMeans(sh.contrast), n)),
		Flux:          minMax(align(sh.flux, n)),
		HarmonicRMS:   minMax(align(harmonicRMS, n)),
		PercussiveRMS: minMax(align(percussiveRMS, n)),
		Tempogram:     minMax(align(tempogram, n)),
		ChromaMean:    minMax(align(rowMeans(chroma), n)),
		TonnetzMean:   minMax(align(rowMeans(tonal), n)),
		ZCR:           minMax(align(zcr, n)),
		Loudness:      minMax(align(loud, n)),

		// means come from raw coefficients, before per-component scaling
		MFCCMean:       minMax(align(rowMeans(coeffs), n)),
		MFCCDeltaMean:  minMax(align(rowMeans(d1), n)),
		MFCCDelta2Mean: minMax(align(rowMeans(d2), n)),
	}
	for name, series := range bands {
		f.Bands[name] = minMax(align(series, n))
	}

	f.MFCC = minMaxColumns(coeffs)
	f.MFCCDelta = minMaxColumns(d1)
	f.MFCCDelta2 = minMaxColumns(d2)
	f.Chroma = minMaxColumns(chroma)
	f.Tonnetz = minMaxColumns(tonal)
	f.ContrastBands = minMaxColumns(sh.contrast)

	return &channelFeatures{features: f, onsetRaw: onsetRaw}, nil
}

// transpose turns a frame-major matrix into component series
func transpose(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make([][]float64, len(m[0]))
	for k := range out {
		col := make([]float64, len(m))
		for t, row := range m {
			col[t] = row[k]
		}
		out[k] = col
	}
	return out
}
