package cmd

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/RyanBlaney/beatscope/pkg/audio/features"
)

// decoding counts for this share of the bar, analysis for the rest
const decodeShare = 10

// progressBar shows feature extraction stages on an mpb bar
type progressBar struct {
	p     *mpb.Progress
	bar   *mpb.Bar
	stage atomic.Value
	once  sync.Once
}

func newProgressBar(w io.Writer) *progressBar {
	pb := &progressBar{
		p: mpb.New(mpb.WithOutput(w), mpb.WithWidth(64)),
	}
	pb.stage.Store("starting")
	pb.bar = pb.p.AddBar(100,
		mpb.PrependDecorators(
			decor.Name("Analyzing: "),
			decor.Any(func(decor.Statistics) string {
				return pb.stage.Load().(string)
			}, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)
	return pb
}

// Report is a features.ProgressFunc
func (pb *progressBar) Report(stage string, done, total int) {
	pb.stage.Store(stage)
	if total <= 0 {
		return
	}

	var current int64
	if stage == features.StageDecode {
		current = int64(decodeShare * done / total)
	} else {
		current = int64(decodeShare + (100-decodeShare)*done/total)
	}
	pb.bar.SetCurrent(current)

	if stage == features.StageAssemble && done >= total {
		pb.Wait()
	}
}

// Wait completes or aborts the bar and waits for its last render
func (pb *progressBar) Wait() {
	pb.once.Do(func() {
		if !pb.bar.Completed() {
			pb.bar.Abort(false)
		}
		pb.p.Wait()
	})
}
