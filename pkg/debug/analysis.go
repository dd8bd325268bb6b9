package debug

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-shaderpipe/internal/interp"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

// HistogramBins is the number of bins of every channel histogram. Bin i holds
// the samples in [i/HistogramBins, (i+1)/HistogramBins), values are clamped to
// [0, 1].
const HistogramBins = 256

// Region is the pixel grid a frame analysis samples. Every Stride-th pixel of
// each row and column is run, a zero stride samples every pixel.
type Region struct {
	X, Y          int
	Width, Height int
	Stride        int
}

func (r Region) stride() int {
	if r.Stride <= 0 {
		return 1
	}

	return r.Stride
}

// Histogram counts samples per bin.
type Histogram [HistogramBins]int

func (h *Histogram) add(x float64) {
	switch {
	case math.IsNaN(x), x <= 0:
		h[0]++
	case x >= 1:
		h[HistogramBins-1]++
	default:
		h[int(x*HistogramBins)]++
	}
}

// Total returns the number of samples in h.
func (h *Histogram) Total() int {
	n := 0
	for _, c := range h {
		n += c
	}

	return n
}

// Sample is the outcome of one pixel invocation of a frame analysis.
type Sample struct {
	X, Y      int
	Color     [4]float64
	Discarded bool
	Error     string
}

// FrameAnalysis bins the colours the pixel stage of an item writes over a
// region. Discarded and failed invocations are not binned.
type FrameAnalysis struct {
	Item      model.ItemID
	Region    Region
	Samples   []Sample
	Red       Histogram
	Green     Histogram
	Blue      Histogram
	Luminance Histogram
	Discarded int
	Failed    int
}

func (FrameAnalysis) isView() {}

func (a *FrameAnalysis) add(s Sample) {
	switch {
	case s.Error != "":
		a.Failed++
		return
	case s.Discarded:
		a.Discarded++
		return
	}

	r, g, b := s.Color[0], s.Color[1], s.Color[2]
	a.Red.add(r)
	a.Green.add(g)
	a.Blue.add(b)
	a.Luminance.add(0.2126*r + 0.7152*g + 0.0722*b)
}

// AnalyzeFrame runs the pixel stage of item id once per sampled pixel of
// region, without instrumentation, and bins the results. It does not touch the
// debug session. A failing invocation is recorded in its sample, only an item
// that cannot run at all or a cancelled ctx fail the analysis.
func (e *Engine) AnalyzeFrame(ctx context.Context, id model.ItemID, region Region) (*FrameAnalysis, error) {
	if region.Width <= 0 || region.Height <= 0 {
		return nil, errors.Wrapf(ErrEmptyRegion, "%dx%d", region.Width, region.Height)
	}

	// Fails early on items that cannot run.
	_, err := e.open(id, Pixel{X: region.X, Y: region.Y})
	if err != nil {
		return nil, err
	}

	stride := region.stride()
	var pixels []Pixel
	for y := region.Y; y < region.Y+region.Height; y += stride {
		for x := region.X; x < region.X+region.Width; x += stride {
			pixels = append(pixels, Pixel{X: x, Y: y})
		}
	}

	samples := make([]Sample, len(pixels))
	errGrp, gCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(analysisWorkers)
	for i, px := range pixels {
		errGrp.Go(func() error {
			s, err := e.sample(gCtx, id, px)
			if err != nil {
				return err
			}
			samples[i] = s

			return nil
		})
	}
	err = errGrp.Wait()
	if err != nil {
		return nil, errors.Wrap(err, "frame analysis interrupted")
	}

	out := &FrameAnalysis{Item: id, Region: region, Samples: samples}
	for _, s := range samples {
		out.add(s)
	}
	e.logger.Debug("frame analysed", "item", id.String(), "samples", len(samples),
		"discarded", out.Discarded, "failed", out.Failed)

	return out, nil
}

const analysisWorkers = 8

func (e *Engine) sample(ctx context.Context, id model.ItemID, px Pixel) (Sample, error) {
	out := Sample{X: px.X, Y: px.Y}

	s, err := e.open(id, px)
	if err != nil {
		return out, err
	}
	s.hook = func(*interp.Machine, interp.Step) error { return nil }

	res, err := s.machine.Run(ctx)
	switch {
	case ctx.Err() != nil:
		return out, ctx.Err()
	case err != nil:
		out.Error = err.Error()
		return out, nil
	}

	out.Discarded = res.Discarded
	if !out.Discarded {
		out.Color = rgba(res.Value)
	}

	return out, nil
}

// rgba widens a scalar or vector output to a colour, alpha defaults to 1. A
// struct output contributes its first member.
func rgba(v value.Value) [4]float64 {
	for len(v.Data) == 0 && len(v.Elems) > 0 {
		v = v.Elems[0]
	}
	c := [4]float64{0, 0, 0, 1}
	copy(c[:], v.Data)

	return c
}
