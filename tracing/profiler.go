package tracing

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sarchlab/spikerx/sim"
)

// ProfileSample is one visit to a profiled tag. Entry is the simulation time
// at which the handler ran, in milliseconds. Duration is the host time the
// handler took, also in milliseconds.
type ProfileSample struct {
	Entry    float64
	Duration float64
}

// A Profiler records how long the engine spends handling the events of each
// context. Attach it to an engine with AcceptHook; the tag of an event is its
// priority level.
type Profiler struct {
	lock    sync.Mutex
	tags    []string
	samples map[string][]ProfileSample

	now     func() time.Time
	entered time.Time
}

// NewProfiler creates a Profiler.
func NewProfiler() *Profiler {
	return &Profiler{
		samples: make(map[string][]ProfileSample),
		now:     time.Now,
	}
}

// Func records the handling time of events.
func (p *Profiler) Func(ctx sim.HookCtx) {
	evt, ok := ctx.Item.(sim.Event)
	if !ok {
		return
	}

	switch ctx.Pos {
	case sim.HookPosBeforeEvent:
		p.entered = p.now()
	case sim.HookPosAfterEvent:
		elapsed := p.now().Sub(p.entered)
		p.Record(
			evt.Priority().String(),
			float64(evt.Time())*1000,
			float64(elapsed)/float64(time.Millisecond),
		)
	}
}

// Record adds a sample to a tag.
func (p *Profiler) Record(tag string, entryMs, durationMs float64) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if _, ok := p.samples[tag]; !ok {
		p.tags = append(p.tags, tag)
	}

	p.samples[tag] = append(p.samples[tag],
		ProfileSample{Entry: entryMs, Duration: durationMs})
}

// Tags returns the tags in the order they were first recorded.
func (p *Profiler) Tags() []string {
	p.lock.Lock()
	defer p.lock.Unlock()

	return append([]string(nil), p.tags...)
}

// Samples returns a copy of the samples of a tag.
func (p *Profiler) Samples(tag string) []ProfileSample {
	p.lock.Lock()
	defer p.lock.Unlock()

	return append([]ProfileSample(nil), p.samples[tag]...)
}

// TagSummary digests the samples of one tag over a run.
type TagSummary struct {
	Tag string

	// MeanTime is the mean sample duration in milliseconds.
	MeanTime float64

	// MeanSamplesPerStep is the mean number of samples in each 1 ms time
	// step up to the last step that has a sample.
	MeanSamplesPerStep float64

	// LastSampleStep is one past the index of the last time step that has a
	// sample. It is shorter than the run if sampling stopped early.
	LastSampleStep int

	// MeanTimePerStep is the mean total duration spent in the tag in each
	// time step, in milliseconds.
	MeanTimePerStep float64
}

// Summary digests the samples of every tag over a run of the given length.
// Tags without samples are left out.
func (p *Profiler) Summary(duration sim.VTimeInSec) []TagSummary {
	p.lock.Lock()
	defer p.lock.Unlock()

	numSteps := int(math.Ceil(float64(duration) * 1000))

	summaries := make([]TagSummary, 0, len(p.tags))
	for _, tag := range p.tags {
		samples := p.samples[tag]
		if len(samples) == 0 {
			continue
		}

		summaries = append(summaries, summarize(tag, samples, numSteps))
	}

	return summaries
}

// stepIndex places a sample into the 1 ms step bins [0, numSteps). A sample
// in step k lands in bin k+1; the final bin also holds late samples.
func stepIndex(entry float64, numSteps int) int {
	if entry < 0 {
		return 0
	}

	idx := int(math.Floor(entry)) + 1
	if idx > numSteps {
		idx = numSteps
	}

	return idx
}

func summarize(tag string, samples []ProfileSample, numSteps int) TagSummary {
	total := 0.0
	maxIndex := 0

	for _, s := range samples {
		total += s.Duration

		if idx := stepIndex(s.Entry, numSteps); idx > maxIndex {
			maxIndex = idx
		}
	}

	bins := float64(maxIndex + 1)

	return TagSummary{
		Tag:                tag,
		MeanTime:           total / float64(len(samples)),
		MeanSamplesPerStep: float64(len(samples)) / bins,
		LastSampleStep:     maxIndex + 1,
		MeanTimePerStep:    total / bins,
	}
}

// PrintSummary writes a human-readable summary of every tag.
func (p *Profiler) PrintSummary(w io.Writer, duration sim.VTimeInSec) error {
	for _, s := range p.Summary(duration) {
		_, err := fmt.Fprintf(w,
			"Tag:%s\n"+
				"\tMean time:%fms\n"+
				"\tMean samples per timestep:%f\n"+
				"\tLast sample time:%dms\n"+
				"\tMean time per timestep:%fms\n",
			s.Tag, s.MeanTime, s.MeanSamplesPerStep,
			s.LastSampleStep, s.MeanTimePerStep)
		if err != nil {
			return errors.Wrap(err, "writing profile summary")
		}
	}

	return nil
}

// WriteCSVHeader writes the extra column headers followed by one column per
// tag.
func (p *Profiler) WriteCSVHeader(w *csv.Writer, extraHeaders []string) error {
	row := append(append([]string(nil), extraHeaders...), p.Tags()...)
	if err := w.Write(row); err != nil {
		return errors.Wrap(err, "writing profile csv header")
	}

	w.Flush()

	return w.Error()
}

// WriteCSVRow writes the extra values followed by the mean sample duration of
// each tag, in the same order as WriteCSVHeader.
func (p *Profiler) WriteCSVRow(w *csv.Writer, extraValues []string) error {
	row := append([]string(nil), extraValues...)

	for _, tag := range p.Tags() {
		samples := p.Samples(tag)

		mean := 0.0
		for _, s := range samples {
			mean += s.Duration
		}
		if len(samples) > 0 {
			mean /= float64(len(samples))
		}

		row = append(row, strconv.FormatFloat(mean, 'f', -1, 64))
	}

	if err := w.Write(row); err != nil {
		return errors.Wrap(err, "writing profile csv row")
	}

	w.Flush()

	return w.Error()
}
