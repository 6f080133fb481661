package cmd

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/spikerx/core"
	"github.com/sarchlab/spikerx/mem"
	"github.com/sarchlab/spikerx/scenario"
	"github.com/sarchlab/spikerx/sim"
	"github.com/sarchlab/spikerx/spikes"
)

// harness is a core, its spike receiver and the bulk memory behind it, built
// from a scenario.
type harness struct {
	scenario *scenario.Scenario
	engine   *sim.SerialEngine
	dma      *mem.DMAController
	receiver *spikes.Receiver
	core     *core.Core
	faults   []error
}

func storageCapacity(footprint uint64) uint64 {
	capacity := (footprint + mem.MB - 1) / mem.MB * mem.MB
	if capacity == 0 {
		capacity = mem.MB
	}

	return capacity
}

func buildHarness(
	s *scenario.Scenario,
	cfg rxConfig,
	stepFunc core.StepFunc,
) (*harness, error) {
	h := &harness{
		scenario: s,
		engine:   sim.NewSerialEngine(),
	}

	h.dma = buildDMA(h.engine, s)
	if err := s.WriteRows(h.dma.Storage); err != nil {
		return nil, err
	}

	if cfg.MaxOutstanding > h.dma.Channels() {
		log.WithFields(log.Fields{
			"max_outstanding": cfg.MaxOutstanding,
			"channels":        h.dma.Channels(),
		}).Warn("more fetches in flight than DMA channels")
	}

	h.receiver = spikes.MakeBuilder().
		WithTransferEngine(h.dma).
		WithQueueDepth(cfg.QueueDepth).
		WithMaxOutstanding(cfg.MaxOutstanding).
		WithMaxRetries(cfg.MaxRetries).
		WithRowStride(s.Stride()).
		WithFaultHandler(h.fault).
		Build("Core.Spikes")

	region, err := s.FilterRegion()
	if err != nil {
		return nil, err
	}

	err = h.receiver.PrepareRx(region, s.RowsBase, s.TableBlob())
	if err != nil {
		return nil, errors.Wrap(err, "prepare spike reception")
	}

	h.core = core.MakeBuilder().
		WithEngine(h.engine).
		WithReceiver(h.receiver).
		WithTimeStep(sim.VTimeInSec(s.DT)).
		WithNumSteps(s.Steps).
		WithStepFunc(stepFunc).
		Build("Core")

	for _, sp := range s.Spikes {
		h.core.Inject(core.Spike{
			Time: sim.VTimeInSec(sp.Time),
			Key:  uint32(sp.Key),
		})
	}

	return h, nil
}

func buildDMA(engine sim.Engine, s *scenario.Scenario) *mem.DMAController {
	b := mem.MakeBuilder().
		WithEngine(engine).
		WithNewStorage(storageCapacity(s.MemoryFootprint()))

	if s.DMA.FreqMHz > 0 {
		b = b.WithFreq(sim.Freq(s.DMA.FreqMHz) * sim.MHz)
	}

	if s.DMA.Latency > 0 {
		b = b.WithLatency(s.DMA.Latency)
	}

	if s.DMA.BytesPerCycle > 0 {
		b = b.WithBytesPerCycle(s.DMA.BytesPerCycle)
	}

	if s.DMA.Channels > 0 {
		b = b.WithChannels(s.DMA.Channels)
	}

	if s.DMA.FailFirst > 0 {
		b = b.WithFaultInjector(mem.FailFirstN(s.DMA.FailFirst))
	}

	return b.Build("DMA")
}

func (h *harness) fault(err error) {
	log.WithError(err).Error("spike reception fault")
	h.faults = append(h.faults, err)
}

func (h *harness) duration() sim.VTimeInSec {
	return sim.VTimeInSec(float64(h.scenario.Steps) * h.scenario.DT)
}

// run delivers the spikes and runs the time-step loop to the end.
func (h *harness) run() error {
	h.core.Start()

	if err := h.engine.Run(); err != nil {
		return errors.Wrap(err, "simulation")
	}

	h.engine.Finished()

	if len(h.faults) > 0 {
		return errors.Wrapf(h.faults[0], "%d faults", len(h.faults))
	}

	return nil
}
