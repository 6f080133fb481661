package mem

import (
	"github.com/sarchlab/spikerx/sim"
)

// Builder can build DMAControllers.
type Builder struct {
	engine        sim.Engine
	freq          sim.Freq
	latency       int
	bytesPerCycle int
	channels      int
	queueSize     int
	capacity      uint64
	storage       *Storage
	faultInjector FaultInjector
}

// MakeBuilder returns a new Builder
func MakeBuilder() Builder {
	return Builder{
		freq:          200 * sim.MHz,
		latency:       40,
		bytesPerCycle: 4,
		channels:      2,
		queueSize:     16,
		capacity:      128 * MB,
	}
}

// WithEngine sets the engine of the DMA controller
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the DMA controller
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithLatency sets the fixed number of cycles of every transfer.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithBytesPerCycle sets the bandwidth of the DMA controller.
func (b Builder) WithBytesPerCycle(n int) Builder {
	b.bytesPerCycle = n
	return b
}

// WithChannels sets the number of transfers that can be in flight.
func (b Builder) WithChannels(n int) Builder {
	b.channels = n
	return b
}

// WithQueueSize sets the number of transfers that can wait for a channel.
func (b Builder) WithQueueSize(n int) Builder {
	b.queueSize = n
	return b
}

// WithNewStorage sets the capacity of the storage to create.
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithStorage sets the storage that the DMA controller reads from.
func (b Builder) WithStorage(storage *Storage) Builder {
	b.storage = storage
	return b
}

// WithFaultInjector sets a function that can fail transfers.
func (b Builder) WithFaultInjector(f FaultInjector) Builder {
	b.faultInjector = f
	return b
}

// Build builds a new DMAController
func (b Builder) Build(name string) *DMAController {
	c := &DMAController{
		Latency:       b.latency,
		BytesPerCycle: b.bytesPerCycle,
		channels:      b.channels,
		faultInjector: b.faultInjector,
	}

	c.TickingComponent = sim.NewTickingComponent(
		name, b.engine, b.freq, sim.PriorityTransfer, c)
	c.pending = sim.NewBuffer[*transfer](name+".Pending", b.queueSize)

	if b.storage == nil {
		c.Storage = NewStorage(b.capacity)
	} else {
		c.Storage = b.storage
	}

	return c
}
