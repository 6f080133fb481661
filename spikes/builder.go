package spikes

import (
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/spikerx/dispatch"
	"github.com/sarchlab/spikerx/fetcher"
	"github.com/sarchlab/spikerx/mem"
	"github.com/sarchlab/spikerx/sim"
)

// Builder can build Receivers.
type Builder struct {
	engine         mem.TransferEngine
	queueDepth     int
	maxOutstanding int
	maxRetries     int
	rowStride      uint64
	faultHandler   FaultHandler
}

// MakeBuilder returns a new Builder
func MakeBuilder() Builder {
	return Builder{
		queueDepth:     dispatch.DefaultQueueDepth,
		maxOutstanding: dispatch.DefaultMaxOutstanding,
		maxRetries:     fetcher.DefaultMaxRetries,
		faultHandler:   PanicOnFault,
	}
}

// WithTransferEngine sets the engine that reads rows from bulk memory.
func (b Builder) WithTransferEngine(e mem.TransferEngine) Builder {
	b.engine = e
	return b
}

// WithQueueDepth sets the number of row requests that can wait.
func (b Builder) WithQueueDepth(n int) Builder {
	b.queueDepth = n
	return b
}

// WithMaxOutstanding sets the number of row fetches in flight.
func (b Builder) WithMaxOutstanding(n int) Builder {
	b.maxOutstanding = n
	return b
}

// WithMaxRetries sets how many times a transient transfer failure is
// retried.
func (b Builder) WithMaxRetries(n int) Builder {
	b.maxRetries = n
	return b
}

// WithRowStride sets the size of a weight row in bytes. By default the row
// holds one header word and one word per neuron.
func (b Builder) WithRowStride(bytes uint64) Builder {
	b.rowStride = bytes
	return b
}

// WithFaultHandler sets where fatal errors are reported.
func (b Builder) WithFaultHandler(h FaultHandler) Builder {
	b.faultHandler = h
	return b
}

// Build creates a Receiver. The receiver is ready for PrepareRx.
func (b Builder) Build(name string) *Receiver {
	sim.NameMustBeValid(name)

	if b.engine == nil {
		log.Panicf("receiver %s needs a transfer engine", name)
	}

	return &Receiver{
		name:           name,
		engine:         b.engine,
		queueDepth:     b.queueDepth,
		maxOutstanding: b.maxOutstanding,
		maxRetries:     b.maxRetries,
		rowStride:      b.rowStride,
		faultHandler:   b.faultHandler,
	}
}
