package mem

import (
	"reflect"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/spikerx/sim"
	"github.com/sarchlab/spikerx/tracing"
)

type transfer struct {
	id   string
	src  uint64
	dst  []byte
	done func(err error)
}

type transferDoneEvent struct {
	*sim.EventBase
	transfer *transfer
}

func newTransferDoneEvent(
	time sim.VTimeInSec,
	handler sim.Handler,
	t *transfer,
) *transferDoneEvent {
	return &transferDoneEvent{
		EventBase: sim.NewEventBase(time, handler, sim.PriorityTransfer),
		transfer:  t,
	}
}

// DMAStats counts what a DMAController has done.
type DMAStats struct {
	Started   uint64
	Completed uint64
	Failed    uint64
	Bytes     uint64
}

// A DMAController is a transfer engine that copies bytes from a Storage into
// local buffers.
//
// A transfer takes a fixed number of cycles plus one cycle for every
// BytesPerCycle bytes. At most Channels transfers are in flight at the same
// time; the rest wait in a bounded queue. Data is copied out of the storage
// when the transfer completes.
type DMAController struct {
	*sim.TickingComponent

	Storage       *Storage
	Latency       int
	BytesPerCycle int

	channels      int
	inflight      int
	pending       sim.Buffer[*transfer]
	faultInjector FaultInjector
	stats         DMAStats
}

// StartTransfer queues a transfer of len(dst) bytes starting at src.
func (c *DMAController) StartTransfer(
	src uint64,
	dst []byte,
	done func(err error),
) error {
	if err := c.Storage.rangeMustFit(src, uint64(len(dst))); err != nil {
		return err
	}

	if !c.pending.CanPush() {
		return errors.Wrapf(ErrQueueFull, "%s cannot accept transfer from 0x%x",
			c.Name(), src)
	}

	t := &transfer{
		id:   sim.GetIDGenerator().Generate(),
		src:  src,
		dst:  dst,
		done: done,
	}
	c.pending.Push(t)

	tracing.StartTask(t.id, "", c, "dma", "transfer", t)

	c.TickNow()

	return nil
}

// Handle defines how the DMAController handles events.
func (c *DMAController) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *transferDoneEvent:
		return c.handleTransferDone(e)
	case sim.TickEvent:
		return c.TickingComponent.Handle(e)
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

// Tick starts queued transfers while channels are free.
func (c *DMAController) Tick() bool {
	madeProgress := false

	for c.inflight < c.channels {
		t, ok := c.pending.Pop()
		if !ok {
			break
		}

		cycles := c.Latency + c.transferCycles(len(t.dst))
		doneTime := c.Freq.NCyclesLater(cycles, c.CurrentTime())
		c.Engine.Schedule(newTransferDoneEvent(doneTime, c, t))

		c.inflight++
		c.stats.Started++
		tracing.AddTaskStep(t.id, c, "started")

		madeProgress = true
	}

	return madeProgress
}

func (c *DMAController) transferCycles(length int) int {
	if c.BytesPerCycle <= 0 {
		return 0
	}

	return (length + c.BytesPerCycle - 1) / c.BytesPerCycle
}

func (c *DMAController) handleTransferDone(e *transferDoneEvent) error {
	t := e.transfer

	var err error
	if c.faultInjector != nil {
		err = c.faultInjector(t.src, len(t.dst))
	}

	if err == nil {
		err = c.Storage.ReadInto(t.src, t.dst)
	}

	c.inflight--
	if err != nil {
		c.stats.Failed++
	} else {
		c.stats.Completed++
		c.stats.Bytes += uint64(len(t.dst))
	}

	tracing.EndTask(t.id, c)

	t.done(err)

	if c.pending.Size() > 0 {
		c.TickNow()
	}

	return nil
}

// Inflight returns the number of transfers that have started and not
// completed.
func (c *DMAController) Inflight() int {
	return c.inflight
}

// Channels returns the number of transfers that can be in flight at the same
// time.
func (c *DMAController) Channels() int {
	return c.channels
}

// PendingBuffer exposes the queue of transfers waiting for a channel.
func (c *DMAController) PendingBuffer() sim.BufferLevel {
	return c.pending
}

// Stats returns the transfer counters.
func (c *DMAController) Stats() DMAStats {
	return c.stats
}
