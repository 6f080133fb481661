// Package core simulates a processing core that receives spikes and runs a
// fixed time-step loop over the synaptic input they produce.
package core

import (
	"reflect"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/spikerx/sim"
	"github.com/sarchlab/spikerx/spikes"
	"github.com/sarchlab/spikerx/tracing"
)

// A StepFunc consumes the synaptic input of one time step. It runs before the
// filters decay.
type StepFunc func(step uint64, now sim.VTimeInSec, r *spikes.Receiver)

// A Spike is a packet arriving at the core.
type Spike struct {
	Time    sim.VTimeInSec
	Key     uint32
	Payload *uint32
}

type packetEvent struct {
	*sim.EventBase
	spike Spike
}

type timerEvent struct {
	*sim.EventBase
}

// Core delivers packets to a Receiver and runs the time-step loop.
//
// A step that comes due while rows are still being fetched or applied is
// deferred until the receiver drains, so the step never sees a half applied
// spike.
type Core struct {
	*sim.ComponentBase

	engine   sim.Engine
	receiver *spikes.Receiver
	timeStep sim.VTimeInSec
	numSteps uint64
	stepFunc StepFunc

	step          uint64
	pendingSteps  int
	deferredSteps uint64
	packets       uint64
}

// Receiver returns the spike receiver of the core.
func (c *Core) Receiver() *spikes.Receiver {
	return c.receiver
}

// TimeStep returns the length of a time step.
func (c *Core) TimeStep() sim.VTimeInSec {
	return c.timeStep
}

// Steps returns the number of steps completed.
func (c *Core) Steps() uint64 {
	return c.step
}

// DeferredSteps returns how many steps had to wait for the receiver to drain.
func (c *Core) DeferredSteps() uint64 {
	return c.deferredSteps
}

// Packets returns the number of packets delivered.
func (c *Core) Packets() uint64 {
	return c.packets
}

// Start schedules the time-step timer. The first step comes due one time step
// after now.
func (c *Core) Start() {
	if c.numSteps == 0 {
		return
	}

	c.scheduleTimer(c.engine.CurrentTime() + c.timeStep)
}

func (c *Core) scheduleTimer(t sim.VTimeInSec) {
	c.engine.Schedule(&timerEvent{
		EventBase: sim.NewEventBase(t, c, sim.PriorityTimer),
	})
}

// Inject schedules the arrival of spikes.
func (c *Core) Inject(spikes ...Spike) {
	for _, s := range spikes {
		c.engine.Schedule(&packetEvent{
			EventBase: sim.NewEventBase(s.Time, c, sim.PriorityPacket),
			spike:     s,
		})
	}
}

// Handle defines how the Core handles events.
func (c *Core) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *packetEvent:
		c.packets++
		c.receiver.HandlePacket(e.spike.Key, e.spike.Payload)
	case *timerEvent:
		c.handleTimer(e)
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

func (c *Core) handleTimer(e *timerEvent) {
	c.pendingSteps++

	if uint64(c.pendingSteps)+c.step < c.numSteps {
		c.scheduleTimer(e.Time() + c.timeStep)
	}

	if !c.receiver.Drained() {
		c.deferredSteps++
		log.WithFields(log.Fields{
			"core":        c.Name(),
			"step":        c.step,
			"outstanding": c.receiver.Dispatcher().Outstanding(),
			"queued":      c.receiver.Dispatcher().QueueLen(),
		}).Debug("step deferred until spikes drain")

		return
	}

	c.runPendingSteps()
}

func (c *Core) handleDrained() {
	if c.pendingSteps == 0 {
		return
	}

	now := c.engine.CurrentTime()
	c.engine.Schedule(sim.NewCallbackEvent(now, sim.PriorityTimer, func() {
		if c.receiver.Drained() {
			c.runPendingSteps()
		}
	}))
}

func (c *Core) runPendingSteps() {
	for ; c.pendingSteps > 0; c.pendingSteps-- {
		id := sim.GetIDGenerator().Generate()
		tracing.StartTask(id, "", c, "step", "decay", c.step)

		if c.stepFunc != nil {
			c.stepFunc(c.step, c.engine.CurrentTime(), c.receiver)
		}

		c.receiver.DecayStep()
		c.step++

		tracing.EndTask(id, c)
	}
}
