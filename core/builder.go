package core

import (
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/spikerx/sim"
	"github.com/sarchlab/spikerx/spikes"
)

// Builder can build Cores.
type Builder struct {
	engine   sim.Engine
	receiver *spikes.Receiver
	timeStep sim.VTimeInSec
	numSteps uint64
	stepFunc StepFunc
}

// MakeBuilder returns a new Builder
func MakeBuilder() Builder {
	return Builder{
		timeStep: 0.001,
	}
}

// WithEngine sets the engine of the core.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithReceiver sets the spike receiver of the core.
func (b Builder) WithReceiver(r *spikes.Receiver) Builder {
	b.receiver = r
	return b
}

// WithTimeStep sets the length of a time step.
func (b Builder) WithTimeStep(dt sim.VTimeInSec) Builder {
	b.timeStep = dt
	return b
}

// WithNumSteps sets how many time steps the core runs.
func (b Builder) WithNumSteps(n uint64) Builder {
	b.numSteps = n
	return b
}

// WithStepFunc sets the consumer of the synaptic input.
func (b Builder) WithStepFunc(f StepFunc) Builder {
	b.stepFunc = f
	return b
}

// Build creates a Core.
func (b Builder) Build(name string) *Core {
	if b.engine == nil || b.receiver == nil {
		log.Panicf("core %s needs an engine and a receiver", name)
	}

	if b.timeStep <= 0 {
		log.Panicf("core %s needs a positive time step", name)
	}

	c := &Core{
		ComponentBase: sim.NewComponentBase(name),
		engine:        b.engine,
		receiver:      b.receiver,
		timeStep:      b.timeStep,
		numSteps:      b.numSteps,
		stepFunc:      b.stepFunc,
	}

	b.receiver.OnDrained(c.handleDrained)

	return c
}
