package dispatch

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/spikerx/fetcher"
	"github.com/sarchlab/spikerx/filter"
	"github.com/sarchlab/spikerx/sim"
	"github.com/sarchlab/spikerx/tracing"
)

// DefaultMaxOutstanding is the number of fetches in flight at the same time
// unless configured otherwise.
const DefaultMaxOutstanding = 1

// SlotState is the stage a fetch slot is in.
type SlotState int

// A slot cycles through these states for every request it serves. Requests
// waiting for a slot stay in the row queue.
const (
	SlotEmpty SlotState = iota
	SlotFetching
	SlotApplying
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotFetching:
		return "fetching"
	case SlotApplying:
		return "applying"
	default:
		return "unknown"
	}
}

// A RowFetcher reads rows into numbered slots.
type RowFetcher interface {
	Slots() int
	Fetch(slot int, row uint32, done fetcher.DoneFunc) error
}

// A RowApplier accumulates fetched rows.
type RowApplier interface {
	Apply(row filter.WeightRow) error
}

// Stats counts what a Dispatcher has done.
type Stats struct {
	Enqueued     uint64
	Applied      uint64
	Stalls       uint64
	MaxQueueSize int
}

type slot struct {
	state SlotState
	req   PendingRowRequest
}

// A Dispatcher drains a RowQueue. It keeps up to maxOutstanding fetches in
// flight, applies each row when it arrives and then looks for more work. Rows
// are applied in queue order when one fetch is outstanding. The same row is
// never fetched twice at the same time; a request for a row already in flight
// waits at the head of the queue.
type Dispatcher struct {
	*sim.ComponentBase

	queue          *RowQueue
	fetcher        RowFetcher
	bank           RowApplier
	maxOutstanding int

	slots       []slot
	completions []fetcher.DoneFunc
	outstanding int

	drainedListeners []func()
	faultHandler     func(error)
	stats            Stats
}

// NewDispatcher creates a Dispatcher. maxOutstanding must not exceed the
// number of fetcher slots.
func NewDispatcher(
	name string,
	queue *RowQueue,
	f RowFetcher,
	bank RowApplier,
	maxOutstanding int,
) *Dispatcher {
	if maxOutstanding <= 0 || maxOutstanding > f.Slots() {
		log.Panicf("%s: %d outstanding fetches with %d fetch slots",
			name, maxOutstanding, f.Slots())
	}

	d := &Dispatcher{
		ComponentBase:  sim.NewComponentBase(name),
		queue:          queue,
		fetcher:        f,
		bank:           bank,
		maxOutstanding: maxOutstanding,
		slots:          make([]slot, f.Slots()),
		faultHandler: func(err error) {
			log.WithError(err).Panic("row dispatch failed")
		},
	}

	for i := range d.slots {
		d.completions = append(d.completions,
			func(row filter.WeightRow, err error) { d.complete(i, row, err) })
	}

	return d
}

// SetFaultHandler sets where failures found in the transfer-completion
// context are reported. The default handler panics.
func (d *Dispatcher) SetFaultHandler(h func(error)) {
	d.faultHandler = h
}

// OnDrained registers a function to call whenever the queue and all the
// slots become empty.
func (d *Dispatcher) OnDrained(f func()) {
	d.drainedListeners = append(d.drainedListeners, f)
}

// Enqueue queues a row request. It does not start any fetch.
func (d *Dispatcher) Enqueue(req PendingRowRequest) error {
	if req.ID == "" && d.NumHooks() > 0 {
		req.ID = sim.GetIDGenerator().Generate()
	}

	if err := d.queue.Enqueue(req); err != nil {
		return err
	}

	d.stats.Enqueued++
	if size := d.queue.Size(); size > d.stats.MaxQueueSize {
		d.stats.MaxQueueSize = size
	}

	tracing.StartTask(req.ID, "", d, "row", "request", req)

	return nil
}

// Kick starts fetches for queued requests while slots are free.
func (d *Dispatcher) Kick() error {
	for d.outstanding < d.maxOutstanding {
		req, ok := d.queue.Peek()
		if !ok {
			return nil
		}

		if d.inFlight(req.RowIndex) {
			d.stats.Stalls++
			return nil
		}

		if err := d.issue(req); err != nil {
			return err
		}
	}

	return nil
}

func (d *Dispatcher) issue(req PendingRowRequest) error {
	i := d.freeSlot()
	d.queue.Pop()

	d.slots[i] = slot{state: SlotFetching, req: req}
	d.outstanding++

	tracing.AddTaskStep(req.ID, d, "fetch")

	err := d.fetcher.Fetch(i, req.RowIndex, d.completions[i])
	if err != nil {
		d.release(i)
		return errors.Wrapf(err, "%s dispatching row %d", d.Name(), req.RowIndex)
	}

	return nil
}

func (d *Dispatcher) inFlight(row uint32) bool {
	for _, s := range d.slots {
		if s.state != SlotEmpty && s.req.RowIndex == row {
			return true
		}
	}

	return false
}

func (d *Dispatcher) freeSlot() int {
	for i, s := range d.slots {
		if s.state == SlotEmpty {
			return i
		}
	}

	log.Panicf("%s has no free slot with %d fetches outstanding",
		d.Name(), d.outstanding)

	return -1
}

func (d *Dispatcher) release(i int) {
	tracing.EndTask(d.slots[i].req.ID, d)

	d.slots[i] = slot{}
	d.outstanding--
}

func (d *Dispatcher) complete(i int, row filter.WeightRow, err error) {
	req := d.slots[i].req

	if err == nil && row.Index != req.RowIndex {
		err = errors.Errorf("slot %d delivered row %d for row %d",
			i, row.Index, req.RowIndex)
	}

	if err == nil {
		d.slots[i].state = SlotApplying
		tracing.AddTaskStep(req.ID, d, "apply")
		err = d.bank.Apply(row)
	}

	d.release(i)

	if err != nil {
		d.faultHandler(errors.Wrapf(err, "%s applying row %d",
			d.Name(), req.RowIndex))
	} else {
		d.stats.Applied++
	}

	if err := d.Kick(); err != nil {
		d.faultHandler(err)
	}

	d.notifyIfDrained()
}

func (d *Dispatcher) notifyIfDrained() {
	if !d.Drained() {
		return
	}

	for _, f := range d.drainedListeners {
		f()
	}
}

// Drained tells if no request is queued or in flight.
func (d *Dispatcher) Drained() bool {
	return d.outstanding == 0 && d.queue.Size() == 0
}

// Outstanding returns the number of fetches in flight.
func (d *Dispatcher) Outstanding() int {
	return d.outstanding
}

// QueueLen returns the number of requests waiting for a slot.
func (d *Dispatcher) QueueLen() int {
	return d.queue.Size()
}

// Queue returns the queue the dispatcher drains.
func (d *Dispatcher) Queue() *RowQueue {
	return d.queue
}

// Slots returns the state of every slot.
func (d *Dispatcher) Slots() []SlotState {
	states := make([]SlotState, len(d.slots))
	for i, s := range d.slots {
		states[i] = s.state
	}

	return states
}

// Stats returns the dispatch counters.
func (d *Dispatcher) Stats() Stats {
	return d.stats
}
