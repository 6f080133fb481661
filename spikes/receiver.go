// Package spikes receives spike packets and turns them into synaptic input.
//
// A Receiver resolves the key of every packet to rows of the weight matrix,
// queues the rows and lets a dispatcher fetch them from bulk memory and apply
// them to the synapse filter bank. The time-step loop reads the bank through
// Output and advances it with DecayStep once the receiver has drained.
package spikes

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/spikerx/dispatch"
	"github.com/sarchlab/spikerx/fetcher"
	"github.com/sarchlab/spikerx/filter"
	"github.com/sarchlab/spikerx/mem"
	"github.com/sarchlab/spikerx/rowtable"
	"github.com/sarchlab/spikerx/sim"
)

// ErrAlreadyPrepared is returned when PrepareRx is called twice.
var ErrAlreadyPrepared = errors.New("spike reception already prepared")

// A FaultHandler receives the errors that stop the receiver from making safe
// progress, such as a queue overflow or a failed row transfer.
type FaultHandler func(err error)

// PanicOnFault logs the error and panics.
func PanicOnFault(err error) {
	log.WithError(err).Panic("spike reception fault")
}

// Stats counts the packets a Receiver has seen.
type Stats struct {
	Received  uint64
	Unmatched uint64
	Rows      uint64
}

// A Receiver is the spike input pathway of one core.
type Receiver struct {
	name           string
	engine         mem.TransferEngine
	queueDepth     int
	maxOutstanding int
	maxRetries     int
	rowStride      uint64
	faultHandler   FaultHandler

	prepared   bool
	table      rowtable.Table
	bank       *filter.Bank
	fetcher    *fetcher.Fetcher
	dispatcher *dispatch.Dispatcher
	rows       []uint32

	drainedListeners []func()
	stats            Stats
}

// Name returns the name of the receiver.
func (r *Receiver) Name() string {
	return r.name
}

// PrepareRx sets the receiver up from the filter region, the address of the
// weight matrix and the row table blob. The filter region must hold exactly
// one filter, whose width is the number of neurons.
func (r *Receiver) PrepareRx(
	filterRegion []uint32,
	rowsBase uint64,
	tableBlob []uint32,
) error {
	if r.prepared {
		return ErrAlreadyPrepared
	}

	params, err := filter.DecodeRegion(filterRegion)
	if err != nil {
		return errors.Wrap(err, "decoding synapse filters")
	}

	if len(params) != 1 {
		return errors.Wrapf(filter.ErrFilterCount,
			"synapses need 1 filter, region has %d", len(params))
	}

	bank, err := filter.NewBank(params[0])
	if err != nil {
		return errors.Wrap(err, "building synapse filter")
	}

	entries, err := rowtable.DecodeBlob(tableBlob)
	if err != nil {
		return errors.Wrap(err, "decoding row table")
	}

	if err := r.table.Load(entries); err != nil {
		return err
	}

	stride := r.rowStride
	if stride == 0 {
		stride = 4 * (1 + uint64(bank.Width()))
	}

	r.bank = bank
	r.fetcher = fetcher.New(r.engine, rowsBase, stride, r.maxOutstanding)
	r.fetcher.MaxRetries = r.maxRetries
	r.dispatcher = dispatch.NewDispatcher(
		sim.BuildName(r.name, "Dispatcher"),
		dispatch.NewRowQueue(sim.BuildName(r.name, "Queue"), r.queueDepth),
		r.fetcher,
		r.bank,
		r.maxOutstanding,
	)
	r.dispatcher.SetFaultHandler(r.fault)

	for _, f := range r.drainedListeners {
		r.dispatcher.OnDrained(f)
	}

	r.rows = make([]uint32, 0, len(entries))
	r.prepared = true

	log.WithFields(log.Fields{
		"receiver": r.name,
		"entries":  len(entries),
		"neurons":  bank.Width(),
		"filter":   params[0].Method,
		"stride":   stride,
	}).Info("spike reception prepared")

	return nil
}

func (r *Receiver) fault(err error) {
	r.faultHandler(errors.Wrap(err, r.name))
}

// HandlePacket handles the arrival of a spike. The payload is not used.
func (r *Receiver) HandlePacket(key uint32, _ *uint32) {
	r.stats.Received++

	rows := r.table.Resolve(key, r.rows[:0])
	if len(rows) == 0 {
		r.stats.Unmatched++
		return
	}

	for _, row := range rows {
		req := dispatch.PendingRowRequest{RowIndex: row, Key: key}
		if err := r.dispatcher.Enqueue(req); err != nil {
			r.fault(err)
			return
		}
	}

	r.stats.Rows += uint64(len(rows))

	if err := r.dispatcher.Kick(); err != nil {
		r.fault(err)
	}
}

// Output returns the synaptic input of neuron n.
func (r *Receiver) Output(n int) filter.Value {
	if r.bank == nil {
		return 0
	}

	return r.bank.Output(n)
}

// Outputs returns the synaptic input of every neuron.
func (r *Receiver) Outputs() []filter.Value {
	if r.bank == nil {
		return nil
	}

	return r.bank.Outputs()
}

// DecayStep advances the synapse filters by one time step. It must only be
// called when the receiver is drained.
func (r *Receiver) DecayStep() {
	if r.bank == nil {
		return
	}

	if !r.Drained() {
		log.Panicf("%s: decay step with %d rows in flight",
			r.name, r.dispatcher.QueueLen()+r.dispatcher.Outstanding())
	}

	r.bank.DecayStep()
}

// Drained tells if every received row has been applied.
func (r *Receiver) Drained() bool {
	return r.dispatcher == nil || r.dispatcher.Drained()
}

// OnDrained registers a function to call whenever the receiver becomes
// drained.
func (r *Receiver) OnDrained(f func()) {
	r.drainedListeners = append(r.drainedListeners, f)

	if r.dispatcher != nil {
		r.dispatcher.OnDrained(f)
	}
}

// Stats returns the packet counters.
func (r *Receiver) Stats() Stats {
	return r.stats
}

// Dispatcher returns the row dispatcher. It is nil until PrepareRx succeeds.
func (r *Receiver) Dispatcher() *dispatch.Dispatcher {
	return r.dispatcher
}

// Fetcher returns the weight row fetcher. It is nil until PrepareRx
// succeeds.
func (r *Receiver) Fetcher() *fetcher.Fetcher {
	return r.fetcher
}

// Table returns the row table.
func (r *Receiver) Table() *rowtable.Table {
	return &r.table
}
