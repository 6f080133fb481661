// Package fetcher reads rows of the synaptic weight matrix out of bulk memory.
package fetcher

import (
	"encoding/binary"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/spikerx/filter"
	"github.com/sarchlab/spikerx/mem"
)

// DefaultMaxRetries is the number of times a transient transfer failure is
// retried before the fetch fails.
const DefaultMaxRetries = 3

var (
	// ErrSlotBusy is returned when a fetch targets a slot whose buffer is
	// still in use.
	ErrSlotBusy = errors.New("fetch slot busy")

	// ErrInvalidSlot is returned when a fetch targets a slot that does not
	// exist.
	ErrInvalidSlot = errors.New("invalid fetch slot")

	// ErrTransferFailed is reported when a row could not be read.
	ErrTransferFailed = errors.New("row transfer failed")
)

// A DoneFunc receives a fetched row. The row shares the slot's buffer and is
// only valid until the slot is fetched again.
type DoneFunc func(row filter.WeightRow, err error)

type slot struct {
	busy     bool
	row      uint32
	attempts int
	buf      []byte
	weights  []filter.Value
	done     DoneFunc
	complete func(err error)
}

// A Fetcher copies weight rows into a fixed set of working buffers, one per
// slot. A row occupies one stride of memory: a header word holding the number
// of synapses followed by one weight word per synapse.
type Fetcher struct {
	engine mem.TransferEngine
	base   uint64
	stride uint64
	slots  []*slot

	// MaxRetries bounds the retries of a transient transfer failure.
	MaxRetries int

	retries uint64
}

// New creates a Fetcher reading rows of strideBytes bytes starting at base.
func New(
	engine mem.TransferEngine,
	base uint64,
	strideBytes uint64,
	slots int,
) *Fetcher {
	if strideBytes < 4 || strideBytes%4 != 0 {
		log.Panicf("row stride %d must be a positive multiple of 4",
			strideBytes)
	}

	if slots <= 0 {
		log.Panicf("fetcher needs at least one slot, got %d", slots)
	}

	f := &Fetcher{
		engine:     engine,
		base:       base,
		stride:     strideBytes,
		MaxRetries: DefaultMaxRetries,
	}

	for i := 0; i < slots; i++ {
		f.slots = append(f.slots, &slot{
			buf:      make([]byte, strideBytes),
			weights:  make([]filter.Value, strideBytes/4-1),
			complete: func(err error) { f.complete(i, err) },
		})
	}

	return f
}

// Address returns where a row starts in bulk memory.
func (f *Fetcher) Address(row uint32) uint64 {
	return f.base + uint64(row)*f.stride
}

// Stride returns the size of a row in bytes.
func (f *Fetcher) Stride() uint64 {
	return f.stride
}

// Slots returns the number of slots.
func (f *Fetcher) Slots() int {
	return len(f.slots)
}

// Busy tells if a slot has a fetch outstanding.
func (f *Fetcher) Busy(i int) bool {
	return i >= 0 && i < len(f.slots) && f.slots[i].busy
}

// Retries returns how many transfers have been retried.
func (f *Fetcher) Retries() uint64 {
	return f.retries
}

// Fetch starts reading a row into a slot. done is called once, when the row
// arrives or the transfer fails for good.
func (f *Fetcher) Fetch(i int, row uint32, done DoneFunc) error {
	if i < 0 || i >= len(f.slots) {
		return errors.Wrapf(ErrInvalidSlot, "slot %d of %d", i, len(f.slots))
	}

	s := f.slots[i]
	if s.busy {
		return errors.Wrapf(ErrSlotBusy,
			"slot %d is fetching row %d, cannot fetch row %d", i, s.row, row)
	}

	s.busy = true
	s.row = row
	s.attempts = 0
	s.done = done

	if err := f.engine.StartTransfer(f.Address(row), s.buf, s.complete); err != nil {
		s.busy = false
		s.done = nil

		return errors.Wrapf(err, "fetching row %d", row)
	}

	return nil
}

func (f *Fetcher) complete(i int, err error) {
	s := f.slots[i]

	if err != nil && errors.Is(err, mem.ErrTransient) && s.attempts < f.MaxRetries {
		s.attempts++
		f.retries++

		log.WithFields(log.Fields{
			"row":     s.row,
			"attempt": s.attempts,
		}).WithError(err).Warn("retrying row transfer")

		err = f.engine.StartTransfer(f.Address(s.row), s.buf, s.complete)
		if err == nil {
			return
		}
	}

	done := s.done
	s.busy = false
	s.done = nil

	if err != nil {
		if s.attempts > 0 {
			err = errors.Wrapf(ErrTransferFailed,
				"row %d after %d retries: %v", s.row, s.attempts, err)
		} else {
			err = errors.Wrapf(ErrTransferFailed, "row %d: %v", s.row, err)
		}

		done(filter.WeightRow{Index: s.row}, err)
		return
	}

	done(f.decode(s), nil)
}

func (f *Fetcher) decode(s *slot) filter.WeightRow {
	n := int(binary.LittleEndian.Uint32(s.buf))
	if n > len(s.weights) {
		n = len(s.weights)
	}

	for k := 0; k < n; k++ {
		s.weights[k] = filter.FromWord(
			binary.LittleEndian.Uint32(s.buf[4+4*k:]))
	}

	return filter.WeightRow{Index: s.row, Weights: s.weights[:n]}
}

// EncodeRow lays out weights as one row of strideBytes bytes. Weights that do
// not fit in the stride are dropped.
func EncodeRow(weights []filter.Value, strideBytes uint64) []byte {
	b := make([]byte, strideBytes)

	n := len(weights)
	if limit := int(strideBytes/4) - 1; n > limit {
		n = limit
	}

	binary.LittleEndian.PutUint32(b, uint32(n))
	for k := 0; k < n; k++ {
		binary.LittleEndian.PutUint32(b[4+4*k:], weights[k].Word())
	}

	return b
}
