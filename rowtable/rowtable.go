// Package rowtable maps spike keys to rows of the synaptic weight matrix.
package rowtable

import (
	"github.com/pkg/errors"
)

// ErrAlreadyLoaded is returned when a table is loaded a second time.
var ErrAlreadyLoaded = errors.New("row table already loaded")

// An Entry routes the spikes whose key matches Key under Mask to a block of
// rows. The row of a matching key k is BlockOffset + (k & NeuronMask).
type Entry struct {
	Key         uint32
	Mask        uint32
	BlockOffset uint32
	NeuronMask  uint32
}

// Matches tells if the key is routed by the entry.
func (e Entry) Matches(key uint32) bool {
	return key&e.Mask == e.Key&e.Mask
}

// Row returns the row of a key routed by the entry.
func (e Entry) Row(key uint32) uint32 {
	return e.BlockOffset + key&e.NeuronMask
}

// A Table is an ordered list of entries. Every matching entry contributes a
// row, in table order.
type Table struct {
	entries []Entry
	loaded  bool
}

// Load installs the entries. The table takes ownership of the slice.
func (t *Table) Load(entries []Entry) error {
	if t.loaded {
		return ErrAlreadyLoaded
	}

	t.entries = entries
	t.loaded = true

	return nil
}

// Loaded tells if Load has been called.
func (t *Table) Loaded() bool {
	return t.loaded
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the entries.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Resolve appends the rows the key maps to onto dst and returns the extended
// slice. It does not allocate if dst has room for the rows.
func (t *Table) Resolve(key uint32, dst []uint32) []uint32 {
	for _, e := range t.entries {
		if e.Matches(key) {
			dst = append(dst, e.Row(key))
		}
	}

	return dst
}
