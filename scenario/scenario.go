// Package scenario describes a harness run in JSON: the routing table, the
// weight rows placed in bulk memory, the filter of the bank and the spikes
// that arrive at the core.
package scenario

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sugawarayuuta/sonnet"

	"github.com/sarchlab/spikerx/fetcher"
	"github.com/sarchlab/spikerx/filter"
	"github.com/sarchlab/spikerx/mem"
	"github.com/sarchlab/spikerx/rowtable"
)

// ErrInvalid is returned when a scenario cannot be run.
var ErrInvalid = errors.New("invalid scenario")

// Word is a 32-bit value that can be written in JSON as a number or as a
// string such as "0x1000".
type Word uint32

// UnmarshalJSON parses a number or a quoted number with an optional base
// prefix.
func (w *Word) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}

	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return errors.Wrapf(ErrInvalid, "word %s", string(b))
	}

	*w = Word(v)

	return nil
}

// Filter selects the decay law of the bank.
type Filter struct {
	Method   string    `json:"method"`
	Tau      float64   `json:"tau"`
	Latching bool      `json:"latching"`
	NegA     []float64 `json:"neg_a"`
	B        []float64 `json:"b"`
}

// TableEntry is one routing entry.
type TableEntry struct {
	Key         Word `json:"key"`
	Mask        Word `json:"mask"`
	BlockOffset Word `json:"block_offset"`
	NeuronMask  Word `json:"neuron_mask"`
}

// Row is a weight row placed in bulk memory.
type Row struct {
	Index   uint32    `json:"index"`
	Weights []float64 `json:"weights"`
}

// Spike is a packet arriving at the core.
type Spike struct {
	Time float64 `json:"time"`
	Key  Word    `json:"key"`
}

// DMA configures the simulated transfer engine. Zero fields keep the engine
// defaults.
type DMA struct {
	FreqMHz       float64 `json:"freq_mhz"`
	Latency       int     `json:"latency"`
	BytesPerCycle int     `json:"bytes_per_cycle"`
	Channels      int     `json:"channels"`
	FailFirst     int     `json:"fail_first"`
}

// Scenario is a complete harness run.
type Scenario struct {
	Name      string       `json:"name"`
	Neurons   int          `json:"neurons"`
	Filter    Filter       `json:"filter"`
	DT        float64      `json:"dt"`
	Steps     uint64       `json:"steps"`
	RowsBase  uint64       `json:"rows_base"`
	RowStride uint64       `json:"row_stride"`
	Table     []TableEntry `json:"table"`
	Rows      []Row        `json:"rows"`
	Spikes    []Spike      `json:"spikes"`
	DMA       DMA          `json:"dma"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read scenario")
	}

	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", path)
	}

	return s, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := sonnet.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}

	s.applyDefaults()

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scenario) applyDefaults() {
	if s.DT == 0 {
		s.DT = 0.001
	}

	if s.Filter.Method == "" {
		s.Filter.Method = filter.MethodLowpass.String()
	}

	if s.Filter.Method == filter.MethodLowpass.String() && s.Filter.Tau == 0 {
		s.Filter.Tau = 0.005
	}
}

// Validate checks that the scenario can be run.
func (s *Scenario) Validate() error {
	if s.Neurons <= 0 {
		return errors.Wrap(ErrInvalid, "neurons must be positive")
	}

	if s.DT <= 0 {
		return errors.Wrap(ErrInvalid, "dt must be positive")
	}

	if _, err := s.FilterParams(); err != nil {
		return err
	}

	if s.RowStride != 0 && s.RowStride < s.Stride() {
		return errors.Wrapf(ErrInvalid,
			"row stride %d cannot hold %d weights", s.RowStride, s.Neurons)
	}

	for _, r := range s.Rows {
		if len(r.Weights) > s.Neurons {
			return errors.Wrapf(ErrInvalid,
				"row %d has %d weights for %d neurons",
				r.Index, len(r.Weights), s.Neurons)
		}
	}

	for i, sp := range s.Spikes {
		if sp.Time < 0 {
			return errors.Wrapf(ErrInvalid, "spike %d arrives before 0", i)
		}
	}

	return nil
}

// FilterParams returns the parameters of the filter bank.
func (s *Scenario) FilterParams() (filter.Params, error) {
	var p filter.Params

	f := s.Filter
	switch f.Method {
	case filter.MethodNone.String():
		p = filter.NoneParams(s.Neurons)
	case filter.MethodLowpass.String():
		if f.Tau <= 0 {
			return p, errors.Wrap(ErrInvalid, "lowpass tau must be positive")
		}

		p = filter.LowpassParams(s.Neurons, f.Tau, s.DT)
	case filter.MethodLinear.String():
		if len(f.NegA) == 0 || len(f.NegA) != len(f.B) {
			return p, errors.Wrap(ErrInvalid,
				"linear filter needs the same number of a and b terms")
		}

		p = filter.LinearParams(s.Neurons, f.NegA, f.B)
	default:
		return p, errors.Wrapf(ErrInvalid, "unknown filter method %q", f.Method)
	}

	p.Latching = f.Latching

	return p, nil
}

// FilterRegion encodes the filter as a filter region.
func (s *Scenario) FilterRegion() ([]uint32, error) {
	p, err := s.FilterParams()
	if err != nil {
		return nil, err
	}

	return filter.EncodeRegion([]filter.Params{p}), nil
}

// Entries returns the routing table.
func (s *Scenario) Entries() []rowtable.Entry {
	entries := make([]rowtable.Entry, len(s.Table))
	for i, e := range s.Table {
		entries[i] = rowtable.Entry{
			Key:         uint32(e.Key),
			Mask:        uint32(e.Mask),
			BlockOffset: uint32(e.BlockOffset),
			NeuronMask:  uint32(e.NeuronMask),
		}
	}

	return entries
}

// TableBlob encodes the routing table as a routing region.
func (s *Scenario) TableBlob() []uint32 {
	return rowtable.EncodeBlob(s.Entries())
}

// Stride returns the distance between rows in bytes.
func (s *Scenario) Stride() uint64 {
	if s.RowStride != 0 {
		return s.RowStride
	}

	return uint64(4 * (1 + s.Neurons))
}

// MemoryFootprint returns the bytes of bulk memory the rows occupy.
func (s *Scenario) MemoryFootprint() uint64 {
	var last uint64
	for _, r := range s.Rows {
		end := uint64(r.Index+1) * s.Stride()
		if end > last {
			last = end
		}
	}

	return s.RowsBase + last
}

// WriteRows places the weight rows in storage.
func (s *Scenario) WriteRows(storage *mem.Storage) error {
	stride := s.Stride()
	for _, r := range s.Rows {
		weights := make([]filter.Value, len(r.Weights))
		for i, w := range r.Weights {
			weights[i] = filter.FromFloat(w)
		}

		addr := s.RowsBase + uint64(r.Index)*stride
		if err := storage.Write(addr, fetcher.EncodeRow(weights, stride)); err != nil {
			return errors.Wrapf(err, "write row %d", r.Index)
		}
	}

	return nil
}
