package filter

import (
	"github.com/pkg/errors"
)

// ErrRowTooWide is returned when a row has more synapses than the bank has
// neurons.
var ErrRowTooWide = errors.New("row wider than filter bank")

// WeightRow holds the synaptic weights of one row of the weight matrix.
// Weights[i] targets neuron i.
type WeightRow struct {
	Index   uint32
	Weights []Value
}

// A Bank holds one accumulator per neuron.
//
// Weights applied during a step are visible in the output immediately.
// DecayStep then advances every accumulator by one time step:
//
//   - None: the output is cleared, or holds the last input if latching.
//   - Lowpass: y <- a*y.
//   - Linear: y[n+1] = sum over k of NegA[k] * y[n-k].
//
// A latching filter treats the input received during the last step that had
// input as a held input x and drives the filter with it after every decay:
// Lowpass adds B*x, Linear adds the sum over k of B[k] * x[n-k], and None
// outputs x. A held input x settles the output of a stable filter near x.
type Bank struct {
	params  Params
	gains   []Value
	inGains []Value

	output []Value
	past   []Value

	input    []Value
	held     []Value
	heldPast []Value
	received []bool
}

// NewBank creates a bank of p.Width accumulators, all zero.
func NewBank(p Params) (*Bank, error) {
	if p.Width <= 0 {
		return nil, errors.Wrapf(ErrMalformedRegion,
			"filter width %d", p.Width)
	}

	b := &Bank{
		params: p,
		output: make([]Value, p.Width),
	}

	switch p.Method {
	case MethodNone:
	case MethodLowpass:
		b.gains = []Value{p.A}
		b.inGains = []Value{p.B}
	case MethodLinear:
		for _, t := range p.Terms {
			b.gains = append(b.gains, t.NegA)
			b.inGains = append(b.inGains, t.B)
		}
	default:
		return nil, errors.Wrapf(ErrMalformedRegion, "unknown %s", p.Method)
	}

	if len(b.gains) > 1 {
		b.past = make([]Value, p.Width*(len(b.gains)-1))
	}

	if p.Latching {
		b.input = make([]Value, p.Width)
		b.held = make([]Value, p.Width)
		b.received = make([]bool, p.Width)

		if len(b.inGains) > 1 {
			b.heldPast = make([]Value, p.Width*(len(b.inGains)-1))
		}
	}

	return b, nil
}

// Params returns the configuration of the bank.
func (b *Bank) Params() Params {
	return b.params
}

// Width returns the number of neurons.
func (b *Bank) Width() int {
	return len(b.output)
}

// Apply adds weight i of the row to neuron i. Nothing is changed if the row
// does not fit.
func (b *Bank) Apply(row WeightRow) error {
	if len(row.Weights) > len(b.output) {
		return errors.Wrapf(ErrRowTooWide, "row %d has %d synapses, bank has %d",
			row.Index, len(row.Weights), len(b.output))
	}

	for i, w := range row.Weights {
		b.output[i] = b.output[i].Add(w)

		if b.params.Latching {
			b.input[i] = b.input[i].Add(w)
			b.received[i] = true
		}
	}

	return nil
}

// Output returns the current value of neuron n.
func (b *Bank) Output(n int) Value {
	return b.output[n]
}

// Outputs returns a copy of all the outputs.
func (b *Bank) Outputs() []Value {
	return append([]Value(nil), b.output...)
}

// DecayStep advances every accumulator by one time step.
func (b *Bank) DecayStep() {
	for i := range b.output {
		y := b.decay(i)

		if b.params.Latching {
			if b.received[i] {
				b.held[i] = b.input[i]
			}
			b.input[i] = 0
			b.received[i] = false
			y = y.Add(b.drive(i))
		}

		b.output[i] = y
	}
}

// drive returns the contribution of the held input of neuron i to its next
// output.
func (b *Bank) drive(i int) Value {
	order := len(b.inGains)
	if order == 0 {
		return b.held[i]
	}

	x := b.held[i].Mul(b.inGains[0])
	if order == 1 {
		return x
	}

	past := b.heldPast[i*(order-1) : (i+1)*(order-1)]
	for k, g := range b.inGains[1:] {
		x = x.Add(past[k].Mul(g))
	}

	copy(past[1:], past[:len(past)-1])
	past[0] = b.held[i]

	return x
}

func (b *Bank) decay(i int) Value {
	order := len(b.gains)
	if order == 0 {
		return 0
	}

	y := b.output[i].Mul(b.gains[0])
	if order == 1 {
		return y
	}

	past := b.past[i*(order-1) : (i+1)*(order-1)]
	for k, g := range b.gains[1:] {
		y = y.Add(past[k].Mul(g))
	}

	copy(past[1:], past[:len(past)-1])
	past[0] = b.output[i]

	return y
}
