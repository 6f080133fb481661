package filter

import (
	"fmt"
	"math"
)

// Method selects the decay law of a filter.
type Method uint32

// Filter methods, numbered as in the filter region.
const (
	MethodNone Method = iota
	MethodLowpass
	MethodLinear
)

func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodLowpass:
		return "lowpass"
	case MethodLinear:
		return "linear"
	default:
		return fmt.Sprintf("method(%d)", uint32(m))
	}
}

// LinearTerm is one order of a discretized linear filter. NegA is the negated
// denominator coefficient, used as the feedback gain on the output history.
type LinearTerm struct {
	NegA Value
	B    Value
}

// Params configures a filter.
type Params struct {
	Method   Method
	Width    int
	Latching bool

	// Lowpass coefficients, a = exp(-dt/tau) and b = 1 - a.
	A, B Value

	// Linear terms, one per order.
	Terms []LinearTerm
}

// NoneParams describes a filter with no memory: its output is the input of
// the current step.
func NoneParams(width int) Params {
	return Params{Method: MethodNone, Width: width}
}

// LowpassParams describes a first-order low-pass filter with time constant
// tau simulated at time step dt, both in seconds.
func LowpassParams(width int, tau, dt float64) Params {
	a := math.Exp(-dt / tau)

	return Params{
		Method: MethodLowpass,
		Width:  width,
		A:      FromFloat(a),
		B:      FromFloat(1 - a),
	}
}

// LinearParams describes a discretized linear filter. negA and b hold the
// coefficients of orders 1 to N.
func LinearParams(width int, negA, b []float64) Params {
	p := Params{Method: MethodLinear, Width: width}

	for i := range negA {
		t := LinearTerm{NegA: FromFloat(negA[i])}
		if i < len(b) {
			t.B = FromFloat(b[i])
		}
		p.Terms = append(p.Terms, t)
	}

	return p
}

// Order returns the number of past outputs the filter depends on.
func (p Params) Order() int {
	switch p.Method {
	case MethodLinear:
		return len(p.Terms)
	case MethodLowpass:
		return 1
	default:
		return 0
	}
}

func (p Params) dataWords() int {
	switch p.Method {
	case MethodLowpass:
		return 2
	case MethodLinear:
		return 1 + 2*len(p.Terms)
	default:
		return 0
	}
}
