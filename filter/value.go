// Package filter implements the synapse filter bank: per-neuron accumulators
// that integrate weighted spike input and decay once per time step.
package filter

import "math"

// FracBits is the number of fractional bits of a Value.
const FracBits = 15

const one = 1 << FracBits

// A Value is a signed S16.15 fixed-point number. Arithmetic saturates at the
// ends of the range.
type Value int32

// FromFloat converts f to the nearest Value.
func FromFloat(f float64) Value {
	return saturate(int64(math.Round(f * one)))
}

// FromWord reinterprets a memory word as a Value.
func FromWord(w uint32) Value {
	return Value(int32(w))
}

// Word returns the memory representation of v.
func (v Value) Word() uint32 {
	return uint32(int32(v))
}

// Float converts v to a float64.
func (v Value) Float() float64 {
	return float64(v) / one
}

// Add returns v + o.
func (v Value) Add(o Value) Value {
	return saturate(int64(v) + int64(o))
}

// Mul returns v * o, truncated towards negative infinity.
func (v Value) Mul(o Value) Value {
	return saturate((int64(v) * int64(o)) >> FracBits)
}

func saturate(x int64) Value {
	switch {
	case x > math.MaxInt32:
		return math.MaxInt32
	case x < math.MinInt32:
		return math.MinInt32
	default:
		return Value(x)
	}
}
