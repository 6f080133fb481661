package filter

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func values(fs ...float64) []Value {
	v := make([]Value, len(fs))
	for i, f := range fs {
		v[i] = FromFloat(f)
	}

	return v
}

var _ = Describe("Bank", func() {
	It("should reject a zero width", func() {
		_, err := NewBank(NoneParams(0))

		Expect(err).To(MatchError(ErrMalformedRegion))
	})

	It("should raise only the targeted neurons by the row weights", func() {
		b, _ := NewBank(LowpassParams(6, 0.005, 0.001))
		Expect(b.Apply(WeightRow{Index: 1, Weights: values(0, 0, 0, 0, 0, 1)})).
			To(Succeed())
		before := b.Outputs()

		weights := values(0.5, -0.25, 0, 2)
		Expect(b.Apply(WeightRow{Index: 3, Weights: weights})).To(Succeed())

		for i := 0; i < b.Width(); i++ {
			want := before[i]
			if i < len(weights) {
				want = want.Add(weights[i])
			}
			Expect(b.Output(i)).To(Equal(want))
		}
	})

	It("should leave the bank untouched if the row is too wide", func() {
		b, _ := NewBank(NoneParams(2))
		Expect(b.Apply(WeightRow{Weights: values(1)})).To(Succeed())

		err := b.Apply(WeightRow{Index: 9, Weights: values(1, 1, 1)})

		Expect(err).To(MatchError(ErrRowTooWide))
		Expect(b.Outputs()).To(Equal(values(1, 0)))
	})

	It("should return a copy of the outputs", func() {
		b, _ := NewBank(NoneParams(2))
		out := b.Outputs()
		out[0] = FromFloat(3)

		Expect(b.Output(0)).To(Equal(Value(0)))
	})

	Context("none", func() {
		It("should clear when not latching", func() {
			b, _ := NewBank(NoneParams(2))
			_ = b.Apply(WeightRow{Weights: values(1, 2)})

			b.DecayStep()

			Expect(b.Outputs()).To(Equal(values(0, 0)))
		})

		It("should hold the last input when latching", func() {
			p := NoneParams(2)
			p.Latching = true
			b, _ := NewBank(p)
			_ = b.Apply(WeightRow{Weights: values(1, 2)})

			b.DecayStep()
			Expect(b.Outputs()).To(Equal(values(1, 2)))

			b.DecayStep()
			Expect(b.Outputs()).To(Equal(values(1, 2)))

			_ = b.Apply(WeightRow{Weights: values(0.5)})
			b.DecayStep()
			Expect(b.Outputs()).To(Equal(values(0.5, 2)))
		})
	})

	Context("lowpass", func() {
		It("should leak towards zero", func() {
			p := LowpassParams(1, 0.005, 0.001)
			b, _ := NewBank(p)
			_ = b.Apply(WeightRow{Weights: values(1)})

			b.DecayStep()
			Expect(b.Output(0)).To(Equal(FromFloat(1).Mul(p.A)))

			b.DecayStep()
			Expect(b.Output(0)).To(Equal(FromFloat(1).Mul(p.A).Mul(p.A)))
			Expect(b.Output(0).Float()).To(BeNumerically("~", 0.670, 0.001))
		})

		It("should add the held input scaled by b when latching", func() {
			p := LowpassParams(1, 0.005, 0.001)
			p.Latching = true
			b, _ := NewBank(p)
			_ = b.Apply(WeightRow{Weights: values(1)})

			b.DecayStep()

			Expect(b.Output(0)).To(Equal(FromFloat(1).Mul(p.A).Add(FromFloat(1).Mul(p.B))))
		})

		It("should settle at a held input when latching", func() {
			p := LowpassParams(1, 0.005, 0.001)
			p.Latching = true
			b, _ := NewBank(p)
			_ = b.Apply(WeightRow{Weights: values(1)})

			for step := 0; step < 200; step++ {
				b.DecayStep()
			}

			Expect(b.Output(0).Float()).To(BeNumerically("~", 1.0, 0.01))
		})
	})

	Context("linear", func() {
		It("should follow the output recurrence", func() {
			p := LinearParams(1, []float64{0.5, 0.25}, nil)
			b, _ := NewBank(p)
			_ = b.Apply(WeightRow{Weights: values(1)})

			b.DecayStep()
			Expect(b.Output(0)).To(Equal(FromFloat(0.5)))

			b.DecayStep()
			Expect(b.Output(0)).To(Equal(FromFloat(0.5)))

			b.DecayStep()
			Expect(b.Output(0)).To(Equal(FromFloat(0.375)))
		})

		It("should match a lowpass filter at first order", func() {
			lp := LowpassParams(1, 0.005, 0.001)
			lin := Params{Method: MethodLinear, Width: 1,
				Terms: []LinearTerm{{NegA: lp.A, B: lp.B}}}
			b1, _ := NewBank(lp)
			b2, _ := NewBank(lin)

			for step := 0; step < 5; step++ {
				_ = b1.Apply(WeightRow{Weights: values(0.3)})
				_ = b2.Apply(WeightRow{Weights: values(0.3)})
				b1.DecayStep()
				b2.DecayStep()
			}

			Expect(b2.Output(0)).To(Equal(b1.Output(0)))
		})

		It("should settle at a held input when latching", func() {
			p := LinearParams(1, []float64{0.5, 0.25}, []float64{0.125, 0.125})
			p.Latching = true
			b, _ := NewBank(p)
			_ = b.Apply(WeightRow{Weights: values(1)})

			b.DecayStep()
			Expect(b.Output(0)).To(Equal(FromFloat(0.625)))

			for step := 0; step < 200; step++ {
				b.DecayStep()
			}

			Expect(b.Output(0).Float()).To(BeNumerically("~", 1.0, 0.01))
		})
	})
})
