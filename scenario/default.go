package scenario

// Default returns a small demonstration scenario with two routing blocks of
// sixteen rows each.
func Default() *Scenario {
	s := &Scenario{
		Name:    "two-blocks",
		Neurons: 32,
		Filter:  Filter{Method: "lowpass", Tau: 0.005},
		DT:      0.001,
		Steps:   10,
		Table: []TableEntry{
			{Key: 0x1000, Mask: 0xF000, BlockOffset: 0, NeuronMask: 0x0F},
			{Key: 0x2000, Mask: 0xF000, BlockOffset: 16, NeuronMask: 0x0F},
		},
		Spikes: []Spike{
			{Time: 0.0005, Key: 0x1003},
			{Time: 0.0015, Key: 0x2005},
			{Time: 0.0025, Key: 0x3000},
			{Time: 0.0030, Key: 0x1003},
			{Time: 0.0030, Key: 0x2005},
		},
	}

	for i := uint32(0); i < 32; i++ {
		weights := make([]float64, 4)
		for j := range weights {
			weights[j] = float64(i%4+1) * 0.25
		}

		s.Rows = append(s.Rows, Row{Index: i, Weights: weights})
	}

	return s
}
