package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
)

func writeReport(w io.Writer, h *harness) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	rx := h.receiver.Stats()
	d := h.receiver.Dispatcher().Stats()
	dma := h.dma.Stats()

	rows := []struct {
		name  string
		value any
	}{
		{"scenario", h.scenario.Name},
		{"simulated time", h.engine.CurrentTime()},
		{"steps", h.core.Steps()},
		{"deferred steps", h.core.DeferredSteps()},
		{"spikes received", rx.Received},
		{"spikes unmatched", rx.Unmatched},
		{"rows requested", rx.Rows},
		{"rows applied", d.Applied},
		{"dispatcher stalls", d.Stalls},
		{"max queue size", d.MaxQueueSize},
		{"transfer retries", h.receiver.Fetcher().Retries()},
		{"transfers completed", dma.Completed},
		{"transfers failed", dma.Failed},
		{"bytes transferred", dma.Bytes},
	}

	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%v\n", r.name, r.value)
	}

	for n, v := range h.receiver.Outputs() {
		if v != 0 {
			fmt.Fprintf(tw, "neuron %d\t%.6f\n", n, v.Float())
		}
	}

	return tw.Flush()
}
