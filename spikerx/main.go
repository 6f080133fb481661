// Command spikerx runs the spike input pathway of a neuromorphic core on a
// simulated core with simulated bulk memory.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/sarchlab/spikerx/spikerx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
