package cmd

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/spikerx/dispatch"
	"github.com/sarchlab/spikerx/fetcher"
)

const (
	envQueueDepth     = "SPIKERX_QUEUE_DEPTH"
	envMaxOutstanding = "SPIKERX_MAX_OUTSTANDING"
	envMaxRetries     = "SPIKERX_MAX_RETRIES"
)

type rxConfig struct {
	QueueDepth     int
	MaxOutstanding int
	MaxRetries     int
}

func defaultRxConfig() rxConfig {
	return rxConfig{
		QueueDepth:     dispatch.DefaultQueueDepth,
		MaxOutstanding: dispatch.DefaultMaxOutstanding,
		MaxRetries:     fetcher.DefaultMaxRetries,
	}
}

// rxConfigFromEnv overrides the defaults with the environment values that
// lookup finds.
func rxConfigFromEnv(lookup func(string) (string, bool)) (rxConfig, error) {
	cfg := defaultRxConfig()

	fields := []struct {
		name string
		dst  *int
		min  int
	}{
		{envQueueDepth, &cfg.QueueDepth, 1},
		{envMaxOutstanding, &cfg.MaxOutstanding, 1},
		{envMaxRetries, &cfg.MaxRetries, 0},
	}

	for _, f := range fields {
		s, ok := lookup(f.name)
		if !ok || s == "" {
			continue
		}

		v, err := strconv.Atoi(s)
		if err != nil {
			return cfg, errors.Wrapf(err, "%s", f.name)
		}

		if v < f.min {
			return cfg, errors.Errorf("%s must be at least %d", f.name, f.min)
		}

		*f.dst = v
	}

	return cfg, nil
}

func addRxFlags(cmd *cobra.Command) {
	cmd.Flags().Int("queue-depth", 0,
		"capacity of the row request queue, overrides "+envQueueDepth)
	cmd.Flags().Int("max-outstanding", 0,
		"fetches in flight at once, overrides "+envMaxOutstanding)
	cmd.Flags().Int("max-retries", -1,
		"retries of a transient transfer error, overrides "+envMaxRetries)
}

func rxConfigFromCmd(cmd *cobra.Command) (rxConfig, error) {
	cfg, err := rxConfigFromEnv(os.LookupEnv)
	if err != nil {
		return cfg, err
	}

	if v, _ := cmd.Flags().GetInt("queue-depth"); v > 0 {
		cfg.QueueDepth = v
	}

	if v, _ := cmd.Flags().GetInt("max-outstanding"); v > 0 {
		cfg.MaxOutstanding = v
	}

	if v, _ := cmd.Flags().GetInt("max-retries"); v >= 0 {
		cfg.MaxRetries = v
	}

	return cfg, nil
}
