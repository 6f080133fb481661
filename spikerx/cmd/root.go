// Package cmd provides the command-line interface of spikerx.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "spikerx",
	Short: "spikerx simulates the spike input pathway of a neuromorphic core.",
	Long: `spikerx simulates the spike input pathway of a neuromorphic core. ` +
		`Spikes are routed through a lookup table to rows of a weight matrix ` +
		`held in simulated bulk memory, fetched by a DMA engine and ` +
		`accumulated into a filter bank that a time-step loop reads and decays.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info",
		"log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("env", ".env",
		"file with default settings, ignored if missing")
}

func setup(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env")
	if err := loadEnv(envFile); err != nil {
		return err
	}

	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := log.ParseLevel(levelName)
	if err != nil {
		return errors.Wrap(err, "log level")
	}

	log.SetLevel(level)

	return nil
}

func loadEnv(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return errors.Wrapf(err, "load %s", path)
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	return rootCmd.Execute()
}
