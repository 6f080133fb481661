package cmd

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/spikerx/rowtable"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve key...",
	Short: "Print the weight rows that spike keys resolve to",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadScenario(cmd)
		if err != nil {
			return err
		}

		resolutions, err := resolveKeys(s.Entries(), args)
		if err != nil {
			return err
		}

		for _, r := range resolutions {
			fmt.Fprintf(cmd.OutOrStdout(), "0x%08x %v\n", r.Key, r.Rows)
		}

		return nil
	},
}

func init() {
	resolveCmd.Flags().String("scenario", "", "scenario JSON file")
	rootCmd.AddCommand(resolveCmd)
}

type resolution struct {
	Key  uint32
	Rows []uint32
}

func resolveKeys(entries []rowtable.Entry, keys []string) ([]resolution, error) {
	var table rowtable.Table
	if err := table.Load(entries); err != nil {
		return nil, err
	}

	resolutions := make([]resolution, 0, len(keys))
	for _, k := range keys {
		key, err := strconv.ParseUint(k, 0, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "key %s", k)
		}

		resolutions = append(resolutions, resolution{
			Key:  uint32(key),
			Rows: table.Resolve(uint32(key), []uint32{}),
		})
	}

	return resolutions, nil
}
