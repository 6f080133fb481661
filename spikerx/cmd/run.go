package cmd

import (
	"encoding/csv"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/spikerx/monitoring"
	"github.com/sarchlab/spikerx/scenario"
	"github.com/sarchlab/spikerx/sim"
	"github.com/sarchlab/spikerx/spikes"
	"github.com/sarchlab/spikerx/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario on the simulated core",
	Long: `Run delivers the spikes of a scenario to a simulated core and runs ` +
		`its time-step loop. Without --scenario a built-in two block ` +
		`scenario is used.`,
	Args: cobra.NoArgs,
	RunE: runScenario,
}

func init() {
	runCmd.Flags().String("scenario", "", "scenario JSON file")
	runCmd.Flags().Uint64("steps", 0, "number of time steps, overrides the scenario")
	runCmd.Flags().String("trace-db", "",
		"record row request traces in this SQLite file, - for a generated name")
	runCmd.Flags().String("profile-csv", "",
		"write the mean handler time per event kind to this CSV file")
	runCmd.Flags().Bool("profile", false, "print a profile summary")
	runCmd.Flags().Bool("monitor", false, "serve the monitor while running")
	runCmd.Flags().Int("monitor-port", 0, "port of the monitor, random if 0")
	runCmd.Flags().Bool("open", false, "open the monitor in a browser")
	runCmd.Flags().Bool("log-events", false,
		"log every handled event at the debug level")
	addRxFlags(runCmd)

	rootCmd.AddCommand(runCmd)
}

func loadScenario(cmd *cobra.Command) (*scenario.Scenario, error) {
	path, _ := cmd.Flags().GetString("scenario")
	if path == "" {
		return scenario.Default(), nil
	}

	return scenario.Load(path)
}

type traceFlusher struct {
	writer *tracing.SQLiteTraceWriter
}

func (f traceFlusher) Handle(_ sim.VTimeInSec) {
	if err := f.writer.Flush(); err != nil {
		log.WithError(err).Error("flush traces")
	}
}

func runScenario(cmd *cobra.Command, _ []string) error {
	s, err := loadScenario(cmd)
	if err != nil {
		return err
	}

	if steps, _ := cmd.Flags().GetUint64("steps"); steps > 0 {
		s.Steps = steps
	}

	cfg, err := rxConfigFromCmd(cmd)
	if err != nil {
		return err
	}

	var (
		monitor *monitoring.Monitor
		bar     *monitoring.ProgressBar
	)

	useMonitor, _ := cmd.Flags().GetBool("monitor")
	if useMonitor {
		port, _ := cmd.Flags().GetInt("monitor-port")
		open, _ := cmd.Flags().GetBool("open")
		monitor = monitoring.NewMonitor().WithPortNumber(port).WithBrowser(open)
		bar = monitor.CreateProgressBar("Steps", s.Steps)
	}

	h, err := buildHarness(s, cfg, func(_ uint64, _ sim.VTimeInSec, _ *spikes.Receiver) {
		if bar != nil {
			bar.IncrementFinished(1)
		}
	})
	if err != nil {
		return err
	}

	if err := attachTracing(cmd, h); err != nil {
		return err
	}

	profiler := attachProfiler(cmd, h)

	if logEvents, _ := cmd.Flags().GetBool("log-events"); logEvents {
		h.engine.AcceptHook(sim.NewEventLogger(log.StandardLogger()))
	}

	if monitor != nil {
		monitor.RegisterEngine(h.engine)
		monitor.RegisterComponent(h.core)
		monitor.RegisterComponent(h.dma)
		monitor.RegisterReceiver(h.receiver)

		if err := monitor.StartServer(); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"scenario":        s.Name,
		"steps":           s.Steps,
		"spikes":          len(s.Spikes),
		"queue_depth":     cfg.QueueDepth,
		"max_outstanding": cfg.MaxOutstanding,
	}).Info("running scenario")

	runErr := h.run()

	if err := writeReport(cmd.OutOrStdout(), h); err != nil {
		return err
	}

	if profiler != nil {
		if err := writeProfile(cmd, h, profiler); err != nil {
			return err
		}
	}

	if monitor != nil {
		monitor.CompleteProgressBar(bar)
		log.Info("simulation finished, monitor stays up until interrupted")

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt)
		<-stop
	}

	return runErr
}

func attachTracing(cmd *cobra.Command, h *harness) error {
	path, _ := cmd.Flags().GetString("trace-db")
	if path == "" {
		return nil
	}

	if path == "-" {
		path = ""
	}

	writer := tracing.NewSQLiteTraceWriter(path)
	if err := writer.Init(); err != nil {
		return err
	}

	tracer := tracing.NewDBTracer(h.engine, writer)
	tracing.CollectTrace(h.receiver.Dispatcher(), tracer)
	tracing.CollectTrace(h.dma, tracer)
	tracing.CollectTrace(h.core, tracer)
	h.engine.RegisterSimulationEndHandler(traceFlusher{writer: writer})

	log.WithField("path", writer.Path()).Info("recording traces")

	return nil
}

func attachProfiler(cmd *cobra.Command, h *harness) *tracing.Profiler {
	csvPath, _ := cmd.Flags().GetString("profile-csv")
	summary, _ := cmd.Flags().GetBool("profile")

	if csvPath == "" && !summary {
		return nil
	}

	p := tracing.NewProfiler()
	h.engine.AcceptHook(p)

	return p
}

func writeProfile(cmd *cobra.Command, h *harness, p *tracing.Profiler) error {
	if summary, _ := cmd.Flags().GetBool("profile"); summary {
		if err := p.PrintSummary(cmd.OutOrStdout(), h.duration()); err != nil {
			return err
		}
	}

	csvPath, _ := cmd.Flags().GetString("profile-csv")
	if csvPath == "" {
		return nil
	}

	f, err := os.Create(csvPath)
	if err != nil {
		return errors.Wrap(err, "profile csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := p.WriteCSVHeader(w, []string{"scenario"}); err != nil {
		return err
	}

	if err := p.WriteCSVRow(w, []string{h.scenario.Name}); err != nil {
		return err
	}

	w.Flush()

	return errors.Wrap(w.Error(), "profile csv")
}
