package subcmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/mengelbart/netemu/cmdmain"
	"github.com/mengelbart/netemu/flags"
	"github.com/mengelbart/netemu/simulation"
)

func init() {
	cmdmain.RegisterSubCmd("simulate", func() cmdmain.SubCmd { return new(Simulate) })
}

type Simulate struct{}

// Help implements cmdmain.SubCmd.
func (s *Simulate) Help() string {
	return "Run RTP streams over emulated links on a simulated clock"
}

// Exec implements cmdmain.SubCmd.
func (s *Simulate) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	flags.RegisterInto(fs,
		flags.ScenarioFileFlag,
		flags.NameFlag,
		flags.DurationFlag,
		flags.TickFlag,
		flags.BitrateFlag,
		flags.PayloadSizeFlag,
		flags.SeedFlag,
		flags.QueuePolicyFlag,
		flags.QueuePolicyDelayFlag,
		flags.QueueLengthFlag,
		flags.QueueDelayFlag,
		flags.DelayStdDevFlag,
		flags.LinkCapacityFlag,
		flags.LossPercentFlag,
		flags.BurstLengthFlag,
		flags.AllowReorderingFlag,
		flags.PacketOverheadFlag,
		flags.DropOldestFlag,
		flags.PlotFlag,
		flags.OutputFlag,
	)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Run RTP streams over emulated links on a simulated clock and print a JSON report

Usage:
	%s simulate [flags]

Flags:
`, cmd)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
	fs.Parse(args)

	if len(fs.Args()) > 0 {
		fmt.Fprintf(os.Stderr, "error: unknown extra arguments: %v\n", fs.Args())
		fs.Usage()
		os.Exit(1)
	}

	var scenarios []simulation.Scenario
	if flags.ScenarioFile != "" {
		var err error
		scenarios, err = simulation.LoadScenarios(flags.ScenarioFile)
		if err != nil {
			return err
		}
	} else {
		scenarios = []simulation.Scenario{flags.Scenario()}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := simulation.RunAll(ctx, scenarios)
	if err != nil {
		return err
	}

	if flags.Plot != "" {
		for _, r := range results {
			file := fmt.Sprintf("%v%v.png", flags.Plot, r.Scenario)
			if err := r.Collector.SavePlot(r.Scenario, file); err != nil {
				slog.Warn("failed to plot scenario", "scenario", r.Scenario, "error", err)
				continue
			}
			slog.Info("wrote plot", "scenario", r.Scenario, "file", file)

			file = fmt.Sprintf("%v%v-queue.png", flags.Plot, r.Scenario)
			if err := r.Collector.SaveQueuePlot(r.Scenario, file); err != nil {
				slog.Warn("failed to plot queue", "scenario", r.Scenario, "error", err)
				continue
			}
			slog.Info("wrote plot", "scenario", r.Scenario, "file", file)
		}
	}

	var out io.Writer = os.Stdout
	if flags.Output != "" {
		f, err := os.Create(flags.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
