package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GuilhermeSoares009/signal-filter/internal/producer"
)

func newSimulateCommand(v *viper.Viper, load loadFunc) *cobra.Command {
	var seed int64

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run concurrent signal producers against the filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			filter, err := buildFilter(cfg, logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			report, err := producer.Run(ctx, filter, producer.Config{
				Producers: cfg.Simulate.Producers,
				Signals:   cfg.Simulate.Signals,
				MaxPause:  cfg.Simulate.MaxPause,
				Seed:      seed,
			}, logger)
			if err != nil {
				return fmt.Errorf("simulate: %w", err)
			}

			out := cmd.OutOrStdout()
			tw := table.NewWriter()
			tw.SetOutputMirror(out)
			tw.SetStyle(table.StyleLight)
			tw.SetTitle(fmt.Sprintf("%s: %d signals per %s", cfg.Algorithm(), cfg.Filter.Limit, cfg.Filter.Window))
			tw.AppendHeader(table.Row{"#", "Producer", "Passed", "Total"})
			for i, p := range report.Producers {
				tw.AppendRow(table.Row{i + 1, p.ID, p.Passed, p.Total})
			}
			tw.AppendFooter(table.Row{"", "all", report.Passed, report.Total})
			tw.Render()

			fmt.Fprintf(out, "Filter allowed %d signals out of %d in %s\n",
				report.Passed, report.Total, report.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().Int("producers", 0, "number of concurrent producers")
	cmd.Flags().Int("signals", 0, "signals emitted by each producer")
	cmd.Flags().Duration("max-pause", 0, "upper bound of the random pause between signals")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for pauses, 0 picks one from the clock")
	mustBind(v.BindPFlag("simulate.producers", cmd.Flags().Lookup("producers")))
	mustBind(v.BindPFlag("simulate.signals", cmd.Flags().Lookup("signals")))
	mustBind(v.BindPFlag("simulate.max_pause", cmd.Flags().Lookup("max-pause")))
	return cmd
}
