package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GuilhermeSoares009/signal-filter/internal/config"
	"github.com/GuilhermeSoares009/signal-filter/internal/observability"
	"github.com/GuilhermeSoares009/signal-filter/internal/ratelimit"
)

// NewRootCommand builds the signalfilter command tree. Each call returns an
// independent tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	v := config.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "signalfilter",
		Short:         "Sliding-window signal filter",
		Long:          "Admit at most N signals within any trailing time window.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().String("algorithm", "", "filter algorithm: bounded_queue or slot_array")
	root.PersistentFlags().Int("limit", 0, "maximum signals per window")
	root.PersistentFlags().Duration("window", 0, "window length, e.g. 1m or 100s")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	flags := root.PersistentFlags()
	mustBind(v.BindPFlag("filter.algorithm", flags.Lookup("algorithm")))
	mustBind(v.BindPFlag("filter.limit", flags.Lookup("limit")))
	mustBind(v.BindPFlag("filter.window", flags.Lookup("window")))
	mustBind(v.BindPFlag("log.level", flags.Lookup("log-level")))

	load := func() (*config.Config, *zap.Logger, error) {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return nil, nil, err
		}
		logger, err := observability.NewLogger(cfg.Log.Level)
		if err != nil {
			return nil, nil, err
		}
		return cfg, logger, nil
	}

	root.AddCommand(newServeCommand(v, load))
	root.AddCommand(newSimulateCommand(v, load))
	return root
}

type loadFunc func() (*config.Config, *zap.Logger, error)

// mustBind panics on a flag binding error, which only a misspelt flag name
// can cause. Explicitly set flags override file and environment values.
func mustBind(err error) {
	if err != nil {
		panic(fmt.Sprintf("bind flag: %v", err))
	}
}

func buildFilter(cfg *config.Config, logger *zap.Logger) (ratelimit.Filter, error) {
	alg := cfg.Algorithm()
	filter, err := ratelimit.New(alg, cfg.Filter.Limit, cfg.Filter.Window)
	if err != nil {
		return nil, fmt.Errorf("build %s filter: %w", alg, err)
	}
	return ratelimit.Instrument(filter, string(alg), logger), nil
}
