package main

import (
	"github.com/spf13/cobra"

	"github.com/lucasjlepore/fit-heatmap/pipeline"
	"github.com/lucasjlepore/fit-heatmap/store"
)

type app struct {
	cfg     config
	service *pipeline.Service
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		a          = &app{}
	)
	v := newViper()

	rootCmd := &cobra.Command{
		Use:           "heatmap",
		Short:         "Load FIT and GPX activity files into year-bucketed position heatmaps",
		Long:          "heatmap reads a directory of .fit, .fit.gz and .gpx activity files, groups the recorded positions by calendar year (UTC), and saves or queries snapshots of the result.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg)
			st := store.New(store.WithCompression(cfg.Compression))
			a.cfg = cfg
			a.service = pipeline.NewService(st, pipeline.Options{Workers: cfg.Workers}, logger)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to a TOML config file (default ./heatmap.toml)")
	flags.Int("workers", 0, "files decoded in parallel (0 = GOMAXPROCS)")
	flags.String("log-level", "info", "log level: debug|info|warn|error")
	flags.String("log-format", "text", "log format: text|json")
	_ = v.BindPFlag(workersKey, flags.Lookup("workers"))
	_ = v.BindPFlag(logLevelKey, flags.Lookup("log-level"))
	_ = v.BindPFlag(logFormatKey, flags.Lookup("log-format"))

	rootCmd.AddCommand(
		newVersionCmd(),
		newIngestCmd(a, v),
		newYearsCmd(a),
		newPointsCmd(a),
		newParquetCmd(a),
	)

	return rootCmd
}
