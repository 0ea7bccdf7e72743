package app

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type options struct {
	configPath  string
	verbosity   int
	metricsAddr string
}

func (o *options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "path to the YAML configuration file")
	fs.IntVarP(&o.verbosity, "verbosity", "v", -1, "log verbosity, overrides the config file")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, overrides the config file")
}

func (o *options) complete() (Config, error) {
	cfg, err := LoadConfig(o.configPath)
	if err != nil {
		return Config{}, err
	}
	if o.verbosity >= 0 {
		cfg.Verbosity = o.verbosity
	}
	if o.metricsAddr != "" {
		cfg.MetricsAddr = o.metricsAddr
	}
	return cfg, nil
}

// NewCommand creates the refdemo root command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "refdemo",
		Short:         "Exercise shared and weak ownership handles and report allocator statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCommand())
	return cmd
}

func newRunCommand() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ownership scenarios",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.complete()
			if err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), cfg.Verbosity)
			return Run(cmd.Context(), cfg, log, cmd.OutOrStdout())
		},
	}
	o.AddFlags(cmd.Flags())
	return cmd
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity}).WithName("refdemo")
}
