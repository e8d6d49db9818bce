package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"helm.sh/helm/v3/cmd/helm/require"

	"github.com/atframework/sigremap/internal/pkg/supervisor"
)

const (
	ExitCodeSuccess       = 0
	ExitCodeFailedStartup = supervisor.ExitCodeFailedStartup
)

var (
	toolName = "sigremap"

	globalUsage = `Run a command and translate one signal sent to sigremap into another
signal delivered to the command.

Standard input, output and error are relayed byte for byte. sigremap exits
with the command's exit code.

Common actions for sigremap:

- sigremap --from SIGTERM --to SIGINT -- CMD [ARGS...]:  Run CMD, deliver SIGINT on SIGTERM
- sigremap signals:                                     List the signal names
- sigremap version:                                     Print the version
`
)

// ToolName returns the tool name.
func ToolName() string {
	return toolName
}

type rootOptions struct {
	from         string
	to           string
	configFile   string
	pollInterval time.Duration
	drainTimeout time.Duration
	logLevel     string
	logFile      string
	metricPath   string
	watchConfig  bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	exitCode int
}

func newRootCmd(in io.Reader, out, errOut io.Writer) (*cobra.Command, *rootOptions) {
	o := &rootOptions{in: in, out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:          "sigremap --from SIGNAL --to SIGNAL [flags] -- CMD [ARGS...]",
		Short:        "Run a command and remap a signal sent to it.",
		Long:         globalUsage,
		SilenceUsage: true,
		Args:         require.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	f := cmd.Flags()
	// everything after the program name belongs to the program
	f.SetInterspersed(false)
	addRemapFlags(f, o)

	cmd.AddCommand(
		newVersionCmd(out),
		newSignalsCmd(out),
	)
	return cmd, o
}

func addRemapFlags(f *pflag.FlagSet, o *rootOptions) {
	f.StringVar(&o.from, "from", "", "signal to receive from the user or another application (e.g. SIGINT, SIGTERM, ...)")
	f.StringVar(&o.to, "to", "", "signal to send to the child process (e.g. SIGINT, SIGTERM, ...)")
	f.StringVarP(&o.configFile, "config", "c", "", "configuration file")
	f.DurationVar(&o.pollInterval, "poll-interval", supervisor.DefaultPollInterval, "interval between signal and child status checks")
	f.DurationVar(&o.drainTimeout, "drain-timeout", supervisor.DefaultDrainTimeout, "time to wait for child output after it exits")
	f.StringVar(&o.logLevel, "log-level", supervisor.DefaultLogLevel, "supervisor log level (debug, info, warn, error)")
	f.StringVar(&o.logFile, "log-file", "", "write supervisor logs to a rotated file instead of stderr")
	f.StringVar(&o.metricPath, "metric-path", "", "directory receiving the sigremap.prom metric textfile")
	f.BoolVar(&o.watchConfig, "watch-config", false, "reload the log level when the configuration file changes")
}

// loadConfig reads the configuration file, if any, and lets explicitly set
// flags override it.
func (o *rootOptions) loadConfig(f *pflag.FlagSet) (*supervisor.Config, error) {
	cfg := new(supervisor.Config)
	if o.configFile != "" {
		var err error
		if cfg, err = supervisor.LoadConfig(o.configFile); err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
	}

	if f.Changed("from") || cfg.From == "" {
		cfg.From = o.from
	}
	if f.Changed("to") || cfg.To == "" {
		cfg.To = o.to
	}
	if f.Changed("poll-interval") || cfg.PollInterval.Duration <= 0 {
		cfg.PollInterval.Duration = o.pollInterval
	}
	if f.Changed("drain-timeout") || cfg.DrainTimeout.Duration <= 0 {
		cfg.DrainTimeout.Duration = o.drainTimeout
	}

	if cfg.Logging == nil {
		cfg.Logging = new(supervisor.Logging)
	}
	if f.Changed("log-level") || cfg.Logging.Level == "" {
		cfg.Logging.Level = o.logLevel
	}
	if f.Changed("log-file") {
		cfg.Logging.Path = o.logFile
	}

	if f.Changed("metric-path") {
		if cfg.Metric == nil {
			cfg.Metric = new(supervisor.Metric)
		}
		cfg.Metric.OutPath = o.metricPath
	}
	return cfg, nil
}

func (o *rootOptions) run(cmd *cobra.Command, args []string) error {
	o.exitCode = ExitCodeFailedStartup

	if o.watchConfig && o.configFile == "" {
		return fmt.Errorf("--watch-config requires --config")
	}

	cfg, err := o.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	code, err := supervisor.Run(cmd.Context(), supervisor.RunOptions{
		Config:     cfg,
		Command:    args,
		Streams:    supervisor.Streams{In: o.in, Out: o.out, Err: o.errOut},
		ConfigPath: o.configFile,
		Watch:      o.watchConfig,
	})
	o.exitCode = code
	return err
}

func main() {
	cmd, o := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		os.Exit(ExitCodeFailedStartup)
	}
	os.Exit(o.exitCode)
}
