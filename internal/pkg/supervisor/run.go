package supervisor

import (
	"context"
	"io"

	"github.com/oklog/run"
)

// ExitCodeFailedStartup is returned when the child could not be supervised at all.
const ExitCodeFailedStartup = 1

// Streams are the supervisor's own standard streams.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// RunOptions describes one supervised execution.
type RunOptions struct {
	Config  *Config
	Command []string
	Streams Streams

	// ConfigPath is watched for log level changes when Watch is set.
	ConfigPath string
	Watch      bool

	// Notifier and Exit default to os/signal and os.Exit.
	Notifier Notifier
	Exit     func(int)
}

// Run spawns the command and supervises it until it terminates. The returned
// code is the child's exit code, or ExitCodeFailedStartup with a non-nil
// error when the child could not be started.
func Run(ctx context.Context, o RunOptions) (int, error) {
	cfg := o.Config
	if cfg == nil {
		cfg = new(Config)
	}
	cfg.ApplyDefaults()

	mapping, err := cfg.Mapping()
	if err != nil {
		return ExitCodeFailedStartup, err
	}

	if err := cfg.Logging.Provision(); err != nil {
		return ExitCodeFailedStartup, err
	}
	defer cfg.Logging.Close()
	logger := cfg.Logging.Logger()

	if cfg.Metric != nil {
		if err := cfg.Metric.Provision(logger); err != nil {
			return ExitCodeFailedStartup, err
		}
	}

	var watcher *configWatcher
	if o.Watch && o.ConfigPath != "" {
		watcher, err = newConfigWatcher(o.ConfigPath, cfg, logger)
		if err != nil {
			return ExitCodeFailedStartup, err
		}
	}

	// install dispositions before the child exists so an early catch
	// signal cannot end the supervisor with the default action
	sub := NewSubscription(mapping, o.Notifier, o.Exit, cfg.Metric, logger)
	sub.Start()
	defer sub.Stop()

	// the caller reports spawn failures
	child, err := Launch(o.Command)
	if err != nil {
		if watcher != nil {
			watcher.watcher.Close()
		}
		return ExitCodeFailedStartup, err
	}
	cfg.Metric.SetChild(child.Pid())
	logger.Sugar().Infof("started child %d %v, remapping %s", child.Pid(), o.Command, mapping)

	sup := New(mapping, child, sub, Options{
		PollInterval: cfg.PollInterval.Duration,
		DrainTimeout: cfg.DrainTimeout.Duration,
		Stdin:        o.Streams.In,
		Stdout:       o.Streams.Out,
		Stderr:       o.Streams.Err,
		Logger:       logger,
		Metric:       cfg.Metric,
	})

	var (
		g    run.Group
		code int
	)
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			var err error
			code, err = sup.Run(ctx)
			return err
		}, func(error) {
			cancel()
		})
	}
	if cfg.Metric != nil {
		g.Add(cfg.Metric.Run, func(error) {
			cfg.Metric.Stop()
		})
	}
	if watcher != nil {
		g.Add(watcher.Run, func(error) {
			watcher.Stop()
		})
	}

	err = g.Run()
	return code, err
}
