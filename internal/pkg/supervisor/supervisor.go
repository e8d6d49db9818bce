// Package supervisor runs a child process, relays its standard streams and
// translates one signal sent to the supervisor into another signal delivered
// to the child.
package supervisor

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/atframework/sigremap/internal/pkg/signals"
)

// State is the supervisor loop state.
type State int

const (
	StateRunning State = iota
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// childProcess is the part of Child the loop depends on.
type childProcess interface {
	Pid() int
	Signal(sig os.Signal) error
	TryWait() (int, bool)
}

// Options tunes a Supervisor. Zero values fall back to defaults and the
// supervisor's own standard streams.
type Options struct {
	PollInterval time.Duration
	DrainTimeout time.Duration

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Logger *zap.Logger
	Metric *Metric
}

// Supervisor polls for the catch signal and for child termination.
type Supervisor struct {
	mapping signals.Mapping
	child   childProcess
	sub     *Subscription

	input   *Relay
	outputs []*Relay

	pollInterval time.Duration
	drainTimeout time.Duration

	state  State
	metric *Metric
	logger *zap.SugaredLogger
}

// New wires the child's streams to relays. The relays start with Run.
func New(mapping signals.Mapping, child *Child, sub *Subscription, opts Options) *Supervisor {
	opts = opts.withDefaults()
	s := newSupervisor(mapping, child, sub, opts)

	relayLogger := s.logger.Named("relay")
	s.input = newInputRelay(opts.Stdin, child.Stdin, opts.Metric, relayLogger)
	s.outputs = []*Relay{
		newOutputRelay(StreamStdout, child.Stdout, opts.Stdout, opts.Metric, relayLogger),
		newOutputRelay(StreamStderr, child.Stderr, opts.Stderr, opts.Metric, relayLogger),
	}
	return s
}

func newSupervisor(mapping signals.Mapping, child childProcess, sub *Subscription, opts Options) *Supervisor {
	opts = opts.withDefaults()
	return &Supervisor{
		mapping:      mapping,
		child:        child,
		sub:          sub,
		pollInterval: opts.PollInterval,
		drainTimeout: opts.DrainTimeout,
		state:        StateRunning,
		metric:       opts.Metric,
		logger:       opts.Logger.Sugar().Named("supervisor"),
	}
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Run supervises the child until it terminates and returns its exit code.
// If ctx is cancelled first the relays are torn down, the child is left
// running and ctx.Err() is returned.
func (s *Supervisor) Run(ctx context.Context) (int, error) {
	s.startRelays()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.cancelRelays()
			return s.sub.ExitCode(), ctx.Err()
		case <-ticker.C:
		}

		if code, exited := s.poll(); exited {
			s.terminate(code)
			return code, nil
		}
	}
}

// poll runs one RUNNING iteration and reports whether the child has exited.
func (s *Supervisor) poll() (int, bool) {
	s.metric.Poll()

	if s.sub.TakeReceived() {
		s.forward()
	}
	return s.child.TryWait()
}

func (s *Supervisor) forward() {
	name := signals.Name(s.mapping.To)
	err := s.child.Signal(s.mapping.To)
	s.metric.SignalForwarded(name, err)

	switch {
	case err == nil:
		s.logger.Infof("forwarded %s to child %d", name, s.child.Pid())
	case errors.Is(err, os.ErrProcessDone):
		s.logger.Debugf("child %d already exited, %s dropped", s.child.Pid(), name)
	default:
		s.logger.Warnf("forward %s to child %d: %v", name, s.child.Pid(), err)
	}
}

func (s *Supervisor) terminate(code int) {
	s.state = StateTerminating
	s.sub.StoreExitCode(code)
	s.metric.ChildExited(code)
	s.logger.Infof("child %d exited with code %d", s.child.Pid(), code)

	if s.input != nil {
		s.input.Cancel()
	}

	deadline := time.After(s.drainTimeout)
drain:
	for _, r := range s.outputs {
		select {
		case <-r.Done():
		case <-deadline:
			s.logger.Debugf("relay %s not drained within %v", r.Name(), s.drainTimeout)
			break drain
		}
	}
	for _, r := range s.outputs {
		r.Cancel()
	}
}

func (s *Supervisor) startRelays() {
	if s.input != nil {
		go s.input.Run()
	}
	for _, r := range s.outputs {
		go r.Run()
	}
}

func (s *Supervisor) cancelRelays() {
	if s.input != nil {
		s.input.Cancel()
	}
	for _, r := range s.outputs {
		r.Cancel()
	}
}

// State returns the loop state.
func (s *Supervisor) State() State {
	return s.state
}
