//go:build linux || darwin
// +build linux darwin

package supervisor

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"github.com/atframework/sigremap/internal/pkg/signals"
)

// Notifier abstracts signal registration so tests can inject signals.
type Notifier interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

type osNotifier struct{}

func (osNotifier) Notify(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) }

func (osNotifier) Stop(c chan<- os.Signal) { signal.Stop(c) }

// Subscription owns the supervisor's signal dispositions for the process
// lifetime. The catch signal sets a flag that the supervisor loop takes; the
// internal signal ends the process with the stored exit code.
type Subscription struct {
	mapping  signals.Mapping
	notifier Notifier
	exit     func(int)

	received atomic.Bool
	exitCode atomic.Int32

	ch       chan os.Signal
	done     chan struct{}
	stopOnce sync.Once

	metric *Metric
	logger *zap.SugaredLogger
}

// NewSubscription prepares a subscription. A nil notifier uses os/signal and a
// nil exit uses os.Exit.
func NewSubscription(mapping signals.Mapping, notifier Notifier, exit func(int), metric *Metric, logger *zap.Logger) *Subscription {
	if notifier == nil {
		notifier = osNotifier{}
	}
	if exit == nil {
		exit = os.Exit
	}

	return &Subscription{
		mapping:  mapping,
		notifier: notifier,
		exit:     exit,
		ch:       make(chan os.Signal, 1),
		done:     make(chan struct{}),
		metric:   metric,
		logger:   logger.Sugar().Named("signal"),
	}
}

// Start installs both dispositions and begins handling deliveries. SIGPIPE
// is caught and dropped so that a closed stdout ends a relay instead of the
// supervisor; a caught signal still reaches the child with its default action.
func (s *Subscription) Start() {
	s.notifier.Notify(s.ch, s.mapping.From, s.mapping.Internal, syscall.SIGPIPE)
	go s.loop()
}

// Stop releases the dispositions. It is idempotent.
func (s *Subscription) Stop() {
	s.stopOnce.Do(func() {
		s.notifier.Stop(s.ch)
		close(s.done)
	})
}

func (s *Subscription) loop() {
	for {
		select {
		case <-s.done:
			return
		case sig := <-s.ch:
			s.handle(sig)
		}
	}
}

func (s *Subscription) handle(sig os.Signal) {
	switch sig {
	case s.mapping.Internal:
		s.exit(int(s.exitCode.Load()))
	case s.mapping.From:
		s.received.Store(true)
		s.metric.SignalReceived()
		s.logger.Debugf("received %s", signals.Name(s.mapping.From))
	default:
		s.logger.Debugf("dropped %v", sig)
	}
}

// TakeReceived reports whether the catch signal arrived since the last call
// and clears the flag. Repeated deliveries in between coalesce.
func (s *Subscription) TakeReceived() bool {
	return s.received.Swap(false)
}

// StoreExitCode records the code used when the internal signal arrives.
func (s *Subscription) StoreExitCode(code int) {
	s.exitCode.Store(int32(code))
}

// ExitCode returns the stored exit code.
func (s *Subscription) ExitCode() int {
	return int(s.exitCode.Load())
}
