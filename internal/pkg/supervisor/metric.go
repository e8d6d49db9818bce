package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	psprocess "github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

const (
	MetricNamespace          = "sigremap"
	MetricFileName           = "sigremap.prom"
	SignalsReceivedTotalKey  = "signals_received_total"
	SignalsForwardedTotalKey = "signals_forwarded_total"
	RelayBytesTotalKey       = "relay_bytes_total"
	PollTotalKey             = "poll_total"
	ChildExitCodeKey         = "child_exit_code"
	ChildRSSBytesKey         = "child_rss_bytes"
	ChildCPUSecondsKey       = "child_cpu_seconds"
)

// Metric collects supervisor metrics and periodically writes them as a
// prometheus textfile into OutPath. All recording methods are safe on a nil
// receiver so callers need not check whether metrics are enabled.
type Metric struct {
	OutPath       string `yaml:"outPath,omitempty" json:"outPath,omitempty"`
	ScrapInterval int    `yaml:"scrapInterval,omitempty" json:"scrapInterval,omitempty"`

	signalsReceived  prometheus.Counter
	signalsForwarded *prometheus.CounterVec
	relayBytes       *prometheus.CounterVec
	polls            prometheus.Counter
	childExitCode    prometheus.Gauge
	childRSS         prometheus.Gauge
	childCPU         prometheus.Gauge

	register *prometheus.Registry
	childPid atomic.Int32

	done     chan struct{}
	stopOnce sync.Once

	logger *zap.SugaredLogger
}

// Provision initializes the collectors and the private registry.
func (m *Metric) Provision(logger *zap.Logger) error {
	if m.OutPath != "" {
		info, err := os.Stat(m.OutPath)
		if err != nil {
			return fmt.Errorf("metric path: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("metric path %s is not a directory", m.OutPath)
		}
	}

	m.done = make(chan struct{})
	m.logger = logger.Sugar().Named("metric")
	m.register = prometheus.NewRegistry()

	m.signalsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricNamespace,
		Name:      SignalsReceivedTotalKey,
		Help:      "Number of times the catch signal was delivered to the supervisor",
	})
	m.signalsForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNamespace,
			Name:      SignalsForwardedTotalKey,
			Help:      "Number of signals sent to the child",
		},
		[]string{
			"signal",
			"result",
		},
	)
	m.relayBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNamespace,
			Name:      RelayBytesTotalKey,
			Help:      "Bytes copied between the supervisor and the child",
		},
		[]string{
			"stream",
		},
	)
	m.polls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricNamespace,
		Name:      PollTotalKey,
		Help:      "Number of supervisor loop iterations",
	})
	m.childExitCode = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricNamespace,
		Name:      ChildExitCodeKey,
		Help:      "Exit code of the child, -1 while it is running",
	})
	m.childRSS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricNamespace,
		Name:      ChildRSSBytesKey,
		Help:      "Resident memory of the child process",
	})
	m.childCPU = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricNamespace,
		Name:      ChildCPUSecondsKey,
		Help:      "User plus system CPU time consumed by the child process",
	})
	m.childExitCode.Set(-1)

	m.register.MustRegister(
		m.signalsReceived,
		m.signalsForwarded,
		m.relayBytes,
		m.polls,
		m.childExitCode,
		m.childRSS,
		m.childCPU,
	)

	if m.ScrapInterval <= 0 {
		m.ScrapInterval = 60
	}
	return nil
}

// Run writes the textfile on every scrape interval until Stop is called,
// then writes it one last time.
func (m *Metric) Run() error {
	ticker := time.NewTicker(time.Second * time.Duration(m.ScrapInterval))
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			m.flush()
			return nil
		case <-ticker.C:
			m.flush()
		}
	}
}

// Stop ends Run. It is idempotent.
func (m *Metric) Stop() {
	if m == nil || m.done == nil {
		return
	}
	m.stopOnce.Do(func() { close(m.done) })
}

// GetGather returns the gathered metric families.
func (m *Metric) GetGather() ([]*dto.MetricFamily, error) {
	m.sampleChild()
	return m.register.Gather()
}

// SetChild records the pid sampled for resource gauges.
func (m *Metric) SetChild(pid int) {
	if m == nil {
		return
	}
	m.childPid.Store(int32(pid))
}

func (m *Metric) SignalReceived() {
	if m == nil {
		return
	}
	m.signalsReceived.Inc()
}

func (m *Metric) SignalForwarded(signal string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.signalsForwarded.WithLabelValues(signal, result).Inc()
}

func (m *Metric) RelayBytes(stream string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.relayBytes.WithLabelValues(stream).Add(float64(n))
}

func (m *Metric) Poll() {
	if m == nil {
		return
	}
	m.polls.Inc()
}

func (m *Metric) ChildExited(code int) {
	if m == nil {
		return
	}
	m.childExitCode.Set(float64(code))
	m.childPid.Store(0)
}

func (m *Metric) sampleChild() {
	pid := m.childPid.Load()
	if pid <= 0 {
		return
	}

	p, err := psprocess.NewProcess(pid)
	if err != nil {
		return
	}
	if mem, err := p.MemoryInfo(); err == nil {
		m.childRSS.Set(float64(mem.RSS))
	}
	if times, err := p.Times(); err == nil {
		m.childCPU.Set(times.User + times.System)
	}
}

func (m *Metric) flush() {
	if m.OutPath == "" {
		return
	}
	if err := m.writeFile(); err != nil {
		m.logger.Warnf("write metric file: %v", err)
		return
	}
	m.logger.Debug("metric info has been updated")
}

func (m *Metric) writeFile() error {
	mfs, err := m.GetGather()
	if err != nil {
		return err
	}

	target := filepath.Join(m.OutPath, MetricFileName)
	tmp, err := os.CreateTemp(m.OutPath, MetricFileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(tmp, mf); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
