package supervisor

import (
	"errors"
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
)

const relayBufferSize = 32 << 10

const (
	StreamStdin  = "stdin"
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// Relay copies bytes from src to dst until src ends, a write fails or the
// relay is cancelled. Copy errors end the relay quietly.
type Relay struct {
	name string
	src  io.Reader
	dst  io.Writer

	// handle is the pipe end owned by this relay. Closing it unblocks a
	// pending read or write on the pipe, and tells the child once the relay
	// has stopped: EOF on its stdin, EPIPE on its output.
	handle io.Closer

	cancelled atomic.Bool
	copied    atomic.Int64
	done      chan struct{}

	metric *Metric
	logger *zap.SugaredLogger
}

// newInputRelay feeds the child's stdin from src. The child's stdin is
// closed when src is exhausted so the child observes end of input.
func newInputRelay(src io.Reader, childStdin io.WriteCloser, metric *Metric, logger *zap.SugaredLogger) *Relay {
	return &Relay{
		name:     StreamStdin,
		src:      src,
		dst:      childStdin,
		handle: childStdin,
		done:   make(chan struct{}),
		metric: metric,
		logger: logger,
	}
}

// newOutputRelay forwards one of the child's output streams to dst.
func newOutputRelay(name string, childOut io.ReadCloser, dst io.Writer, metric *Metric, logger *zap.SugaredLogger) *Relay {
	return &Relay{
		name:   name,
		src:    childOut,
		dst:    dst,
		handle: childOut,
		done:   make(chan struct{}),
		metric: metric,
		logger: logger,
	}
}

// Run blocks until the relay completes.
func (r *Relay) Run() {
	defer close(r.done)
	defer r.handle.Close()

	buf := make([]byte, relayBufferSize)
	for !r.cancelled.Load() {
		n, err := r.src.Read(buf)
		if n > 0 {
			if r.cancelled.Load() {
				return
			}
			if _, werr := r.dst.Write(buf[:n]); werr != nil {
				r.finish(werr)
				return
			}
			r.copied.Add(int64(n))
			r.metric.RelayBytes(r.name, n)
		}
		if err != nil {
			r.finish(err)
			return
		}
	}
}

func (r *Relay) finish(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || r.cancelled.Load() {
		return
	}
	r.logger.Debugf("relay %s stopped: %v", r.name, err)
}

// Cancel stops the relay at the next chunk boundary and closes its pipe end.
// It is idempotent.
func (r *Relay) Cancel() {
	if !r.cancelled.CompareAndSwap(false, true) {
		return
	}
	_ = r.handle.Close()
}

// Done is closed when Run returns.
func (r *Relay) Done() <-chan struct{} {
	return r.done
}

// Copied returns the number of bytes written to dst so far.
func (r *Relay) Copied() int64 {
	return r.copied.Load()
}

// Name returns the stream the relay serves.
func (r *Relay) Name() string {
	return r.name
}
