package supervisor

import (
	"bytes"
	"os"
	"sync"
)

type fakeNotifier struct {
	sync.Mutex
	ch      chan<- os.Signal
	sigs    []os.Signal
	stopped bool
}

func (f *fakeNotifier) Notify(c chan<- os.Signal, sig ...os.Signal) {
	f.Lock()
	defer f.Unlock()
	f.ch = c
	f.sigs = append(f.sigs, sig...)
}

func (f *fakeNotifier) Stop(c chan<- os.Signal) {
	f.Lock()
	defer f.Unlock()
	f.stopped = true
}

func (f *fakeNotifier) deliver(sig os.Signal) {
	f.Lock()
	ch := f.ch
	f.Unlock()
	ch <- sig
}

func (f *fakeNotifier) isStopped() bool {
	f.Lock()
	defer f.Unlock()
	return f.stopped
}

type fakeProcess struct {
	sync.Mutex
	sent    []os.Signal
	exited  bool
	code    int
	sendErr error
}

func (p *fakeProcess) Pid() int { return 4242 }

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.Lock()
	defer p.Unlock()
	p.sent = append(p.sent, sig)
	return p.sendErr
}

func (p *fakeProcess) TryWait() (int, bool) {
	p.Lock()
	defer p.Unlock()
	return p.code, p.exited
}

func (p *fakeProcess) exit(code int) {
	p.Lock()
	defer p.Unlock()
	p.exited = true
	p.code = code
}

func (p *fakeProcess) signals() []os.Signal {
	p.Lock()
	defer p.Unlock()
	return append([]os.Signal(nil), p.sent...)
}

// syncBuffer is a bytes.Buffer safe for a relay writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}
