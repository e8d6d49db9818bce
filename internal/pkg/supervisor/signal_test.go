//go:build linux || darwin
// +build linux darwin

package supervisor

import (
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/atframework/sigremap/internal/pkg/signals"
)

func mustMapping(t *testing.T, from, to syscall.Signal) signals.Mapping {
	t.Helper()
	m, err := signals.NewMapping(from, to)
	if err != nil {
		t.Fatalf("new mapping: %v", err)
	}
	return m
}

func TestSubscriptionInstallsBothSignals(t *testing.T) {
	assert := assert.New(t)

	notifier := &fakeNotifier{}
	sub := NewSubscription(mustMapping(t, syscall.SIGTERM, syscall.SIGINT), notifier, func(int) {}, nil, zap.NewNop())
	sub.Start()

	notifier.Lock()
	installed := append([]os.Signal(nil), notifier.sigs...)
	notifier.Unlock()
	assert.ElementsMatch([]os.Signal{syscall.SIGTERM, syscall.SIGABRT, syscall.SIGPIPE}, installed)

	sub.Stop()
	sub.Stop()
	assert.True(notifier.isStopped())
}

func TestSubscriptionCoalescesDeliveries(t *testing.T) {
	testCase := []struct {
		name       string
		deliveries int
	}{
		{"single delivery", 1},
		{"burst of deliveries", 5},
		{"many deliveries", 100},
	}

	assert := assert.New(t)
	for _, tc := range testCase {
		t.Run(tc.name, func(t *testing.T) {
			sub := NewSubscription(mustMapping(t, syscall.SIGTERM, syscall.SIGINT), &fakeNotifier{}, func(int) {}, nil, zap.NewNop())
			for i := 0; i < tc.deliveries; i++ {
				sub.handle(syscall.SIGTERM)
			}
			assert.True(sub.TakeReceived())
			assert.False(sub.TakeReceived())
		})
	}
}

func TestSubscriptionIgnoresOtherSignals(t *testing.T) {
	sub := NewSubscription(mustMapping(t, syscall.SIGTERM, syscall.SIGINT), &fakeNotifier{}, func(int) {}, nil, zap.NewNop())
	sub.handle(syscall.SIGPIPE)
	sub.handle(syscall.SIGHUP)
	assert.False(t, sub.TakeReceived())
}

func TestSubscriptionDeliversThroughNotifier(t *testing.T) {
	notifier := &fakeNotifier{}
	sub := NewSubscription(mustMapping(t, syscall.SIGUSR1, syscall.SIGUSR2), notifier, func(int) {}, nil, zap.NewNop())
	sub.Start()
	defer sub.Stop()

	notifier.deliver(syscall.SIGUSR1)
	assert.Eventually(t, sub.TakeReceived, time.Second, 5*time.Millisecond)
}

func TestSubscriptionInternalSignalExitsWithStoredCode(t *testing.T) {
	assert := assert.New(t)

	var code atomic.Int32
	code.Store(-1)
	notifier := &fakeNotifier{}
	sub := NewSubscription(mustMapping(t, syscall.SIGABRT, syscall.SIGTERM), notifier, func(c int) {
		code.Store(int32(c))
	}, nil, zap.NewNop())
	sub.Start()
	defer sub.Stop()

	sub.StoreExitCode(7)
	assert.Equal(7, sub.ExitCode())

	// SIGABRT is caught, so the internal signal is SIGINT
	notifier.deliver(syscall.SIGINT)
	assert.Eventually(func() bool { return code.Load() == 7 }, time.Second, 5*time.Millisecond)
	assert.False(sub.TakeReceived())
}
