//go:build linux || darwin
// +build linux darwin

// Package signals resolves user supplied signal identifiers and describes how a
// caught signal is remapped before it reaches the supervised child.
package signals

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

var (
	// ErrUnknownSignal is returned when a name or number does not identify a signal.
	ErrUnknownSignal = errors.New("unknown signal")

	// ErrUncatchable is returned when the signal to catch cannot be handled by a process.
	ErrUncatchable = errors.New("signal cannot be caught")

	// ErrReserved is returned for a signal to catch that the Go runtime raises
	// on its own process.
	ErrReserved = errors.New("signal is reserved by the runtime")
)

// Parse resolves a symbolic name (SIGTERM, TERM, sigterm) or a decimal
// number (15) into a signal.
func Parse(value string) (syscall.Signal, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrUnknownSignal)
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 || n > maxSignal {
			return 0, fmt.Errorf("%w: %d", ErrUnknownSignal, n)
		}
		return syscall.Signal(n), nil
	}

	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}

	sig := unix.SignalNum(name)
	if sig == 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSignal, value)
	}
	return sig, nil
}

// Name returns the canonical SIGXXX name of sig.
func Name(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return fmt.Sprintf("signal %d", int(sig))
}

// Supported lists every signal name known on this platform, ordered by number.
func Supported() []string {
	type entry struct {
		num  int
		name string
	}

	entries := make([]entry, 0, maxSignal)
	for n := 1; n <= maxSignal; n++ {
		if name := unix.SignalName(syscall.Signal(n)); name != "" {
			entries = append(entries, entry{num: n, name: name})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].num < entries[j].num
	})

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.name)
	}
	return names
}
