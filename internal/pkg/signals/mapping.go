//go:build linux || darwin
// +build linux darwin

package signals

import (
	"fmt"
	"syscall"
)

// Mapping pairs the signal caught by the supervisor with the one delivered to
// the child. Internal is a private signal used only by the supervisor to end
// itself; it never equals From.
type Mapping struct {
	From     syscall.Signal
	To       syscall.Signal
	Internal syscall.Signal
}

// NewMapping validates from and to and derives the internal signal.
func NewMapping(from, to syscall.Signal) (Mapping, error) {
	if from <= 0 {
		return Mapping{}, fmt.Errorf("%w: from %d", ErrUnknownSignal, int(from))
	}
	if to <= 0 {
		return Mapping{}, fmt.Errorf("%w: to %d", ErrUnknownSignal, int(to))
	}
	if from == syscall.SIGKILL || from == syscall.SIGSTOP {
		return Mapping{}, fmt.Errorf("%w: %s", ErrUncatchable, Name(from))
	}
	// goroutine preemption
	if from == syscall.SIGURG {
		return Mapping{}, fmt.Errorf("%w: %s", ErrReserved, Name(from))
	}

	return Mapping{
		From:     from,
		To:       to,
		Internal: internalFor(from),
	}, nil
}

// ParseMapping is NewMapping over textual identifiers.
func ParseMapping(from, to string) (Mapping, error) {
	f, err := Parse(from)
	if err != nil {
		return Mapping{}, fmt.Errorf("parse --from: %w", err)
	}

	t, err := Parse(to)
	if err != nil {
		return Mapping{}, fmt.Errorf("parse --to: %w", err)
	}
	return NewMapping(f, t)
}

func internalFor(from syscall.Signal) syscall.Signal {
	if from == syscall.SIGABRT {
		return syscall.SIGINT
	}
	return syscall.SIGABRT
}

// String implements stringer interface
func (m Mapping) String() string {
	return fmt.Sprintf("%s->%s", Name(m.From), Name(m.To))
}
