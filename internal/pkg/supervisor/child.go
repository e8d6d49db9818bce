package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ErrSpawn wraps every failure to start the child process.
var ErrSpawn = errors.New("failed to spawn child process")

// Child is a running command whose standard streams are connected to the
// supervisor through pipes. Each stream end is handed to exactly one relay.
type Child struct {
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	cmd *exec.Cmd

	done  chan struct{}
	state *os.ProcessState // set before done is closed
}

// Launch starts command[0] with command[1:] as arguments. The child's
// standard input, output and error are fresh pipes owned by the returned
// Child.
func Launch(command []string) (*Child, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, fmt.Errorf("%w: empty command", ErrSpawn)
	}

	var (
		parentEnds []*os.File
		childEnds  []*os.File
	)
	closeAll := func(files []*os.File) {
		for _, f := range files {
			f.Close()
		}
	}

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrSpawn, err)
	}
	parentEnds = append(parentEnds, stdinW)
	childEnds = append(childEnds, stdinR)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		closeAll(parentEnds)
		closeAll(childEnds)
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSpawn, err)
	}
	parentEnds = append(parentEnds, stdoutR)
	childEnds = append(childEnds, stdoutW)

	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(parentEnds)
		closeAll(childEnds)
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrSpawn, err)
	}
	parentEnds = append(parentEnds, stderrR)
	childEnds = append(childEnds, stderrW)

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()
	// the child holds its own copies now
	closeAll(childEnds)
	if err != nil {
		closeAll(parentEnds)
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	c := &Child{
		Stdin:  stdinW,
		Stdout: stdoutR,
		Stderr: stderrR,
		cmd:    cmd,
		done:   make(chan struct{}),
	}
	go c.wait()
	return c, nil
}

func (c *Child) wait() {
	// the error only repeats what ProcessState says
	_ = c.cmd.Wait()

	c.state = c.cmd.ProcessState
	close(c.done)
}

// Pid returns the child's process identifier.
func (c *Child) Pid() int {
	return c.cmd.Process.Pid
}

// Signal delivers sig to the child. After the child has been reaped it
// returns os.ErrProcessDone instead of signalling a recycled pid.
func (c *Child) Signal(sig os.Signal) error {
	return c.cmd.Process.Signal(sig)
}

// TryWait reports whether the child has terminated without blocking. A child
// ended by a signal reports exit code 0.
func (c *Child) TryWait() (int, bool) {
	select {
	case <-c.done:
	default:
		return 0, false
	}

	return exitCode(c.state), true
}

// Done is closed once the child has terminated.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

func exitCode(state *os.ProcessState) int {
	if state == nil {
		return 0
	}
	if code := state.ExitCode(); code >= 0 {
		return code
	}
	return 0
}
