package kinematics

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Process provisions an external process per body.
// Command arguments may reference the body with the {id}, {param}
// and {joint_states} placeholders.
type Process struct {
	command string
	args    []string
}

// NewProcess creates new Process provisioner and returns it.
// It returns error if command is empty.
func NewProcess(command string, args ...string) (*Process, error) {
	if command == "" {
		return nil, errors.New("empty command")
	}

	return &Process{command: command, args: args}, nil
}

// Args returns command arguments expanded for the described body
func (p *Process) Args(desc Description) []string {
	r := strings.NewReplacer(
		"{id}", desc.BodyID,
		"{param}", desc.ParamName,
		"{joint_states}", desc.JointStates,
	)

	args := make([]string, len(p.args))
	for i, a := range p.args {
		args[i] = r.Replace(a)
	}

	return args
}

// ProcessHandle is a handle of a running process
type ProcessHandle struct {
	id  string
	cmd *exec.Cmd
}

// BodyID returns body identity
func (h *ProcessHandle) BodyID() string {
	return h.id
}

// Pid returns process id
func (h *ProcessHandle) Pid() int {
	return h.cmd.Process.Pid
}

// Provision starts the process of the described body
func (p *Process) Provision(ctx context.Context, desc Description) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// the process outlives ctx so it is not bound to it
	cmd := exec.Command(p.command, p.Args(desc)...)
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %s for body %s", p.command, desc.BodyID)
	}

	return &ProcessHandle{id: desc.BodyID, cmd: cmd}, nil
}

// Release kills the process held by h and waits for it to exit
// or for ctx to be done.
func (p *Process) Release(ctx context.Context, h Handle) error {
	ph, ok := h.(*ProcessHandle)
	if !ok {
		return errors.Errorf("unsupported handle %T", h)
	}

	// a process which already exited still has to be reaped
	if err := ph.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Wrapf(err, "kill process %d of body %s", ph.Pid(), ph.id)
	}

	done := make(chan error, 1)
	go func() {
		done <- ph.cmd.Wait()
	}()

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return errors.Wrapf(err, "wait process %d of body %s", ph.Pid(), ph.id)
		}
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "wait process %d of body %s", ph.Pid(), ph.id)
	}
}
