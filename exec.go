package gwsvc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// Command describes a single backend CLI invocation.
type Command struct {
	// Name is the binary to run (bare name or absolute path)
	Name string
	// Args are the command-line arguments
	Args []string
	// Env holds extra KEY=VALUE entries appended to the inherited
	// environment; nil inherits unchanged
	Env []string
	// Dir is the working directory; empty inherits the caller's
	Dir string
}

// String returns the invocation as a single display line
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// ExecResult captures the outcome of a finished CLI invocation. A nonzero
// exit code is recorded here rather than surfaced as an error, letting
// each call site decide pass/fail semantics (a nonzero `pm2 describe` or
// `schtasks /Query` just means "not found", not a failure).
type ExecResult struct {
	// Stdout is the captured standard output
	Stdout string
	// Stderr is the captured standard error
	Stderr string
	// Code is the process exit code
	Code int
}

// OK reports whether the tool exited zero
func (r ExecResult) OK() bool {
	return r.Code == 0
}

// Output returns trimmed stderr, falling back to stdout when stderr is
// empty. Install and command failures compose their messages from this.
func (r ExecResult) Output() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// Runner executes backend CLI invocations. The default implementation
// spawns one subprocess per call; tests substitute scripted results.
//
// Run returns an error only for spawn-level failures (binary missing,
// context canceled). A started tool that exits nonzero is reported
// through ExecResult.Code with a nil error.
type Runner interface {
	Run(ctx context.Context, cmd Command) (ExecResult, error)
	LookPath(name string) (string, error)
}

// execRunner is the production Runner backed by os/exec.
type execRunner struct{}

// NewExecRunner returns the default subprocess-backed Runner.
func NewExecRunner() Runner {
	return execRunner{}
}

// Run spawns the command, waits for it, and captures its output. No
// timeout is imposed here; the context carries any deadline the caller
// chose.
func (execRunner) Run(ctx context.Context, c Command) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		// A context-killed process reports an ExitError too; surface the
		// cancellation instead of a fake exit code.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Code = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// LookPath resolves a binary name through PATH.
func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// splitCommandLine splits a command line into fields, honoring double
// quotes and backslash-escaped quotes inside quoted regions. It covers
// the argv strings the backends echo back (systemd ExecStart argv[],
// Environment= assignments, scheduled task Arguments).
func splitCommandLine(line string) []string {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
		started bool
	)
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '\\' && quoted && i+1 < len(line) && (line[i+1] == '"' || line[i+1] == '\\'):
			i++
			current.WriteByte(line[i])
		case ch == '"':
			quoted = !quoted
			started = true
		case (ch == ' ' || ch == '\t') && !quoted:
			if started {
				fields = append(fields, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteByte(ch)
			started = true
		}
	}
	if started {
		fields = append(fields, current.String())
	}
	return fields
}
