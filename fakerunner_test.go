package gwsvc

import (
	"context"
	"os/exec"
	"strings"
	"sync"
)

// fakeRunner scripts backend CLI behavior for tests. Every Run call is
// recorded for sequence assertions and answered by the handler.
// LookPath succeeds for any tool not explicitly marked missing.
type fakeRunner struct {
	mu      sync.Mutex
	handler func(Command) (ExecResult, error)
	missing map[string]bool
	calls   []Command
}

func newFakeRunner(handler func(Command) (ExecResult, error)) *fakeRunner {
	return &fakeRunner{handler: handler}
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command) (ExecResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	handler := f.handler
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ExecResult{}, err
	}
	if handler == nil {
		return ExecResult{}, nil
	}
	return handler(cmd)
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[name] {
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	return "/usr/bin/" + name, nil
}

// setHandler swaps the scripted behavior mid-test.
func (f *fakeRunner) setHandler(h func(Command) (ExecResult, error)) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

// markMissing removes a tool from the fake PATH.
func (f *fakeRunner) markMissing(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing == nil {
		f.missing = make(map[string]bool)
	}
	f.missing[name] = true
}

// callLines renders each recorded invocation as one space-joined line.
func (f *fakeRunner) callLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		lines = append(lines, c.String())
	}
	return lines
}

// callCount returns how many commands were run.
func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// lastCall returns the most recent invocation, or a zero Command.
func (f *fakeRunner) lastCall() Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return Command{}
	}
	return f.calls[len(f.calls)-1]
}

// reset clears the recorded calls but keeps the handler and PATH state.
func (f *fakeRunner) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// scriptByVerb builds a handler that matches each invocation against
// substring keys and returns the scripted result for the first match.
// Unmatched invocations succeed with empty output.
func scriptByVerb(script map[string]ExecResult) func(Command) (ExecResult, error) {
	return func(cmd Command) (ExecResult, error) {
		line := cmd.String()
		for key, res := range script {
			if strings.Contains(line, key) {
				return res, nil
			}
		}
		return ExecResult{}, nil
	}
}

// containsLine reports whether any recorded call line contains sub.
func containsLine(lines []string, sub string) bool {
	for _, l := range lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}
