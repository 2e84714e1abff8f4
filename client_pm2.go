package gwsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// PM2 process statuses as reported by pm2 jlist.
const (
	pm2StatusOnline = "online"
)

// pm2InterpreterNone is the --interpreter value that makes PM2 run the
// script directly instead of through node.
const pm2InterpreterNone = "none"

// pm2Process is one entry of the pm2 jlist array. Only the fields the
// gateway inspects are decoded.
type pm2Process struct {
	Name   string `json:"name"`
	PID    int    `json:"pid"`
	PM2Env struct {
		Status          string   `json:"status"`
		ExitCode        *int     `json:"exit_code"`
		PmExecPath      string   `json:"pm_exec_path"`
		ExecInterpreter string   `json:"exec_interpreter"`
		Args            []string `json:"args"`
		PmCwd           string   `json:"pm_cwd"`
	} `json:"pm2_env"`
}

// decodePM2List parses pm2 jlist output. When pm2 has to spawn its
// daemon first it prefixes "[PM2] ..." banner lines, so decoding falls
// back to the first line that parses as the JSON array.
func decodePM2List(out string) ([]pm2Process, error) {
	var procs []pm2Process
	if err := json.Unmarshal([]byte(out), &procs); err == nil {
		return procs, nil
	}
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "[") {
			continue
		}
		rest := strings.Join(lines[i:], "\n")
		if err := json.Unmarshal([]byte(rest), &procs); err == nil {
			return procs, nil
		}
	}
	return nil, fmt.Errorf("gwsvc: pm2 jlist output is not a process list")
}

// ClientPM2 manages the gateway as a PM2 process. PM2 identifies
// processes by name, so every operation targets the configured service
// name.
type ClientPM2 struct {
	// ServiceName is the PM2 process name
	ServiceName string
	// PM2Path is the path to the pm2 binary
	PM2Path string
	run     Runner
}

var _ ServiceClient = (*ClientPM2)(nil)

// NewClientPM2 creates a PM2 client for the configured gateway name.
func NewClientPM2(cfg *Config) *ClientPM2 {
	return &ClientPM2{
		ServiceName: cfg.ServiceName(),
		PM2Path:     cfg.PM2Path,
		run:         NewExecRunner(),
	}
}

// WithRunner overrides how pm2 is invoked. Used in tests.
func (c *ClientPM2) WithRunner(r Runner) *ClientPM2 {
	c.run = r
	return c
}

// Backend returns BackendPM2.
func (c *ClientPM2) Backend() Backend { return BackendPM2 }

func (c *ClientPM2) pm2(ctx context.Context, env []string, args ...string) (ExecResult, error) {
	return c.run.Run(ctx, Command{Name: c.PM2Path, Args: args, Env: env})
}

// Available reports whether pm2 is on PATH.
func (c *ClientPM2) Available(ctx context.Context) bool {
	_, err := c.run.LookPath(c.PM2Path)
	return err == nil
}

// Install registers the gateway with PM2 and persists the process list.
// The spec's first argument is the interpreter and the second the
// script; the remainder is passed through after "--". A previous
// process of the same name is deleted first so repeated installs
// converge. A failing "pm2 save" fails the install: without the saved
// dump the process would not survive a daemon restart.
func (c *ClientPM2) Install(ctx context.Context, spec InstallSpec) error {
	if err := spec.validate(BackendPM2, 2); err != nil {
		return err
	}
	if _, err := c.run.LookPath(c.PM2Path); err != nil {
		return &ToolUnavailableError{Backend: BackendPM2, Tool: c.PM2Path, Err: err}
	}

	// Remove any prior registration; "process not found" is fine.
	_, _ = c.pm2(ctx, nil, "delete", c.ServiceName)

	interpreter := spec.ProgramArguments[0]
	script := spec.ProgramArguments[1]
	args := []string{"start", script, "--name", c.ServiceName, "--interpreter", interpreter}
	if spec.WorkingDirectory != "" {
		args = append(args, "--cwd", spec.WorkingDirectory)
	}
	if rest := spec.ProgramArguments[2:]; len(rest) > 0 {
		args = append(args, "--")
		args = append(args, rest...)
	}

	// PM2 records the spawning environment, so pass the extra
	// variables on the start call itself.
	res, err := c.pm2(ctx, spec.environList(), args...)
	if err != nil {
		return &InstallError{Backend: BackendPM2, Step: "start", Err: err}
	}
	if !res.OK() {
		return &InstallError{Backend: BackendPM2, Step: "start", Output: res.Output(), Code: res.Code}
	}

	res, err = c.pm2(ctx, nil, "save")
	if err != nil {
		return &InstallError{Backend: BackendPM2, Step: "save", Err: err}
	}
	if !res.OK() {
		return &InstallError{Backend: BackendPM2, Step: "save", Output: res.Output(), Code: res.Code}
	}
	return nil
}

// Uninstall deletes the gateway process and persists the shrunken list.
// A process PM2 does not know is not an error.
func (c *ClientPM2) Uninstall(ctx context.Context) error {
	if _, err := c.run.LookPath(c.PM2Path); err != nil {
		return nil
	}
	if _, err := c.pm2(ctx, nil, "delete", c.ServiceName); err != nil {
		return err
	}
	// Keep the dump in sync so the deleted process does not
	// resurrect at the next daemon start.
	_, _ = c.pm2(ctx, nil, "save", "--force")
	return nil
}

// Stop stops the gateway process, keeping it registered.
func (c *ClientPM2) Stop(ctx context.Context) error {
	if _, err := c.run.LookPath(c.PM2Path); err != nil {
		return &ToolUnavailableError{Backend: BackendPM2, Tool: c.PM2Path, Err: err}
	}
	res, err := c.pm2(ctx, nil, "stop", c.ServiceName)
	if err != nil {
		return err
	}
	if !res.OK() {
		return &CommandError{Backend: BackendPM2, Op: OpStop, Output: res.Output(), Code: res.Code}
	}
	return nil
}

// Restart restarts the gateway process.
func (c *ClientPM2) Restart(ctx context.Context) error {
	if _, err := c.run.LookPath(c.PM2Path); err != nil {
		return &ToolUnavailableError{Backend: BackendPM2, Tool: c.PM2Path, Err: err}
	}
	res, err := c.pm2(ctx, nil, "restart", c.ServiceName)
	if err != nil {
		return err
	}
	if !res.OK() {
		return &CommandError{Backend: BackendPM2, Op: OpRestart, Output: res.Output(), Code: res.Code}
	}
	return nil
}

// find locates the gateway in the pm2 process list by name.
func (c *ClientPM2) find(ctx context.Context) (*pm2Process, error) {
	res, err := c.pm2(ctx, nil, "jlist")
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("gwsvc: pm2 jlist failed (exit %d): %s", res.Code, res.Output())
	}
	procs, err := decodePM2List(res.Stdout)
	if err != nil {
		return nil, err
	}
	for i := range procs {
		if procs[i].Name == c.ServiceName {
			return &procs[i], nil
		}
	}
	return nil, nil
}

// IsLoaded reports whether PM2 lists the gateway, whatever its run
// state.
func (c *ClientPM2) IsLoaded(ctx context.Context) bool {
	proc, err := c.find(ctx)
	return err == nil && proc != nil
}

// ReadCommand reconstructs the registered invocation from the process
// list. PM2 stores the whole inherited environment rather than the
// variables the install added, so the snapshot leaves Environment
// unset.
func (c *ClientPM2) ReadCommand(ctx context.Context) *CommandSnapshot {
	proc, err := c.find(ctx)
	if err != nil || proc == nil {
		return nil
	}
	var argv []string
	interp := proc.PM2Env.ExecInterpreter
	if interp != "" && interp != pm2InterpreterNone {
		argv = append(argv, interp)
	}
	if proc.PM2Env.PmExecPath != "" {
		argv = append(argv, proc.PM2Env.PmExecPath)
	}
	argv = append(argv, proc.PM2Env.Args...)
	if len(argv) == 0 {
		return nil
	}
	return &CommandSnapshot{
		ProgramArguments: argv,
		WorkingDirectory: proc.PM2Env.PmCwd,
	}
}

// ReadRuntime reports the gateway's PM2 status. It never fails: list
// errors degrade to StatusUnknown and an unknown name maps to the
// missing-unit stopped state.
func (c *ClientPM2) ReadRuntime(ctx context.Context) RuntimeStatus {
	proc, err := c.find(ctx)
	if err != nil {
		return unknownStatus(err.Error())
	}
	if proc == nil {
		return missingUnitStatus()
	}
	if proc.PM2Env.Status == pm2StatusOnline {
		st := runningStatus(proc.PM2Env.Status, proc.PID)
		st.LastExitStatus = proc.PM2Env.ExitCode
		return st
	}
	st := stoppedStatus(proc.PM2Env.Status)
	st.LastExitStatus = proc.PM2Env.ExitCode
	return st
}
