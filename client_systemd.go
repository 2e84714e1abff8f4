package gwsvc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// systemd unit states the normalizer recognizes
const (
	systemdActiveStateActive    = "active"
	systemdActiveStateReloading = "reloading"
	systemdLoadStateNotFound    = "not-found"
)

// ClientSystemdUser drives the gateway as a systemd user unit via
// `systemctl --user`.
type ClientSystemdUser struct {
	// ServiceName is the unit name without the .service suffix
	ServiceName string
	// SystemctlPath is the systemctl binary (name or absolute path)
	SystemctlPath string
	// Builder writes and removes the unit file
	Builder *BuilderSystemdUser

	run Runner
}

var _ ServiceClient = (*ClientSystemdUser)(nil)

// NewClientSystemdUser creates a systemd-user client from cfg.
func NewClientSystemdUser(cfg *Config) (*ClientSystemdUser, error) {
	unitDir, err := DefaultUserUnitDir()
	if err != nil {
		return nil, err
	}
	name := cfg.ServiceName()
	return &ClientSystemdUser{
		ServiceName:   name,
		SystemctlPath: cfg.SystemctlPath,
		Builder:       &BuilderSystemdUser{ServiceName: name, UnitDir: unitDir},
		run:           NewExecRunner(),
	}, nil
}

// WithUnitDir overrides where unit files are written
func (c *ClientSystemdUser) WithUnitDir(dir string) *ClientSystemdUser {
	c.Builder.UnitDir = dir
	return c
}

// WithRunner substitutes the CLI runner
func (c *ClientSystemdUser) WithRunner(r Runner) *ClientSystemdUser {
	c.run = r
	return c
}

// Backend returns the adapter identity
func (c *ClientSystemdUser) Backend() Backend {
	return BackendSystemdUser
}

// unitName returns the full unit name including suffix
func (c *ClientSystemdUser) unitName() string {
	return c.ServiceName + ".service"
}

// execUser runs `systemctl --user` with args
func (c *ClientSystemdUser) execUser(ctx context.Context, args ...string) (ExecResult, error) {
	full := append([]string{"--user"}, args...)
	return c.run.Run(ctx, Command{Name: c.SystemctlPath, Args: full})
}

// Available reports whether the per-user service manager is reachable.
// `is-system-running` exits nonzero for a degraded manager but still
// prints a state when the user bus answered; only a bus connection
// failure leaves stdout empty.
func (c *ClientSystemdUser) Available(ctx context.Context) bool {
	if _, err := c.run.LookPath(c.SystemctlPath); err != nil {
		return false
	}
	res, err := c.execUser(ctx, "is-system-running")
	if err != nil {
		return false
	}
	state := strings.TrimSpace(res.Stdout)
	return state != "" && state != "offline"
}

// Install writes the unit file and enables it. Any previous registration
// with the same name is cleared first, so repeated installs converge on
// the same state instead of failing on a duplicate unit.
func (c *ClientSystemdUser) Install(ctx context.Context, spec InstallSpec) error {
	if err := spec.validate(BackendSystemdUser, 1); err != nil {
		return err
	}
	if _, err := c.run.LookPath(c.SystemctlPath); err != nil {
		return &ToolUnavailableError{Backend: BackendSystemdUser, Tool: c.SystemctlPath, Err: err}
	}

	// Idempotent re-install: clear any previous registration first.
	_, _ = c.execUser(ctx, "disable", "--now", c.unitName())
	_ = c.Builder.Remove()

	if _, err := c.Builder.Write(spec); err != nil {
		return &InstallError{Backend: BackendSystemdUser, Step: "write-unit", Err: err}
	}

	res, err := c.execUser(ctx, "daemon-reload")
	if err != nil {
		return &InstallError{Backend: BackendSystemdUser, Step: "daemon-reload", Err: err}
	}
	if !res.OK() {
		return &InstallError{Backend: BackendSystemdUser, Step: "daemon-reload", Output: res.Output(), Code: res.Code}
	}

	// enable --now starts the unit and persists it across logins.
	res, err = c.execUser(ctx, "enable", "--now", c.unitName())
	if err != nil {
		return &InstallError{Backend: BackendSystemdUser, Step: "enable", Err: err}
	}
	if !res.OK() {
		return &InstallError{Backend: BackendSystemdUser, Step: "enable", Output: res.Output(), Code: res.Code}
	}
	return nil
}

// Uninstall disables the unit and removes its file, best-effort. A unit
// that was never installed is success.
func (c *ClientSystemdUser) Uninstall(ctx context.Context) error {
	if _, err := c.run.LookPath(c.SystemctlPath); err != nil {
		// Without the tool there is no registration to clear; the unit
		// file may still exist from an earlier install.
		return c.Builder.Remove()
	}

	// Nonzero exits here mean "no such unit" and are swallowed.
	if _, err := c.execUser(ctx, "disable", "--now", c.unitName()); err != nil {
		return err
	}
	if err := c.Builder.Remove(); err != nil {
		return err
	}
	if _, err := c.execUser(ctx, "daemon-reload"); err != nil {
		return err
	}
	return nil
}

// Stop stops the unit
func (c *ClientSystemdUser) Stop(ctx context.Context) error {
	return c.command(ctx, OpStop, "stop")
}

// Restart restarts the unit
func (c *ClientSystemdUser) Restart(ctx context.Context) error {
	return c.command(ctx, OpRestart, "restart")
}

// command forwards a native stop/restart primitive
func (c *ClientSystemdUser) command(ctx context.Context, op Operation, verb string) error {
	if _, err := c.run.LookPath(c.SystemctlPath); err != nil {
		return &ToolUnavailableError{Backend: BackendSystemdUser, Tool: c.SystemctlPath, Err: err}
	}
	res, err := c.execUser(ctx, verb, c.unitName())
	if err != nil {
		return &CommandError{Backend: BackendSystemdUser, Op: op, Err: err}
	}
	if !res.OK() {
		return &CommandError{Backend: BackendSystemdUser, Op: op, Output: res.Output(), Code: res.Code}
	}
	return nil
}

// IsLoaded reports whether the unit is enabled with the user manager
func (c *ClientSystemdUser) IsLoaded(ctx context.Context) bool {
	res, err := c.execUser(ctx, "is-enabled", c.unitName())
	if err != nil {
		return false
	}
	return res.OK()
}

// ReadCommand reconstructs the installed invocation from the unit's
// properties.
func (c *ClientSystemdUser) ReadCommand(ctx context.Context) *CommandSnapshot {
	res, err := c.execUser(ctx, "show", c.unitName(), "--no-page",
		"--property=LoadState,ExecStart,WorkingDirectory,Environment,FragmentPath")
	if err != nil || !res.OK() {
		return nil
	}

	props := parseSystemdProperties(res.Stdout)
	if props["LoadState"] == systemdLoadStateNotFound {
		return nil
	}
	argv := parseExecStartProperty(props["ExecStart"])
	if len(argv) == 0 {
		return nil
	}

	snap := &CommandSnapshot{
		ProgramArguments: argv,
		WorkingDirectory: props["WorkingDirectory"],
		SourcePath:       props["FragmentPath"],
	}
	if env := parseEnvironmentProperty(props["Environment"]); len(env) > 0 {
		snap.Environment = env
	}
	return snap
}

// ReadRuntime queries the unit's state and normalizes it. `systemctl
// show` exits zero even for unknown units (reporting
// LoadState=not-found), so a nonzero exit means the query itself failed.
func (c *ClientSystemdUser) ReadRuntime(ctx context.Context) RuntimeStatus {
	res, err := c.execUser(ctx, "show", c.unitName(), "--no-page",
		"--property=LoadState,ActiveState,SubState,MainPID,ExecMainStatus")
	if err != nil {
		return unknownStatus(fmt.Sprintf("systemctl --user show: %v", err))
	}
	if !res.OK() {
		return unknownStatus(fmt.Sprintf("systemctl --user show: %s", res.Output()))
	}

	props := parseSystemdProperties(res.Stdout)
	if props["LoadState"] == systemdLoadStateNotFound {
		return missingUnitStatus()
	}

	state := props["SubState"]
	if state == "" {
		state = props["ActiveState"]
	}

	var lastExit *int
	if v, err := strconv.Atoi(props["ExecMainStatus"]); err == nil {
		lastExit = exitStatus(v)
	}

	switch props["ActiveState"] {
	case systemdActiveStateActive, systemdActiveStateReloading:
		st := runningStatus(state, 0)
		if pid, err := strconv.Atoi(props["MainPID"]); err == nil && pid > 0 {
			st.PID = pid
		}
		st.LastExitStatus = lastExit
		return st
	default:
		st := stoppedStatus(state)
		st.LastExitStatus = lastExit
		return st
	}
}

// parseSystemdProperties parses `systemctl show` key=value output
func parseSystemdProperties(output string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			props[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return props
}

// parseExecStartProperty extracts the argv from systemd's structured
// ExecStart format:
//
//	{ path=/usr/bin/node ; argv[]=/usr/bin/node /app/gw.js ; ignore_errors=no ; ... }
//
// Plain values (older systemd prints the bare command line) pass through
// the same field split.
func parseExecStartProperty(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}") {
		inner := value[1 : len(value)-1]
		command := ""
		for _, part := range strings.Split(inner, ";") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(part, "argv[]=") {
				command = strings.TrimPrefix(part, "argv[]=")
				break
			}
			if strings.HasPrefix(part, "path=") && command == "" {
				command = strings.TrimPrefix(part, "path=")
			}
		}
		value = command
	}
	return splitCommandLine(value)
}

// parseEnvironmentProperty parses the Environment= property, a
// space-separated list of possibly-quoted KEY=VALUE assignments.
func parseEnvironmentProperty(value string) map[string]string {
	fields := splitCommandLine(value)
	if len(fields) == 0 {
		return nil
	}
	env := make(map[string]string, len(fields))
	for _, field := range fields {
		parts := strings.SplitN(field, "=", 2)
		if len(parts) == 2 && parts[0] != "" {
			env[parts[0]] = parts[1]
		}
	}
	if len(env) == 0 {
		return nil
	}
	return env
}
