package gwsvc

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// launchd job states as reported by launchctl print.
const (
	launchdStateRunning = "running"
)

// ClientLaunchd manages the gateway as a launchd user agent. Every
// operation shells out to launchctl against the gui domain of the
// current user.
type ClientLaunchd struct {
	// Label is the launchd job label
	Label string
	// LaunchctlPath is the path to the launchctl binary
	LaunchctlPath string
	// Builder renders and installs the job definition
	Builder *BuilderLaunchd
	run     Runner
}

var _ ServiceClient = (*ClientLaunchd)(nil)

// NewClientLaunchd creates a launchd client for the configured gateway
// label.
func NewClientLaunchd(cfg *Config) (*ClientLaunchd, error) {
	dir, err := DefaultLaunchAgentsDir()
	if err != nil {
		return nil, err
	}
	label := cfg.LaunchdLabel()
	return &ClientLaunchd{
		Label:         label,
		LaunchctlPath: cfg.LaunchctlPath,
		Builder:       &BuilderLaunchd{Label: label, PlistDir: dir},
		run:           NewExecRunner(),
	}, nil
}

// WithPlistDir overrides the LaunchAgents directory.
func (c *ClientLaunchd) WithPlistDir(dir string) *ClientLaunchd {
	c.Builder.PlistDir = dir
	return c
}

// WithRunner overrides how launchctl is invoked. Used in tests.
func (c *ClientLaunchd) WithRunner(r Runner) *ClientLaunchd {
	c.run = r
	return c
}

// Backend returns BackendLaunchd.
func (c *ClientLaunchd) Backend() Backend { return BackendLaunchd }

// domainTarget is the per-user gui domain launchctl operates on.
func (c *ClientLaunchd) domainTarget() string {
	return fmt.Sprintf("gui/%d", os.Getuid())
}

func (c *ClientLaunchd) serviceTarget() string {
	return c.domainTarget() + "/" + c.Label
}

func (c *ClientLaunchd) launchctl(ctx context.Context, args ...string) (ExecResult, error) {
	return c.run.Run(ctx, Command{Name: c.LaunchctlPath, Args: args})
}

// Available reports whether launchctl is on PATH.
func (c *ClientLaunchd) Available(ctx context.Context) bool {
	_, err := c.run.LookPath(c.LaunchctlPath)
	return err == nil
}

// Install registers the gateway agent. Any previous registration is
// booted out first, then the plist is rewritten and bootstrapped, so
// repeated installs converge on the same state.
func (c *ClientLaunchd) Install(ctx context.Context, spec InstallSpec) error {
	if err := spec.validate(BackendLaunchd, 1); err != nil {
		return err
	}
	if _, err := c.run.LookPath(c.LaunchctlPath); err != nil {
		return &ToolUnavailableError{Backend: BackendLaunchd, Tool: c.LaunchctlPath, Err: err}
	}

	// Boot out any prior incarnation. Failure here usually means the
	// job was not loaded, which is fine.
	_, _ = c.launchctl(ctx, "bootout", c.serviceTarget())

	path, err := c.Builder.Write(spec)
	if err != nil {
		return &InstallError{Backend: BackendLaunchd, Step: "write-plist", Err: err}
	}

	res, err := c.launchctl(ctx, "bootstrap", c.domainTarget(), path)
	if err != nil {
		return &InstallError{Backend: BackendLaunchd, Step: "bootstrap", Err: err}
	}
	if !res.OK() {
		return &InstallError{Backend: BackendLaunchd, Step: "bootstrap", Output: res.Output(), Code: res.Code}
	}

	res, err = c.launchctl(ctx, "enable", c.serviceTarget())
	if err != nil {
		return &InstallError{Backend: BackendLaunchd, Step: "enable", Err: err}
	}
	if !res.OK() {
		return &InstallError{Backend: BackendLaunchd, Step: "enable", Output: res.Output(), Code: res.Code}
	}
	return nil
}

// Uninstall boots the agent out and removes its plist. A job that was
// never loaded is not an error; bootout reports nonzero for
// already-stopped jobs too, so its exit code is ignored.
func (c *ClientLaunchd) Uninstall(ctx context.Context) error {
	if _, err := c.run.LookPath(c.LaunchctlPath); err != nil {
		return c.Builder.Remove()
	}
	if _, err := c.launchctl(ctx, "bootout", c.serviceTarget()); err != nil {
		return err
	}
	return c.Builder.Remove()
}

// Stop boots the agent out of the gui domain without touching its
// plist.
func (c *ClientLaunchd) Stop(ctx context.Context) error {
	if _, err := c.run.LookPath(c.LaunchctlPath); err != nil {
		return &ToolUnavailableError{Backend: BackendLaunchd, Tool: c.LaunchctlPath, Err: err}
	}
	res, err := c.launchctl(ctx, "bootout", c.serviceTarget())
	if err != nil {
		return err
	}
	if !res.OK() {
		return &CommandError{Backend: BackendLaunchd, Op: OpStop, Output: res.Output(), Code: res.Code}
	}
	return nil
}

// Restart kickstarts the agent, bootstrapping it first if it is not
// currently loaded.
func (c *ClientLaunchd) Restart(ctx context.Context) error {
	if _, err := c.run.LookPath(c.LaunchctlPath); err != nil {
		return &ToolUnavailableError{Backend: BackendLaunchd, Tool: c.LaunchctlPath, Err: err}
	}
	if !c.IsLoaded(ctx) {
		res, err := c.launchctl(ctx, "bootstrap", c.domainTarget(), c.Builder.PlistPath())
		if err != nil {
			return err
		}
		if !res.OK() {
			return &CommandError{Backend: BackendLaunchd, Op: OpRestart, Output: res.Output(), Code: res.Code}
		}
	}
	res, err := c.launchctl(ctx, "kickstart", "-k", c.serviceTarget())
	if err != nil {
		return err
	}
	if !res.OK() {
		return &CommandError{Backend: BackendLaunchd, Op: OpRestart, Output: res.Output(), Code: res.Code}
	}
	return nil
}

// IsLoaded reports whether launchd knows the job, whatever its run
// state.
func (c *ClientLaunchd) IsLoaded(ctx context.Context) bool {
	res, err := c.launchctl(ctx, "print", c.serviceTarget())
	return err == nil && res.OK()
}

// ReadCommand reads the installed plist back. Reading launchd's own
// view would require parsing print output; the plist on disk is the
// source of truth we wrote.
func (c *ClientLaunchd) ReadCommand(ctx context.Context) *CommandSnapshot {
	path := c.Builder.PlistPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	snap, err := parsePlist(data)
	if err != nil {
		return nil
	}
	snap.SourcePath = path
	return snap
}

// ReadRuntime inspects the job through launchctl print. It never
// fails: errors degrade to StatusUnknown with the tool's output as
// detail.
func (c *ClientLaunchd) ReadRuntime(ctx context.Context) RuntimeStatus {
	res, err := c.launchctl(ctx, "print", c.serviceTarget())
	if err != nil {
		return unknownStatus(err.Error())
	}
	if !res.OK() {
		if isLaunchdMissingJob(res.Output()) {
			return missingUnitStatus()
		}
		return unknownStatus(res.Output())
	}

	state, pid, lastExit := parseLaunchdPrint(res.Stdout)
	if state == launchdStateRunning {
		st := runningStatus(state, pid)
		st.LastExitStatus = lastExit
		return st
	}
	st := stoppedStatus(state)
	st.LastExitStatus = lastExit
	return st
}

// isLaunchdMissingJob matches launchctl's wording for jobs the domain
// has never seen.
func isLaunchdMissingJob(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "could not find service") ||
		strings.Contains(lower, "no such process")
}

// parseLaunchdPrint scans launchctl print output for the job's state,
// pid, and last exit code. The output is a brace-structured listing of
// "key = value" lines.
func parseLaunchdPrint(out string) (state string, pid int, lastExit *int) {
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "state":
			state = value
		case "pid":
			if n, err := strconv.Atoi(value); err == nil {
				pid = n
			}
		case "last exit code":
			// reads "(never exited)" until the first exit
			if n, err := strconv.Atoi(value); err == nil {
				lastExit = exitStatus(n)
			}
		}
	}
	return state, pid, lastExit
}
