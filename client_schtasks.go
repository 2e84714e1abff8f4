package gwsvc

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Scheduled task status values as reported by schtasks /Query.
const (
	schtasksStatusRunning = "Running"
)

// ClientSchtasks manages the gateway as a Windows scheduled task.
// Every operation shells out to schtasks.exe.
type ClientSchtasks struct {
	// TaskName is the scheduled task name
	TaskName string
	// SchtasksPath is the path to the schtasks binary
	SchtasksPath string
	// Builder renders and stores the task definition
	Builder *BuilderSchtasks
	run     Runner
}

var _ ServiceClient = (*ClientSchtasks)(nil)

// NewClientSchtasks creates a Scheduled Tasks client for the
// configured gateway task name.
func NewClientSchtasks(cfg *Config) (*ClientSchtasks, error) {
	dir, err := DefaultTaskXMLDir()
	if err != nil {
		return nil, err
	}
	name := cfg.TaskName()
	return &ClientSchtasks{
		TaskName:     name,
		SchtasksPath: cfg.SchtasksPath,
		Builder:      &BuilderSchtasks{TaskName: name, XMLDir: dir, Description: cfg.Description},
		run:          NewExecRunner(),
	}, nil
}

// WithXMLDir overrides where task definitions are kept.
func (c *ClientSchtasks) WithXMLDir(dir string) *ClientSchtasks {
	c.Builder.XMLDir = dir
	return c
}

// WithRunner overrides how schtasks is invoked. Used in tests.
func (c *ClientSchtasks) WithRunner(r Runner) *ClientSchtasks {
	c.run = r
	return c
}

// Backend returns BackendSchtasks.
func (c *ClientSchtasks) Backend() Backend { return BackendSchtasks }

func (c *ClientSchtasks) schtasks(ctx context.Context, args ...string) (ExecResult, error) {
	return c.run.Run(ctx, Command{Name: c.SchtasksPath, Args: args})
}

// Available reports whether schtasks is on PATH.
func (c *ClientSchtasks) Available(ctx context.Context) bool {
	_, err := c.run.LookPath(c.SchtasksPath)
	return err == nil
}

// Install registers the gateway task and starts it. Any previous task
// of the same name is ended and deleted first, so repeated installs
// converge on the same state.
func (c *ClientSchtasks) Install(ctx context.Context, spec InstallSpec) error {
	if err := spec.validate(BackendSchtasks, 1); err != nil {
		return err
	}
	if _, err := c.run.LookPath(c.SchtasksPath); err != nil {
		return &ToolUnavailableError{Backend: BackendSchtasks, Tool: c.SchtasksPath, Err: err}
	}

	// End and delete any prior incarnation; both report nonzero for
	// tasks that do not exist, which is fine.
	_, _ = c.schtasks(ctx, "/End", "/TN", c.TaskName)
	_, _ = c.schtasks(ctx, "/Delete", "/TN", c.TaskName, "/F")

	path, err := c.Builder.Write(spec)
	if err != nil {
		return &InstallError{Backend: BackendSchtasks, Step: "write-xml", Err: err}
	}

	res, err := c.schtasks(ctx, "/Create", "/TN", c.TaskName, "/XML", path, "/F")
	if err != nil {
		return &InstallError{Backend: BackendSchtasks, Step: "create", Err: err}
	}
	if !res.OK() {
		return &InstallError{Backend: BackendSchtasks, Step: "create", Output: res.Output(), Code: res.Code}
	}

	res, err = c.schtasks(ctx, "/Run", "/TN", c.TaskName)
	if err != nil {
		return &InstallError{Backend: BackendSchtasks, Step: "run", Err: err}
	}
	if !res.OK() {
		return &InstallError{Backend: BackendSchtasks, Step: "run", Output: res.Output(), Code: res.Code}
	}
	return nil
}

// Uninstall ends and deletes the gateway task and removes the kept
// definition. A task the scheduler does not know is not an error.
func (c *ClientSchtasks) Uninstall(ctx context.Context) error {
	if _, err := c.run.LookPath(c.SchtasksPath); err != nil {
		return c.Builder.Remove()
	}
	_, _ = c.schtasks(ctx, "/End", "/TN", c.TaskName)

	res, err := c.schtasks(ctx, "/Delete", "/TN", c.TaskName, "/F")
	if err != nil {
		return err
	}
	if !res.OK() && !isSchtasksMissingTask(res.Output()) {
		return &CommandError{Backend: BackendSchtasks, Op: OpUninstall, Output: res.Output(), Code: res.Code}
	}
	return c.Builder.Remove()
}

// Stop ends the running task instance, keeping the task registered.
func (c *ClientSchtasks) Stop(ctx context.Context) error {
	if _, err := c.run.LookPath(c.SchtasksPath); err != nil {
		return &ToolUnavailableError{Backend: BackendSchtasks, Tool: c.SchtasksPath, Err: err}
	}
	res, err := c.schtasks(ctx, "/End", "/TN", c.TaskName)
	if err != nil {
		return err
	}
	if !res.OK() {
		return &CommandError{Backend: BackendSchtasks, Op: OpStop, Output: res.Output(), Code: res.Code}
	}
	return nil
}

// Restart ends the running instance and starts a fresh one. The end
// step is best-effort: a task that is not currently running still
// restarts cleanly.
func (c *ClientSchtasks) Restart(ctx context.Context) error {
	if _, err := c.run.LookPath(c.SchtasksPath); err != nil {
		return &ToolUnavailableError{Backend: BackendSchtasks, Tool: c.SchtasksPath, Err: err}
	}
	_, _ = c.schtasks(ctx, "/End", "/TN", c.TaskName)

	res, err := c.schtasks(ctx, "/Run", "/TN", c.TaskName)
	if err != nil {
		return err
	}
	if !res.OK() {
		return &CommandError{Backend: BackendSchtasks, Op: OpRestart, Output: res.Output(), Code: res.Code}
	}
	return nil
}

// IsLoaded reports whether the scheduler knows the task, whatever its
// run state.
func (c *ClientSchtasks) IsLoaded(ctx context.Context) bool {
	res, err := c.schtasks(ctx, "/Query", "/TN", c.TaskName)
	return err == nil && res.OK()
}

// ReadCommand reads the kept task definition back, falling back to a
// live XML export when the kept file is gone (for example after the
// task was registered by an older installation on another path).
func (c *ClientSchtasks) ReadCommand(ctx context.Context) *CommandSnapshot {
	path := c.Builder.XMLPath()
	if data, err := os.ReadFile(path); err == nil {
		if snap, err := decodeTaskXML(data); err == nil {
			snap.SourcePath = path
			return snap
		}
	}

	res, err := c.schtasks(ctx, "/Query", "/TN", c.TaskName, "/XML")
	if err != nil || !res.OK() {
		return nil
	}
	snap, err := decodeTaskXML([]byte(res.Stdout))
	if err != nil {
		return nil
	}
	return snap
}

// ReadRuntime reports the task's scheduler status. It never fails:
// query errors degrade to StatusUnknown and an unknown task name maps
// to the missing-unit stopped state. The scheduler does not expose the
// process ID, so PID stays zero.
func (c *ClientSchtasks) ReadRuntime(ctx context.Context) RuntimeStatus {
	res, err := c.schtasks(ctx, "/Query", "/TN", c.TaskName, "/V", "/FO", "CSV")
	if err != nil {
		return unknownStatus(err.Error())
	}
	if !res.OK() {
		if isSchtasksMissingTask(res.Output()) {
			return missingUnitStatus()
		}
		return unknownStatus(res.Output())
	}

	row, err := parseSchtasksCSV(res.Stdout)
	if err != nil {
		return unknownStatus(err.Error())
	}

	// Column names are English; a localized install yields no Status
	// column and reports an unknown state rather than a wrong one.
	state := row["Status"]
	if state == "" {
		return unknownStatus("schtasks query output has no Status column")
	}

	var lastExit *int
	if n, err := strconv.Atoi(strings.TrimSpace(row["Last Result"])); err == nil {
		lastExit = exitStatus(n)
	}

	if state == schtasksStatusRunning {
		st := runningStatus(state, 0)
		st.LastExitStatus = lastExit
		return st
	}
	st := stoppedStatus(state)
	st.LastExitStatus = lastExit
	return st
}

// isSchtasksMissingTask matches schtasks' wording for tasks the
// scheduler has never seen.
func isSchtasksMissingTask(output string) bool {
	return strings.Contains(strings.ToLower(output), "cannot find")
}

// parseSchtasksCSV maps the first data row of verbose CSV query output
// by its header row.
func parseSchtasksCSV(out string) (map[string]string, error) {
	r := csv.NewReader(strings.NewReader(out))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("gwsvc: schtasks query returned no data rows")
	}
	header := rows[0]
	data := rows[1]
	row := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(data) {
			row[name] = data[i]
		}
	}
	return row, nil
}
