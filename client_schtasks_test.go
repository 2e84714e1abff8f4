package gwsvc

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
)

func newTestSchtasksClient(t *testing.T, fake *fakeRunner) *ClientSchtasks {
	t.Helper()
	c, err := NewClientSchtasks(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return c.WithXMLDir(t.TempDir()).WithRunner(fake)
}

func TestSchtasksAvailable(t *testing.T) {
	fake := newFakeRunner(nil)
	c := newTestSchtasksClient(t, fake)
	if !c.Available(context.Background()) {
		t.Error("Available should be true when schtasks is on PATH")
	}

	fake.markMissing("schtasks")
	if c.Available(context.Background()) {
		t.Error("Available should be false without schtasks")
	}
}

func TestSchtasksInstall(t *testing.T) {
	fake := newFakeRunner(nil)
	c := newTestSchtasksClient(t, fake)

	spec := InstallSpec{
		ProgramArguments: []string{`C:\nodejs\node.exe`, `C:\app\gateway.js`},
		WorkingDirectory: `C:\app`,
	}

	if err := c.Install(context.Background(), spec); err != nil {
		t.Fatalf("Install: %v", err)
	}

	want := []string{
		"schtasks /End /TN GwsvcGateway",
		"schtasks /Delete /TN GwsvcGateway /F",
		"schtasks /Create /TN GwsvcGateway /XML " + c.Builder.XMLPath() + " /F",
		"schtasks /Run /TN GwsvcGateway",
	}
	if got := fake.callLines(); !reflect.DeepEqual(got, want) {
		t.Errorf("call sequence = %v, want %v", got, want)
	}

	snap, err := decodeTaskXML(mustReadFile(t, c.Builder.XMLPath()))
	if err != nil {
		t.Fatalf("written definition unreadable: %v", err)
	}
	if !reflect.DeepEqual(snap.ProgramArguments, spec.ProgramArguments) {
		t.Errorf("ProgramArguments = %v, want %v", snap.ProgramArguments, spec.ProgramArguments)
	}
}

func TestSchtasksInstallPriorTaskFailuresIgnored(t *testing.T) {
	fake := newFakeRunner(scriptByVerb(map[string]ExecResult{
		"/End":    {Stderr: "ERROR: The system cannot find the file specified.\n", Code: 1},
		"/Delete": {Stderr: "ERROR: The system cannot find the file specified.\n", Code: 1},
	}))
	c := newTestSchtasksClient(t, fake)

	if err := c.Install(context.Background(), InstallSpec{ProgramArguments: []string{"gw.exe"}}); err != nil {
		t.Fatalf("Install should ignore cleanup failures for an absent task: %v", err)
	}
}

func TestSchtasksInstallCreateFails(t *testing.T) {
	fake := newFakeRunner(scriptByVerb(map[string]ExecResult{
		"/Create": {Stderr: "ERROR: Access is denied.\n", Code: 1},
	}))
	c := newTestSchtasksClient(t, fake)

	err := c.Install(context.Background(), InstallSpec{ProgramArguments: []string{"gw.exe"}})

	var ie *InstallError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *InstallError", err)
	}
	if ie.Step != "create" {
		t.Errorf("Step = %q, want %q", ie.Step, "create")
	}
	if ie.Output != "ERROR: Access is denied." {
		t.Errorf("Output = %q", ie.Output)
	}
}

func TestSchtasksInstallRunFails(t *testing.T) {
	fake := newFakeRunner(scriptByVerb(map[string]ExecResult{
		"/Run": {Stderr: "ERROR: The task cannot be started.\n", Code: 1},
	}))
	c := newTestSchtasksClient(t, fake)

	err := c.Install(context.Background(), InstallSpec{ProgramArguments: []string{"gw.exe"}})

	var ie *InstallError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *InstallError", err)
	}
	if ie.Step != "run" {
		t.Errorf("Step = %q, want %q", ie.Step, "run")
	}
}

func TestSchtasksUninstall(t *testing.T) {
	fake := newFakeRunner(scriptByVerb(map[string]ExecResult{
		"/End":    {Stderr: "ERROR: The specified task is not running.\n", Code: 1},
		"/Delete": {Stderr: "ERROR: The system cannot find the file specified.\n", Code: 1},
	}))
	c := newTestSchtasksClient(t, fake)

	if _, err := c.Builder.Write(InstallSpec{ProgramArguments: []string{"gw.exe"}}); err != nil {
		t.Fatal(err)
	}

	if err := c.Uninstall(context.Background()); err != nil {
		t.Fatalf("Uninstall should swallow a missing task: %v", err)
	}
	if _, err := os.Stat(c.Builder.XMLPath()); !os.IsNotExist(err) {
		t.Error("kept definition should be removed")
	}
}

func TestSchtasksUninstallRealFailure(t *testing.T) {
	fake := newFakeRunner(scriptByVerb(map[string]ExecResult{
		"/Delete": {Stderr: "ERROR: Access is denied.\n", Code: 1},
	}))
	c := newTestSchtasksClient(t, fake)

	err := c.Uninstall(context.Background())

	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CommandError for a denied delete", err)
	}
	if ce.Op != OpUninstall {
		t.Errorf("Op = %v, want OpUninstall", ce.Op)
	}
}

func TestSchtasksStop(t *testing.T) {
	fake := newFakeRunner(nil)
	c := newTestSchtasksClient(t, fake)

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := fake.lastCall().String(); got != "schtasks /End /TN GwsvcGateway" {
		t.Errorf("command = %q", got)
	}
}

func TestSchtasksRestart(t *testing.T) {
	fake := newFakeRunner(scriptByVerb(map[string]ExecResult{
		// The instance is not running; /End still reports an error.
		"/End": {Stderr: "ERROR: The specified task is not running.\n", Code: 1},
	}))
	c := newTestSchtasksClient(t, fake)

	if err := c.Restart(context.Background()); err != nil {
		t.Fatalf("Restart should tolerate a stopped instance: %v", err)
	}

	lines := fake.callLines()
	if len(lines) != 2 || !strings.Contains(lines[1], "/Run") {
		t.Errorf("call sequence = %v, want end then run", lines)
	}
}

func TestSchtasksIsLoaded(t *testing.T) {
	fake := newFakeRunner(nil)
	c := newTestSchtasksClient(t, fake)

	if !c.IsLoaded(context.Background()) {
		t.Error("IsLoaded should be true when the query succeeds")
	}

	fake.setHandler(scriptByVerb(map[string]ExecResult{
		"/Query": {Stderr: "ERROR: The system cannot find the file specified.\n", Code: 1},
	}))
	if c.IsLoaded(context.Background()) {
		t.Error("IsLoaded should be false for an unregistered task")
	}
}

func TestSchtasksReadCommandFromKeptFile(t *testing.T) {
	fake := newFakeRunner(nil)
	c := newTestSchtasksClient(t, fake)

	spec := InstallSpec{
		ProgramArguments: []string{`C:\nodejs\node.exe`, `C:\app\gateway.js`, "--port", "3000"},
		WorkingDirectory: `C:\app`,
	}
	if _, err := c.Builder.Write(spec); err != nil {
		t.Fatal(err)
	}

	snap := c.ReadCommand(context.Background())
	if snap == nil {
		t.Fatal("ReadCommand returned nil with a kept definition present")
	}
	if !reflect.DeepEqual(snap.ProgramArguments, spec.ProgramArguments) {
		t.Errorf("ProgramArguments = %v, want %v", snap.ProgramArguments, spec.ProgramArguments)
	}
	if snap.SourcePath != c.Builder.XMLPath() {
		t.Errorf("SourcePath = %q, want %q", snap.SourcePath, c.Builder.XMLPath())
	}
	if fake.callCount() != 0 {
		t.Error("kept file read should not shell out")
	}
}

func TestSchtasksReadCommandLiveExport(t *testing.T) {
	exported := `<?xml version="1.0" encoding="UTF-16"?>
<Task version="1.2" xmlns="http://schemas.microsoft.com/windows/2004/02/mit/task">
  <Actions Context="Author">
    <Exec>
      <Command>C:\gw\gateway.exe</Command>
      <Arguments>--run</Arguments>
    </Exec>
  </Actions>
</Task>
`
	fake := newFakeRunner(scriptByVerb(map[string]ExecResult{
		"/XML": {Stdout: exported},
	}))
	c := newTestSchtasksClient(t, fake)

	// No kept file; the client falls back to exporting the live task.
	snap := c.ReadCommand(context.Background())
	if snap == nil {
		t.Fatal("ReadCommand returned nil despite a live export")
	}

	want := []string{`C:\gw\gateway.exe`, "--run"}
	if !reflect.DeepEqual(snap.ProgramArguments, want) {
		t.Errorf("ProgramArguments = %v, want %v", snap.ProgramArguments, want)
	}
	if snap.SourcePath != "" {
		t.Errorf("SourcePath = %q, want empty for a live export", snap.SourcePath)
	}
}

func TestSchtasksReadCommandAbsent(t *testing.T) {
	fake := newFakeRunner(scriptByVerb(map[string]ExecResult{
		"/Query": {Stderr: "ERROR: The system cannot find the file specified.\n", Code: 1},
	}))
	c := newTestSchtasksClient(t, fake)

	if snap := c.ReadCommand(context.Background()); snap != nil {
		t.Errorf("ReadCommand = %+v, want nil", snap)
	}
}

const schtasksCSVRunning = `"HostName","TaskName","Next Run Time","Status","Logon Mode","Last Run Time","Last Result","Author","Task To Run"
"DESKTOP","\GwsvcGateway","N/A","Running","Interactive only","25/08/2026 09:00:00","0","user","C:\gw\gateway.exe"
`

const schtasksCSVReady = `"HostName","TaskName","Next Run Time","Status","Logon Mode","Last Run Time","Last Result","Author","Task To Run"
"DESKTOP","\GwsvcGateway","N/A","Ready","Interactive only","25/08/2026 09:00:00","137","user","C:\gw\gateway.exe"
`

func TestSchtasksReadRuntime(t *testing.T) {
	tests := []struct {
		name       string
		result     ExecResult
		spawn      error
		wantStatus Status
		wantState  string
		wantExit   *int
		missing    bool
		detailHas  string
	}{
		{
			name:       "running task",
			result:     ExecResult{Stdout: schtasksCSVRunning},
			wantStatus: StatusRunning,
			wantState:  "Running",
			wantExit:   exitStatus(0),
		},
		{
			name:       "ready task with last result",
			result:     ExecResult{Stdout: schtasksCSVReady},
			wantStatus: StatusStopped,
			wantState:  "Ready",
			wantExit:   exitStatus(137),
		},
		{
			name:       "task not registered",
			result:     ExecResult{Stderr: "ERROR: The system cannot find the file specified.\n", Code: 1},
			wantStatus: StatusStopped,
			missing:    true,
		},
		{
			name:       "other failure degrades to unknown",
			result:     ExecResult{Stderr: "ERROR: Access is denied.\n", Code: 1},
			wantStatus: StatusUnknown,
			detailHas:  "Access is denied",
		},
		{
			name:       "header only output",
			result:     ExecResult{Stdout: `"HostName","TaskName","Status"` + "\n"},
			wantStatus: StatusUnknown,
			detailHas:  "no data rows",
		},
		{
			name: "localized header degrades to unknown",
			result: ExecResult{Stdout: `"Hostname","Aufgabenname","Stat"` + "\n" +
				`"DESKTOP","\GwsvcGateway","Bereit"` + "\n"},
			wantStatus: StatusUnknown,
			detailHas:  "no Status column",
		},
		{
			name:       "spawn failure",
			spawn:      errors.New("fork failed"),
			wantStatus: StatusUnknown,
			detailHas:  "fork failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeRunner(func(cmd Command) (ExecResult, error) {
				return tt.result, tt.spawn
			})
			c := newTestSchtasksClient(t, fake)

			st := c.ReadRuntime(context.Background())

			if st.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", st.Status, tt.wantStatus)
			}
			if st.State != tt.wantState {
				t.Errorf("State = %q, want %q", st.State, tt.wantState)
			}
			if st.PID != 0 {
				t.Errorf("PID = %d, the scheduler does not expose one", st.PID)
			}
			if st.MissingUnit != tt.missing {
				t.Errorf("MissingUnit = %v, want %v", st.MissingUnit, tt.missing)
			}
			if tt.wantExit == nil {
				if st.LastExitStatus != nil {
					t.Errorf("LastExitStatus = %v, want nil", *st.LastExitStatus)
				}
			} else if st.LastExitStatus == nil || *st.LastExitStatus != *tt.wantExit {
				t.Errorf("LastExitStatus = %v, want %v", st.LastExitStatus, *tt.wantExit)
			}
			if tt.detailHas != "" && !strings.Contains(st.Detail, tt.detailHas) {
				t.Errorf("Detail = %q, want substring %q", st.Detail, tt.detailHas)
			}
		})
	}
}

func TestParseSchtasksCSV(t *testing.T) {
	row, err := parseSchtasksCSV(schtasksCSVRunning)
	if err != nil {
		t.Fatalf("parseSchtasksCSV: %v", err)
	}
	if row["Status"] != "Running" {
		t.Errorf("Status = %q", row["Status"])
	}
	if row["TaskName"] != `\GwsvcGateway` {
		t.Errorf("TaskName = %q", row["TaskName"])
	}
	if row["Last Result"] != "0" {
		t.Errorf("Last Result = %q", row["Last Result"])
	}
}

func TestIsSchtasksMissingTask(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"ERROR: The system cannot find the file specified.", true},
		{"ERROR: The system cannot find the path specified.", true},
		{"ERROR: Access is denied.", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isSchtasksMissingTask(tt.output); got != tt.want {
			t.Errorf("isSchtasksMissingTask(%q) = %v, want %v", tt.output, got, tt.want)
		}
	}
}
