package gwsvc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"github.com/google/renameio/v2"
)

// taskSchemaVersion is the Task Scheduler schema version the generated
// definitions target.
const taskSchemaVersion = "1.2"

// taskSchemaNamespace is the Task Scheduler XML namespace.
const taskSchemaNamespace = "http://schemas.microsoft.com/windows/2004/02/mit/task"

// taskDefinition is the subset of the Task Scheduler XML schema the
// gateway writes and reads back.
type taskDefinition struct {
	XMLName          xml.Name             `xml:"Task"`
	Version          string               `xml:"version,attr"`
	Namespace        string               `xml:"xmlns,attr"`
	RegistrationInfo taskRegistrationInfo `xml:"RegistrationInfo"`
	Triggers         taskTriggers         `xml:"Triggers"`
	Principals       taskPrincipals       `xml:"Principals"`
	Settings         taskSettings         `xml:"Settings"`
	Actions          taskActions          `xml:"Actions"`
}

type taskRegistrationInfo struct {
	Description string `xml:"Description,omitempty"`
}

type taskTriggers struct {
	LogonTrigger taskLogonTrigger `xml:"LogonTrigger"`
}

type taskLogonTrigger struct {
	Enabled bool `xml:"Enabled"`
}

type taskPrincipals struct {
	Principal taskPrincipal `xml:"Principal"`
}

type taskPrincipal struct {
	ID        string `xml:"id,attr"`
	LogonType string `xml:"LogonType"`
	RunLevel  string `xml:"RunLevel"`
}

type taskSettings struct {
	MultipleInstancesPolicy    string               `xml:"MultipleInstancesPolicy"`
	DisallowStartIfOnBatteries bool                 `xml:"DisallowStartIfOnBatteries"`
	StopIfGoingOnBatteries     bool                 `xml:"StopIfGoingOnBatteries"`
	AllowHardTerminate         bool                 `xml:"AllowHardTerminate"`
	StartWhenAvailable         bool                 `xml:"StartWhenAvailable"`
	AllowStartOnDemand         bool                 `xml:"AllowStartOnDemand"`
	Enabled                    bool                 `xml:"Enabled"`
	Hidden                     bool                 `xml:"Hidden"`
	ExecutionTimeLimit         string               `xml:"ExecutionTimeLimit"`
	RestartOnFailure           taskRestartOnFailure `xml:"RestartOnFailure"`
}

type taskRestartOnFailure struct {
	Interval string `xml:"Interval"`
	Count    int    `xml:"Count"`
}

type taskActions struct {
	Context string   `xml:"Context,attr"`
	Exec    taskExec `xml:"Exec"`
}

type taskExec struct {
	Command          string `xml:"Command"`
	Arguments        string `xml:"Arguments,omitempty"`
	WorkingDirectory string `xml:"WorkingDirectory,omitempty"`
}

// BuilderSchtasks generates Task Scheduler definitions for the gateway.
// The XML file stays on disk after registration: schtasks has no way
// to export a task in a form we can round-trip cheaply, so the kept
// file doubles as the command snapshot source.
type BuilderSchtasks struct {
	// TaskName is the scheduled task name
	TaskName string
	// XMLDir is where task definitions are kept
	// (default <UserConfigDir>/gwsvc)
	XMLDir string
	// Description overrides the registered task description
	Description string
}

// DefaultTaskXMLDir returns the per-user directory task definitions
// are kept in.
func DefaultTaskXMLDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("gwsvc: resolving config directory: %w", err)
	}
	return filepath.Join(dir, "gwsvc"), nil
}

// XMLPath returns the task definition's on-disk path.
func (b *BuilderSchtasks) XMLPath() string {
	return filepath.Join(b.XMLDir, b.TaskName+".xml")
}

// BuildTaskXML generates the task definition for spec. The task runs
// at logon with no execution time limit and restarts on failure,
// approximating the keep-alive behavior of the other backends. The
// Task Scheduler schema has no per-task environment variables, so
// spec.Environment is not representable here.
func (b *BuilderSchtasks) BuildTaskXML(spec InstallSpec) (string, error) {
	if len(spec.ProgramArguments) == 0 {
		return "", fmt.Errorf("gwsvc: command not specified")
	}

	description := b.Description
	if description == "" {
		description = spec.Description
	}
	if description == "" {
		description = b.TaskName
	}

	def := taskDefinition{
		Version:          taskSchemaVersion,
		Namespace:        taskSchemaNamespace,
		RegistrationInfo: taskRegistrationInfo{Description: description},
		Triggers:         taskTriggers{LogonTrigger: taskLogonTrigger{Enabled: true}},
		Principals: taskPrincipals{Principal: taskPrincipal{
			ID:        "Author",
			LogonType: "InteractiveToken",
			RunLevel:  "LeastPrivilege",
		}},
		Settings: taskSettings{
			MultipleInstancesPolicy: "IgnoreNew",
			AllowHardTerminate:      true,
			StartWhenAvailable:      true,
			AllowStartOnDemand:      true,
			Enabled:                 true,
			// PT0S disables the default 72 hour execution limit
			ExecutionTimeLimit: "PT0S",
			RestartOnFailure:   taskRestartOnFailure{Interval: "PT1M", Count: 3},
		},
		Actions: taskActions{
			Context: "Author",
			Exec: taskExec{
				Command:          spec.ProgramArguments[0],
				Arguments:        windowsJoin(spec.ProgramArguments[1:]),
				WorkingDirectory: spec.WorkingDirectory,
			},
		},
	}

	body, err := xml.MarshalIndent(def, "", "  ")
	if err != nil {
		return "", fmt.Errorf("gwsvc: rendering task definition: %w", err)
	}
	return xml.Header + string(body) + "\n", nil
}

// Write renders the task definition and stores it atomically, creating
// the directory if needed. It returns the XML path.
func (b *BuilderSchtasks) Write(spec InstallSpec) (string, error) {
	content, err := b.BuildTaskXML(spec)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.XMLDir, DirMode); err != nil {
		return "", fmt.Errorf("gwsvc: creating task dir: %w", err)
	}
	path := b.XMLPath()
	if err := renameio.WriteFile(path, []byte(content), FileMode); err != nil {
		return "", fmt.Errorf("gwsvc: writing task definition: %w", err)
	}
	return path, nil
}

// Remove deletes the kept task definition. A file that does not exist
// is success.
func (b *BuilderSchtasks) Remove() error {
	if err := os.Remove(b.XMLPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("gwsvc: removing task definition: %w", err)
	}
	return nil
}

// decodeTaskXML extracts the task's invocation from definition XML.
// Definitions exported by schtasks itself arrive as UTF-16 with a BOM
// and a matching encoding declaration; both are handled so reads work
// on our own files and on exports alike.
func decodeTaskXML(data []byte) (*CommandSnapshot, error) {
	data = decodeUTF16IfNeeded(data)
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		// the bytes are UTF-8 by now even when the declaration
		// still names UTF-16
		return input, nil
	}
	var def taskDefinition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("gwsvc: parsing task definition: %w", err)
	}
	if def.Actions.Exec.Command == "" {
		return nil, fmt.Errorf("gwsvc: task definition has no Exec action")
	}
	argv := append([]string{def.Actions.Exec.Command}, splitCommandLine(def.Actions.Exec.Arguments)...)
	return &CommandSnapshot{
		ProgramArguments: argv,
		WorkingDirectory: def.Actions.Exec.WorkingDirectory,
	}, nil
}

// decodeUTF16IfNeeded transcodes BOM-prefixed UTF-16 bytes to UTF-8,
// returning anything else unchanged.
func decodeUTF16IfNeeded(data []byte) []byte {
	if len(data) < 2 {
		return data
	}
	var little bool
	switch {
	case data[0] == 0xFF && data[1] == 0xFE:
		little = true
	case data[0] == 0xFE && data[1] == 0xFF:
		little = false
	default:
		return data
	}
	units := make([]uint16, 0, (len(data)-2)/2)
	for i := 2; i+1 < len(data); i += 2 {
		if little {
			units = append(units, uint16(data[i])|uint16(data[i+1])<<8)
		} else {
			units = append(units, uint16(data[i])<<8|uint16(data[i+1]))
		}
	}
	return []byte(string(utf16.Decode(units)))
}

// windowsJoin renders args as a single Windows command line, quoting
// arguments that need it.
func windowsJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = windowsQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func windowsQuote(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\"") {
		return arg
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(arg); i++ {
		if arg[i] == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(arg[i])
	}
	b.WriteByte('"')
	return b.String()
}
