package gwsvc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// BuilderSystemdUser generates and installs systemd user unit files for
// the gateway.
type BuilderSystemdUser struct {
	// ServiceName is the unit name without the .service suffix
	ServiceName string
	// UnitDir is the directory unit files are written to
	// (default ~/.config/systemd/user)
	UnitDir string
}

// DefaultUserUnitDir returns the systemd user unit directory, honoring
// XDG_CONFIG_HOME.
func DefaultUserUnitDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "systemd", "user"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("gwsvc: resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "systemd", "user"), nil
}

// UnitPath returns the unit file's on-disk path.
func (b *BuilderSystemdUser) UnitPath() string {
	return filepath.Join(b.UnitDir, b.ServiceName+".service")
}

// BuildUnit generates the unit file content for spec.
func (b *BuilderSystemdUser) BuildUnit(spec InstallSpec) (string, error) {
	if len(spec.ProgramArguments) == 0 {
		return "", fmt.Errorf("gwsvc: command not specified")
	}

	var unit strings.Builder

	// [Unit] section
	unit.WriteString("[Unit]\n")
	desc := spec.Description
	if desc == "" {
		desc = b.ServiceName
	}
	fmt.Fprintf(&unit, "Description=%s\n", desc)
	unit.WriteString("After=network.target\n")
	unit.WriteString("\n")

	// [Service] section
	unit.WriteString("[Service]\n")
	unit.WriteString("Type=simple\n")
	unit.WriteString("Restart=always\n")
	unit.WriteString("RestartSec=1\n")
	unit.WriteString("KillSignal=SIGTERM\n")

	if spec.WorkingDirectory != "" {
		fmt.Fprintf(&unit, "WorkingDirectory=%s\n", spec.WorkingDirectory)
	}

	for _, key := range spec.environKeys() {
		// Escape quotes in values
		escaped := strings.ReplaceAll(spec.Environment[key], `"`, `\"`)
		fmt.Fprintf(&unit, "Environment=\"%s=%s\"\n", key, escaped)
	}

	fmt.Fprintf(&unit, "ExecStart=%s\n", shellJoin(spec.ProgramArguments))

	unit.WriteString("\n")
	unit.WriteString("[Install]\n")
	unit.WriteString("WantedBy=default.target\n")

	return unit.String(), nil
}

// Write renders the unit file and installs it atomically, creating the
// unit directory if needed. It returns the unit file path.
func (b *BuilderSystemdUser) Write(spec InstallSpec) (string, error) {
	content, err := b.BuildUnit(spec)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.UnitDir, DirMode); err != nil {
		return "", fmt.Errorf("gwsvc: creating unit dir: %w", err)
	}
	path := b.UnitPath()
	if err := renameio.WriteFile(path, []byte(content), FileMode); err != nil {
		return "", fmt.Errorf("gwsvc: writing unit file: %w", err)
	}
	return path, nil
}

// Remove deletes the unit file. A file that does not exist is success.
func (b *BuilderSystemdUser) Remove() error {
	if err := os.Remove(b.UnitPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("gwsvc: removing unit file: %w", err)
	}
	return nil
}

// shellJoin renders an argv as an ExecStart command line, quoting
// arguments containing spaces or shell specials.
func shellJoin(argv []string) string {
	line := argv[0]
	for i := 1; i < len(argv); i++ {
		arg := argv[i]
		if strings.ContainsAny(arg, " \t\n\"'\\$") {
			arg = fmt.Sprintf("%q", arg)
		}
		line += " " + arg
	}
	return line
}
