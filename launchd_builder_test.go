package gwsvc

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestBuildPlist(t *testing.T) {
	b := &BuilderLaunchd{Label: "com.axondata.gwsvc.gateway"}

	spec := InstallSpec{
		ProgramArguments: []string{"/usr/bin/node", "/app/gateway.js", "--port", "3000"},
		WorkingDirectory: "/app",
		Environment:      map[string]string{"NODE_ENV": "production"},
	}

	plist, err := b.BuildPlist(spec)
	if err != nil {
		t.Fatalf("BuildPlist: %v", err)
	}

	wantFragments := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN"`,
		`<plist version="1.0">`,
		"<key>Label</key>",
		"<string>com.axondata.gwsvc.gateway</string>",
		"<key>ProgramArguments</key>",
		"<string>/usr/bin/node</string>",
		"<string>/app/gateway.js</string>",
		"<key>WorkingDirectory</key>",
		"<string>/app</string>",
		"<key>EnvironmentVariables</key>",
		"<key>NODE_ENV</key>",
		"<string>production</string>",
		"<key>RunAtLoad</key>",
		"<true/>",
		"<key>KeepAlive</key>",
	}
	for _, frag := range wantFragments {
		if !strings.Contains(plist, frag) {
			t.Errorf("plist missing %q\n%s", frag, plist)
		}
	}

	if strings.Contains(plist, "StandardOutPath") {
		t.Error("log path keys should be absent when LogPath is empty")
	}
}

func TestBuildPlistLogPath(t *testing.T) {
	b := &BuilderLaunchd{Label: "com.axondata.gwsvc.gateway", LogPath: "/tmp/gw.log"}

	plist, err := b.BuildPlist(InstallSpec{ProgramArguments: []string{"/usr/bin/gateway"}})
	if err != nil {
		t.Fatalf("BuildPlist: %v", err)
	}

	if !strings.Contains(plist, "<key>StandardOutPath</key>") ||
		!strings.Contains(plist, "<key>StandardErrorPath</key>") ||
		!strings.Contains(plist, "<string>/tmp/gw.log</string>") {
		t.Errorf("log path keys missing:\n%s", plist)
	}
}

func TestBuildPlistEscapesXML(t *testing.T) {
	b := &BuilderLaunchd{Label: "com.axondata.gwsvc.gateway"}

	spec := InstallSpec{
		ProgramArguments: []string{"/usr/bin/gw", "--name", "a<b&c>"},
	}

	plist, err := b.BuildPlist(spec)
	if err != nil {
		t.Fatalf("BuildPlist: %v", err)
	}

	if !strings.Contains(plist, "<string>a&lt;b&amp;c&gt;</string>") {
		t.Errorf("special characters not escaped:\n%s", plist)
	}
}

func TestBuildPlistEmptyCommand(t *testing.T) {
	b := &BuilderLaunchd{Label: "com.axondata.gwsvc.gateway"}
	if _, err := b.BuildPlist(InstallSpec{}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestParsePlistRoundTrip(t *testing.T) {
	b := &BuilderLaunchd{Label: "com.axondata.gwsvc.gateway.work"}

	spec := InstallSpec{
		ProgramArguments: []string{"/usr/bin/node", "/app/gateway.js", "--flag", "a value"},
		WorkingDirectory: "/app",
		Environment: map[string]string{
			"NODE_ENV": "production",
			"TOKEN":    "a<b>&c",
		},
	}

	plist, err := b.BuildPlist(spec)
	if err != nil {
		t.Fatalf("BuildPlist: %v", err)
	}

	snap, err := parsePlist([]byte(plist))
	if err != nil {
		t.Fatalf("parsePlist: %v", err)
	}

	if !reflect.DeepEqual(snap.ProgramArguments, spec.ProgramArguments) {
		t.Errorf("ProgramArguments = %v, want %v", snap.ProgramArguments, spec.ProgramArguments)
	}
	if snap.WorkingDirectory != spec.WorkingDirectory {
		t.Errorf("WorkingDirectory = %q, want %q", snap.WorkingDirectory, spec.WorkingDirectory)
	}
	if !reflect.DeepEqual(snap.Environment, spec.Environment) {
		t.Errorf("Environment = %v, want %v", snap.Environment, spec.Environment)
	}
	if !snap.Matches(spec) {
		t.Error("round-tripped snapshot should match its spec")
	}
}

func TestParsePlistSkipsUnknownKeys(t *testing.T) {
	// A plist written by hand or another tool can carry keys the
	// gateway never writes.
	plist := `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>com.example.other</string>
	<key>ThrottleInterval</key>
	<integer>10</integer>
	<key>SoftResourceLimits</key>
	<dict>
		<key>NumberOfFiles</key>
		<integer>4096</integer>
	</dict>
	<key>ProgramArguments</key>
	<array>
		<string>/usr/bin/gateway</string>
		<string>--run</string>
	</array>
	<key>WatchPaths</key>
	<array>
		<string>/etc/config</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
</dict>
</plist>
`
	snap, err := parsePlist([]byte(plist))
	if err != nil {
		t.Fatalf("parsePlist: %v", err)
	}

	want := []string{"/usr/bin/gateway", "--run"}
	if !reflect.DeepEqual(snap.ProgramArguments, want) {
		t.Errorf("ProgramArguments = %v, want %v", snap.ProgramArguments, want)
	}
	if snap.Environment != nil {
		t.Errorf("Environment = %v, want nil", snap.Environment)
	}
}

func TestParsePlistErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "no dict",
			data: `<?xml version="1.0"?><plist version="1.0"></plist>`,
		},
		{
			name: "no program arguments",
			data: `<?xml version="1.0"?><plist version="1.0"><dict><key>Label</key><string>x</string></dict></plist>`,
		},
		{
			name: "not xml at all",
			data: "this is not a plist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parsePlist([]byte(tt.data)); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestLaunchdBuilderWriteAndRemove(t *testing.T) {
	dir := t.TempDir()
	b := &BuilderLaunchd{
		Label:    "com.axondata.gwsvc.gateway",
		PlistDir: filepath.Join(dir, "LaunchAgents"),
	}

	path, err := b.Write(InstallSpec{ProgramArguments: []string{"/usr/bin/gateway"}})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if path != b.PlistPath() {
		t.Errorf("Write returned %q, want %q", path, b.PlistPath())
	}

	snap, err := parsePlist(mustReadFile(t, path))
	if err != nil {
		t.Fatalf("parsePlist on written file: %v", err)
	}
	if len(snap.ProgramArguments) != 1 || snap.ProgramArguments[0] != "/usr/bin/gateway" {
		t.Errorf("ProgramArguments = %v", snap.ProgramArguments)
	}

	if err := b.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("plist should be gone after Remove")
	}
	if err := b.Remove(); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func mustReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
