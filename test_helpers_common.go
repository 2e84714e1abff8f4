package gwsvc

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

// toolAvailabilityCache caches the results of tool availability checks
// to avoid repeated exec.LookPath calls during test execution
var (
	toolAvailabilityCache = make(map[string]bool)
	toolAvailabilityMu    sync.RWMutex

	// Cached checks for common tool sets
	launchctlAvailable bool
	launchctlOnce      sync.Once
	systemctlAvailable bool
	systemctlOnce      sync.Once
	pm2Available       bool
	pm2Once            sync.Once
	schtasksAvailable  bool
	schtasksOnce       sync.Once
)

// checkToolCached returns whether a tool is available, using cache
func checkToolCached(toolName string) bool {
	// Check cache first
	toolAvailabilityMu.RLock()
	if available, ok := toolAvailabilityCache[toolName]; ok {
		toolAvailabilityMu.RUnlock()
		return available
	}
	toolAvailabilityMu.RUnlock()

	// Not in cache, check and store result
	toolAvailabilityMu.Lock()
	defer toolAvailabilityMu.Unlock()

	// Double-check after acquiring write lock
	if available, ok := toolAvailabilityCache[toolName]; ok {
		return available
	}

	_, err := exec.LookPath(toolName)
	available := err == nil
	toolAvailabilityCache[toolName] = available
	return available
}

// RequireTool skips the test if the tool is not available in PATH.
// This should be used for any test that depends on external binaries.
func RequireTool(t *testing.T, toolName string) {
	t.Helper()
	if !checkToolCached(toolName) {
		t.Skipf("%s not found in PATH, skipping test (install it to run this test)", toolName)
	}
}

// RequireTools skips the test if any of the tools are not available in PATH.
func RequireTools(t *testing.T, tools ...string) {
	t.Helper()
	for _, tool := range tools {
		RequireTool(t, tool)
	}
}

// RequireLinux skips the test if not running on Linux.
func RequireLinux(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("test requires Linux")
	}
}

// RequireDarwin skips the test if not running on macOS.
func RequireDarwin(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "darwin" {
		t.Skip("test requires macOS")
	}
}

// RequireWindows skips the test if not running on Windows.
func RequireWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "windows" {
		t.Skip("test requires Windows")
	}
}

// RequireNotShort skips the test if running in short mode.
// Use this for integration tests that take longer to run.
func RequireNotShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// RequireLaunchd ensures launchctl is available (macOS only)
func RequireLaunchd(t *testing.T) {
	t.Helper()
	RequireDarwin(t)
	launchctlOnce.Do(func() {
		launchctlAvailable = checkToolCached("launchctl")
	})
	if !launchctlAvailable {
		t.Skip("launchctl not found in PATH, skipping test")
	}
}

// RequireSystemdUser ensures systemctl is available (Linux only). Bus
// reachability is probed in the tests themselves through Available.
func RequireSystemdUser(t *testing.T) {
	t.Helper()
	RequireLinux(t)
	systemctlOnce.Do(func() {
		systemctlAvailable = checkToolCached("systemctl")
	})
	if !systemctlAvailable {
		t.Skip("systemd (systemctl) not found in PATH, skipping test")
	}
}

// RequirePM2 ensures pm2 is available
func RequirePM2(t *testing.T) {
	t.Helper()
	pm2Once.Do(func() {
		pm2Available = checkToolCached("pm2")
	})
	if !pm2Available {
		t.Skip("pm2 not found in PATH, skipping test")
	}
}

// RequireSchtasks ensures schtasks is available (Windows only)
func RequireSchtasks(t *testing.T) {
	t.Helper()
	RequireWindows(t)
	schtasksOnce.Do(func() {
		schtasksAvailable = checkToolCached("schtasks")
	})
	if !schtasksAvailable {
		t.Skip("schtasks not found in PATH, skipping test")
	}
}

// CheckToolAvailable returns true if a tool is available in PATH.
// This is a non-skipping version for conditional logic.
func CheckToolAvailable(tool string) bool {
	return checkToolCached(tool)
}

// CheckAnyToolAvailable returns true if any of the tools are available
func CheckAnyToolAvailable(tools ...string) bool {
	for _, tool := range tools {
		if checkToolCached(tool) {
			return true
		}
	}
	return false
}

// WaitForStatus polls the client until its runtime status reaches want
func WaitForStatus(t *testing.T, client ServiceClient, want Status, timeout time.Duration) error {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st := client.ReadRuntime(context.Background())
		if st.Status == want {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	// Check one more time in case of a race at the deadline
	st := client.ReadRuntime(context.Background())
	if st.Status == want {
		return nil
	}
	return fmt.Errorf("service did not reach %v within %v%s", want, timeout, DiagnoseService(client))
}

// WaitForRunning polls the client until the gateway reports running
func WaitForRunning(t *testing.T, client ServiceClient, timeout time.Duration) error {
	t.Helper()
	return WaitForStatus(t, client, StatusRunning, timeout)
}

// DiagnoseService formats the client's full view of the gateway for
// failure messages
func DiagnoseService(client ServiceClient) string {
	ctx := context.Background()
	var b strings.Builder

	b.WriteString("\n=== SERVICE DIAGNOSTIC INFORMATION ===\n")
	b.WriteString(fmt.Sprintf("Available: %v\n", client.Available(ctx)))
	b.WriteString(fmt.Sprintf("Loaded:    %v\n", client.IsLoaded(ctx)))

	st := client.ReadRuntime(ctx)
	b.WriteString("\n--- Runtime ---\n")
	b.WriteString(fmt.Sprintf("Status: %s\n", st))
	if st.State != "" {
		b.WriteString(fmt.Sprintf("State: %s\n", st.State))
	}
	if st.Detail != "" {
		b.WriteString(fmt.Sprintf("Detail: %s\n", st.Detail))
	}

	b.WriteString("\n--- Installed Command ---\n")
	if snap := client.ReadCommand(ctx); snap != nil {
		b.WriteString(fmt.Sprintf("Argv: %v\n", snap.ProgramArguments))
		if snap.WorkingDirectory != "" {
			b.WriteString(fmt.Sprintf("WorkingDirectory: %s\n", snap.WorkingDirectory))
		}
		if snap.SourcePath != "" {
			b.WriteString(fmt.Sprintf("SourcePath: %s\n", snap.SourcePath))
		}
	} else {
		b.WriteString("(none installed)\n")
	}

	b.WriteString("=== END DIAGNOSTIC INFORMATION ===\n")
	return b.String()
}
