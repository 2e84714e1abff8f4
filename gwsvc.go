package gwsvc

// Default binary names for the native service manager CLIs. Each can be
// overridden through Config or the corresponding GWSVC_* environment
// variable.
const (
	// DefaultLaunchctlPath is the default path to the launchctl binary
	DefaultLaunchctlPath = "launchctl"

	// DefaultSystemctlPath is the default path to the systemctl binary
	DefaultSystemctlPath = "systemctl"

	// DefaultPM2Path is the default path to the pm2 binary
	DefaultPM2Path = "pm2"

	// DefaultSchtasksPath is the default path to the schtasks binary
	DefaultSchtasksPath = "schtasks"
)

// File modes
const (
	// DirMode is the default mode for created directories
	DirMode = 0o755

	// FileMode is the default mode for created unit definition files
	FileMode = 0o644
)

// Backend identifies one native service manager adapter.
type Backend int

const (
	// BackendUnknown represents an unrecognized backend
	BackendUnknown Backend = iota
	// BackendLaunchd represents the macOS launchd user agent backend
	BackendLaunchd
	// BackendSystemdUser represents the Linux systemd user unit backend
	BackendSystemdUser
	// BackendPM2 represents the PM2 process manager backend
	BackendPM2
	// BackendSchtasks represents the Windows Scheduled Tasks backend
	BackendSchtasks
)

// Backend string constants
const (
	backendUnknownStr     = "unknown"
	backendLaunchdStr     = "launchd"
	backendSystemdUserStr = "systemd-user"
	backendPM2Str         = "pm2"
	backendSchtasksStr    = "schtasks"
)

// String returns the string representation of a Backend
func (b Backend) String() string {
	switch b {
	case BackendLaunchd:
		return backendLaunchdStr
	case BackendSystemdUser:
		return backendSystemdUserStr
	case BackendPM2:
		return backendPM2Str
	case BackendSchtasks:
		return backendSchtasksStr
	case BackendUnknown:
		fallthrough
	default:
		return backendUnknownStr
	}
}

// Operation represents one gateway service operation
type Operation int

const (
	// OpUnknown represents an unknown operation
	OpUnknown Operation = iota
	// OpInstall registers and starts the gateway unit
	OpInstall
	// OpUninstall removes the gateway unit
	OpUninstall
	// OpStop stops the gateway unit
	OpStop
	// OpRestart restarts the gateway unit
	OpRestart
	// OpIsLoaded queries whether the unit is registered
	OpIsLoaded
	// OpReadCommand introspects the installed invocation
	OpReadCommand
	// OpReadRuntime queries the normalized runtime state
	OpReadRuntime
)

// Operation string constants
const (
	opUnknownStr     = "unknown"
	opInstallStr     = "install"
	opUninstallStr   = "uninstall"
	opStopStr        = "stop"
	opRestartStr     = "restart"
	opIsLoadedStr    = "is-loaded"
	opReadCommandStr = "read-command"
	opReadRuntimeStr = "read-runtime"
)

// String returns the string representation of an Operation
func (op Operation) String() string {
	switch op {
	case OpInstall:
		return opInstallStr
	case OpUninstall:
		return opUninstallStr
	case OpStop:
		return opStopStr
	case OpRestart:
		return opRestartStr
	case OpIsLoaded:
		return opIsLoadedStr
	case OpReadCommand:
		return opReadCommandStr
	case OpReadRuntime:
		return opReadRuntimeStr
	default:
		return opUnknownStr
	}
}
