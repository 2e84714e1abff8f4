package gwsvc

// Version is the current version of the go-gwsvc library
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// Backends lists the service manager backends this build knows
	Backends []Backend
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:  Version,
		Backends: []Backend{BackendLaunchd, BackendSystemdUser, BackendPM2, BackendSchtasks},
	}
}
