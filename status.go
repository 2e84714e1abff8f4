package gwsvc

import "fmt"

// Status classifies the gateway's normalized runtime state.
type Status int

const (
	// StatusUnknown means the state could not be queried at all
	StatusUnknown Status = iota
	// StatusStopped means the unit exists (or is missing) and is not running
	StatusStopped
	// StatusRunning means the unit has a live process
	StatusRunning
)

// Status string constants
const (
	statusUnknownStr = "unknown"
	statusStoppedStr = "stopped"
	statusRunningStr = "running"
)

// String returns the string representation of a Status
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return statusRunningStr
	case StatusStopped:
		return statusStoppedStr
	default:
		return statusUnknownStr
	}
}

// RuntimeStatus is the normalized runtime answer shared by every backend.
// Each adapter parses its manager's raw output (systemd unit properties,
// PM2 jlist JSON, launchctl print text, schtasks CSV) into this one shape.
type RuntimeStatus struct {
	// Status is the normalized classification
	Status Status

	// State preserves the backend-native state string, e.g. "online",
	// "exited", "Ready"
	State string

	// PID is the main process ID, 0 when not running or not reported
	PID int

	// LastExitStatus is the most recent exit status, nil when the
	// backend does not report one
	LastExitStatus *int

	// MissingUnit is true when the query succeeded but no unit with the
	// derived name exists. Always accompanied by StatusStopped; distinct
	// from StatusUnknown, which means the query itself failed.
	MissingUnit bool

	// Detail carries diagnostic text when Status is StatusUnknown
	Detail string
}

// Running reports whether the gateway has a live process
func (s RuntimeStatus) Running() bool {
	return s.Status == StatusRunning
}

// String returns a human-readable one-line summary
func (s RuntimeStatus) String() string {
	switch s.Status {
	case StatusRunning:
		if s.PID > 0 {
			return fmt.Sprintf("running (pid %d)", s.PID)
		}
		return statusRunningStr
	case StatusStopped:
		if s.MissingUnit {
			return "stopped (not installed)"
		}
		if s.State != "" {
			return fmt.Sprintf("stopped (%s)", s.State)
		}
		return statusStoppedStr
	default:
		if s.Detail != "" {
			return fmt.Sprintf("unknown: %s", s.Detail)
		}
		return statusUnknownStr
	}
}

// runningStatus builds a StatusRunning result
func runningStatus(state string, pid int) RuntimeStatus {
	return RuntimeStatus{Status: StatusRunning, State: state, PID: pid}
}

// stoppedStatus builds a StatusStopped result
func stoppedStatus(state string) RuntimeStatus {
	return RuntimeStatus{Status: StatusStopped, State: state}
}

// missingUnitStatus builds the "queried fine, nothing installed" result
func missingUnitStatus() RuntimeStatus {
	return RuntimeStatus{Status: StatusStopped, MissingUnit: true}
}

// unknownStatus builds a StatusUnknown result carrying diagnostic text
func unknownStatus(detail string) RuntimeStatus {
	return RuntimeStatus{Status: StatusUnknown, Detail: detail}
}

// exitStatus boxes an exit code for RuntimeStatus.LastExitStatus
func exitStatus(code int) *int {
	return &code
}
