package gwsvc

import (
	"context"
)

// ServiceClient is the contract every backend adapter implements. It
// provides a unified lifecycle API for the gateway across the native OS
// service managers (launchd, systemd user units, PM2, Windows Scheduled
// Tasks) so callers never branch on platform.
type ServiceClient interface {
	// Available reports whether the backend can serve requests on this
	// host right now. Availability is re-checked before each dependent
	// operation; it can change between calls (the user bus toggling,
	// the PM2 daemon starting or stopping).
	Available(ctx context.Context) bool

	// Install registers the gateway with the backend. Any pre-existing
	// unit with the same derived name is removed first, then the new
	// unit is created and started, then persisted across reboots.
	// Failures surface as *InstallError carrying the failing step's
	// captured output.
	Install(ctx context.Context, spec InstallSpec) error

	// Uninstall removes the unit, best-effort: a unit that never
	// existed is success, and "not found" class results are swallowed.
	// Only genuine tool-invocation failures are returned.
	Uninstall(ctx context.Context) error

	// Stop forwards to the native stop primitive. Nonzero exits surface
	// as *CommandError carrying the captured output.
	Stop(ctx context.Context) error

	// Restart forwards to the native restart primitive, with the same
	// failure contract as Stop.
	Restart(ctx context.Context) error

	// IsLoaded reports whether the unit is registered with the manager
	// (persists across reboots), independent of whether it is currently
	// running. A missing tool or failed query reports false.
	IsLoaded(ctx context.Context) bool

	// ReadCommand reconstructs the installed invocation. It returns nil,
	// never an error, when no unit is installed or its definition
	// cannot be parsed.
	ReadCommand(ctx context.Context) *CommandSnapshot

	// ReadRuntime queries the unit's state and normalizes it into the
	// shared RuntimeStatus shape. It never fails: any query or parse
	// problem degrades to StatusUnknown with Detail set.
	ReadRuntime(ctx context.Context) RuntimeStatus
}
