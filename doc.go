// Package gwsvc manages a long-running gateway process through
// whichever native service manager the host provides: launchd on
// macOS, systemd user units (with PM2 as fallback) on Linux, and
// Scheduled Tasks on Windows.
//
// The entry point is ResolveGatewayService, which picks the backend for
// the current platform once and returns a GatewayService exposing one
// uniform lifecycle:
//
//	svc, err := gwsvc.ResolveGatewayService(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Register and start the gateway
//	err = svc.Install(ctx, gwsvc.InstallSpec{
//	    ProgramArguments: []string{"node", "/opt/gateway/server.js", "--port", "8080"},
//	})
//
//	// Inspect it later
//	st := svc.ReadRuntime(ctx)
//	fmt.Printf("gateway: %s\n", st)
//
// Install is convergent: any unit already registered under the derived
// name is removed and recreated, so repeated installs are safe. Reads
// never fail: ReadCommand returns nil for "not installed" and
// ReadRuntime degrades to StatusUnknown with a detail message instead
// of returning errors.
//
// # Linux Backend Chain
//
// On Linux two backends are chained. systemd user units are preferred;
// PM2 covers hosts without a reachable user bus (containers, older WSL,
// stripped-down distros). Precedence is decided per operation and
// documented on ChainLinux.
//
// # Design Philosophy
//
// This library prioritizes:
//
//   - One subprocess per backend call (no daemons, no persistent bus
//     connections)
//   - Nonzero exits captured as results, raised only where the
//     contract says so
//   - Reads that degrade instead of failing
//   - Context-aware operations throughout
//   - Type safety (no string-based backend or operation codes)
//
// Everything the library writes lives in per-user locations (the
// LaunchAgents folder, the systemd user unit directory, the user
// config dir), so none of it needs root.
package gwsvc
