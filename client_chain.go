package gwsvc

import "context"

// chainUnavailableDetail is reported when neither Linux backend can
// answer a runtime query.
const chainUnavailableDetail = "Systemd/PM2 unavailable"

// ChainLinux manages the gateway through whichever Linux backend is
// usable, preferring systemd user units and falling back to PM2 on
// hosts without a reachable user bus (containers, stripped-down
// distros).
//
// Precedence is decided per operation:
//
//   - Install targets systemd when the user bus answers, then PM2 when
//     the pm2 binary is present, and otherwise forces systemd so the
//     failure names the preferred backend.
//   - Stop and Restart target the first backend that is both usable
//     and currently has the gateway loaded, and otherwise force
//     systemd.
//   - Uninstall always sweeps both backends; each swallows its own
//     "not installed" case, so only genuine failures surface.
//   - IsLoaded is true when either backend has the gateway.
//   - ReadCommand returns the first backend's answer that is not nil.
//   - ReadRuntime trusts systemd unless it has never seen the unit, in
//     which case PM2 answers.
type ChainLinux struct {
	// Systemd is the preferred backend
	Systemd *ClientSystemdUser
	// PM2 is the fallback backend
	PM2 *ClientPM2
}

var _ ServiceClient = (*ChainLinux)(nil)

// NewChainLinux creates the Linux backend chain for the configured
// gateway.
func NewChainLinux(cfg *Config) (*ChainLinux, error) {
	sysd, err := NewClientSystemdUser(cfg)
	if err != nil {
		return nil, err
	}
	return &ChainLinux{
		Systemd: sysd,
		PM2:     NewClientPM2(cfg),
	}, nil
}

// Available reports whether at least one backend is usable.
func (c *ChainLinux) Available(ctx context.Context) bool {
	return c.Systemd.Available(ctx) || c.PM2.Available(ctx)
}

// Install registers the gateway with the preferred usable backend.
func (c *ChainLinux) Install(ctx context.Context, spec InstallSpec) error {
	if c.Systemd.Available(ctx) {
		return c.Systemd.Install(ctx, spec)
	}
	if c.PM2.Available(ctx) {
		return c.PM2.Install(ctx, spec)
	}
	return c.Systemd.Install(ctx, spec)
}

// Uninstall removes the gateway from both backends. Failures from one
// backend do not keep the other from being swept.
func (c *ChainLinux) Uninstall(ctx context.Context) error {
	errs := &MultiError{}
	errs.Add(c.Systemd.Uninstall(ctx))
	errs.Add(c.PM2.Uninstall(ctx))
	return errs.Err()
}

// pickLoaded selects the backend holding the gateway, defaulting to
// systemd when neither does so the resulting error names the preferred
// backend.
func (c *ChainLinux) pickLoaded(ctx context.Context) ServiceClient {
	if c.Systemd.Available(ctx) && c.Systemd.IsLoaded(ctx) {
		return c.Systemd
	}
	if c.PM2.Available(ctx) && c.PM2.IsLoaded(ctx) {
		return c.PM2
	}
	return c.Systemd
}

// Stop stops the gateway on whichever backend has it loaded.
func (c *ChainLinux) Stop(ctx context.Context) error {
	return c.pickLoaded(ctx).Stop(ctx)
}

// Restart restarts the gateway on whichever backend has it loaded.
func (c *ChainLinux) Restart(ctx context.Context) error {
	return c.pickLoaded(ctx).Restart(ctx)
}

// IsLoaded reports whether either backend has the gateway registered.
func (c *ChainLinux) IsLoaded(ctx context.Context) bool {
	if c.Systemd.Available(ctx) && c.Systemd.IsLoaded(ctx) {
		return true
	}
	return c.PM2.Available(ctx) && c.PM2.IsLoaded(ctx)
}

// ReadCommand returns the first backend's snapshot, preferring
// systemd.
func (c *ChainLinux) ReadCommand(ctx context.Context) *CommandSnapshot {
	if c.Systemd.Available(ctx) {
		if snap := c.Systemd.ReadCommand(ctx); snap != nil {
			return snap
		}
	}
	if c.PM2.Available(ctx) {
		if snap := c.PM2.ReadCommand(ctx); snap != nil {
			return snap
		}
	}
	return nil
}

// ReadRuntime reports the gateway's state, trusting systemd's answer
// except when it has never seen the unit and PM2 might have it. With
// neither backend usable the status is unknown.
func (c *ChainLinux) ReadRuntime(ctx context.Context) RuntimeStatus {
	sysd := c.Systemd.Available(ctx)
	pm2 := c.PM2.Available(ctx)
	if !sysd && !pm2 {
		return unknownStatus(chainUnavailableDetail)
	}
	if sysd {
		st := c.Systemd.ReadRuntime(ctx)
		if st.MissingUnit && pm2 {
			return c.PM2.ReadRuntime(ctx)
		}
		return st
	}
	return c.PM2.ReadRuntime(ctx)
}
