package gwsvc

import (
	"context"
	"time"
)

// DefaultWaitPollInterval is how often WaitStatus re-reads the runtime
// state. The backends answer through CLI invocations, so waiting polls
// rather than watching.
const DefaultWaitPollInterval = 250 * time.Millisecond

// WaitStatus blocks until the gateway's runtime status reaches one of
// the given values or the context ends. If states is empty, it waits
// for any change from the status observed at entry.
//
// Example:
//
//	// Wait for the gateway to come up after a restart
//	st, err := svc.WaitStatus(ctx, StatusRunning)
//
//	// Wait for any change
//	st, err := svc.WaitStatus(ctx)
func (s *GatewayService) WaitStatus(ctx context.Context, states ...Status) (RuntimeStatus, error) {
	initial := s.ReadRuntime(ctx)
	if len(states) > 0 && statusIn(initial.Status, states) {
		return initial, nil
	}

	ticker := time.NewTicker(DefaultWaitPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st := s.ReadRuntime(ctx)
			if len(states) == 0 {
				if runtimeChanged(initial, st) {
					return st, nil
				}
				continue
			}
			if statusIn(st.Status, states) {
				return st, nil
			}
		case <-ctx.Done():
			return RuntimeStatus{}, ctx.Err()
		}
	}
}

func statusIn(st Status, states []Status) bool {
	for _, s := range states {
		if st == s {
			return true
		}
	}
	return false
}

// runtimeChanged reports whether two runtime readings differ in any
// field a caller would act on
func runtimeChanged(a, b RuntimeStatus) bool {
	return a.Status != b.Status ||
		a.State != b.State ||
		a.PID != b.PID ||
		a.MissingUnit != b.MissingUnit
}
