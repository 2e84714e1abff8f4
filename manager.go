package gwsvc

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Manager handles operations on multiple gateway profiles concurrently.
// A host can carry several independent gateway installations, one per
// profile; the Manager fans control and query operations out across
// them with configurable concurrency and timeouts.
//
// Per-operation deadlines live here rather than in the clients:
// single-profile callers pass their own context, while bulk callers
// get a uniform per-profile timeout.
type Manager struct {
	// Concurrency is the maximum number of concurrent operations
	Concurrency int
	// Timeout is the per-profile operation timeout
	Timeout time.Duration
	// Base is the configuration each profile name is applied to;
	// nil uses defaults
	Base *Config

	resolve func(*Config) (*GatewayService, error)
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithConcurrency sets the maximum number of concurrent operations
func WithConcurrency(n int) ManagerOption {
	return func(m *Manager) {
		m.Concurrency = n
	}
}

// WithTimeout sets the per-profile operation timeout
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.Timeout = d
	}
}

// WithBaseConfig sets the configuration profile names are applied to
func WithBaseConfig(cfg *Config) ManagerOption {
	return func(m *Manager) {
		m.Base = cfg
	}
}

// NewManager creates a new Manager with default settings
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		Concurrency: 10,
		Timeout:     30 * time.Second,
		resolve:     ResolveGatewayService,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.Concurrency < 1 {
		m.Concurrency = 1
	}

	return m
}

// serviceFor resolves the gateway handle for one profile
func (m *Manager) serviceFor(profile string) (*GatewayService, error) {
	cfg := DefaultConfig()
	if m.Base != nil {
		c := *m.Base
		cfg = &c
	}
	cfg.Profile = profile
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	svc, err := m.resolve(cfg)
	if err != nil {
		return nil, fmt.Errorf("gwsvc: profile %q: %w", profile, err)
	}
	return svc, nil
}

func (m *Manager) execute(ctx context.Context, profiles []string, op func(context.Context, *GatewayService) error) error {
	if len(profiles) == 0 {
		return nil
	}

	// Semaphore for concurrency control
	sem := make(chan struct{}, m.Concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	merr := &MultiError{}

	for _, profile := range profiles {

		wg.Add(1)
		go func(p string) {
			defer wg.Done()

			// Acquire semaphore slot
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				merr.Add(ctx.Err())
				mu.Unlock()
				return
			}

			svc, err := m.serviceFor(p)
			if err != nil {
				mu.Lock()
				merr.Add(err)
				mu.Unlock()
				return
			}

			// Create operation context with timeout if configured
			opCtx := ctx
			if m.Timeout > 0 {
				var cancel context.CancelFunc
				opCtx, cancel = context.WithTimeout(ctx, m.Timeout)
				defer cancel()
			}

			if err := op(opCtx, svc); err != nil {
				mu.Lock()
				merr.Add(err)
				mu.Unlock()
			}
		}(profile)
	}

	wg.Wait()

	return merr.Err()
}

// Stop stops the gateways of the specified profiles
func (m *Manager) Stop(ctx context.Context, profiles ...string) error {
	return m.execute(ctx, profiles, func(ctx context.Context, svc *GatewayService) error {
		return svc.Stop(ctx)
	})
}

// Restart restarts the gateways of the specified profiles
func (m *Manager) Restart(ctx context.Context, profiles ...string) error {
	return m.execute(ctx, profiles, func(ctx context.Context, svc *GatewayService) error {
		return svc.Restart(ctx)
	})
}

// Uninstall removes the gateways of the specified profiles
func (m *Manager) Uninstall(ctx context.Context, profiles ...string) error {
	return m.execute(ctx, profiles, func(ctx context.Context, svc *GatewayService) error {
		return svc.Uninstall(ctx)
	})
}

// Status retrieves the runtime status of the specified profiles
func (m *Manager) Status(ctx context.Context, profiles ...string) (map[string]RuntimeStatus, error) {
	if len(profiles) == 0 {
		return make(map[string]RuntimeStatus), nil
	}

	// Semaphore for concurrency control
	sem := make(chan struct{}, m.Concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make(map[string]RuntimeStatus)
	merr := &MultiError{}

	for _, profile := range profiles {

		wg.Add(1)
		go func(p string) {
			defer wg.Done()

			// Acquire semaphore slot
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				merr.Add(ctx.Err())
				mu.Unlock()
				return
			}

			svc, err := m.serviceFor(p)
			if err != nil {
				mu.Lock()
				merr.Add(err)
				mu.Unlock()
				return
			}

			// Create operation context with timeout if configured
			opCtx := ctx
			if m.Timeout > 0 {
				var cancel context.CancelFunc
				opCtx, cancel = context.WithTimeout(ctx, m.Timeout)
				defer cancel()
			}

			status := svc.ReadRuntime(opCtx)

			mu.Lock()
			results[p] = status
			mu.Unlock()
		}(profile)
	}

	wg.Wait()

	return results, merr.Err()
}
