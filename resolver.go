package gwsvc

import (
	"context"
	"runtime"
)

// serviceDescriptors carries the per-platform display strings UIs show
// next to the gateway's registration state.
var serviceDescriptors = map[string]ServiceDescriptor{
	"darwin": {
		Label:         "launchd",
		LoadedText:    "Loaded in launchd",
		NotLoadedText: "Not loaded in launchd",
	},
	"linux": {
		Label:         "systemd/PM2",
		LoadedText:    "Registered with systemd or PM2",
		NotLoadedText: "Not registered with systemd or PM2",
	},
	"windows": {
		Label:         "Scheduled Tasks",
		LoadedText:    "Scheduled task registered",
		NotLoadedText: "No scheduled task registered",
	},
}

// GatewayService is the platform-resolved handle for managing the
// gateway process. It exposes the full ServiceClient surface plus the
// descriptor for the platform's backend.
type GatewayService struct {
	ServiceClient
	desc ServiceDescriptor
}

// Descriptor returns the display strings for the resolved backend.
func (s *GatewayService) Descriptor() ServiceDescriptor {
	return s.desc
}

// LoadStateText returns the descriptor text matching the gateway's
// current registration state.
func (s *GatewayService) LoadStateText(ctx context.Context) string {
	if s.IsLoaded(ctx) {
		return s.desc.LoadedText
	}
	return s.desc.NotLoadedText
}

// ResolveGatewayService selects the service backend for the current
// platform: launchd on macOS, the systemd/PM2 chain on Linux, and
// Scheduled Tasks on Windows. A nil cfg uses defaults. Unsupported
// platforms fail at resolution rather than at first use.
func ResolveGatewayService(cfg *Config) (*GatewayService, error) {
	return resolveFor(runtime.GOOS, cfg)
}

func resolveFor(goos string, cfg *Config) (*GatewayService, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var (
		client ServiceClient
		err    error
	)
	switch goos {
	case "darwin":
		client, err = NewClientLaunchd(cfg)
	case "linux":
		client, err = NewChainLinux(cfg)
	case "windows":
		client, err = NewClientSchtasks(cfg)
	default:
		return nil, &UnsupportedPlatformError{Platform: goos}
	}
	if err != nil {
		return nil, err
	}
	return &GatewayService{ServiceClient: client, desc: serviceDescriptors[goos]}, nil
}
