package gwsvc

import (
	"context"
	"time"
)

// DefaultWatchDebounce coalesces bursts of file events (editors and
// atomic writes produce several per save) into a single re-read.
const DefaultWatchDebounce = 25 * time.Millisecond

// WatchEvent represents a change to the installed unit definition. A
// nil Snapshot means the definition was removed or became unreadable.
type WatchEvent struct {
	Snapshot *CommandSnapshot
	Err      error
}

// WatchCleanupFunc stops a watch and releases its resources.
type WatchCleanupFunc func() error

// WatchCommand watches the gateway's unit definition file and emits a
// fresh command snapshot whenever it changes, starting with the
// current one. Use it to detect drift between the running installation
// and the definition on disk.
//
// Only file-backed backends are watchable: launchd plists and systemd
// user units. On Linux the systemd unit file is watched even when PM2
// manages the gateway, since PM2 keeps its registry internal. Other
// backends return ErrWatchUnsupported.
//
// The returned cleanup function must be called to release the watcher;
// it closes the event channel.
func (s *GatewayService) WatchCommand(ctx context.Context) (<-chan WatchEvent, WatchCleanupFunc, error) {
	client := s.ServiceClient
	if chain, ok := client.(*ChainLinux); ok {
		client = chain.Systemd
	}
	fc, ok := client.(unitFileClient)
	if !ok {
		return nil, nil, ErrWatchUnsupported
	}
	return watchImpl(ctx, fc)
}
