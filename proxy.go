package gwsvc

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
)

// ProxyConfig names the proxy that outbound HTTP from this process is
// routed through.
type ProxyConfig struct {
	// URL is the proxy endpoint (http, https, or socks5 scheme)
	URL string
}

// proxyRegistry is the process-wide indirection point for outbound
// HTTP proxying. Every state change goes through its lock, so installs
// and teardowns never interleave and re-installing the active target
// is a clean no-op.
type proxyRegistry struct {
	mu        sync.Mutex
	cfg       *ProxyConfig
	transport *http.Transport
	saved     func(*http.Request) (*url.URL, error)
}

var globalProxy proxyRegistry

// InstallProxy routes the process's default HTTP transport through the
// proxy named by cfg. Installing the target already in place is a
// no-op; installing a different target tears the previous one down
// first.
func InstallProxy(cfg ProxyConfig) error {
	return globalProxy.install(cfg)
}

// UninstallProxy restores the default transport's original proxy
// behavior. With nothing installed it is a no-op.
func UninstallProxy() {
	globalProxy.uninstall()
}

// CurrentProxy returns the installed proxy configuration, or nil when
// none is installed.
func CurrentProxy() *ProxyConfig {
	return globalProxy.current()
}

func (p *proxyRegistry) install(cfg ProxyConfig) error {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("gwsvc: invalid proxy url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("gwsvc: invalid proxy url %q: scheme and host required", cfg.URL)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg != nil && p.cfg.URL == cfg.URL {
		return nil
	}
	if p.cfg != nil {
		p.teardownLocked()
	}

	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return fmt.Errorf("gwsvc: default transport is not *http.Transport")
	}
	p.transport = transport
	p.saved = transport.Proxy
	transport.Proxy = http.ProxyURL(u)
	c := cfg
	p.cfg = &c
	return nil
}

func (p *proxyRegistry) uninstall() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cfg == nil {
		return
	}
	p.teardownLocked()
}

// teardownLocked restores the saved proxy function. Caller holds mu.
func (p *proxyRegistry) teardownLocked() {
	if p.transport != nil {
		p.transport.Proxy = p.saved
	}
	p.transport = nil
	p.saved = nil
	p.cfg = nil
}

func (p *proxyRegistry) current() *ProxyConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cfg == nil {
		return nil
	}
	c := *p.cfg
	return &c
}
