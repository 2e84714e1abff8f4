package gwsvc

import (
	"net/http"
	"strings"
	"testing"
)

// defaultProxyFunc resolves what the process default transport would
// use as proxy for a plain outbound request right now.
func defaultProxyFunc(t *testing.T, rawURL string) string {
	t.Helper()
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		t.Fatal("default transport is not *http.Transport")
	}
	if transport.Proxy == nil {
		return ""
	}
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	u, err := transport.Proxy(req)
	if err != nil {
		t.Fatalf("proxy func failed: %v", err)
	}
	if u == nil {
		return ""
	}
	return u.String()
}

func TestInstallProxyRoutesDefaultTransport(t *testing.T) {
	defer UninstallProxy()

	if err := InstallProxy(ProxyConfig{URL: "http://proxy.corp:3128"}); err != nil {
		t.Fatalf("InstallProxy failed: %v", err)
	}

	cur := CurrentProxy()
	if cur == nil || cur.URL != "http://proxy.corp:3128" {
		t.Fatalf("CurrentProxy = %+v, want the installed target", cur)
	}

	if got := defaultProxyFunc(t, "http://upstream.example/api"); got != "http://proxy.corp:3128" {
		t.Errorf("default transport routes via %q, want the installed proxy", got)
	}
}

func TestInstallProxySameTargetIsNoop(t *testing.T) {
	defer UninstallProxy()

	if err := InstallProxy(ProxyConfig{URL: "http://proxy.corp:3128"}); err != nil {
		t.Fatal(err)
	}
	if err := InstallProxy(ProxyConfig{URL: "http://proxy.corp:3128"}); err != nil {
		t.Fatalf("re-installing the active target failed: %v", err)
	}

	UninstallProxy()
	if CurrentProxy() != nil {
		t.Error("CurrentProxy should be nil after a single uninstall")
	}
	if got := defaultProxyFunc(t, "http://upstream.example/api"); got == "http://proxy.corp:3128" {
		t.Error("default transport still routes via the removed proxy")
	}
}

func TestInstallProxyReplacesPreviousTarget(t *testing.T) {
	defer UninstallProxy()

	if err := InstallProxy(ProxyConfig{URL: "http://first.corp:3128"}); err != nil {
		t.Fatal(err)
	}
	if err := InstallProxy(ProxyConfig{URL: "http://second.corp:8080"}); err != nil {
		t.Fatal(err)
	}

	cur := CurrentProxy()
	if cur == nil || cur.URL != "http://second.corp:8080" {
		t.Fatalf("CurrentProxy = %+v, want the replacement target", cur)
	}
	if got := defaultProxyFunc(t, "http://upstream.example/api"); got != "http://second.corp:8080" {
		t.Errorf("default transport routes via %q, want the replacement proxy", got)
	}

	// A single uninstall must restore the pre-install behavior, not
	// unwind one layer at a time.
	UninstallProxy()
	if CurrentProxy() != nil {
		t.Error("CurrentProxy should be nil after uninstall")
	}
	if got := defaultProxyFunc(t, "http://upstream.example/api"); strings.Contains(got, "corp") {
		t.Errorf("default transport still routes via %q", got)
	}
}

func TestInstallProxyRejectsBadURLs(t *testing.T) {
	cases := []struct {
		Name string
		URL  string
	}{
		{"Unparseable", "http://[::1"},
		{"MissingScheme", "proxy.corp:3128"},
		{"MissingHost", "http://"},
		{"Empty", ""},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			err := InstallProxy(ProxyConfig{URL: tc.URL})
			if err == nil {
				t.Fatalf("InstallProxy(%q) should fail", tc.URL)
			}
			if !strings.Contains(err.Error(), "invalid proxy url") {
				t.Errorf("error = %q, want invalid proxy url message", err)
			}
			if CurrentProxy() != nil {
				t.Error("a rejected install must not register anything")
			}
		})
	}
}

func TestUninstallProxyWithoutInstallIsNoop(t *testing.T) {
	UninstallProxy()
	UninstallProxy()
	if CurrentProxy() != nil {
		t.Error("CurrentProxy should be nil when nothing was installed")
	}
}

func TestCurrentProxyReturnsCopy(t *testing.T) {
	defer UninstallProxy()

	if err := InstallProxy(ProxyConfig{URL: "http://proxy.corp:3128"}); err != nil {
		t.Fatal(err)
	}

	cur := CurrentProxy()
	cur.URL = "http://tampered.example"

	if again := CurrentProxy(); again.URL != "http://proxy.corp:3128" {
		t.Errorf("CurrentProxy = %q, registry state leaked to callers", again.URL)
	}
}
