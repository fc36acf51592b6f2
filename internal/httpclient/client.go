// Package httpclient builds the outbound HTTP client used to reach the controller.
package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MacJediWizard/firekeeper/internal/config"
	"golang.org/x/net/proxy"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// Options configures the HTTP client.
type Options struct {
	// Timeout for HTTP requests (default: 30s)
	Timeout time.Duration
	// ProxyConfig contains proxy settings; nil means direct connections.
	ProxyConfig *config.ProxyConfig
	// UserAgent is sent on every request when set.
	UserAgent string
}

// New creates a new HTTP client with optional proxy support.
func New(opts Options) (*http.Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if opts.ProxyConfig.HasProxy() {
		if err := configureProxy(transport, opts.ProxyConfig); err != nil {
			return nil, fmt.Errorf("configure proxy: %w", err)
		}
	}

	var rt http.RoundTripper = transport
	if opts.UserAgent != "" {
		rt = &userAgentTransport{base: transport, userAgent: opts.UserAgent}
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: rt,
	}, nil
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// configureProxy sets up proxy configuration on the transport.
func configureProxy(transport *http.Transport, cfg *config.ProxyConfig) error {
	// SOCKS5 proxy takes precedence if configured
	if cfg.SOCKS5Proxy != "" {
		return configureSocks5Proxy(transport, cfg.SOCKS5Proxy)
	}

	transport.Proxy = func(req *http.Request) (*url.URL, error) {
		return proxyFunc(req, cfg)
	}
	return nil
}

// configureSocks5Proxy sets up a SOCKS5 proxy dialer.
func configureSocks5Proxy(transport *http.Transport, socks5URL string) error {
	proxyURL, err := url.Parse(socks5URL)
	if err != nil {
		return fmt.Errorf("parse SOCKS5 proxy URL: %w", err)
	}
	if proxyURL.Host == "" {
		return fmt.Errorf("SOCKS5 proxy URL %q has no host", maskProxyURL(socks5URL))
	}

	var auth *proxy.Auth
	if proxyURL.User != nil {
		password, _ := proxyURL.User.Password()
		auth = &proxy.Auth{
			User:     proxyURL.User.Username(),
			Password: password,
		}
	}

	dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxy.Direct)
	if err != nil {
		return fmt.Errorf("create SOCKS5 dialer: %w", err)
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
		return nil
	}
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
	return nil
}

// proxyFunc returns the proxy URL for the given request.
func proxyFunc(req *http.Request, cfg *config.ProxyConfig) (*url.URL, error) {
	if shouldBypassProxy(req.URL.Host, cfg.NoProxy) {
		return nil, nil
	}

	var proxyURLStr string
	if req.URL.Scheme == "https" && cfg.HTTPSProxy != "" {
		proxyURLStr = cfg.HTTPSProxy
	} else if cfg.HTTPProxy != "" {
		proxyURLStr = cfg.HTTPProxy
	}

	if proxyURLStr == "" {
		return nil, nil
	}
	return url.Parse(proxyURLStr)
}

// shouldBypassProxy checks if a host matches a NO_PROXY entry.
func shouldBypassProxy(host string, noProxy string) bool {
	if noProxy == "" {
		return false
	}

	hostOnly, _, err := net.SplitHostPort(host)
	if err != nil {
		hostOnly = host
	}
	hostOnly = strings.ToLower(hostOnly)

	for _, pattern := range strings.Split(noProxy, ",") {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		switch {
		case pattern == "":
			continue
		case pattern == "*", hostOnly == pattern:
			return true
		case strings.HasPrefix(pattern, "."):
			if strings.HasSuffix(hostOnly, pattern) {
				return true
			}
		case strings.HasSuffix(hostOnly, "."+pattern):
			return true
		}
	}

	return false
}

// ProxyInfo returns a loggable description of the configured proxy.
func ProxyInfo(cfg *config.ProxyConfig) string {
	if !cfg.HasProxy() {
		return "none"
	}

	var parts []string
	if cfg.SOCKS5Proxy != "" {
		parts = append(parts, "socks5="+maskProxyURL(cfg.SOCKS5Proxy))
	}
	if cfg.HTTPProxy != "" {
		parts = append(parts, "http="+maskProxyURL(cfg.HTTPProxy))
	}
	if cfg.HTTPSProxy != "" {
		parts = append(parts, "https="+maskProxyURL(cfg.HTTPSProxy))
	}
	if cfg.NoProxy != "" {
		parts = append(parts, "no_proxy="+cfg.NoProxy)
	}
	return strings.Join(parts, " ")
}

// maskProxyURL masks credentials in a proxy URL for display.
func maskProxyURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	if u.User != nil {
		username := u.User.Username()
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(username, "****")
		}
	}
	return u.String()
}
