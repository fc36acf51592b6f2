package config

// ProxyConfig holds the outbound proxy settings used for controller calls.
type ProxyConfig struct {
	HTTPProxy   string `yaml:"http_proxy,omitempty"`
	HTTPSProxy  string `yaml:"https_proxy,omitempty"`
	NoProxy     string `yaml:"no_proxy,omitempty"`
	SOCKS5Proxy string `yaml:"socks5_proxy,omitempty"`
}

// HasProxy returns true if any proxy is configured.
func (p *ProxyConfig) HasProxy() bool {
	return p != nil && (p.HTTPProxy != "" || p.HTTPSProxy != "" || p.SOCKS5Proxy != "")
}

func (p *ProxyConfig) applyEnv() {
	p.HTTPProxy = getEnv("HTTP_PROXY", p.HTTPProxy)
	p.HTTPSProxy = getEnv("HTTPS_PROXY", p.HTTPSProxy)
	p.NoProxy = getEnv("NO_PROXY", p.NoProxy)
	p.SOCKS5Proxy = getEnv("SOCKS5_PROXY", p.SOCKS5Proxy)
}
