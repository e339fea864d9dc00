package config

import (
	"strings"
	"time"
)

type SecurityConfig interface {
	GetLoginRateLimit() (requests int, window time.Duration)
	GetLoginStateTimeout() time.Duration
	GetSecureCookies() bool
	GetTrustedProxies() []string
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetLoginRateLimit caps how many login flows a single client IP may start per window.
func (Security) GetLoginRateLimit() (int, time.Duration) {
	return GetEnvInt("LOGIN_RATE_LIMIT_REQUESTS", 10), GetEnvDuration("LOGIN_RATE_LIMIT_WINDOW", time.Minute)
}

// GetLoginStateTimeout bounds the round trip to the identity provider and back.
func (Security) GetLoginStateTimeout() time.Duration {
	return 10 * time.Minute
}

// GetTrustedProxies reads a comma separated TRUSTED_PROXIES list of addresses or CIDR ranges.
// Forwarding headers are only believed from these peers.
func (Security) GetTrustedProxies() []string {
	var proxies []string
	for _, proxy := range strings.Split(GetEnv("TRUSTED_PROXIES", ""), ",") {
		if proxy = strings.TrimSpace(proxy); proxy != "" {
			proxies = append(proxies, proxy)
		}
	}
	return proxies
}

func (Security) GetSecureCookies() bool {
	return EnvVars{}.GetEnv() != "DEV"
}
