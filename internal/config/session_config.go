package config

import "time"

type SessionConfig interface {
	GetRefreshInterval() time.Duration
	GetMinTokenValidity() time.Duration
	GetRefreshFailureLimit() int
	GetLogoutLocation() string
	GetIdleTimeout() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetRefreshInterval() time.Duration {
	return GetEnvDuration("SESSION_REFRESH_INTERVAL", time.Minute)
}

// GetMinTokenValidity is the remaining lifetime below which a tick rotates the access token.
func (Session) GetMinTokenValidity() time.Duration {
	return GetEnvDuration("SESSION_MIN_TOKEN_VALIDITY", 30*time.Second)
}

// GetRefreshFailureLimit is the number of consecutive failed refreshes that end a session.
// 1 ends the session on the first failure.
func (Session) GetRefreshFailureLimit() int {
	if limit := GetEnvInt("SESSION_REFRESH_FAILURE_LIMIT", 1); limit > 0 {
		return limit
	}
	return 1
}

func (Session) GetLogoutLocation() string {
	return GetEnv("SESSION_LOGOUT_LOCATION", "/")
}

// GetIdleTimeout is how long a signed-in browser may go without a request before the portal
// logs its session out.
func (Session) GetIdleTimeout() time.Duration {
	return GetEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute)
}
