package config

import (
	"strings"
	"time"
)

type BackendConfig interface {
	GetUsersURL() string
	GetJournalsURL() string
	GetAppointmentsURL() string
	GetAssignmentsURL() string
	GetBackendTimeout() time.Duration
}

type Backend struct{}

var _ BackendConfig = Backend{}

func (Backend) GetUsersURL() string {
	return strings.TrimSuffix(GetEnv("BACKEND_USERS_URL", "http://localhost:8081/api/users"), "/")
}

func (Backend) GetJournalsURL() string {
	return strings.TrimSuffix(GetEnv("BACKEND_JOURNALS_URL", "http://localhost:8081/api/journals"), "/")
}

func (Backend) GetAppointmentsURL() string {
	return strings.TrimSuffix(GetEnv("BACKEND_APPOINTMENTS_URL", "https://localhost:8443/api/appointments"), "/")
}

func (Backend) GetAssignmentsURL() string {
	return strings.TrimSuffix(GetEnv("BACKEND_ASSIGNMENTS_URL", "https://localhost:8443/api/assignments"), "/")
}

func (Backend) GetBackendTimeout() time.Duration {
	return GetEnvDuration("BACKEND_TIMEOUT", 10*time.Second)
}
