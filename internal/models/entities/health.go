package entities

import "time"

type ServiceStatus struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

type HealthCheckResponse struct {
	Status   string                   `json:"status"`
	Services map[string]ServiceStatus `json:"services"`
	Uptime   string                   `json:"uptime"`
	Time     time.Time                `json:"time"`
}
