package models

import "time"

// ProxyPoolStatus is a point-in-time snapshot of proxy pool health.
type ProxyPoolStatus struct {
	Total        int    `json:"total"`
	Available    int    `json:"available"`
	Failed       int    `json:"failed"`
	CurrentProxy string `json:"currentProxy,omitempty"`
}

// Pipeline health states derived from the consecutive failure streak.
type PipelineState string

const (
	StateNormal   PipelineState = "normal"
	StateDegraded PipelineState = "degraded"
	StateCritical PipelineState = "critical"
)

// HealthSummary describes the refresh pipeline's recent fortunes.
type HealthSummary struct {
	State                   PipelineState `json:"state"`
	ConsecutiveFailures     int           `json:"consecutiveFailures"`
	TotalFailures           int           `json:"totalFailures"`
	LastSuccess             time.Time     `json:"lastSuccess,omitempty"`
	MinutesSinceLastSuccess int           `json:"minutesSinceLastSuccess"`
}

// HealthStatus is the shape returned by the /health endpoint.
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}
