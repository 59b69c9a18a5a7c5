// Package model defines the shared domain types for hostwatch.
package model

// MetricSample is one point-in-time host telemetry record. Exactly one sample
// is produced per poll tick; rows are append-only and never mutated.
type MetricSample struct {
	Timestamp  int64   `json:"ts"` // unix seconds
	Hostname   string  `json:"hostname"`
	InternalIP *string `json:"internal_ip,omitempty"`
	ExternalIP *string `json:"external_ip,omitempty"`

	CPUPct  float64 `json:"cpu_pct"`  // 0-100
	MemPct  float64 `json:"mem_pct"`  // 0-100
	DiskPct float64 `json:"disk_pct"` // 0-100
	LoadAvg float64 `json:"load_avg"` // 1-minute load average

	// Round-trip averages in milliseconds; nil when the probe failed or the
	// target was undiscoverable.
	LatencyGatewayMs  *float64 `json:"latency_gateway_ms,omitempty"`
	LatencyExternalMs *float64 `json:"latency_external_ms,omitempty"`

	MemUsedMB  float64 `json:"mem_used_mb"`
	MemFreeMB  float64 `json:"mem_free_mb"`
	DiskUsedMB float64 `json:"disk_used_mb"`
	DiskFreeMB float64 `json:"disk_free_mb"`
}

// LoginEvent records one successful SSH login observed in the auth log. The
// timestamp is the time of detection, not the time embedded in the log line.
// Identical lines produce identical, separate rows; there is no deduplication.
type LoginEvent struct {
	Timestamp int64  `json:"ts"` // unix seconds, detection time
	LogEntry  string `json:"log_entry"`
}
