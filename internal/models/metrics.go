package models

import "time"

// SystemMetrics is a lightweight aggregate snapshot for the ops endpoint; the
// full Prometheus registry is exposed separately.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	SessionsGenerated        uint64    `json:"sessions_generated"`
	HolidayDeferrals         uint64    `json:"holiday_deferrals"`
	WorkflowDecisions        uint64    `json:"workflow_decisions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
