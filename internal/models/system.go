package models

import "time"

// SystemMetrics is the in-process instrumentation snapshot served by /analytics/system.
type SystemMetrics struct {
	HTTP       RequestStats  `json:"http"`
	Cache      CacheStats    `json:"cache"`
	Database   QueryStats    `json:"database"`
	Telegram   DeliveryStats `json:"telegram"`
	Exports    uint64        `json:"exports_rendered"`
	Roster     *RosterGauge  `json:"roster,omitempty"`
	Goroutines int           `json:"goroutines"`
	TakenAt    time.Time     `json:"taken_at"`
}

type RequestStats struct {
	Total     uint64  `json:"total"`
	AverageMs float64 `json:"average_ms"`
}

type CacheStats struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}

type QueryStats struct {
	Count     uint64  `json:"count"`
	AverageMs float64 `json:"average_ms"`
}

type DeliveryStats struct {
	Sent   uint64 `json:"sent"`
	Failed uint64 `json:"failed"`
}

// RosterGauge is the last unfiltered roster evaluation; nil until one ran.
type RosterGauge struct {
	Total          int       `json:"total"`
	ConformityRate float64   `json:"conformity_rate"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
}
