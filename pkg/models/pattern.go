package models

import "time"

// PriorityRange is the inclusive min/max priority observed across a cluster.
type PriorityRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// MaxFilterKeywords caps the distinct keywords surfaced in pattern filters.
const MaxFilterKeywords = 20

// PatternFilters is the structured aggregate of a cluster's member incidents,
// usable as a drill-down filter set by downstream consumers.
type PatternFilters struct {
	Services       []string      `json:"services"`
	Categories     []string      `json:"categories"`
	Sources        []string      `json:"sources"`
	Keywords       []string      `json:"keywords"` // lower-cased, capped at MaxFilterKeywords
	PriorityRange  PriorityRange `json:"priorityRange"`
	Sentiments     []string      `json:"sentiments"`
	TimeRangeStart time.Time     `json:"timeRangeStart"`
	TimeRangeEnd   time.Time     `json:"timeRangeEnd"`
}

// Pattern is a synthesized, human-readable summary of one cluster of similar
// incidents. Created once per cluster and immutable afterwards; Frequency
// always equals the number of member incidents.
type Pattern struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Filters        PatternFilters `json:"filters"`
	Priority       int            `json:"priority"`  // recency-weighted average
	Frequency      int            `json:"frequency"` // == len(IncidentIDs)
	TimeRangeStart time.Time      `json:"timeRangeStart"`
	TimeRangeEnd   time.Time      `json:"timeRangeEnd"`
	IncidentIDs    []string       `json:"incidentIds"`
	CreatedAt      time.Time      `json:"createdAt"`
}
