// Package models contains domain models for patternmine.
package models

import "time"

// Incident is one reported transit issue as ingested by the engine.
// It is treated as an immutable input record.
type Incident struct {
	ID         string   `json:"id"`
	Time       string   `json:"time"` // RFC3339 or "2006-01-02 15:04:05"; parsed during preprocessing
	Service    string   `json:"service"`
	Source     string   `json:"source"`
	Subservice string   `json:"subservice"`
	Priority   int      `json:"priority"`
	Category   string   `json:"category"`
	Sentiment  string   `json:"sentimentAnalysis"` // sentiment label, e.g. "negative", "frustrated"
	Summary    string   `json:"summary"`
	Original   string   `json:"original"`
	Keywords   []string `json:"keywords"`
}

// NormalizedIncident is an Incident plus the fields derived during
// preprocessing. Derived once per run, never persisted.
type NormalizedIncident struct {
	Incident

	// ParsedTime is the incident time parsed into a concrete timestamp.
	ParsedTime time.Time `json:"-"`
	// NormalizedSummary is the lower-cased, punctuation-stripped summary.
	NormalizedSummary string `json:"-"`
	// Tokens is the stop-word-filtered token list of the summary.
	Tokens []string `json:"-"`
}

// Translation holds the machine-translated fields cached per incident ID.
type Translation struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}
