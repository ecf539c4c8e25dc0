package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/transitops/patternmine/pkg/models"
)

// PatternStore persists synthesized patterns for later retrieval.
type PatternStore struct {
	db *sql.DB
}

// SavePatterns inserts the given patterns. Zero patterns is a no-op.
func (s *PatternStore) SavePatterns(ctx context.Context, patterns []*models.Pattern) error {
	if len(patterns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pattern save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO patterns
		(id, title, description, filters, priority, frequency,
		 time_range_start_epoch, time_range_end_epoch, incident_ids, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare pattern insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range patterns {
		filtersJSON, err := json.Marshal(p.Filters)
		if err != nil {
			return fmt.Errorf("encode filters for %s: %w", p.ID, err)
		}
		idsJSON, err := json.Marshal(p.IncidentIDs)
		if err != nil {
			return fmt.Errorf("encode incident ids for %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.Title, p.Description, string(filtersJSON), p.Priority, p.Frequency,
			p.TimeRangeStart.UnixMilli(), p.TimeRangeEnd.UnixMilli(), string(idsJSON),
			p.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert pattern %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// RecentPatterns returns the most recently created patterns, newest first.
func (s *PatternStore) RecentPatterns(ctx context.Context, limit int) ([]*models.Pattern, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, title, description, filters, priority,
		frequency, time_range_start_epoch, time_range_end_epoch, incident_ids, created_at_epoch
		FROM patterns ORDER BY created_at_epoch DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*models.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func scanPattern(rows *sql.Rows) (*models.Pattern, error) {
	var p models.Pattern
	var filtersJSON, idsJSON string
	var startEpoch, endEpoch, createdEpoch int64

	if err := rows.Scan(&p.ID, &p.Title, &p.Description, &filtersJSON, &p.Priority,
		&p.Frequency, &startEpoch, &endEpoch, &idsJSON, &createdEpoch); err != nil {
		return nil, fmt.Errorf("scan pattern row: %w", err)
	}
	if err := json.Unmarshal([]byte(filtersJSON), &p.Filters); err != nil {
		return nil, fmt.Errorf("decode filters for %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(idsJSON), &p.IncidentIDs); err != nil {
		return nil, fmt.Errorf("decode incident ids for %s: %w", p.ID, err)
	}
	p.TimeRangeStart = time.UnixMilli(startEpoch).UTC()
	p.TimeRangeEnd = time.UnixMilli(endEpoch).UTC()
	p.CreatedAt = time.UnixMilli(createdEpoch).UTC()
	return &p, nil
}
