// Package analytics exports closed visit brackets into ClickHouse and
// answers the admin dashboard's aggregate queries. Records that never
// closed stay in Postgres and are reported as abandoned, not active.
package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/kuantumticaret/storepulse/internal/models"
)

type Sink struct {
	conn clickhouse.Conn
}

func NewSink(conn clickhouse.Conn) *Sink {
	return &Sink{conn: conn}
}

type TopPathResult struct {
	PagePath string `json:"page_path"`
	Count    uint64 `json:"count"`
}

// InsertVisits batch-inserts closed visit records. Column order must
// match the visit_events table schema.
func (s *Sink) InsertVisits(ctx context.Context, visits []*models.VisitRecord) error {
	if len(visits) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO visit_events (
			visit_id, session_id, page_path, user_id, started_at, ended_at, duration_seconds
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, visit := range visits {
		userID := ""
		if visit.UserID != nil {
			userID = visit.UserID.String()
		}
		var endedAt time.Time
		if visit.EndedAt != nil {
			endedAt = *visit.EndedAt
		}
		var duration int64
		if visit.DurationSeconds != nil {
			duration = *visit.DurationSeconds
		}

		err := batch.Append(
			visit.ID.String(),
			visit.SessionID,
			visit.PagePath,
			userID,
			visit.StartedAt,
			endedAt,
			duration,
		)
		if err != nil {
			return fmt.Errorf("failed to append visit %s to batch: %w", visit.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// TopPagePaths returns the most visited paths in the window.
func (s *Sink) TopPagePaths(ctx context.Context, start, end time.Time, limit uint64) ([]TopPathResult, error) {
	if limit == 0 {
		limit = 10
	}

	query := `
		SELECT page_path, count() AS visit_count
		FROM visit_events
		WHERE started_at >= ? AND started_at <= ?
		GROUP BY page_path
		ORDER BY visit_count DESC
		LIMIT ?
	`
	rows, err := s.conn.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top page paths: %w", err)
	}
	defer rows.Close()

	var results []TopPathResult
	for rows.Next() {
		var result TopPathResult
		if err := rows.Scan(&result.PagePath, &result.Count); err != nil {
			return nil, fmt.Errorf("failed to scan top path row: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top path rows: %w", err)
	}
	return results, nil
}

// AverageDuration returns the mean visit duration in seconds over the
// window. Only closed brackets ever reach ClickHouse, so abandoned
// records cannot skew this.
func (s *Sink) AverageDuration(ctx context.Context, start, end time.Time) (float64, error) {
	query := `SELECT avg(duration_seconds) FROM visit_events WHERE started_at >= ? AND started_at <= ?`

	var avg float64
	err := s.conn.QueryRow(ctx, query, start, end).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to query average duration: %w", err)
	}

	// avg() over zero rows yields NaN, which JSON cannot carry.
	if math.IsNaN(avg) {
		return 0, nil
	}
	return avg, nil
}
