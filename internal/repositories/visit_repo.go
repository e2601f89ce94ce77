package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kuantumticaret/storepulse/internal/models"
)

// ErrAlreadyClosed is returned when a close lands on a record that was
// closed before. Closed records are never reopened.
var ErrAlreadyClosed = errors.New("visit record already closed")

type PostgresVisitRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresVisitRepository(pool *pgxpool.Pool) *PostgresVisitRepository {
	return &PostgresVisitRepository{pool: pool}
}

// Open inserts a new visit record. The ID and StartedAt are stamped by the
// tracker before the insert so rapid navigation can close a record whose
// insert has not returned yet.
func (r *PostgresVisitRepository) Open(ctx context.Context, visit *models.VisitRecord) error {
	query := `INSERT INTO visit_records (id, session_id, page_path, user_id, started_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		visit.ID,
		visit.SessionID,
		visit.PagePath,
		visit.UserID,
		visit.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to open visit record: %w", err)
	}
	return nil
}

// Close stamps the end of a bracket. The WHERE clause refuses records that
// are already closed, so a duplicate close (two tabs, retried beacon) is a
// no-op conflict rather than a rewrite.
func (r *PostgresVisitRepository) Close(ctx context.Context, id uuid.UUID, endedAt time.Time, durationSeconds int64) error {
	query := `UPDATE visit_records
	          SET ended_at = $1, duration_seconds = $2
	          WHERE id = $3 AND ended_at IS NULL`

	result, err := r.pool.Exec(ctx, query, endedAt, durationSeconds, id)
	if err != nil {
		return fmt.Errorf("failed to close visit record: %w", err)
	}

	if result.RowsAffected() == 0 {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing.EndedAt != nil {
			return ErrAlreadyClosed
		}
		return ErrNotFound
	}
	return nil
}

func (r *PostgresVisitRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.VisitRecord, error) {
	query := `SELECT id, session_id, page_path, user_id, started_at, ended_at, duration_seconds
	          FROM visit_records WHERE id = $1`

	var visit models.VisitRecord
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&visit.ID,
		&visit.SessionID,
		&visit.PagePath,
		&visit.UserID,
		&visit.StartedAt,
		&visit.EndedAt,
		&visit.DurationSeconds,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visit record: %w", err)
	}
	return &visit, nil
}

func (r *PostgresVisitRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.VisitRecord, error) {
	query := `SELECT id, session_id, page_path, user_id, started_at, ended_at, duration_seconds
	          FROM visit_records WHERE session_id = $1 ORDER BY started_at ASC`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query visit records: %w", err)
	}
	defer rows.Close()

	return scanVisits(rows)
}

// ListClosedSince feeds the analytics exporter with brackets closed after
// the given point in time.
func (r *PostgresVisitRepository) ListClosedSince(ctx context.Context, since time.Time) ([]*models.VisitRecord, error) {
	query := `SELECT id, session_id, page_path, user_id, started_at, ended_at, duration_seconds
	          FROM visit_records
	          WHERE ended_at IS NOT NULL AND ended_at > $1
	          ORDER BY ended_at ASC`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed visit records: %w", err)
	}
	defer rows.Close()

	return scanVisits(rows)
}

// CountAbandoned counts records that never received their close write.
// Unload handlers cannot guarantee completion, so these are expected;
// they are abandoned, not active.
func (r *PostgresVisitRepository) CountAbandoned(ctx context.Context, openedBefore time.Time) (int64, error) {
	query := `SELECT count(*) FROM visit_records
	          WHERE ended_at IS NULL AND started_at < $1`

	var count int64
	err := r.pool.QueryRow(ctx, query, openedBefore).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count abandoned visit records: %w", err)
	}
	return count, nil
}

func scanVisits(rows pgx.Rows) ([]*models.VisitRecord, error) {
	var visits []*models.VisitRecord
	for rows.Next() {
		var visit models.VisitRecord
		err := rows.Scan(
			&visit.ID,
			&visit.SessionID,
			&visit.PagePath,
			&visit.UserID,
			&visit.StartedAt,
			&visit.EndedAt,
			&visit.DurationSeconds,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit record: %w", err)
		}
		visits = append(visits, &visit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visit records: %w", err)
	}
	return visits, nil
}
