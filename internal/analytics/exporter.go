package analytics

import (
	"context"
	"log"
	"time"

	"github.com/kuantumticaret/storepulse/internal/models"
)

const defaultExportInterval = 30 * time.Second

type closedVisitSource interface {
	ListClosedSince(ctx context.Context, since time.Time) ([]*models.VisitRecord, error)
}

type visitInserter interface {
	InsertVisits(ctx context.Context, visits []*models.VisitRecord) error
}

// Exporter periodically copies closed visit records from Postgres into
// the ClickHouse sink. A watermark on ended_at keeps each run
// incremental; a failed run leaves the watermark untouched so the next
// tick retries the same window.
type Exporter struct {
	visits   closedVisitSource
	sink     visitInserter
	interval time.Duration
	debug    bool

	watermark time.Time
}

func NewExporter(visits closedVisitSource, sink visitInserter, interval time.Duration, debug bool) *Exporter {
	if interval <= 0 {
		interval = defaultExportInterval
	}
	return &Exporter{
		visits:    visits,
		sink:      sink,
		interval:  interval,
		debug:     debug,
		watermark: time.Now().Add(-24 * time.Hour),
	}
}

// Run blocks until ctx is cancelled, exporting one batch per tick.
func (e *Exporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.ExportOnce(ctx); err != nil {
				log.Printf("[ANALYTICS] export failed: %v", err)
			}
		}
	}
}

// ExportOnce moves all visits closed since the watermark into the sink
// and advances the watermark to the latest exported ended_at.
func (e *Exporter) ExportOnce(ctx context.Context) error {
	visits, err := e.visits.ListClosedSince(ctx, e.watermark)
	if err != nil {
		return err
	}
	if len(visits) == 0 {
		return nil
	}

	if err := e.sink.InsertVisits(ctx, visits); err != nil {
		return err
	}

	latest := e.watermark
	for _, visit := range visits {
		if visit.EndedAt != nil && visit.EndedAt.After(latest) {
			latest = *visit.EndedAt
		}
	}
	e.watermark = latest

	if e.debug {
		log.Printf("[ANALYTICS] exported %d visits, watermark %s", len(visits), latest.Format(time.RFC3339))
	}
	return nil
}
