package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// archiveBatchSize bounds how many rows one archive object holds.
const archiveBatchSize = 1000

// BlobWriter uploads one archive object.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves opportunities older than the retention window out of
// PostgreSQL into object storage. Rows are only deleted after the upload
// succeeded, so a failed run leaves them for the next one.
type Archiver struct {
	store         domain.OpportunityStore
	writer        BlobWriter
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(store domain.OpportunityStore, writer BlobWriter, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:         store,
		writer:        writer,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive pass, draining all rows older than the
// retention cutoff in batches.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("archive run starting",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	var total int64
	for batch := 0; ; batch++ {
		opps, err := a.store.ListBefore(ctx, cutoff, archiveBatchSize)
		if err != nil {
			return fmt.Errorf("list opportunities before %v: %w", cutoff, err)
		}
		if len(opps) == 0 {
			break
		}

		key := archiveKey(time.Now().UTC(), batch)
		if err := a.upload(ctx, key, opps); err != nil {
			return err
		}

		ids := make([]string, len(opps))
		for i, opp := range opps {
			ids[i] = opp.ID
		}
		deleted, err := a.store.DeleteIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("delete archived opportunities: %w", err)
		}
		total += deleted

		a.logger.Info("archived batch",
			slog.String("key", key),
			slog.Int("rows", len(opps)),
			slog.Int64("deleted", deleted),
		)
	}

	a.logger.Info("archive run complete", slog.Int64("rows_archived", total))
	return nil
}

// RunLoop runs archive passes on a fixed interval until the context is
// cancelled. Failures are logged and retried on the next tick.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (a *Archiver) upload(ctx context.Context, key string, opps []domain.ArbitrageOpportunity) error {
	payload, err := json.Marshal(opps)
	if err != nil {
		return fmt.Errorf("marshal archive batch: %w", err)
	}
	if err := a.writer.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
		return fmt.Errorf("upload archive %s: %w", key, err)
	}
	return nil
}

func archiveKey(now time.Time, batch int) string {
	return fmt.Sprintf("opportunities/%s/%s-%03d.json",
		now.Format("2006/01/02"), now.Format("150405"), batch)
}
