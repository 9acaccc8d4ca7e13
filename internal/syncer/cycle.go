package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/quotesync/quote-sync-service/internal/models"
	"github.com/quotesync/quote-sync-service/internal/records"
)

// syncOnce runs one full fetch→validate→group→forward→advance-watermark
// cycle. A cycle with nothing to forward has no side effects. Any forwarding
// failure aborts the cycle and leaves the watermark untouched, so the next
// trigger naturally retries the same range.
//
// The watermark advances to the highest paidAt among validated records.
// A valid record delivered later with a paidAt at or below the new watermark
// is never reprocessed; accepted boundary condition.
func (r *Runner) syncOnce(ctx context.Context, logger *slog.Logger) error {
	since, err := r.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}

	raws, err := r.source.FetchSince(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to fetch records since %d: %w", since, err)
	}
	if len(raws) == 0 {
		logger.Debug("no new records", "since", since)
		return nil
	}

	valid := make([]models.RawRecord, 0, len(raws))
	for _, raw := range raws {
		if err := records.ValidateShape(raw); err != nil {
			logger.Warn("dropping malformed record", "error", err, "record", raw)
			continue
		}
		if err := records.ValidateNamespace(raw); err != nil {
			logger.Warn("dropping record with invalid namespace",
				"id", raw.ID, "namespace", raw.Namespace, "error", err)
			continue
		}
		valid = append(valid, raw)
	}
	if len(valid) == 0 {
		logger.Debug("no records survived validation", "fetched", len(raws))
		return nil
	}

	groups := records.GroupByNamespace(valid)

	g, gctx := errgroup.WithContext(ctx)
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			return r.forwardGroup(gctx, grp)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	latest := since
	for _, raw := range valid {
		if raw.PaidAt > latest {
			latest = raw.PaidAt
		}
	}
	if latest > since {
		if err := r.store.Set(ctx, latest); err != nil {
			return fmt.Errorf("failed to advance watermark to %d: %w", latest, err)
		}
		logger.Info("sync cycle complete",
			"records", len(valid), "groups", len(groups), "watermark", latest)
	}

	return nil
}

// forwardGroup registers the group's namespace and ingests its records in
// one call, in that order.
func (r *Runner) forwardGroup(ctx context.Context, grp records.Group) error {
	if err := r.namespaces.EnsureNamespace(ctx, grp.Key); err != nil {
		return fmt.Errorf("failed to ensure namespace %s: %w", grp.Key, err)
	}

	batch := make([]models.TransformedRecord, len(grp.Records))
	for i, raw := range grp.Records {
		batch[i] = records.Transform(raw)
	}

	if err := r.ingestor.IngestRecords(ctx, grp.Key, batch); err != nil {
		return fmt.Errorf("failed to ingest %d records into %s: %w", len(batch), grp.Key, err)
	}
	return nil
}
