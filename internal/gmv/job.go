package gmv

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/gmv-etl/internal/logger"
)

// Job is one daily GMV computation. All collaborators are injected and owned
// by the caller; the job holds no global session state and runs strictly
// sequentially: extract, dedup, aggregate, archive, load. Every error is
// fatal for the run and propagates to the caller with full context.
type Job struct {
	Sources SourceReader
	History HistoryTable

	// Archiver, when set, receives a copy of every non-empty snapshot
	// before the load stage touches the destination.
	Archiver SnapshotArchiver

	// RunID is the run-scoped correlation id, also used to name archived
	// snapshots.
	RunID string

	// Now is the clock used to stamp snapshot rows; defaults to time.Now.
	Now func() time.Time
}

// Run executes the job for the given processing date. The date is injected
// by the orchestrator — the core never derives "yesterday" itself.
func (j *Job) Run(ctx context.Context, processingDate civil.Date) error {
	log := logger.FromContext(ctx)
	log.Info().Str("processing_date", processingDate.String()).Msg("Starting daily GMV job")

	log.Info().Msg("1. Extracting source data")
	purchases, err := j.Sources.ReadPurchases(ctx, processingDate)
	if err != nil {
		return fmt.Errorf("Run: extracting purchases: %w", err)
	}
	productItems, err := j.Sources.ReadProductItems(ctx, processingDate)
	if err != nil {
		return fmt.Errorf("Run: extracting product items: %w", err)
	}
	extraInfo, err := j.Sources.ReadPurchaseExtraInfo(ctx, processingDate)
	if err != nil {
		return fmt.Errorf("Run: extracting purchase extra info: %w", err)
	}
	log.Info().
		Int("purchases", len(purchases)).
		Int("product_items", len(productItems)).
		Int("purchase_extra_info", len(extraInfo)).
		Msg("Source data extracted")

	log.Info().Msg("2. Computing GMV snapshot")
	latestPurchases := SelectLatest(purchases)
	latestExtraInfo := SelectLatest(extraInfo)
	log.Info().
		Int("latest_purchases", len(latestPurchases)).
		Int("latest_extra_info", len(latestExtraInfo)).
		Msg("Consolidated latest record versions")

	snapshot := Aggregate(latestPurchases, latestExtraInfo, j.now())
	log.Info().Int("snapshot_rows", len(snapshot)).Msg("GMV snapshot computed")

	if len(snapshot) > 0 && j.Archiver != nil {
		if err := j.Archiver.ArchiveSnapshot(ctx, processingDate, j.RunID, snapshot); err != nil {
			return fmt.Errorf("Run: archiving snapshot: %w", err)
		}
	}

	log.Info().Msg("3. Loading snapshot into history table")
	if err := NewLoader(j.History).Load(ctx, snapshot); err != nil {
		return fmt.Errorf("Run: loading snapshot: %w", err)
	}

	log.Info().Msg("Daily GMV job finished successfully")
	return nil
}

func (j *Job) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}
