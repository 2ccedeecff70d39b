package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/dvloznov/gmv-etl/internal/archive"
	"github.com/dvloznov/gmv-etl/internal/gmv"
	infra "github.com/dvloznov/gmv-etl/internal/infra/bigquery"
	"github.com/dvloznov/gmv-etl/internal/logger"
)

var (
	projectID     = flag.String("project", "", "GCP project ID (required)")
	bronzeDataset = flag.String("bronze-dataset", "bronze", "BigQuery dataset holding the raw source tables")
	silverDataset = flag.String("silver-dataset", "silver", "BigQuery dataset holding the GMV history table")
	historyTable  = flag.String("history-table", "fct_gmv_daily", "Name of the GMV history table")
	dateStr       = flag.String("date", "", "Processing date as YYYY-MM-DD (default: yesterday, UTC)")
	archiveBucket = flag.String("archive-bucket", "", "GCS bucket for snapshot audit archives (optional)")
	credentials   = flag.String("credentials", "", "Path to a service account key file (optional)")
	repair        = flag.Bool("repair-duplicates", false, "Repair duplicate is_latest rows instead of running the job")
)

func main() {
	flag.Parse()

	runID := uuid.NewString()
	log := logger.WithRunID(logger.New(), runID)

	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required")
	}

	if err := run(log, runID); err != nil {
		log.Fatal().Err(err).Msg("Daily GMV ETL failed")
	}
}

// run owns every client and releases them on all exit paths; main only
// translates its error into a non-zero exit.
func run(log zerolog.Logger, runID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	processingDate, err := resolveProcessingDate(*dateStr)
	if err != nil {
		return err
	}

	var opts []option.ClientOption
	if *credentials != "" {
		opts = append(opts, option.WithCredentialsFile(*credentials))
	}

	cfg := infra.Config{
		ProjectID:     *projectID,
		BronzeDataset: *bronzeDataset,
		SilverDataset: *silverDataset,
		HistoryTable:  *historyTable,
	}

	history, err := infra.NewHistoryTable(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer history.Close()

	if *repair {
		return repairDuplicates(ctx, log, history)
	}

	sources, err := infra.NewSourceReader(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer sources.Close()

	var archiver gmv.SnapshotArchiver
	if *archiveBucket != "" {
		writer, err := archive.NewWriter(ctx, *archiveBucket, opts...)
		if err != nil {
			return err
		}
		defer writer.Close()
		archiver = writer
	}

	job := &gmv.Job{
		Sources:  sources,
		History:  history,
		Archiver: archiver,
		RunID:    runID,
	}

	return job.Run(ctx, processingDate)
}

// resolveProcessingDate returns the injected override or D-1 in UTC. The
// orchestrator owns this decision; the job core never computes "yesterday".
func resolveProcessingDate(override string) (civil.Date, error) {
	if override == "" {
		return civil.DateOf(time.Now().UTC().AddDate(0, 0, -1)), nil
	}
	date, err := civil.ParseDate(override)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid -date %q: %w", override, err)
	}
	return date, nil
}

func repairDuplicates(ctx context.Context, log zerolog.Logger, history *infra.HistoryTable) error {
	keys, err := history.DuplicateLatestKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		log.Info().Msg("No duplicate is_latest rows found, nothing to repair")
		return nil
	}

	log.Warn().Int("keys", len(keys)).Msg("Repairing duplicate is_latest rows")
	if err := history.RepairDuplicateLatest(ctx, keys); err != nil {
		return err
	}

	log.Info().Int("keys", len(keys)).Msg("Repair completed")
	return nil
}
