package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dvloznov/gmv-etl/internal/gmv"
)

// HistoryTable is the BigQuery-backed SCD2 destination for daily GMV
// snapshots. The table is partitioned by gmv_date; rows are only ever
// appended or have their is_latest flag flipped from true to false.
type HistoryTable struct {
	client *bigquery.Client
	cfg    Config
}

// NewHistoryTable creates a new HistoryTable with its own BigQuery client.
func NewHistoryTable(ctx context.Context, cfg Config, opts ...option.ClientOption) (*HistoryTable, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewHistoryTable: creating client: %w", err)
	}
	return &HistoryTable{client: client, cfg: cfg}, nil
}

// Close closes the BigQuery client connection.
func (h *HistoryTable) Close() error {
	if h.client != nil {
		return h.client.Close()
	}
	return nil
}

func (h *HistoryTable) qualifiedName() string {
	return fmt.Sprintf("`%s.%s.%s`", h.cfg.ProjectID, h.cfg.SilverDataset, h.cfg.HistoryTable)
}

// Exists reports whether the history table has been created.
func (h *HistoryTable) Exists(ctx context.Context) (bool, error) {
	table := h.client.Dataset(h.cfg.SilverDataset).Table(h.cfg.HistoryTable)
	_, err := table.Metadata(ctx)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("Exists: fetching table metadata: %w", err)
	}
	return true, nil
}

// Initialize creates the history table partitioned by gmv_date and writes
// the snapshot as its initial content.
func (h *HistoryTable) Initialize(ctx context.Context, rows []gmv.SnapshotRow) error {
	schema, err := bigquery.InferSchema(historyRow{})
	if err != nil {
		return fmt.Errorf("Initialize: inferring schema: %w", err)
	}

	table := h.client.Dataset(h.cfg.SilverDataset).Table(h.cfg.HistoryTable)
	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "gmv_date",
		},
	}
	if err := table.Create(ctx, meta); err != nil {
		return fmt.Errorf("Initialize: creating table: %w", err)
	}

	// DML insert rather than the streaming API: freshly streamed rows sit
	// in a buffer that a subsequent supersede UPDATE cannot touch.
	q := h.client.Query(fmt.Sprintf(`
		INSERT INTO %s (gmv_date, subsidiary, gmv_total_day, calculation_timestamp, is_latest)
		SELECT r.gmv_date, r.subsidiary, r.gmv_total_day, r.calculation_timestamp, r.is_latest
		FROM UNNEST(@rows) AS r
	`, h.qualifiedName()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "rows", Value: toHistoryRows(rows)},
	}

	if err := h.runDML(ctx, q); err != nil {
		return fmt.Errorf("Initialize: writing initial snapshot: %w", err)
	}
	return nil
}

// SupersedeAndAppend merges the snapshot into the history table. Both phases
// run in one multi-statement transaction, so there is no window in which a
// key has either zero or two is_latest rows.
func (h *HistoryTable) SupersedeAndAppend(ctx context.Context, rows []gmv.SnapshotRow) error {
	name := h.qualifiedName()
	q := h.client.Query(fmt.Sprintf(`
		BEGIN TRANSACTION;

		UPDATE %s t
		SET t.is_latest = FALSE
		WHERE t.is_latest
		  AND EXISTS (
			SELECT 1 FROM UNNEST(@rows) r
			WHERE r.gmv_date = t.gmv_date AND r.subsidiary = t.subsidiary
		  );

		INSERT INTO %s (gmv_date, subsidiary, gmv_total_day, calculation_timestamp, is_latest)
		SELECT r.gmv_date, r.subsidiary, r.gmv_total_day, r.calculation_timestamp, r.is_latest
		FROM UNNEST(@rows) AS r;

		COMMIT TRANSACTION;
	`, name, name))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "rows", Value: toHistoryRows(rows)},
	}

	if err := h.runDML(ctx, q); err != nil {
		return fmt.Errorf("SupersedeAndAppend: merge transaction: %w", err)
	}
	return nil
}

// DuplicateLatestKeys returns every (gmv_date, subsidiary) carrying more than
// one is_latest row.
func (h *HistoryTable) DuplicateLatestKeys(ctx context.Context) ([]gmv.GroupKey, error) {
	q := h.client.Query(fmt.Sprintf(`
		SELECT gmv_date, subsidiary
		FROM %s
		WHERE is_latest
		GROUP BY gmv_date, subsidiary
		HAVING COUNT(*) > 1
	`, h.qualifiedName()))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("DuplicateLatestKeys: reading query: %w", err)
	}

	var keys []gmv.GroupKey
	for {
		var row groupKeyRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("DuplicateLatestKeys: iterating: %w", err)
		}
		keys = append(keys, gmv.GroupKey{GMVDate: row.GMVDate, Subsidiary: row.Subsidiary})
	}

	return keys, nil
}

// RepairDuplicateLatest supersedes all but the newest is_latest row for each
// of the given keys.
func (h *HistoryTable) RepairDuplicateLatest(ctx context.Context, keys []gmv.GroupKey) error {
	if len(keys) == 0 {
		return nil
	}

	name := h.qualifiedName()
	q := h.client.Query(fmt.Sprintf(`
		UPDATE %s t
		SET t.is_latest = FALSE
		WHERE t.is_latest
		  AND EXISTS (
			SELECT 1 FROM UNNEST(@keys) k
			WHERE k.gmv_date = t.gmv_date AND k.subsidiary = t.subsidiary
		  )
		  AND t.calculation_timestamp < (
			SELECT MAX(s.calculation_timestamp)
			FROM %s s
			WHERE s.gmv_date = t.gmv_date
			  AND s.subsidiary = t.subsidiary
			  AND s.is_latest
		  )
	`, name, name))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "keys", Value: toGroupKeyRows(keys)},
	}

	if err := h.runDML(ctx, q); err != nil {
		return fmt.Errorf("RepairDuplicateLatest: update: %w", err)
	}
	return nil
}

func (h *HistoryTable) runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

// Ensure HistoryTable implements the gmv interface.
var _ gmv.HistoryTable = (*HistoryTable)(nil)
