package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dvloznov/gmv-etl/internal/gmv"
)

// SourceReader reads the bronze source tables for a single processing date.
// It holds a shared BigQuery client to avoid creating a new connection for
// each operation.
type SourceReader struct {
	client *bigquery.Client
	cfg    Config
}

// NewSourceReader creates a new SourceReader with its own BigQuery client.
func NewSourceReader(ctx context.Context, cfg Config, opts ...option.ClientOption) (*SourceReader, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewSourceReader: creating client: %w", err)
	}
	return &SourceReader{client: client, cfg: cfg}, nil
}

// Close closes the BigQuery client connection.
func (s *SourceReader) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ReadPurchases returns every purchase version captured on the processing date.
func (s *SourceReader) ReadPurchases(ctx context.Context, date civil.Date) ([]gmv.PurchaseRecord, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			purchase_id,
			purchase_partition,
			transaction_datetime,
			ingest_offset,
			transaction_date,
			purchase_status,
			purchase_total_value,
			subsidiary
		FROM `+"`%s.%s.%s`"+`
		WHERE transaction_date = @processing_date
	`, s.cfg.ProjectID, s.cfg.BronzeDataset, purchaseTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "processing_date", Value: date},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadPurchases: reading query: %w", err)
	}

	var records []gmv.PurchaseRecord
	for {
		var row purchaseRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadPurchases: iterating: %w", err)
		}
		records = append(records, row.toRecord())
	}

	return records, nil
}

// ReadProductItems returns every product item version captured on the
// processing date.
func (s *SourceReader) ReadProductItems(ctx context.Context, date civil.Date) ([]gmv.ProductItemRecord, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			purchase_id,
			purchase_partition,
			transaction_datetime,
			ingest_offset,
			transaction_date,
			product_id,
			quantity,
			unit_value
		FROM `+"`%s.%s.%s`"+`
		WHERE transaction_date = @processing_date
	`, s.cfg.ProjectID, s.cfg.BronzeDataset, productItemTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "processing_date", Value: date},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadProductItems: reading query: %w", err)
	}

	var records []gmv.ProductItemRecord
	for {
		var row productItemRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadProductItems: iterating: %w", err)
		}
		records = append(records, row.toRecord())
	}

	return records, nil
}

// ReadPurchaseExtraInfo returns every enrichment row version captured on the
// processing date.
func (s *SourceReader) ReadPurchaseExtraInfo(ctx context.Context, date civil.Date) ([]gmv.PurchaseExtraInfo, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			purchase_id,
			purchase_partition,
			transaction_datetime,
			ingest_offset,
			transaction_date,
			release_date
		FROM `+"`%s.%s.%s`"+`
		WHERE transaction_date = @processing_date
	`, s.cfg.ProjectID, s.cfg.BronzeDataset, purchaseExtraInfoTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "processing_date", Value: date},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadPurchaseExtraInfo: reading query: %w", err)
	}

	var records []gmv.PurchaseExtraInfo
	for {
		var row purchaseExtraInfoRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadPurchaseExtraInfo: iterating: %w", err)
		}
		records = append(records, row.toRecord())
	}

	return records, nil
}

// Ensure SourceReader implements the gmv interface.
var _ gmv.SourceReader = (*SourceReader)(nil)
