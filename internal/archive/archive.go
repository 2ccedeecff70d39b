package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/dvloznov/gmv-etl/internal/gmv"
)

// Writer archives computed GMV snapshots to a GCS bucket as JSON lines, one
// object per run: gmv/<processing-date>/<run-id>.json. The archive is written
// before the load stage touches the destination, so every snapshot that ever
// reached the loader has a durable audit copy.
// It assumes Application Default Credentials unless client options say otherwise.
type Writer struct {
	client *storage.Client
	bucket string
}

// NewWriter creates a new archive writer with its own storage client.
func NewWriter(ctx context.Context, bucket string, opts ...option.ClientOption) (*Writer, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewWriter: creating storage client: %w", err)
	}
	return &Writer{client: client, bucket: bucket}, nil
}

// Close closes the storage client connection.
func (w *Writer) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

// ArchiveSnapshot writes the snapshot rows as JSON lines.
func (w *Writer) ArchiveSnapshot(ctx context.Context, date civil.Date, runID string, rows []gmv.SnapshotRow) error {
	objectName := fmt.Sprintf("gmv/%s/%s.json", date, runID)
	obj := w.client.Bucket(w.bucket).Object(objectName)

	wr := obj.NewWriter(ctx)
	enc := json.NewEncoder(wr)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			_ = wr.Close()
			return fmt.Errorf("ArchiveSnapshot: encoding row: %w", err)
		}
	}

	// Close finalizes the upload; nothing is visible in the bucket before this.
	if err := wr.Close(); err != nil {
		return fmt.Errorf("ArchiveSnapshot: finalizing upload of %s: %w", objectName, err)
	}

	return nil
}

// Ensure Writer implements the gmv interface.
var _ gmv.SnapshotArchiver = (*Writer)(nil)
