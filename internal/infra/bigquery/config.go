package bigquery

// Config identifies the BigQuery datasets and tables the pipeline touches.
// Sources live in the bronze dataset and are read-only; the history table
// lives in the silver dataset and is owned by this job.
type Config struct {
	ProjectID     string
	BronzeDataset string
	SilverDataset string
	HistoryTable  string
}

const (
	purchaseTable          = "purchase"
	productItemTable       = "product_item"
	purchaseExtraInfoTable = "purchase_extra_info"
)
