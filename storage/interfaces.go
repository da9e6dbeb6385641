package storage

import "market-surplus/models"

// BundleWriter is the interface any export or persistence backend must satisfy.
type BundleWriter interface {
	Write(bundles []*models.ResultBundle) error
	Close() error
}

// RunReader reads previously persisted calculations.
type RunReader interface {
	FetchRecent(limit int) ([]*models.StoredRun, error)
}
