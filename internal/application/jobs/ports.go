package jobs

import "context"

// ObjectStore abstracts the object storage backend used by the file
// processing workflow. Compatible with any S3-style store.
type ObjectStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, data []byte, contentType string) error
}
