package storage

import (
	"context"
	"io"
)

// Storage is the object store behind the import and archive pipelines:
// operators drop workbooks into it, the ingestion worker downloads them,
// and the archive worker uploads synced observations back out.
type Storage interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, key string, data io.Reader) error
}
