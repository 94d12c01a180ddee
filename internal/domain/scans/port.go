package scans

import "context"

// HistoryStore port (interface untuk persistence). The whole history is
// serialized under a single key and rewritten on every mutation.
type HistoryStore interface {
	Load(ctx context.Context) ([]*ScanRecord, error)
	Save(ctx context.Context, records []*ScanRecord) error
	Clear(ctx context.Context) error
}

// Describer port: turns an opaque image reference into a free-text
// description of its content. The default implementation is a placeholder
// sampler standing in for real image recognition.
type Describer interface {
	Describe(ctx context.Context, imageRef string) (string, error)
}

// ImageStore port (interface untuk penyimpanan gambar). Uploaded scan
// images become the record's opaque image reference.
type ImageStore interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
}
