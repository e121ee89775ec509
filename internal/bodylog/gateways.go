package bodylog

import (
	"context"
	"errors"
	"time"
)

var ErrNoImage = errors.New("no image returned from capture")

// LocalHandle is the captured photo as handed over by the camera or picker,
// already normalized for upload.
type LocalHandle struct {
	Data        []byte
	Filename    string
	ContentType string
}

// StorageGateway stores photo bytes and issues time-limited display urls.
type StorageGateway interface {
	Upload(ctx context.Context, handle LocalHandle, ownerID string) (string, error)
	// ResolveDisplayURLs returns one entry per path, nil where signing failed.
	ResolveDisplayURLs(ctx context.Context, storagePaths []string) ([]*string, error)
	Delete(ctx context.Context, storagePath string) error
}

type CreatedRecord struct {
	DurableID string
	CreatedAt time.Time
}

type PersistedRecord struct {
	DurableID      string
	StoragePath    string
	CreatedAt      time.Time
	Metrics        Metrics
	AnalysisStatus AnalysisStatus
}

type PersistenceGateway interface {
	CreateRecord(ctx context.Context, ownerID, storagePath string) (CreatedRecord, error)
	ListRecords(ctx context.Context, ownerID string) ([]PersistedRecord, error)
}

type AnalysisGateway interface {
	Analyze(ctx context.Context, durableID, authToken string) (Metrics, error)
}

// TokenSource yields the live auth token, if any.
type TokenSource interface {
	Token() (string, bool)
}

type TokenFunc func() (string, bool)

func (f TokenFunc) Token() (string, bool) {
	return f()
}
