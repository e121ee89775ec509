package bodylog

import (
	"context"
	"fmt"
)

// LoadHistory fetches the owner's persisted records, resolves display urls
// and merges them into the store. It returns the number of records added.
func LoadHistory(ctx context.Context, store *Store, ownerID string, persistence PersistenceGateway, storage StorageGateway) (int, error) {
	persisted, err := persistence.ListRecords(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to list records: %w", err)
	}
	if len(persisted) == 0 {
		return 0, nil
	}

	paths := make([]string, len(persisted))
	for i, p := range persisted {
		paths[i] = p.StoragePath
	}
	urls, err := storage.ResolveDisplayURLs(ctx, paths)
	if err != nil || len(urls) != len(paths) {
		// Records stay visible as busy tiles until a renewal succeeds.
		urls = make([]*string, len(paths))
	}

	records := make([]ImageRecord, 0, len(persisted))
	for i, p := range persisted {
		records = append(records, historyRecord(ownerID, p, urls[i]))
	}
	return store.Load(records), nil
}

func historyRecord(ownerID string, p PersistedRecord, displayURL *string) ImageRecord {
	rec := ImageRecord{
		ID:             DurableID(p.DurableID),
		OwnerID:        ownerID,
		StoragePath:    p.StoragePath,
		DisplayURL:     displayURL,
		LoadStatus:     LoadIdle,
		AnalysisStatus: AnalysisIdle,
		Metrics:        p.Metrics,
		CreatedAt:      p.CreatedAt,
	}
	if displayURL != nil {
		rec.LoadStatus = LoadLoading
	}
	switch {
	case !p.Metrics.Empty():
		rec.AnalysisStatus = AnalysisSuccess
	case p.AnalysisStatus == AnalysisError:
		rec.AnalysisStatus = AnalysisError
	}
	return rec
}

// RenewDisplayURLs re-signs the display urls of every durable record.
func RenewDisplayURLs(ctx context.Context, store *Store, storage StorageGateway) (int, error) {
	var ids, paths []string
	for _, rec := range store.Snapshot() {
		if rec.ID.IsTemporary() || rec.StoragePath == "" {
			continue
		}
		ids = append(ids, rec.ID.Value)
		paths = append(paths, rec.StoragePath)
	}
	if len(paths) == 0 {
		return 0, nil
	}

	urls, err := storage.ResolveDisplayURLs(ctx, paths)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve display urls: %w", err)
	}
	if len(urls) != len(paths) {
		return 0, fmt.Errorf("failed to resolve display urls: got %d urls for %d paths", len(urls), len(paths))
	}

	byID := make(map[string]*string, len(ids))
	for i, id := range ids {
		byID[id] = urls[i]
	}
	return store.RenewDisplayURLs(byID), nil
}
