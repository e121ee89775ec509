package bodylog

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ChangeKind string

const (
	ChangeInserted   ChangeKind = "inserted"
	ChangePromoted   ChangeKind = "promoted"
	ChangeRemoved    ChangeKind = "removed"
	ChangeAnalysis   ChangeKind = "analysis"
	ChangeLoadStatus ChangeKind = "load_status"
	ChangeLoaded     ChangeKind = "loaded"
	ChangeRenewed    ChangeKind = "renewed"
	ChangeReset      ChangeKind = "reset"
)

// Change describes one applied mutation. Listeners receive it after the store
// lock is released, so they may call back into the store.
type Change struct {
	Kind    ChangeKind
	ID      string
	Version uint64
}

// AddsRecord reports whether the change made a new record visible.
func (c Change) AddsRecord() bool {
	switch c.Kind {
	case ChangeInserted, ChangePromoted, ChangeLoaded:
		return true
	}
	return false
}

type Listener func(Change)

// Store is the ordered, newest-first collection of image records for one
// owner. Every exported mutation is a single critical section; operations on
// ids that are no longer present are silent no-ops and report false.
type Store struct {
	mu        sync.RWMutex
	records   []ImageRecord
	version   uint64
	listeners []Listener
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// NewTempID mints a client-side temporary identity.
func NewTempID() string {
	return tempIDPrefix + uuid.New().String()
}

func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

func (s *Store) InsertPlaceholder(tempID, ownerID string) bool {
	s.mu.Lock()
	if tempID == "" || s.indexOf(tempID) >= 0 {
		s.mu.Unlock()
		return false
	}
	rec := ImageRecord{
		ID:             TemporaryID(tempID),
		OwnerID:        ownerID,
		LoadStatus:     LoadLoading,
		AnalysisStatus: AnalysisPending,
		CreatedAt:      s.now(),
	}
	s.records = append([]ImageRecord{rec}, s.records...)
	return s.commit(ChangeInserted, tempID)
}

// Promote swaps the temporary record for its durable counterpart in place.
// If another record already carries durableID or storagePath the placeholder
// is dropped instead, keeping one record per photo.
func (s *Store) Promote(tempID, durableID, storagePath string, displayURL *string) bool {
	s.mu.Lock()
	idx := s.indexOf(tempID)
	if idx < 0 || !s.records[idx].ID.IsTemporary() || durableID == "" {
		s.mu.Unlock()
		return false
	}
	if s.indexOf(durableID) >= 0 || s.indexOfPath(storagePath) >= 0 {
		s.records = append(s.records[:idx], s.records[idx+1:]...)
		return s.commit(ChangeRemoved, tempID)
	}

	rec := s.records[idx]
	rec.ID = DurableID(durableID)
	rec.StoragePath = storagePath
	if displayURL != nil {
		rec.DisplayURL = stringPtr(*displayURL)
	}
	rec.AnalysisStatus = AnalysisIdle
	s.records[idx] = rec
	return s.commit(ChangePromoted, durableID)
}

func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.records = append(s.records[:idx], s.records[idx+1:]...)
	return s.commit(ChangeRemoved, id)
}

func (s *Store) PatchAnalysis(id string, patch AnalysisPatch) bool {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 || s.records[idx].ID.IsTemporary() {
		s.mu.Unlock()
		return false
	}
	rec := &s.records[idx]
	if patch.Status != "" {
		rec.AnalysisStatus = patch.Status
	}
	rec.Metrics = rec.Metrics.merge(patch.Metrics)
	return s.commit(ChangeAnalysis, id)
}

// PatchLoadStatus records the render state of a record's image bytes.
// displayURL names the url the client rendered; nil means the current one. A
// report for a superseded url is dropped, and the stored url is never taken
// from the client. The url only changes through promotion or renewal, so a
// loaded record never goes back to loading here.
func (s *Store) PatchLoadStatus(id string, status LoadStatus, displayURL *string) bool {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 || !status.Valid() {
		s.mu.Unlock()
		return false
	}
	rec := &s.records[idx]
	if displayURL != nil && !sameURL(rec.DisplayURL, displayURL) {
		s.mu.Unlock()
		return false
	}
	if status == LoadLoading && rec.LoadStatus == LoadLoaded {
		s.mu.Unlock()
		return false
	}
	rec.LoadStatus = status
	return s.commit(ChangeLoadStatus, id)
}

// RenewDisplayURLs replaces expiring display urls keyed by durable id. A
// changed url sends a loaded record back to loading; nil entries are skipped.
func (s *Store) RenewDisplayURLs(urls map[string]*string) int {
	s.mu.Lock()
	renewed := 0
	for i := range s.records {
		rec := &s.records[i]
		next, ok := urls[rec.ID.Value]
		if !ok || next == nil || rec.ID.IsTemporary() || sameURL(rec.DisplayURL, next) {
			continue
		}
		rec.DisplayURL = stringPtr(*next)
		if rec.LoadStatus == LoadLoaded {
			rec.LoadStatus = LoadLoading
		}
		renewed++
	}
	if renewed == 0 {
		s.mu.Unlock()
		return 0
	}
	s.commit(ChangeRenewed, "")
	return renewed
}

// Load merges persisted history into the store. Records whose id or storage
// path is already present are skipped. In-flight placeholders stay in front
// and durable records are kept newest-first.
func (s *Store) Load(records []ImageRecord) int {
	s.mu.Lock()
	added := 0
	for _, rec := range records {
		if rec.ID.Value == "" || s.indexOf(rec.ID.Value) >= 0 || s.indexOfPath(rec.StoragePath) >= 0 {
			continue
		}
		rec = rec.clone()
		rec.ID.Kind = Durable
		s.records = append(s.records, rec)
		added++
	}
	if added == 0 {
		s.mu.Unlock()
		return 0
	}

	var placeholders, durable []ImageRecord
	for _, rec := range s.records {
		if rec.ID.IsTemporary() {
			placeholders = append(placeholders, rec)
		} else {
			durable = append(durable, rec)
		}
	}
	sort.SliceStable(durable, func(i, j int) bool {
		return durable[i].CreatedAt.After(durable[j].CreatedAt)
	})
	s.records = append(placeholders, durable...)
	s.commit(ChangeLoaded, "")
	return added
}

// Reset drops every record, used when the owning session ends.
func (s *Store) Reset() {
	s.mu.Lock()
	s.records = nil
	s.commit(ChangeReset, "")
}

func (s *Store) Get(id string) (ImageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return ImageRecord{}, false
	}
	return s.records[idx].clone(), true
}

func (s *Store) Snapshot() []ImageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ImageRecord, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.clone()
	}
	return out
}

// SnapshotWithVersion returns the records together with the version they
// were read at.
func (s *Store) SnapshotWithVersion() ([]ImageRecord, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ImageRecord, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.clone()
	}
	return out, s.version
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// commit bumps the version, releases the lock and notifies listeners.
// Callers must hold s.mu.
func (s *Store) commit(kind ChangeKind, id string) bool {
	s.version++
	change := Change{Kind: kind, ID: id, Version: s.version}
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(change)
	}
	return true
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.records {
		if s.records[i].ID.Value == id {
			return i
		}
	}
	return -1
}

func (s *Store) indexOfPath(path string) int {
	if path == "" {
		return -1
	}
	for i := range s.records {
		if s.records[i].StoragePath == path {
			return i
		}
	}
	return -1
}
