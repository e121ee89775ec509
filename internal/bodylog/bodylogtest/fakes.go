// Package bodylogtest provides in-memory gateways for exercising the body-log
// pipeline in tests.
package bodylogtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bodylog-backend/internal/bodylog"
)

var ErrInjected = errors.New("injected failure")

// Storage is a StorageGateway keyed by the handle filename. Gates, when set,
// block Upload for that filename until closed.
type Storage struct {
	mu        sync.Mutex
	Paths     map[string]string
	Gates     map[string]chan struct{}
	FailOn    map[string]bool
	SignFails map[string]bool
	Deleted   []string
	Uploads   int
	SignCalls int
}

func NewStorage() *Storage {
	return &Storage{
		Paths:     make(map[string]string),
		Gates:     make(map[string]chan struct{}),
		FailOn:    make(map[string]bool),
		SignFails: make(map[string]bool),
	}
}

func (s *Storage) Upload(ctx context.Context, handle bodylog.LocalHandle, ownerID string) (string, error) {
	s.mu.Lock()
	gate := s.Gates[handle.Filename]
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Uploads++
	if s.FailOn[handle.Filename] {
		return "", ErrInjected
	}
	if path, ok := s.Paths[handle.Filename]; ok {
		return path, nil
	}
	return fmt.Sprintf("users/%s/body-log/%s", ownerID, handle.Filename), nil
}

func (s *Storage) ResolveDisplayURLs(ctx context.Context, storagePaths []string) ([]*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SignCalls++
	urls := make([]*string, len(storagePaths))
	for i, p := range storagePaths {
		if s.SignFails[p] {
			continue
		}
		u := fmt.Sprintf("https://cdn.test/%s?v=%d", p, s.SignCalls)
		urls[i] = &u
	}
	return urls, nil
}

func (s *Storage) DeletedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Deleted...)
}

func (s *Storage) Delete(ctx context.Context, storagePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, storagePath)
	return nil
}

// Persistence assigns durable ids in the order given by IDs, keyed by
// storage path when IDs has an entry for it.
type Persistence struct {
	mu      sync.Mutex
	IDs     map[string]string
	Gates   map[string]chan struct{}
	FailOn  map[string]bool
	History []bodylog.PersistedRecord
	next    int
	Created []string
	ListErr error
	// OnList runs before ListRecords answers.
	OnList func()
}

func NewPersistence() *Persistence {
	return &Persistence{
		IDs:    make(map[string]string),
		Gates:  make(map[string]chan struct{}),
		FailOn: make(map[string]bool),
	}
}

func (p *Persistence) CreateRecord(ctx context.Context, ownerID, storagePath string) (bodylog.CreatedRecord, error) {
	p.mu.Lock()
	gate := p.Gates[storagePath]
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return bodylog.CreatedRecord{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailOn[storagePath] {
		return bodylog.CreatedRecord{}, ErrInjected
	}
	id, ok := p.IDs[storagePath]
	if !ok {
		p.next++
		id = fmt.Sprintf("d%d", p.next)
	}
	p.Created = append(p.Created, storagePath)
	return bodylog.CreatedRecord{DurableID: id, CreatedAt: time.Now()}, nil
}

func (p *Persistence) CreatedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Created)
}

func (p *Persistence) ListRecords(ctx context.Context, ownerID string) ([]bodylog.PersistedRecord, error) {
	p.mu.Lock()
	onList := p.OnList
	p.mu.Unlock()
	if onList != nil {
		onList()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListErr != nil {
		return nil, p.ListErr
	}
	return append([]bodylog.PersistedRecord(nil), p.History...), nil
}

// Analysis is an AnalysisGateway returning Results per durable id, or Err.
// When Block is set every call waits on it before answering.
type Analysis struct {
	mu      sync.Mutex
	Results map[string]bodylog.Metrics
	Err     error
	Block   chan struct{}
	Calls   map[string]int
	Tokens  []string
}

func NewAnalysis() *Analysis {
	return &Analysis{
		Results: make(map[string]bodylog.Metrics),
		Calls:   make(map[string]int),
	}
}

func (a *Analysis) Analyze(ctx context.Context, durableID, authToken string) (bodylog.Metrics, error) {
	a.mu.Lock()
	a.Calls[durableID]++
	a.Tokens = append(a.Tokens, authToken)
	block := a.Block
	a.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return bodylog.Metrics{}, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return bodylog.Metrics{}, a.Err
	}
	return a.Results[durableID], nil
}

func (a *Analysis) CallCount(durableID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Calls[durableID]
}

func (a *Analysis) TotalCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, n := range a.Calls {
		total += n
	}
	return total
}

// Token is a settable TokenSource.
type Token struct {
	mu    sync.Mutex
	value string
}

func NewToken(value string) *Token {
	return &Token{value: value}
}

func (t *Token) Set(value string) {
	t.mu.Lock()
	t.value = value
	t.mu.Unlock()
}

func (t *Token) Token() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.value != ""
}

func Float(f float64) *float64 {
	return &f
}
