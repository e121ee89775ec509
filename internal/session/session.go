// Package session keeps one body-log workspace per signed-in owner.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bodylog-backend/internal/bodylog"
)

type Gateways struct {
	Storage     bodylog.StorageGateway
	Persistence bodylog.PersistenceGateway
	Analysis    bodylog.AnalysisGateway
}

type Options struct {
	CaptureTimeout  time.Duration
	AnalysisTimeout time.Duration
	NoticesCapacity int
}

// Session owns the store and the background workers for a single owner.
type Session struct {
	OwnerID    string
	Store      *bodylog.Store
	Notices    *bodylog.Notices
	Runner     *bodylog.AnalysisRunner
	Pipeline   *bodylog.CapturePipeline
	Reconciler *bodylog.Reconciler

	gateways Gateways
	now      func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	closed    bool

	loadMu sync.Mutex
	loaded bool
}

func newSession(ctx context.Context, ownerID string, gw Gateways, opts Options, now func() time.Time) *Session {
	s := &Session{
		OwnerID:  ownerID,
		Store:    bodylog.NewStore(),
		Notices:  bodylog.NewNotices(opts.NoticesCapacity),
		gateways: gw,
		now:      now,
	}
	s.Runner = bodylog.NewAnalysisRunner(ctx, s.Store, gw.Analysis, opts.AnalysisTimeout)
	s.Pipeline = bodylog.NewCapturePipeline(ctx, ownerID, s.Store, gw.Storage, gw.Persistence,
		s.Runner, s, s.Notices, bodylog.PipelineOptions{Timeout: opts.CaptureTimeout})
	s.Reconciler = bodylog.NewReconciler(s.Store, s.Runner, s)
	s.Reconciler.Attach()
	return s
}

// Token returns the access token while it has not expired.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", false
	}
	if !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt) {
		return "", false
	}
	return s.token, true
}

// RefreshToken adopts a newer access token and sweeps for records that still
// need analysis. It reports false once the session has been closed.
func (s *Session) RefreshToken(token string) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.token = token
	s.expiresAt = tokenExpiry(token)
	s.mu.Unlock()

	if submitted := s.Reconciler.Sweep(); submitted > 0 {
		log.Printf("Session %s: submitted %d records for analysis", s.OwnerID, submitted)
	}
	return true
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

// LoadHistory merges persisted records into the store once per session. A
// failed load is retried on the next call.
func (s *Session) LoadHistory(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.loaded {
		return nil
	}

	added, err := bodylog.LoadHistory(ctx, s.Store, s.OwnerID, s.gateways.Persistence, s.gateways.Storage)
	if err != nil {
		return err
	}
	s.loaded = true
	log.Printf("Session %s: loaded %d history records", s.OwnerID, added)
	return nil
}

// RenewDisplayURLs re-signs every durable record's display url.
func (s *Session) RenewDisplayURLs(ctx context.Context) (int, error) {
	return bodylog.RenewDisplayURLs(ctx, s.Store, s.gateways.Storage)
}

// Wait blocks until the session's captures and analyses finish.
func (s *Session) Wait() {
	s.Pipeline.Wait()
	s.Runner.Wait()
}

// tokenExpiry reads exp without verifying; the middleware has already
// verified the signature.
func tokenExpiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
