package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bodylog-backend/internal/bodylog"
	"bodylog-backend/internal/bodylog/bodylogtest"
	"bodylog-backend/internal/session"
)

type fixture struct {
	manager     *session.Manager
	storage     *bodylogtest.Storage
	persistence *bodylogtest.Persistence
	analysis    *bodylogtest.Analysis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		storage:     bodylogtest.NewStorage(),
		persistence: bodylogtest.NewPersistence(),
		analysis:    bodylogtest.NewAnalysis(),
	}
	f.manager = session.NewManager(context.Background(), session.Gateways{
		Storage:     f.storage,
		Persistence: f.persistence,
		Analysis:    f.analysis,
	}, session.Options{CaptureTimeout: time.Second, AnalysisTimeout: time.Second})
	t.Cleanup(f.manager.Wait)
	return f
}

func token(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "owner-1"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return signed
}

func TestManager_OpenLoadsHistoryOnce(t *testing.T) {
	f := newFixture(t)
	f.persistence.History = []bodylog.PersistedRecord{
		{DurableID: "d1", StoragePath: "p1", CreatedAt: time.Now()},
	}
	tok := token(t, time.Now().Add(time.Hour))

	s := f.manager.Open(context.Background(), "owner-1", tok)
	s.Wait()
	assert.Equal(t, 1, s.Store.Len())

	f.persistence.History = append(f.persistence.History,
		bodylog.PersistedRecord{DurableID: "d2", StoragePath: "p2", CreatedAt: time.Now()})
	again := f.manager.Open(context.Background(), "owner-1", tok)
	again.Wait()

	assert.Same(t, s, again)
	assert.Equal(t, 1, again.Store.Len())
	assert.Equal(t, 1, f.manager.Len())
}

func TestManager_OpenSweepsHistoryWithToken(t *testing.T) {
	f := newFixture(t)
	f.persistence.History = []bodylog.PersistedRecord{
		{DurableID: "d1", StoragePath: "p1", CreatedAt: time.Now()},
	}

	s := f.manager.Open(context.Background(), "owner-1", token(t, time.Now().Add(time.Hour)))
	s.Wait()

	assert.Equal(t, 1, f.analysis.CallCount("d1"))
	rec, ok := s.Store.Get("d1")
	require.True(t, ok)
	assert.Equal(t, bodylog.AnalysisSuccess, rec.AnalysisStatus)
}

func TestManager_HistoryFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	f.persistence.ListErr = errors.New("db down")
	tok := token(t, time.Time{})

	s := f.manager.Open(context.Background(), "owner-1", tok)
	assert.Zero(t, s.Store.Len())

	f.persistence.ListErr = nil
	f.persistence.History = []bodylog.PersistedRecord{
		{DurableID: "d1", StoragePath: "p1", CreatedAt: time.Now()},
	}
	s = f.manager.Open(context.Background(), "owner-1", tok)
	s.Wait()
	assert.Equal(t, 1, s.Store.Len())
}

func TestSession_TokenExpiry(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.manager.SetClock(func() time.Time { return now })

	s := f.manager.Open(context.Background(), "owner-1", token(t, now.Add(time.Minute)))
	_, ok := s.Token()
	assert.True(t, ok)

	s.RefreshToken(token(t, now.Add(-time.Minute)))
	_, ok = s.Token()
	assert.False(t, ok, "expired tokens are not handed out")

	s.RefreshToken(token(t, time.Time{}))
	_, ok = s.Token()
	assert.True(t, ok)
}

func TestManager_CloseResetsStore(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.storage.Gates["late.jpg"] = gate

	s := f.manager.Open(context.Background(), "owner-1", token(t, time.Time{}))
	tempID, err := s.Pipeline.BeginCapture(bodylog.LocalHandle{Data: []byte("x"), Filename: "late.jpg"})
	require.NoError(t, err)
	_, ok := s.Store.Get(tempID)
	require.True(t, ok)

	assert.True(t, f.manager.Close("owner-1"))
	assert.False(t, f.manager.Close("owner-1"))
	close(gate)
	s.Wait()

	assert.Zero(t, s.Store.Len(), "late promotion after logout is a no-op")
	_, ok = s.Token()
	assert.False(t, ok)
	_, ok = f.manager.Get("owner-1")
	assert.False(t, ok)
}

func TestManager_OpenReplacesSessionClosedDuringLoad(t *testing.T) {
	f := newFixture(t)
	var dropped *session.Session
	f.persistence.OnList = func() {
		if dropped != nil {
			return
		}
		dropped, _ = f.manager.Get("owner-1")
		f.manager.Close("owner-1")
	}

	s := f.manager.Open(context.Background(), "owner-1", token(t, time.Now().Add(time.Hour)))
	require.NotNil(t, dropped)
	dropped.Wait()

	assert.NotSame(t, dropped, s)
	current, ok := f.manager.Get("owner-1")
	require.True(t, ok)
	assert.Same(t, current, s)

	_, ok = s.Token()
	assert.True(t, ok)
	_, ok = dropped.Token()
	assert.False(t, ok, "a closed session never takes a new token")
}
