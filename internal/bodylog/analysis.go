package bodylog

import (
	"context"
	"log"
	"sync"
	"time"
)

const defaultAnalysisTimeout = 60 * time.Second

// AnalysisRunner submits persisted records for remote body-composition
// analysis and writes the outcome back into the store. It is the only writer
// of analysis fields after persistence.
type AnalysisRunner struct {
	store   *Store
	gateway AnalysisGateway
	ctx     context.Context
	timeout time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewAnalysisRunner returns a runner whose remote calls are derived from ctx,
// not from the caller of Submit.
func NewAnalysisRunner(ctx context.Context, store *Store, gateway AnalysisGateway, timeout time.Duration) *AnalysisRunner {
	if timeout <= 0 {
		timeout = defaultAnalysisTimeout
	}
	return &AnalysisRunner{
		store:    store,
		gateway:  gateway,
		ctx:      ctx,
		timeout:  timeout,
		inflight: make(map[string]struct{}),
	}
}

// Submit starts analysis for durableID and returns whether a remote call was
// launched. Records already pending, analyzed or in flight are left alone.
// A record in error may be submitted again explicitly.
func (r *AnalysisRunner) Submit(durableID, authToken string) bool {
	if authToken == "" {
		log.Printf("bodylog: analysis for %s skipped: no auth token", durableID)
		return false
	}

	// The status is read under r.mu so a completion cannot slip between the
	// check and the in-flight mark.
	r.mu.Lock()
	if _, busy := r.inflight[durableID]; busy {
		r.mu.Unlock()
		return false
	}
	rec, ok := r.store.Get(durableID)
	if !ok || rec.ID.IsTemporary() ||
		rec.AnalysisStatus == AnalysisPending || rec.AnalysisStatus == AnalysisSuccess {
		r.mu.Unlock()
		return false
	}
	r.inflight[durableID] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()

	if !r.store.PatchAnalysis(durableID, AnalysisPatch{Status: AnalysisPending}) {
		r.finish(durableID)
		return false
	}

	go func() {
		defer r.finish(durableID)
		r.run(durableID, authToken)
	}()
	return true
}

func (r *AnalysisRunner) run(durableID, authToken string) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	metrics, err := r.gateway.Analyze(ctx, durableID, authToken)
	if err != nil {
		log.Printf("bodylog: analysis for %s failed: %v", durableID, err)
		r.store.PatchAnalysis(durableID, AnalysisPatch{Status: AnalysisError})
		return
	}
	r.store.PatchAnalysis(durableID, AnalysisPatch{Status: AnalysisSuccess, Metrics: metrics})
}

func (r *AnalysisRunner) finish(durableID string) {
	r.mu.Lock()
	delete(r.inflight, durableID)
	r.mu.Unlock()
	r.wg.Done()
}

func (r *AnalysisRunner) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}

// Wait blocks until every launched analysis has completed.
func (r *AnalysisRunner) Wait() {
	r.wg.Wait()
}
