package bodylog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const defaultCaptureTimeout = 45 * time.Second

type PipelineState int

const (
	StateIdle PipelineState = iota
	StateCapturing
	StateUploading
	StatePersisting
	StateAnalysisTriggered
	StateReconciled
	StateFailed
)

func (s PipelineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateUploading:
		return "uploading"
	case StatePersisting:
		return "persisting"
	case StateAnalysisTriggered:
		return "analysis_triggered"
	case StateReconciled:
		return "reconciled"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("PipelineState(%d)", int(s))
}

// Outcome is the terminal result of one capture.
type Outcome struct {
	TempID            string
	DurableID         string
	StoragePath       string
	State             PipelineState
	FailedAt          PipelineState
	// AnalysisSubmitted is true once analysis is running or done for the
	// promoted record, whether this capture or the promotion sweep launched it.
	AnalysisSubmitted bool
	Err               error
}

// CapturePipeline runs capture → upload → persist → promote → analysis
// handoff for one owner. Several captures may be in flight at once; each has
// its own temporary identity.
type CapturePipeline struct {
	ownerID     string
	store       *Store
	storage     StorageGateway
	persistence PersistenceGateway
	runner      *AnalysisRunner
	tokens      TokenSource
	notices     *Notices

	ctx       context.Context
	timeout   time.Duration
	newTempID func() string

	wg sync.WaitGroup
}

type PipelineOptions struct {
	Timeout time.Duration
	// NewTempID overrides temporary id generation.
	NewTempID func() string
}

func NewCapturePipeline(
	ctx context.Context,
	ownerID string,
	store *Store,
	storage StorageGateway,
	persistence PersistenceGateway,
	runner *AnalysisRunner,
	tokens TokenSource,
	notices *Notices,
	opts PipelineOptions,
) *CapturePipeline {
	p := &CapturePipeline{
		ownerID:     ownerID,
		store:       store,
		storage:     storage,
		persistence: persistence,
		runner:      runner,
		tokens:      tokens,
		notices:     notices,
		ctx:         ctx,
		timeout:     opts.Timeout,
		newTempID:   opts.NewTempID,
	}
	if p.timeout <= 0 {
		p.timeout = defaultCaptureTimeout
	}
	if p.newTempID == nil {
		p.newTempID = NewTempID
	}
	return p
}

// BeginCapture shows the optimistic placeholder and finishes the capture in
// the background. The returned temporary id identifies the placeholder until
// it is promoted or removed.
func (p *CapturePipeline) BeginCapture(handle LocalHandle) (string, error) {
	tempID, err := p.start(handle)
	if err != nil {
		return "", err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
		defer cancel()
		p.finish(ctx, tempID, handle)
	}()
	return tempID, nil
}

// Capture runs the whole pipeline on the calling goroutine.
func (p *CapturePipeline) Capture(ctx context.Context, handle LocalHandle) Outcome {
	tempID, err := p.start(handle)
	if err != nil {
		state := StateFailed
		if errors.Is(err, ErrNoImage) {
			state = StateIdle
		}
		return Outcome{State: state, FailedAt: StateCapturing, Err: err}
	}
	return p.finish(ctx, tempID, handle)
}

// Wait blocks until every capture started with BeginCapture has finished.
func (p *CapturePipeline) Wait() {
	p.wg.Wait()
}

// start performs Idle → Capturing. Without image bytes the pipeline never
// leaves Idle and no placeholder is shown.
func (p *CapturePipeline) start(handle LocalHandle) (string, error) {
	if len(handle.Data) == 0 {
		return "", ErrNoImage
	}
	tempID := p.newTempID()
	if !p.store.InsertPlaceholder(tempID, p.ownerID) {
		p.notices.Push(NoticeCaptureFailed, "Couldn't add your photo. Please try again.")
		return "", fmt.Errorf("failed to insert placeholder %s", tempID)
	}
	return tempID, nil
}

func (p *CapturePipeline) finish(ctx context.Context, tempID string, handle LocalHandle) Outcome {
	out := Outcome{TempID: tempID, State: StateUploading}

	path, err := p.storage.Upload(ctx, handle, p.ownerID)
	if err != nil {
		return p.fail(out, StateUploading, NoticeUploadFailed,
			"Your photo couldn't be uploaded. Please try again.", fmt.Errorf("failed to upload photo: %w", err))
	}
	out.StoragePath = path
	out.State = StatePersisting

	created, err := p.persistence.CreateRecord(ctx, p.ownerID, path)
	if err != nil {
		if delErr := p.storage.Delete(ctx, path); delErr != nil {
			log.Printf("bodylog: failed to delete orphaned upload %s: %v", path, delErr)
		}
		return p.fail(out, StatePersisting, NoticePersistFailed,
			"Your photo couldn't be saved. Please try again.", fmt.Errorf("failed to create record: %w", err))
	}
	out.DurableID = created.DurableID

	var displayURL *string
	urls, err := p.storage.ResolveDisplayURLs(ctx, []string{path})
	if err != nil {
		log.Printf("bodylog: failed to resolve display url for %s: %v", path, err)
	} else if len(urls) == 1 {
		displayURL = urls[0]
	}

	p.store.Promote(tempID, created.DurableID, path, displayURL)
	out.State = StateAnalysisTriggered

	if token, ok := p.tokens.Token(); ok {
		out.AnalysisSubmitted = p.runner.Submit(created.DurableID, token) || p.analysisStarted(created.DurableID)
	} else {
		log.Printf("bodylog: no live token, analysis for %s deferred to sweep", created.DurableID)
	}

	out.State = StateReconciled
	return out
}

func (p *CapturePipeline) analysisStarted(id string) bool {
	rec, ok := p.store.Get(id)
	return ok && rec.AnalysisStatus != AnalysisIdle
}

func (p *CapturePipeline) fail(out Outcome, at PipelineState, kind NoticeKind, message string, err error) Outcome {
	p.store.Remove(out.TempID)
	p.notices.Push(kind, message)
	log.Printf("bodylog: capture %s failed while %s: %v", out.TempID, at, err)

	out.State = StateFailed
	out.FailedAt = at
	out.Err = err
	return out
}
