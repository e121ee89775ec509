package bodylog

// Reconciler is the idle-analysis sweep. It submits every durable record that
// has an uploaded photo but was never analyzed, e.g. because no token was
// available at capture time or the record predates the analysis feature.
// Records in error are terminal for the sweep.
type Reconciler struct {
	store  *Store
	runner *AnalysisRunner
	tokens TokenSource
}

func NewReconciler(store *Store, runner *AnalysisRunner, tokens TokenSource) *Reconciler {
	return &Reconciler{store: store, runner: runner, tokens: tokens}
}

// Attach sweeps after every store change that adds a record.
func (r *Reconciler) Attach() {
	r.store.Subscribe(func(c Change) {
		if c.AddsRecord() {
			r.Sweep()
		}
	})
}

// Sweep returns how many records were submitted.
func (r *Reconciler) Sweep() int {
	token, ok := r.tokens.Token()
	if !ok {
		return 0
	}
	submitted := 0
	for _, id := range NeedsAnalysis(r.store.Snapshot()) {
		if r.runner.Submit(id, token) {
			submitted++
		}
	}
	return submitted
}

// NeedsAnalysis lists durable ids eligible for the sweep, in store order.
func NeedsAnalysis(records []ImageRecord) []string {
	var ids []string
	for _, rec := range records {
		if rec.ID.IsTemporary() || rec.StoragePath == "" {
			continue
		}
		if rec.AnalysisStatus != AnalysisIdle || !rec.Metrics.Empty() {
			continue
		}
		ids = append(ids, rec.ID.Value)
	}
	return ids
}
