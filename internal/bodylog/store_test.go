package bodylog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bodylog-backend/internal/bodylog"
	"bodylog-backend/internal/bodylog/bodylogtest"
)

func ptr(s string) *string {
	return &s
}

func ids(records []bodylog.ImageRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID.Value
	}
	return out
}

func TestStore_InsertPlaceholder(t *testing.T) {
	store := bodylog.NewStore()

	assert.True(t, store.InsertPlaceholder("tmp_1", "user-1"))
	assert.True(t, store.InsertPlaceholder("tmp_2", "user-1"))
	assert.False(t, store.InsertPlaceholder("tmp_1", "user-1"), "duplicate temp id is a no-op")

	snap := store.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, []string{"tmp_2", "tmp_1"}, ids(snap))

	rec := snap[1]
	assert.True(t, rec.ID.IsTemporary())
	assert.Equal(t, "user-1", rec.OwnerID)
	assert.Equal(t, bodylog.LoadLoading, rec.LoadStatus)
	assert.Equal(t, bodylog.AnalysisPending, rec.AnalysisStatus)
	assert.True(t, rec.Metrics.Empty())
	assert.Nil(t, rec.DisplayURL)
	assert.Empty(t, rec.StoragePath)
}

func TestStore_PromoteKeepsCountAndPosition(t *testing.T) {
	store := bodylog.NewStore()
	store.InsertPlaceholder("tmp_a", "u")
	store.InsertPlaceholder("tmp_b", "u")
	store.InsertPlaceholder("tmp_c", "u")
	before := store.Snapshot()

	assert.True(t, store.Promote("tmp_b", "d-b", "p-b", ptr("https://cdn/p-b")))

	after := store.Snapshot()
	require.Len(t, after, len(before))
	assert.Equal(t, []string{"tmp_c", "d-b", "tmp_a"}, ids(after))

	rec := after[1]
	assert.False(t, rec.ID.IsTemporary())
	assert.Equal(t, "p-b", rec.StoragePath)
	assert.Equal(t, "https://cdn/p-b", *rec.DisplayURL)
	assert.Equal(t, before[1].CreatedAt, rec.CreatedAt)
	assert.Equal(t, bodylog.AnalysisIdle, rec.AnalysisStatus)
}

func TestStore_PromoteMissingIsNoop(t *testing.T) {
	store := bodylog.NewStore()
	store.InsertPlaceholder("tmp_a", "u")
	store.Promote("tmp_a", "d1", "p1", nil)
	before := store.Snapshot()
	version := store.Version()

	assert.False(t, store.Promote("tmp_missing", "d2", "p2", nil))
	assert.False(t, store.Promote("tmp_a", "d3", "p3", nil), "promoting twice is a no-op")
	assert.False(t, store.Promote("d1", "d4", "p4", nil), "durable records cannot be promoted")

	assert.Equal(t, before, store.Snapshot())
	assert.Equal(t, version, store.Version())
}

func TestStore_PromoteDropsPlaceholderWhenPhotoAlreadyPresent(t *testing.T) {
	store := bodylog.NewStore()
	store.InsertPlaceholder("tmp_a", "u")
	store.Load([]bodylog.ImageRecord{{
		ID:          bodylog.DurableID("d1"),
		StoragePath: "p1",
		CreatedAt:   time.Now(),
	}})
	require.Equal(t, 2, store.Len())

	assert.True(t, store.Promote("tmp_a", "d1", "p1", nil))

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "d1", snap[0].ID.Value)
}

func TestStore_Remove(t *testing.T) {
	store := bodylog.NewStore()
	store.InsertPlaceholder("tmp_a", "u")
	store.InsertPlaceholder("tmp_b", "u")
	store.Promote("tmp_b", "d-b", "p-b", nil)

	assert.True(t, store.Remove("tmp_a"))
	assert.True(t, store.Remove("d-b"))
	assert.False(t, store.Remove("d-b"))
	assert.Zero(t, store.Len())
}

func TestStore_PatchAnalysis(t *testing.T) {
	store := bodylog.NewStore()
	store.InsertPlaceholder("tmp_a", "u")

	assert.False(t, store.PatchAnalysis("tmp_a", bodylog.AnalysisPatch{Status: bodylog.AnalysisSuccess}),
		"temporary records have no analysis to patch")
	assert.False(t, store.PatchAnalysis("nope", bodylog.AnalysisPatch{Status: bodylog.AnalysisSuccess}))
	assert.Equal(t, 1, store.Len(), "patching a missing id never inserts")

	store.Promote("tmp_a", "d1", "p1", nil)
	assert.True(t, store.PatchAnalysis("d1", bodylog.AnalysisPatch{
		Status:  bodylog.AnalysisSuccess,
		Metrics: bodylog.Metrics{Weight: bodylogtest.Float(81.5)},
	}))
	assert.True(t, store.PatchAnalysis("d1", bodylog.AnalysisPatch{
		Metrics: bodylog.Metrics{BMI: bodylogtest.Float(24.1)},
	}))

	rec, ok := store.Get("d1")
	require.True(t, ok)
	assert.Equal(t, bodylog.AnalysisSuccess, rec.AnalysisStatus)
	assert.Equal(t, 81.5, *rec.Metrics.Weight)
	assert.Equal(t, 24.1, *rec.Metrics.BMI)
	assert.Nil(t, rec.Metrics.BodyFatPercentage)
}

func TestStore_PatchLoadStatus(t *testing.T) {
	store := bodylog.NewStore()
	store.InsertPlaceholder("tmp_a", "u")
	store.Promote("tmp_a", "d1", "p1", ptr("https://cdn/v1"))

	assert.True(t, store.PatchLoadStatus("d1", bodylog.LoadLoaded, ptr("https://cdn/v1")))
	assert.False(t, store.PatchLoadStatus("d1", bodylog.LoadLoading, ptr("https://cdn/v1")),
		"loaded does not regress for the same url")

	rec, _ := store.Get("d1")
	assert.Equal(t, bodylog.LoadLoaded, rec.LoadStatus)

	assert.False(t, store.PatchLoadStatus("d1", bodylog.LoadLoading, ptr("https://cdn/v2")),
		"reports for another url are dropped")
	rec, _ = store.Get("d1")
	assert.Equal(t, bodylog.LoadLoaded, rec.LoadStatus)
	assert.Equal(t, "https://cdn/v1", *rec.DisplayURL)

	assert.False(t, store.PatchLoadStatus("gone", bodylog.LoadLoaded, nil))
	assert.False(t, store.PatchLoadStatus("d1", bodylog.LoadStatus("bogus"), nil))
}

func TestStore_PatchLoadStatusWithoutURL(t *testing.T) {
	store := bodylog.NewStore()
	store.InsertPlaceholder("tmp_a", "u")
	store.Promote("tmp_a", "d1", "p1", ptr("https://u1"))

	assert.True(t, store.PatchLoadStatus("d1", bodylog.LoadLoaded, nil))
	assert.False(t, store.PatchLoadStatus("d1", bodylog.LoadLoading, nil))

	rec, _ := store.Get("d1")
	assert.Equal(t, bodylog.LoadLoaded, rec.LoadStatus)
	require.NotNil(t, rec.DisplayURL)
	assert.Equal(t, "https://u1", *rec.DisplayURL)
	assert.False(t, bodylog.IsBusy(rec))

	assert.Equal(t, 1, store.RenewDisplayURLs(map[string]*string{"d1": ptr("https://u2")}))
	assert.False(t, store.PatchLoadStatus("d1", bodylog.LoadLoaded, ptr("https://u1")),
		"a report for the old url does not mark the new one loaded")
	assert.True(t, store.PatchLoadStatus("d1", bodylog.LoadLoaded, ptr("https://u2")))
}

func TestStore_RenewDisplayURLs(t *testing.T) {
	store := bodylog.NewStore()
	store.InsertPlaceholder("tmp_a", "u")
	store.Promote("tmp_a", "d1", "p1", ptr("https://cdn/v1"))
	store.PatchLoadStatus("d1", bodylog.LoadLoaded, ptr("https://cdn/v1"))

	assert.Zero(t, store.RenewDisplayURLs(map[string]*string{"d1": ptr("https://cdn/v1")}))
	rec, _ := store.Get("d1")
	assert.Equal(t, bodylog.LoadLoaded, rec.LoadStatus)

	assert.Equal(t, 1, store.RenewDisplayURLs(map[string]*string{"d1": ptr("https://cdn/v2"), "d9": ptr("x")}))
	rec, _ = store.Get("d1")
	assert.Equal(t, bodylog.LoadLoading, rec.LoadStatus)
	assert.Equal(t, "https://cdn/v2", *rec.DisplayURL)
}

func TestStore_LoadMergesNewestFirstBehindPlaceholders(t *testing.T) {
	store := bodylog.NewStore()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	store.InsertPlaceholder("tmp_live", "u")
	added := store.Load([]bodylog.ImageRecord{
		{ID: bodylog.DurableID("old"), StoragePath: "p-old", CreatedAt: t0},
		{ID: bodylog.DurableID("new"), StoragePath: "p-new", CreatedAt: t0.Add(48 * time.Hour)},
		{ID: bodylog.DurableID("mid"), StoragePath: "p-mid", CreatedAt: t0.Add(24 * time.Hour)},
	})
	assert.Equal(t, 3, added)
	assert.Equal(t, []string{"tmp_live", "new", "mid", "old"}, ids(store.Snapshot()))

	again := store.Load([]bodylog.ImageRecord{
		{ID: bodylog.DurableID("mid"), StoragePath: "p-mid", CreatedAt: t0},
		{ID: bodylog.DurableID("dup-path"), StoragePath: "p-old", CreatedAt: t0},
	})
	assert.Zero(t, again)
	assert.Equal(t, 4, store.Len())
}

func TestStore_ResetMakesLateMutationsNoops(t *testing.T) {
	store := bodylog.NewStore()
	store.InsertPlaceholder("tmp_a", "u")
	store.InsertPlaceholder("tmp_b", "u")
	store.Promote("tmp_b", "d-b", "p-b", nil)

	store.Reset()

	assert.False(t, store.Promote("tmp_a", "d-a", "p-a", nil))
	assert.False(t, store.PatchAnalysis("d-b", bodylog.AnalysisPatch{Status: bodylog.AnalysisSuccess}))
	assert.Empty(t, store.Snapshot())
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	store := bodylog.NewStore()
	store.InsertPlaceholder("tmp_a", "u")
	store.Promote("tmp_a", "d1", "p1", ptr("https://cdn/v1"))

	snap := store.Snapshot()
	*snap[0].DisplayURL = "mutated"
	snap[0].StoragePath = "mutated"

	rec, _ := store.Get("d1")
	assert.Equal(t, "https://cdn/v1", *rec.DisplayURL)
	assert.Equal(t, "p1", rec.StoragePath)
}

func TestStore_ListenersMayReenter(t *testing.T) {
	store := bodylog.NewStore()
	var kinds []bodylog.ChangeKind
	store.Subscribe(func(c bodylog.Change) {
		kinds = append(kinds, c.Kind)
		if c.Kind == bodylog.ChangePromoted {
			store.PatchAnalysis(c.ID, bodylog.AnalysisPatch{Status: bodylog.AnalysisPending})
		}
	})

	store.InsertPlaceholder("tmp_a", "u")
	store.Promote("tmp_a", "d1", "p1", nil)

	assert.Equal(t, []bodylog.ChangeKind{bodylog.ChangeInserted, bodylog.ChangePromoted, bodylog.ChangeAnalysis}, kinds)
	rec, _ := store.Get("d1")
	assert.Equal(t, bodylog.AnalysisPending, rec.AnalysisStatus)
}
