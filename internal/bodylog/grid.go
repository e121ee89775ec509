package bodylog

// GridTile is one rendered cell of the body-log grid.
type GridTile struct {
	ID               string
	DisplayURL       *string
	IsBusy           bool
	StatsUnavailable bool
	Metrics          Metrics
}

// Project derives the grid from a store snapshot, preserving its order.
func Project(snapshot []ImageRecord) []GridTile {
	tiles := make([]GridTile, 0, len(snapshot))
	for _, rec := range snapshot {
		tiles = append(tiles, GridTile{
			ID:               rec.ID.Value,
			DisplayURL:       rec.DisplayURL,
			IsBusy:           IsBusy(rec),
			StatsUnavailable: StatsUnavailable(rec),
			Metrics:          rec.Metrics,
		})
	}
	return tiles
}

// IsBusy is true while the image has not rendered or analysis is running.
// A record without a display url is always busy.
func IsBusy(rec ImageRecord) bool {
	if rec.DisplayURL == nil {
		return true
	}
	return rec.LoadStatus != LoadLoaded || rec.AnalysisStatus == AnalysisPending
}

func StatsUnavailable(rec ImageRecord) bool {
	return rec.AnalysisStatus == AnalysisError
}
