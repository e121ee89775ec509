package models

import (
	"time"

	"bodylog-backend/internal/bodylog"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type GridResponse struct {
	Version            uint64         `json:"version"`
	SkipIntroAnimation bool           `json:"skip_intro_animation"`
	Tiles              []TileResponse `json:"tiles"`
}

type TileResponse struct {
	ID               string          `json:"id"`
	DisplayURL       *string         `json:"display_url"`
	IsBusy           bool            `json:"is_busy"`
	StatsUnavailable bool            `json:"stats_unavailable"`
	Metrics          bodylog.Metrics `json:"metrics"`
}

func NewGridResponse(tiles []bodylog.GridTile, version uint64, entry EntryReason) GridResponse {
	out := GridResponse{
		Version:            version,
		SkipIntroAnimation: entry.SkipIntroAnimation(),
		Tiles:              make([]TileResponse, len(tiles)),
	}
	for i, tile := range tiles {
		out.Tiles[i] = TileResponse{
			ID:               tile.ID,
			DisplayURL:       tile.DisplayURL,
			IsBusy:           tile.IsBusy,
			StatsUnavailable: tile.StatsUnavailable,
			Metrics:          tile.Metrics,
		}
	}
	return out
}

type CaptureResponse struct {
	TempID string `json:"temp_id"`
	Status string `json:"status"`
}

type LoadStatusResponse struct {
	ImageID string `json:"image_id"`
	Applied bool   `json:"applied"`
}

type AnalyzeResponse struct {
	ImageID   string `json:"image_id"`
	Submitted bool   `json:"submitted"`
}

type RenewResponse struct {
	Renewed int `json:"renewed"`
}

type NoticesResponse struct {
	Notices []NoticeResponse `json:"notices"`
}

type NoticeResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func NewNoticesResponse(notices []bodylog.Notice) NoticesResponse {
	out := NoticesResponse{Notices: make([]NoticeResponse, len(notices))}
	for i, n := range notices {
		out.Notices[i] = NoticeResponse{
			ID:        n.ID,
			Kind:      string(n.Kind),
			Message:   n.Message,
			CreatedAt: n.CreatedAt,
		}
	}
	return out
}

type DismissResponse struct {
	NoticeID  string `json:"notice_id"`
	Dismissed bool   `json:"dismissed"`
}
