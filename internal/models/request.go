package models

// EntryReason tells the grid how the user arrived at it.
type EntryReason string

const (
	EntryDefault         EntryReason = ""
	EntryCaptureComplete EntryReason = "capture_complete"
)

// SkipIntroAnimation is true when the grid is reached straight from a capture.
func (e EntryReason) SkipIntroAnimation() bool {
	return e == EntryCaptureComplete
}

type LoadStatusRequest struct {
	Status     string  `json:"status" binding:"required"`
	DisplayURL *string `json:"display_url"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
