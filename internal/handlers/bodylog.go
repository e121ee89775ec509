package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bodylog-backend/internal/bodylog"
	"bodylog-backend/internal/capture"
	"bodylog-backend/internal/middleware"
	"bodylog-backend/internal/models"
	"bodylog-backend/internal/session"
)

const maxCaptureBytes = 32 << 20

type BodyLogHandler struct {
	sessions *session.Manager
	preparer *capture.Preparer
}

func NewBodyLogHandler(sessions *session.Manager, preparer *capture.Preparer) *BodyLogHandler {
	return &BodyLogHandler{
		sessions: sessions,
		preparer: preparer,
	}
}

func (h *BodyLogHandler) session(c *gin.Context) (*session.Session, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return nil, false
	}
	return h.sessions.Open(c.Request.Context(), userID, middleware.AccessToken(c)), true
}

// GetGrid returns the projected grid. A matching If-None-Match returns 304.
func (h *BodyLogHandler) GetGrid(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	snapshot, version := s.Store.SnapshotWithVersion()
	etag := strconv.Quote(strconv.FormatUint(version, 10))
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	entry := models.EntryReason(c.Query("entry"))
	c.JSON(http.StatusOK, models.NewGridResponse(bodylog.Project(snapshot), version, entry))
}

// CreateCapture accepts a photo and starts the capture pipeline. The response
// carries the temporary id of the placeholder tile.
func (h *BodyLogHandler) CreateCapture(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	data, filename, err := readCapture(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "no image provided", Message: err.Error()})
		return
	}

	handle, err := h.preparer.Prepare(data, filename)
	if err != nil {
		message := "failed to read image"
		if errors.Is(err, bodylog.ErrNoImage) {
			message = "no image provided"
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: message, Message: err.Error()})
		return
	}

	tempID, err := s.Pipeline.BeginCapture(handle)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to start capture", Message: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, models.CaptureResponse{TempID: tempID, Status: "capturing"})
}

func readCapture(c *gin.Context) ([]byte, string, error) {
	var (
		fileHeader *multipart.FileHeader
		err        error
	)
	for _, field := range []string{"image", "photo", "file"} {
		fileHeader, err = c.FormFile(field)
		if err == nil {
			break
		}
	}
	if fileHeader == nil {
		return nil, "", fmt.Errorf("multipart field \"image\" is required")
	}
	if fileHeader.Size > maxCaptureBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxCaptureBytes)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxCaptureBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	return data, fileHeader.Filename, nil
}

// UpdateLoadStatus records whether the client finished rendering a tile.
func (h *BodyLogHandler) UpdateLoadStatus(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req models.LoadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	status := bodylog.LoadStatus(req.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid load status", Message: req.Status})
		return
	}

	imageID := c.Param("image_id")
	applied := s.Store.PatchLoadStatus(imageID, status, req.DisplayURL)
	c.JSON(http.StatusOK, models.LoadStatusResponse{ImageID: imageID, Applied: applied})
}

// Analyze explicitly submits a record, which also retries a failed analysis.
func (h *BodyLogHandler) Analyze(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	imageID := c.Param("image_id")
	token, _ := s.Token()
	submitted := s.Runner.Submit(imageID, token)

	status := http.StatusOK
	if submitted {
		status = http.StatusAccepted
	}
	c.JSON(status, models.AnalyzeResponse{ImageID: imageID, Submitted: submitted})
}

func (h *BodyLogHandler) RenewDisplayURLs(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	renewed, err := s.RenewDisplayURLs(c.Request.Context())
	if err != nil {
		log.Printf("Warning: failed to renew display urls for %s: %v", s.OwnerID, err)
	}
	c.JSON(http.StatusOK, models.RenewResponse{Renewed: renewed})
}

// ListNotices drains the one-shot notices.
func (h *BodyLogHandler) ListNotices(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.NewNoticesResponse(s.Notices.Drain()))
}

func (h *BodyLogHandler) DismissNotice(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	noticeID := c.Param("notice_id")
	c.JSON(http.StatusOK, models.DismissResponse{NoticeID: noticeID, Dismissed: s.Notices.Dismiss(noticeID)})
}
