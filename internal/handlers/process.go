package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"soundsgood/internal/jobs"
)

// Processor is the orchestration surface the transport layer consumes.
type Processor interface {
	ProcessUpload(ctx context.Context, data []byte, filename string) (*jobs.Result, error)
	SubmitURL(rawURL string) string
}

var allowedExtensions = map[string]bool{".mp3": true, ".wav": true}

// ProcessHandler exposes the pipeline over HTTP: inline uploads,
// background URL jobs, job polling, artifact file serving, and the demo
// entry.
type ProcessHandler struct {
	processor        Processor
	manager          *jobs.Manager
	uploadMaxMB      int
	transcriberReady bool
}

// NewProcessHandler creates the handler. transcriberReady reports
// whether a transcription backend is configured; submissions are
// rejected up front when it is not.
func NewProcessHandler(processor Processor, manager *jobs.Manager, uploadMaxMB int, transcriberReady bool) *ProcessHandler {
	return &ProcessHandler{
		processor:        processor,
		manager:          manager,
		uploadMaxMB:      uploadMaxMB,
		transcriberReady: transcriberReady,
	}
}

// Upload handles synchronous processing of an uploaded audio file.
// POST /api/process
func (h *ProcessHandler) Upload(c echo.Context) error {
	if !h.transcriberReady {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "transcription backend is not configured"})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "audio file is required"})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unsupported file format, use .mp3 or .wav"})
	}
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "audio/") {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unsupported content type, audio files only"})
	}

	maxBytes := int64(h.uploadMaxMB) * 1024 * 1024
	if file.Size > maxBytes {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": h.sizeError()})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read upload"})
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read upload"})
	}
	if int64(len(data)) > maxBytes {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": h.sizeError()})
	}

	result, err := h.processor.ProcessUpload(c.Request().Context(), data, file.Filename)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// urlPayload is the request body for URL submissions.
type urlPayload struct {
	URL string `json:"url"`
}

// SubmitURL accepts an external video URL and starts (or joins) a
// background job for it.
// POST /api/process/url
func (h *ProcessHandler) SubmitURL(c echo.Context) error {
	if !h.transcriberReady {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "transcription backend is not configured"})
	}

	var payload urlPayload
	if err := c.Bind(&payload); err != nil || strings.TrimSpace(payload.URL) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "url is required"})
	}

	jobID := h.processor.SubmitURL(payload.URL)
	snap, ok := h.manager.Get(jobID)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "job registration failed"})
	}
	return c.JSON(http.StatusOK, snap)
}

// GetJob returns the current state of a background job.
// GET /api/jobs/:id
func (h *ProcessHandler) GetJob(c echo.Context) error {
	snap, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}
	return c.JSON(http.StatusOK, snap)
}

// GetFile serves one of the generated stem files for a job. Only the
// fixed artifact names are ever served.
// GET /api/files/:job_id/:filename
func (h *ProcessHandler) GetFile(c echo.Context) error {
	filename := c.Param("filename")
	if !jobs.IsArtifactName(filename) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "requested file is not available"})
	}

	path, ok := h.manager.ArtifactPath(c.Param("job_id"), filename)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}
	if _, err := os.Stat(path); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "file not found"})
	}
	return c.File(path)
}

// GetDemo returns the pre-seeded demo result when available.
// GET /api/demo
func (h *ProcessHandler) GetDemo(c echo.Context) error {
	res, ok := h.manager.DemoResult()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "demo data not available"})
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ProcessHandler) sizeError() string {
	return fmt.Sprintf("file exceeds maximum size of %dMB", h.uploadMaxMB)
}
