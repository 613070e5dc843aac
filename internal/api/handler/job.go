package handler

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/coursegen/internal/api/middleware"
	"github.com/timmy/coursegen/internal/domain"
	"github.com/timmy/coursegen/internal/queue"
	"github.com/timmy/coursegen/internal/render"
	"github.com/timmy/coursegen/internal/storage"
)

// OwnerHeader identifies the caller. Authentication happens upstream.
const OwnerHeader = "X-Owner-ID"

// JobHandler exposes enqueue, status and download over HTTP.
type JobHandler struct {
	queue   queue.Queue
	objects storage.ObjectStorage
}

func NewJobHandler(q queue.Queue, objects storage.ObjectStorage) *JobHandler {
	return &JobHandler{queue: q, objects: objects}
}

// downloadPath is the API route that streams a finished job's output.
func downloadPath(jobID string) string {
	return "/api/v1/jobs/" + jobID + "/download"
}

type enqueueResponse struct {
	JobID  string           `json:"jobId"`
	Type   domain.JobType   `json:"type"`
	Status domain.JobStatus `json:"status"`
}

// CreateCurriculumJob handles POST /api/v1/jobs/curriculum.
func (h *JobHandler) CreateCurriculumJob(c *gin.Context) {
	var in domain.GenerationInput
	h.enqueue(c, &in)
}

// CreateChapterJob handles POST /api/v1/jobs/chapter.
func (h *JobHandler) CreateChapterJob(c *gin.Context) {
	var in domain.ExportInput
	h.enqueue(c, &in)
}

func (h *JobHandler) enqueue(c *gin.Context, in domain.JobInput) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	if err := c.ShouldBindJSON(in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	jobID, err := h.queue.Enqueue(c.Request.Context(), owner, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, enqueueResponse{JobID: jobID, Type: in.JobType(), Status: domain.JobStatusPending})
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *JobHandler) GetJob(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	view, err := h.queue.Status(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if view.Status == domain.JobStatusDone && view.DownloadURL == "" && view.OutputKey != "" {
		view.DownloadURL = downloadPath(view.JobID)
	}
	c.JSON(http.StatusOK, view)
}

// DownloadJob handles GET /api/v1/jobs/:id/download. It streams the output
// of a done job as an attachment.
func (h *JobHandler) DownloadJob(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	view, err := h.queue.Status(ctx, owner, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if view.Status != domain.JobStatusDone || view.OutputKey == "" {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "job has no output yet",
			"status": view.Display,
		})
		return
	}

	body, err := h.objects.Download(ctx, view.OutputKey)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job output not found"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	defer body.Close()

	filename := view.Filename
	if filename == "" {
		filename = view.OutputKey[strings.LastIndex(view.OutputKey, "/")+1:]
	}
	c.DataFromReader(http.StatusOK, -1, render.ContentType(view.Format), body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": filename}),
	})
}

func ownerID(c *gin.Context) (string, bool) {
	owner := strings.TrimSpace(c.GetHeader(OwnerHeader))
	if owner == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + OwnerHeader + " header"})
		return "", false
	}
	return owner, true
}

func writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
	default:
		middleware.GetLogger(c).WithError(err).Error("[api] job request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
