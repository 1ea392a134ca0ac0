package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"lecture-gen/dto"
	"lecture-gen/service"
)

type JobHandler struct {
	jobs         service.JobService
	pollInterval time.Duration
}

func NewJobHandler(jobs service.JobService, pollInterval time.Duration) *JobHandler {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &JobHandler{
		jobs:         jobs,
		pollInterval: pollInterval,
	}
}

func (h *JobHandler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/dispatcher/create-job", h.CreateJob)
	api.GET("/jobs/:userId", h.GetJob)
	api.GET("/jobs/:userId/stream", h.StreamJob)
	api.GET("/videos", h.ListVideos)
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.DispatchResponse{Status: "error", Message: err.Error()})
		return
	}

	job, err := h.jobs.Dispatch(c.Request.Context(), req)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("user_id", req.User).Msg("failed to dispatch job")
		c.JSON(http.StatusInternalServerError, dto.DispatchResponse{Status: "error", Message: "failed to create/update job"})
		return
	}

	c.JSON(http.StatusOK, dto.DispatchResponse{
		Status: "ok",
		JobId:  job.UserId,
		RunId:  job.RunId.String(),
	})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	view, err := h.jobs.Status(c.Request.Context(), c.Param("userId"))
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to read job status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read job status"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// StreamJob pushes the job status as server-sent events whenever it changes.
// It keeps polling across runs until the client disconnects.
func (h *JobHandler) StreamJob(c *gin.Context) {
	ctx := c.Request.Context()
	userId := c.Param("userId")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	var last *dto.JobStatusView
	send := func() error {
		view, err := h.jobs.Status(ctx, userId)
		if err != nil {
			return err
		}
		if last == nil || !last.Equal(view) {
			c.SSEvent("status", view)
			c.Writer.Flush()
			last = &view
		}
		return nil
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		if err := send(); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("user_id", userId).Msg("job stream stopped")
			c.SSEvent("error", gin.H{"error": "failed to read job status"})
			c.Writer.Flush()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *JobHandler) ListVideos(c *gin.Context) {
	creatorId := c.Query("creator_id")
	if creatorId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "creator_id is required"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	videos, err := h.jobs.ListVideos(c.Request.Context(), creatorId, limit)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to list videos")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list videos"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"videos": videos})
}
