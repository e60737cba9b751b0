package handlers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/middleware"
	"github.com/nijaru/yt-transcript/models"
	svc "github.com/nijaru/yt-transcript/services/transcript"
	"github.com/nijaru/yt-transcript/transcript"
	"github.com/nijaru/yt-transcript/validation"
)

const maxBatchSize = 50

// Queue is the subset of the job queue the handlers need.
type Queue interface {
	Submit(videoID string, priority int) (string, error)
	Status(jobID string) (svc.JobInfo, bool)
}

type TranscriptHandler struct {
	service  svc.Service
	queue    Queue
	alwaysOK bool
}

// NewTranscriptHandler builds the handler. queue may be nil, which
// disables batch submission.
func NewTranscriptHandler(service svc.Service, queue Queue, alwaysOK bool) *TranscriptHandler {
	return &TranscriptHandler{service: service, queue: queue, alwaysOK: alwaysOK}
}

// Register mounts the transcript routes under /api.
func (h *TranscriptHandler) Register(app fiber.Router) {
	api := app.Group("/api")
	api.Post("/transcript", h.Get)
	api.Post("/transcript/refresh", h.Refresh)
	api.Post("/transcript/batch", h.Batch)
	api.Get("/transcript/:id", h.Stored)
	api.Get("/jobs/:id", h.Job)
}

func (h *TranscriptHandler) Get(c *fiber.Ctx) error {
	videoID, failure := parseVideoID(c)
	if failure != nil {
		return h.respond(c, transcript.Failure(failure))
	}
	return h.respond(c, h.service.Get(c.UserContext(), videoID))
}

func (h *TranscriptHandler) Refresh(c *fiber.Ctx) error {
	videoID, failure := parseVideoID(c)
	if failure != nil {
		return h.respond(c, transcript.Failure(failure))
	}
	return h.respond(c, h.service.Refresh(c.UserContext(), videoID))
}

func (h *TranscriptHandler) Stored(c *fiber.Ctx) error {
	const op = "TranscriptHandler.Stored"

	videoID, failure := validation.ExtractVideoID(c.Params("id"))
	if failure != nil {
		return errors.InvalidInput(op, failure, failure.Message)
	}

	rec, err := h.service.Stored(c.UserContext(), videoID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    rec,
	})
}

func (h *TranscriptHandler) Batch(c *fiber.Ctx) error {
	const op = "TranscriptHandler.Batch"

	if h.queue == nil {
		return errors.Unavailable(op, nil, "Batch processing is disabled")
	}

	var req models.BatchRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errors.InvalidInput(op, err, "Invalid request body")
	}
	if len(req.VideoIDs) == 0 {
		return errors.InvalidInput(op, nil, "videoIds is required")
	}
	if len(req.VideoIDs) > maxBatchSize {
		return errors.InvalidInput(op, nil, "Too many videoIds")
	}

	log := middleware.GetLogger(c)
	resp := models.BatchResponse{Jobs: make([]models.BatchJob, 0, len(req.VideoIDs))}
	for _, raw := range req.VideoIDs {
		videoID, failure := validation.ExtractVideoID(raw)
		if failure != nil {
			resp.Jobs = append(resp.Jobs, models.BatchJob{VideoID: raw, Error: failure.Kind.String()})
			continue
		}

		jobID, err := h.queue.Submit(videoID, 0)
		if err != nil {
			log.WithError(err).WithField("video_id", videoID).Warn("Failed to queue video")
			resp.Jobs = append(resp.Jobs, models.BatchJob{VideoID: videoID, Error: err.Error()})
			continue
		}
		resp.Jobs = append(resp.Jobs, models.BatchJob{VideoID: videoID, JobID: jobID})
	}

	return c.Status(fiber.StatusAccepted).JSON(resp)
}

func (h *TranscriptHandler) Job(c *fiber.Ctx) error {
	const op = "TranscriptHandler.Job"

	if h.queue == nil {
		return errors.NotFound(op, nil, "Job not found")
	}
	info, ok := h.queue.Status(c.Params("id"))
	if !ok {
		return errors.NotFound(op, nil, "Job not found")
	}

	status := models.JobStatus{
		JobID:     info.ID,
		VideoID:   info.VideoID,
		State:     string(info.State),
		ErrorCode: info.ErrorCode,
	}
	if !info.StartedAt.IsZero() {
		status.StartedAt = info.StartedAt.UTC().Format(time.RFC3339)
	}
	return c.JSON(status)
}

func (h *TranscriptHandler) respond(c *fiber.Ctx, res transcript.Result) error {
	if res.Err != nil {
		middleware.GetLogger(c).WithFields(logrus.Fields{
			"error_code": res.Err.Kind.String(),
			"retryable":  res.Err.Retryable(),
		}).Info("Transcript request failed")
	}
	return c.Status(resultStatus(res, h.alwaysOK)).JSON(res)
}

// parseVideoID reads the video from a JSON body. A malformed body is an
// invalid request rather than a transport error.
func parseVideoID(c *fiber.Ctx) (string, *transcript.Error) {
	const op = "handlers.parseVideoID"

	var req models.TranscriptRequest
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return "", &transcript.Error{Kind: transcript.KindInvalidRequest, Op: op, Message: "malformed request body", Err: err}
		}
	}

	input := req.VideoID
	if strings.TrimSpace(input) == "" {
		input = req.URL
	}
	return validation.ExtractVideoID(input)
}
