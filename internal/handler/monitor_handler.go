package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ruangujian/asesmen-backend/internal/config"
	"github.com/ruangujian/asesmen-backend/internal/middleware"
	"github.com/ruangujian/asesmen-backend/internal/response"
	"github.com/ruangujian/asesmen-backend/internal/service"
)

const (
	monitorRefreshInterval = 15 * time.Second
	monitorKeepAlive       = 30 * time.Second
	monitorRefreshTimeout  = 5 * time.Second
)

// MonitorHandler streams live assessment progress to teacher dashboards
// over Server-Sent Events. Push events arrive via the assignment's Redis
// Pub/Sub channel; a periodic refresh re-sends the full snapshot so a
// dashboard that missed an event self-corrects.
type MonitorHandler struct {
	monitorService    *service.MonitorService
	sessionService    *service.SessionService
	assignmentService *service.AssignmentService
	rdb               *redis.Client
	log               zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	monitorService *service.MonitorService,
	sessionService *service.SessionService,
	assignmentService *service.AssignmentService,
	rdb *redis.Client,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		monitorService:    monitorService,
		sessionService:    sessionService,
		assignmentService: assignmentService,
		rdb:               rdb,
		log:               log.With().Str("component", "monitor_handler").Logger(),
	}
}

// Stream godoc
// GET /api/v1/teacher/assignments/:assignment_id/monitor
func (h *MonitorHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	a, err := h.assignmentService.GetByID(c.Request.Context(), assignmentID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if a.AuthorID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrNotAssignmentAuthor)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.Flush()

	ctx := c.Request.Context()
	channel := config.CacheKey.AssignmentMonitorChannel(assignmentID.String())
	pubsub := h.rdb.Subscribe(ctx, channel)
	defer pubsub.Close()

	h.sendSnapshot(ctx, c, assignmentID, "snapshot")

	refreshTicker := time.NewTicker(monitorRefreshInterval)
	defer refreshTicker.Stop()
	keepAliveTicker := time.NewTicker(monitorKeepAlive)
	defer keepAliveTicker.Stop()

	events := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-events:
			if !open {
				return
			}
			writeSSE(c, "event", msg.Payload)
		case <-refreshTicker.C:
			refreshCtx, cancel := context.WithTimeout(context.Background(), monitorRefreshTimeout)
			h.sendSnapshot(refreshCtx, c, assignmentID, "refresh")
			cancel()
		case <-keepAliveTicker.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			c.Writer.Flush()
		}
	}
}

// sendSnapshot writes the full progress + results snapshot as one SSE
// event. Failures are logged but do not kill the stream: the next refresh
// retries.
func (h *MonitorHandler) sendSnapshot(ctx context.Context, c *gin.Context, assignmentID uuid.UUID, event string) {
	progress, err := h.monitorService.GetProgress(ctx, assignmentID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Monitor snapshot progress fetch failed")
		return
	}
	results, err := h.sessionService.GetResults(ctx, assignmentID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Monitor snapshot results fetch failed")
		return
	}

	data, err := json.Marshal(gin.H{
		"progress": progress,
		"results":  results,
	})
	if err != nil {
		return
	}
	writeSSE(c, event, string(data))
}

func writeSSE(c *gin.Context, event, data string) {
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	c.Writer.Flush()
}
