package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/ruangujian/asesmen-backend/internal/config"
	"github.com/ruangujian/asesmen-backend/internal/middleware"
	"github.com/ruangujian/asesmen-backend/internal/model"
	"github.com/ruangujian/asesmen-backend/internal/service"
	"github.com/ruangujian/asesmen-backend/internal/session"
	"github.com/ruangujian/asesmen-backend/internal/store"
	ws "github.com/ruangujian/asesmen-backend/internal/websocket"
)

// connWriter holds the current WebSocket connection for one runtime. The
// runtime outlives its connections, so asynchronous events (violations,
// auto-submits, autosave status) must always target whichever connection
// is attached right now.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) Attach(conn *websocket.Conn) {
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
}

// Detach clears the connection only if it is still the attached one, so a
// slow-closing old socket cannot detach its replacement.
func (w *connWriter) Detach(conn *websocket.Conn) {
	w.mu.Lock()
	if w.conn == conn {
		w.conn = nil
	}
	w.mu.Unlock()
}

func (w *connWriter) Write(v interface{}) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return
	}
	_ = ws.WriteTyped(conn, v)
}

// WSHandler runs the live assessment protocol. One runtime per
// (student, assignment) survives reconnects; the handler attaches each new
// connection and forwards client actions into the runtime.
type WSHandler struct {
	cfg               *config.Config
	manager           *session.Manager
	authService       *service.AuthService
	sessionService    *service.SessionService
	assignmentService *service.AssignmentService
	submissionService *service.SubmissionService
	integrityService  *service.IntegrityService
	answerStore       *store.AnswerStore
	upgrader          websocket.Upgrader
	log               zerolog.Logger

	mu      sync.Mutex
	writers map[string]*connWriter
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	cfg *config.Config,
	manager *session.Manager,
	authService *service.AuthService,
	sessionService *service.SessionService,
	assignmentService *service.AssignmentService,
	submissionService *service.SubmissionService,
	integrityService *service.IntegrityService,
	answerStore *store.AnswerStore,
	log zerolog.Logger,
) *WSHandler {
	return &WSHandler{
		cfg:               cfg,
		manager:           manager,
		authService:       authService,
		sessionService:    sessionService,
		assignmentService: assignmentService,
		submissionService: submissionService,
		integrityService:  integrityService,
		answerStore:       answerStore,
		upgrader:          buildUpgrader(cfg.AllowedOrigins),
		log:               log.With().Str("component", "ws_handler").Logger(),
		writers:           make(map[string]*connWriter),
	}
}

func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
}

func writerKey(assignmentID uuid.UUID, studentID int) string {
	return fmt.Sprintf("%d:%s", studentID, assignmentID)
}

// writerFor returns the connWriter for the pair, creating it on first use.
func (h *WSHandler) writerFor(assignmentID uuid.UUID, studentID int) *connWriter {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.writers[writerKey(assignmentID, studentID)]
	if !ok {
		w = &connWriter{}
		h.writers[writerKey(assignmentID, studentID)] = w
	}
	return w
}

func (h *WSHandler) dropWriter(assignmentID uuid.UUID, studentID int) {
	h.mu.Lock()
	delete(h.writers, writerKey(assignmentID, studentID))
	h.mu.Unlock()
}

// Serve godoc
// GET /ws/v1/assignments/:assignment_id/stream
// Auth runs in RequireStudentWSAuth before the upgrade; the JTI check here
// rejects tokens invalidated since login.
func (h *WSHandler) Serve(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	claims := middleware.GetClaims(c)
	if claims == nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if err := h.authService.ValidateStudentSession(c.Request.Context(), claims.UserID, claims.ID); err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	studentID := claims.UserID

	if err := h.sessionService.VerifyActiveSession(c.Request.Context(), assignmentID, studentID); err != nil {
		if errors.Is(err, service.ErrAlreadySubmitted) {
			c.AbortWithStatus(http.StatusConflict)
			return
		}
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	writer := h.writerFor(assignmentID, studentID)
	rt, err := h.manager.GetOrCreate(assignmentID, studentID, func() (*session.Runtime, error) {
		return h.buildRuntime(c.Request.Context(), assignmentID, studentID, writer)
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Runtime build failed")
		_ = ws.WriteError(conn, "session unavailable")
		conn.Close()
		return
	}

	writer.Attach(conn)
	rt.SetOnline(true)

	// First attach drives the stage machine to IN_PROGRESS; a reconnect
	// finds it already there. A runtime stuck in INSTRUCTIONS (a failed
	// Begin on the previous attach) gets another chance.
	switch rt.Stage() {
	case model.StageOverview:
		if err := rt.Start(); err == nil {
			if err := rt.Begin(context.Background()); err != nil {
				h.log.Error().Err(err).Msg("Session begin failed")
			}
		}
	case model.StageInstructions:
		if err := rt.Begin(context.Background()); err != nil {
			h.log.Error().Err(err).Msg("Session begin failed")
		}
	}

	h.log.Info().
		Str("assignment_id", assignmentID.String()).
		Int("student_id", studentID).
		Msg("WebSocket attached")

	h.readLoop(conn, rt, writer, assignmentID, studentID)

	writer.Detach(conn)
	rt.SetOnline(false)
	conn.Close()
}

// buildRuntime assembles a fresh runtime for a first attach or a resume.
// On resume the countdown is rebuilt from the authoritative remaining time,
// not restarted from the full duration.
func (h *WSHandler) buildRuntime(ctx context.Context, assignmentID uuid.UUID, studentID int, writer *connWriter) (*session.Runtime, error) {
	payload, err := h.assignmentService.GetPayload(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	if payload.DurationSeconds != nil {
		state, stateErr := h.sessionService.GetSessionState(ctx, assignmentID, studentID)
		if stateErr == nil && state.RemainingSeconds != nil {
			remaining := int(*state.RemainingSeconds)
			if remaining < 1 {
				// Expired while away; give the runtime one tick so the
				// expiry submission path runs normally.
				remaining = 1
			}
			adjusted := *payload
			adjusted.DurationSeconds = &remaining
			payload = &adjusted
		}
	}

	maxViolations := h.cfg.MaxViolations
	if payload.MaxViolations > 0 {
		maxViolations = payload.MaxViolations
	}

	return session.New(session.Config{
		Assignment: payload,
		StudentID:  studentID,
		Store:      h.answerStore,
		Submitter:  h.submissionService,
		Log:        h.log.With().Int("student_id", studentID).Logger(),

		AutosaveDebounce:  h.cfg.AutosaveDebounce,
		SafeWindow:        h.cfg.SafeWindow,
		ViolationCooldown: h.cfg.ViolationCooldown,
		MaxViolations:     maxViolations,
		PriorViolations:   h.integrityService.PriorViolations(ctx, assignmentID, studentID),

		OnViolation: func(sig session.Signal, count int) {
			h.integrityService.RecordViolation(context.Background(), assignmentID, studentID, sig, count)
			remaining := maxViolations - count
			if remaining < 0 {
				remaining = 0
			}
			writer.Write(ws.ViolationResponse{
				Event:     ws.EventViolation,
				Signal:    string(sig),
				Count:     count,
				Remaining: remaining,
			})
		},
		OnAutoSubmit: func(trigger model.SubmitTrigger, receipt *session.Receipt, err error) {
			if err != nil || receipt == nil {
				writer.Write(ws.ErrorResponse{Event: ws.EventError, Error: "submission failed"})
				return
			}
			writer.Write(ws.SubmittedResponse{
				Event:   ws.EventSubmitted,
				Trigger: string(trigger),
				Stats:   receipt.Stats,
			})
			h.manager.Remove(assignmentID, studentID)
			h.dropWriter(assignmentID, studentID)
		},
		OnAutosave: func(status model.AutosaveStatus) {
			writer.Write(ws.SavedResponse{Event: ws.EventSaved, Status: string(status)})
		},
	})
}

// readLoop dispatches client actions until the connection drops or the
// session ends.
func (h *WSHandler) readLoop(conn *websocket.Conn, rt *session.Runtime, writer *connWriter, assignmentID uuid.UUID, studentID int) {
	for {
		var raw json.RawMessage
		if err := ws.ReadJSON(conn, &raw); err != nil {
			return
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			_ = ws.WriteError(conn, "malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionAnswer:
			var req ws.AnswerRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				_ = ws.WriteError(conn, "malformed answer")
				continue
			}
			qid, err := uuid.Parse(req.QID)
			if err != nil {
				_ = ws.WriteError(conn, "invalid question id")
				continue
			}
			if err := rt.Answer(qid, req.Answer); err != nil {
				_ = ws.WriteError(conn, err.Error())
				continue
			}
			h.submissionService.QueueAnswerPersist(context.Background(), assignmentID, studentID, req.QID, req.Answer)
			_ = ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, Status: string(rt.AutosaveStatus())})

		case ws.ActionNavigate:
			var req ws.NavigateRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				_ = ws.WriteError(conn, "malformed navigate")
				continue
			}
			if err := rt.Navigate(req.Index); err != nil {
				_ = ws.WriteError(conn, err.Error())
			}

		case ws.ActionSignal:
			var req ws.SignalRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				_ = ws.WriteError(conn, "malformed signal")
				continue
			}
			sig := session.Signal(req.Kind)
			if !sig.Known() {
				_ = ws.WriteError(conn, "unknown signal")
				continue
			}
			rt.Observe(sig)

		case ws.ActionSubmit:
			receipt, err := rt.Submit(context.Background(), model.TriggerManual)
			if err != nil {
				_ = ws.WriteError(conn, "submission failed, please retry")
				continue
			}
			if receipt == nil {
				// A submission is already in flight; its outcome will be
				// delivered by the auto-submit hook.
				continue
			}
			_ = ws.WriteTyped(conn, ws.SubmittedResponse{
				Event:   ws.EventSubmitted,
				Trigger: string(model.TriggerManual),
				Stats:   receipt.Stats,
			})
			h.manager.Remove(assignmentID, studentID)
			h.dropWriter(assignmentID, studentID)
			return

		case ws.ActionExit:
			if err := rt.Exit(context.Background()); err != nil {
				_ = ws.WriteError(conn, err.Error())
				continue
			}
			// The disarmed runtime cannot be resumed in place; the next
			// attach rebuilds one from the autosave entry.
			h.manager.Remove(assignmentID, studentID)
			h.dropWriter(assignmentID, studentID)
			return

		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})

		default:
			_ = ws.WriteError(conn, "unknown action")
		}
	}
}
