package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/ruangujian/asesmen-backend/internal/middleware"
	"github.com/ruangujian/asesmen-backend/internal/model"
	"github.com/ruangujian/asesmen-backend/internal/response"
	"github.com/ruangujian/asesmen-backend/internal/service"
	"github.com/ruangujian/asesmen-backend/internal/session"
	"github.com/ruangujian/asesmen-backend/internal/store"
	"github.com/ruangujian/asesmen-backend/internal/validator"
)

// StudentPortalHandler serves the student-facing assessment endpoints: the
// lobby, joining, the resume state, and the submit retry. The live attempt
// itself runs over the WebSocket.
type StudentPortalHandler struct {
	sessionService    *service.SessionService
	assignmentService *service.AssignmentService
	manager           *session.Manager
	submissionService *service.SubmissionService
	answerStore       *store.AnswerStore
	log               zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	sessionService *service.SessionService,
	assignmentService *service.AssignmentService,
	manager *session.Manager,
	submissionService *service.SubmissionService,
	answerStore *store.AnswerStore,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessionService:    sessionService,
		assignmentService: assignmentService,
		manager:           manager,
		submissionService: submissionService,
		answerStore:       answerStore,
		log:               log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// GetLobby godoc
// GET /api/v1/student/assignments
// Lists published assignments with the student's session status overlaid.
func (h *StudentPortalHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	lobby, err := h.sessionService.GetLobby(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignments": lobby})
}

// JoinAssignment godoc
// POST /api/v1/student/assignments/:assignment_id/join
// Validates the entry token and creates (or resumes) the session row.
func (h *StudentPortalHandler) JoinAssignment(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	var req model.JoinAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessionService.Join(c.Request.Context(), assignmentID, claims.UserID, req.EntryToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssignmentNotAvailable):
			response.Fail(c, http.StatusConflict, response.ErrAssignmentNotAvailable)
		case errors.Is(err, service.ErrInvalidEntryToken):
			response.Fail(c, http.StatusForbidden, response.ErrInvalidEntryToken)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// GetPaper godoc
// GET /api/v1/student/assignments/:assignment_id/paper
// Returns the student-facing question payload (no answer key). Requires a
// joined, unsubmitted session.
func (h *StudentPortalHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	if err := h.sessionService.VerifyActiveSession(c.Request.Context(), assignmentID, claims.UserID); err != nil {
		if errors.Is(err, service.ErrAlreadySubmitted) {
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
			return
		}
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	payload, err := h.assignmentService.GetPayload(c.Request.Context(), assignmentID)
	if err != nil {
		if errors.Is(err, service.ErrAssignmentNotPublished) {
			response.Fail(c, http.StatusConflict, response.ErrAssignmentNotPublished)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": payload})
}

// GetSessionState godoc
// GET /api/v1/student/assignments/:assignment_id/state
// Returns the resume snapshot: autosaved answers, remaining seconds, and
// violation count.
func (h *StudentPortalHandler) GetSessionState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	state, err := h.sessionService.GetSessionState(c.Request.Context(), assignmentID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// Submit godoc
// POST /api/v1/student/assignments/:assignment_id/submit
// Explicit retry after a failed submission. Drives the live runtime when
// one exists; without one (runtime gone, server restarted) it submits
// straight from the autosave entry.
func (h *StudentPortalHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if err := h.sessionService.VerifyActiveSession(ctx, assignmentID, claims.UserID); err != nil {
		if errors.Is(err, service.ErrAlreadySubmitted) {
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
			return
		}
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	if rt, live := h.manager.Get(assignmentID, claims.UserID); live {
		receipt, err := rt.Submit(ctx, model.TriggerManual)
		if err != nil {
			if errors.Is(err, session.ErrInvalidStage) {
				response.Fail(c, http.StatusConflict, response.ErrInvalidStage)
				return
			}
			response.Fail(c, http.StatusInternalServerError, response.ErrSubmissionFailed)
			return
		}
		if receipt == nil {
			// Another submission is already in flight; its outcome reaches
			// the student over the WebSocket.
			response.Success(c, http.StatusAccepted, gin.H{"status": "submitting"})
			return
		}
		h.manager.Remove(assignmentID, claims.UserID)
		response.Success(c, http.StatusOK, gin.H{"stats": receipt.Stats})
		return
	}

	// No live runtime: the autosave entry is the authoritative answer set.
	answers, err := h.answerStore.Load(ctx, assignmentID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	violations, err := h.answerStore.GetViolations(ctx, assignmentID, claims.UserID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Violation counter read failed, submitting with zero")
		violations = 0
	}

	receipt, err := h.submissionService.Submit(ctx, &session.Submission{
		AssignmentID:   assignmentID,
		StudentID:      claims.UserID,
		Trigger:        model.TriggerManual,
		Answers:        answers,
		ViolationCount: violations,
		SubmittedAt:    time.Now(),
	})
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrSubmissionFailed)
		return
	}

	// The runtime normally clears the entry on acknowledgment; this path
	// has no runtime, so clear it here.
	if err := h.answerStore.Clear(ctx, assignmentID, claims.UserID); err != nil {
		h.log.Warn().Err(err).Msg("Autosave clear after retry submit failed")
	}

	response.Success(c, http.StatusOK, gin.H{"stats": receipt.Stats})
}
