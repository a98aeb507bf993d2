package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ruangujian/asesmen-backend/internal/middleware"
	"github.com/ruangujian/asesmen-backend/internal/model"
	"github.com/ruangujian/asesmen-backend/internal/response"
	"github.com/ruangujian/asesmen-backend/internal/service"
	"github.com/ruangujian/asesmen-backend/internal/validator"
)

// AssignmentHandler serves the teacher-facing assignment CRUD and the
// publish lifecycle.
type AssignmentHandler struct {
	assignmentService *service.AssignmentService
	sessionService    *service.SessionService
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(assignmentService *service.AssignmentService, sessionService *service.SessionService) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentService: assignmentService,
		sessionService:    sessionService,
	}
}

// failAssignmentErr maps the assignment service's domain errors onto API
// error codes. Unknown errors become 500s.
func failAssignmentErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotAssignmentAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotAssignmentAuthor)
	case errors.Is(err, service.ErrAssignmentNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrAssignmentNotDraft)
	case errors.Is(err, service.ErrAssignmentNotPublished):
		response.Fail(c, http.StatusConflict, response.ErrAssignmentNotPublished)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// Create godoc
// POST /api/v1/teacher/assignments
func (h *AssignmentHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, err := h.assignmentService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"assignment": a})
}

// List godoc
// GET /api/v1/teacher/assignments
func (h *AssignmentHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignments, err := h.assignmentService.ListByAuthor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignments": assignments})
}

// Get godoc
// GET /api/v1/teacher/assignments/:assignment_id
func (h *AssignmentHandler) Get(c *gin.Context) {
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

	response.Success(c, http.StatusOK, gin.H{"assignment": a})
}

// AddQuestion godoc
// POST /api/v1/teacher/assignments/:assignment_id/questions
func (h *AssignmentHandler) AddQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.assignmentService.AddQuestion(c.Request.Context(), assignmentID, claims.UserID, &req)
	if err != nil {
		failAssignmentErr(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// ReplaceQuestions godoc
// PUT /api/v1/teacher/assignments/:assignment_id/questions
func (h *AssignmentHandler) ReplaceQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.assignmentService.ReplaceQuestions(c.Request.Context(), assignmentID, claims.UserID, &req); err != nil {
		failAssignmentErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Publish godoc
// POST /api/v1/teacher/assignments/:assignment_id/publish
func (h *AssignmentHandler) Publish(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	if err := h.assignmentService.Publish(c.Request.Context(), assignmentID, claims.UserID); err != nil {
		failAssignmentErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Close godoc
// POST /api/v1/teacher/assignments/:assignment_id/close
func (h *AssignmentHandler) Close(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	if err := h.assignmentService.Close(c.Request.Context(), assignmentID, claims.UserID); err != nil {
		failAssignmentErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetResults godoc
// GET /api/v1/teacher/assignments/:assignment_id/results
func (h *AssignmentHandler) GetResults(c *gin.Context) {
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

	results, err := h.sessionService.GetResults(c.Request.Context(), assignmentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}
