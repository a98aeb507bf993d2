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

// GradingHandler serves the manual grading endpoints for subjective answers.
type GradingHandler struct {
	gradingService *service.GradingService
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(gradingService *service.GradingService) *GradingHandler {
	return &GradingHandler{gradingService: gradingService}
}

// GetSubmission godoc
// GET /api/v1/teacher/assignments/:assignment_id/submissions/:student_id
// Returns one student's answers, evaluation records, and statistics.
func (h *GradingHandler) GetSubmission(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}
	studentID, ok := parseIntParam(c, "student_id")
	if !ok {
		return
	}

	detail, err := h.gradingService.GetSubmissionDetail(c.Request.Context(), assignmentID, claims.UserID, studentID)
	if err != nil {
		if errors.Is(err, service.ErrNotAssignmentAuthor) {
			response.Fail(c, http.StatusForbidden, response.ErrNotAssignmentAuthor)
			return
		}
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submission": detail})
}

// GradeAnswer godoc
// PUT /api/v1/teacher/assignments/:assignment_id/submissions/:student_id/answers/:question_id
// Resolves one TEXT/CODE answer and returns the recomputed statistics.
func (h *GradingHandler) GradeAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}
	studentID, ok := parseIntParam(c, "student_id")
	if !ok {
		return
	}
	questionID, ok := parseUUIDParam(c, "question_id")
	if !ok {
		return
	}

	var req model.GradeAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	stats, err := h.gradingService.GradeAnswer(c.Request.Context(), assignmentID, claims.UserID, studentID, questionID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAssignmentAuthor):
			response.Fail(c, http.StatusForbidden, response.ErrNotAssignmentAuthor)
		case errors.Is(err, service.ErrAnswerNotGradable):
			response.Fail(c, http.StatusConflict, response.ErrAnswerNotGradable)
		case errors.Is(err, service.ErrMarksOutOfRange):
			response.Fail(c, http.StatusBadRequest, response.ErrMarksOutOfRange)
		case errors.Is(err, service.ErrNothingToGrade):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}
