package router

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ruangujian/asesmen-backend/internal/config"
	"github.com/ruangujian/asesmen-backend/internal/handler"
)

// The student-facing contract: lobby, join, paper, state, the submit
// retry, and the WebSocket stream all have to be reachable.
func TestStudentRoutesRegistered(t *testing.T) {
	r := SetupRouter(nil, &Handlers{
		Auth:          &handler.AuthHandler{},
		StudentPortal: &handler.StudentPortalHandler{},
		Assignment:    &handler.AssignmentHandler{},
		Grading:       &handler.GradingHandler{},
		Monitor:       &handler.MonitorHandler{},
		WS:            &handler.WSHandler{},
	}, &config.Config{GinMode: gin.TestMode})

	registered := make(map[string]bool)
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	want := []string{
		"GET /api/v1/student/assignments",
		"POST /api/v1/student/assignments/:assignment_id/join",
		"GET /api/v1/student/assignments/:assignment_id/paper",
		"GET /api/v1/student/assignments/:assignment_id/state",
		"POST /api/v1/student/assignments/:assignment_id/submit",
		"GET /ws/v1/assignments/:assignment_id/stream",
	}
	for _, w := range want {
		if !registered[w] {
			t.Errorf("route %q not registered", w)
		}
	}
}
