package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ruangujian/asesmen-backend/internal/config"
	"github.com/ruangujian/asesmen-backend/internal/handler"
	"github.com/ruangujian/asesmen-backend/internal/middleware"
	"github.com/ruangujian/asesmen-backend/internal/response"
	"github.com/ruangujian/asesmen-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	Assignment    *handler.AssignmentHandler
	Grading       *handler.GradingHandler
	Monitor       *handler.MonitorHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/teacher/login", handlers.Auth.TeacherLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/assignments", handlers.StudentPortal.GetLobby)
		studentAPI.POST("/assignments/:assignment_id/join", handlers.StudentPortal.JoinAssignment)
		studentAPI.GET("/assignments/:assignment_id/paper", handlers.StudentPortal.GetPaper)
		studentAPI.GET("/assignments/:assignment_id/state", handlers.StudentPortal.GetSessionState)
		studentAPI.POST("/assignments/:assignment_id/submit", handlers.StudentPortal.Submit)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/assignments/:assignment_id/stream", handlers.WS.Serve)
	}

	// ─── 4. Teacher Group (JWT) ────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(authService))
	{
		teacherAPI.GET("/assignments", handlers.Assignment.List)
		teacherAPI.POST("/assignments", handlers.Assignment.Create)
		teacherAPI.GET("/assignments/:assignment_id", handlers.Assignment.Get)
		teacherAPI.POST("/assignments/:assignment_id/questions", handlers.Assignment.AddQuestion)
		teacherAPI.PUT("/assignments/:assignment_id/questions", handlers.Assignment.ReplaceQuestions)
		teacherAPI.POST("/assignments/:assignment_id/publish", handlers.Assignment.Publish)
		teacherAPI.POST("/assignments/:assignment_id/close", handlers.Assignment.Close)
		teacherAPI.GET("/assignments/:assignment_id/results", handlers.Assignment.GetResults)
		teacherAPI.GET("/assignments/:assignment_id/monitor", handlers.Monitor.Stream)

		teacherAPI.GET("/assignments/:assignment_id/submissions/:student_id", handlers.Grading.GetSubmission)
		teacherAPI.PUT("/assignments/:assignment_id/submissions/:student_id/answers/:question_id", handlers.Grading.GradeAnswer)

		teacherAPI.POST("/students/:student_id/reset-session", handlers.Auth.ResetStudentSession)
	}

	return router
}
