package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fairtest/fairtest-backend/internal/config"
	"github.com/fairtest/fairtest-backend/internal/handler"
	"github.com/fairtest/fairtest-backend/internal/metrics"
	"github.com/fairtest/fairtest-backend/internal/middleware"
	"github.com/fairtest/fairtest-backend/internal/response"
	"github.com/fairtest/fairtest-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Registry   *handler.RegistryHandler
	Submission *handler.SubmissionHandler
	Payment    *handler.PaymentHandler
	Evaluator  *handler.EvaluatorHandler
	WS         *handler.WSHandler
	System     *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background goroutines owned by middleware.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request IDs and the request-scoped logger come before everything that logs.
	router.Use(response.RequestIDMiddleware(log))
	router.Use(middleware.Metrics())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Per-IP limit on every identity-free route.
	studentLimiter := middleware.NewRateLimiter(ctx, cfg.StudentRateLimit, time.Minute)
	authLimiter := middleware.NewRateLimiter(ctx, 30, time.Minute)

	// ─── 1. Auth Group (Evaluators, Rate Limited) ──────────────────────
	auth := router.Group("/api/v1/auth/evaluator")
	{
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.EvaluatorLogin)
		auth.GET("/me", middleware.RequireEvaluatorJWT(authService), handlers.Auth.GetEvaluatorProfile)
		auth.POST("/logout", middleware.RequireEvaluatorJWT(authService), handlers.Auth.EvaluatorLogout)
	}

	// ─── 2. Public Group (No Identity, Rate Limited) ───────────────────
	publicAPI := router.Group("/api/v1")
	publicAPI.Use(studentLimiter.Middleware())
	{
		publicAPI.GET("/exams", handlers.Registry.ListExams)
		publicAPI.GET("/exams/:name", handlers.Registry.GetExam)
		publicAPI.POST("/submissions", handlers.Submission.Submit)
		publicAPI.GET("/results/:pseudonym_hash", handlers.Submission.GetResult)

		publicAPI.POST("/payments/sessions", handlers.Payment.OpenSession)
		publicAPI.GET("/payments/sessions/:id", handlers.Payment.GetSession)
		publicAPI.POST("/payments/sessions/:id/events", handlers.Payment.RecordEvent)
		publicAPI.POST("/payments/sessions/:id/settle", handlers.Payment.SettleSession)
	}

	// ─── 3. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(studentLimiter.Middleware())
	{
		ws.GET("/exams/:exam_id/stream", handlers.WS.ExamWebSocketStream)
	}

	// ─── 4. Evaluator Group (JWT) ──────────────────────────────────────
	evaluatorAPI := router.Group("/api/v1/evaluator")
	evaluatorAPI.Use(middleware.RequireEvaluatorJWT(authService))
	{
		evaluatorAPI.POST("/exams/register", handlers.Registry.RegisterExam)
		evaluatorAPI.PUT("/exams/:exam_id/answer-key", handlers.Evaluator.PutAnswerKey)
		evaluatorAPI.GET("/exams/:exam_id/submissions", handlers.Evaluator.ListSubmissions)
		evaluatorAPI.GET("/exams/:exam_id/submissions/:pseudonym_hash", handlers.Evaluator.GetSubmission)
		evaluatorAPI.POST("/exams/:exam_id/results/:pseudonym_hash/manual-grades", handlers.Evaluator.ApplyManualGrades)
		evaluatorAPI.POST("/exams/:exam_id/publish", handlers.Evaluator.Publish)

		evaluatorAPI.POST("/evaluate", handlers.Evaluator.Evaluate)
		evaluatorAPI.POST("/rank", handlers.Evaluator.Rank)

		evaluatorAPI.GET("/ledger/verify", handlers.Evaluator.VerifyLedger)
		evaluatorAPI.GET("/ledger/:id", handlers.Evaluator.GetLedgerObject)
	}

	return router
}
