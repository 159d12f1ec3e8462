package main

import (
	"compress/gzip"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/opennirman/nirmanwatch/internal/cache"
	"github.com/opennirman/nirmanwatch/internal/config"
	"github.com/opennirman/nirmanwatch/internal/database"
	"github.com/opennirman/nirmanwatch/internal/errors"
	"github.com/opennirman/nirmanwatch/internal/format"
	"github.com/opennirman/nirmanwatch/internal/leaderboard"
	"github.com/opennirman/nirmanwatch/internal/middleware"
	"github.com/opennirman/nirmanwatch/internal/monitoring"
	"github.com/opennirman/nirmanwatch/internal/privacy"
	"github.com/opennirman/nirmanwatch/internal/ratelimit"
	"github.com/opennirman/nirmanwatch/internal/reputation"
	"github.com/opennirman/nirmanwatch/internal/scoring"
	"github.com/opennirman/nirmanwatch/internal/security"
)

type server struct {
	cfg        *config.Config
	db         *database.DB
	repo       *database.Repository
	users      *database.UserService
	reputation *reputation.Service
	board      *leaderboard.Service
	metrics    *monitoring.Metrics
	logger     *monitoring.Logger
	appCache   *cache.Cache
	limiter    *ratelimit.RateLimiter
	sec        *security.SecurityMiddleware
	gzip       *middleware.Gzip
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	gin.SetMode(cfg.Server.Mode)

	srv, err := newServer(cfg)
	if err != nil {
		slog.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	// Warm up leaderboard cache in the background
	go func() {
		srv.board.WarmCache()
		srv.board.StartAutoRefresh(10 * time.Minute)
	}()

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.router(),
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Server.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

func newServer(cfg *config.Config) (*server, error) {
	db, err := database.NewDB(cfg.Database.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	repo := database.NewRepository(db)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "nirmanwatch-dev-secret-change-in-production"
		slog.Warn("JWT secret not configured, using development default")
	}

	metrics := monitoring.NewMetrics()

	redisClient, err := ratelimit.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Warn("Redis unavailable, continuing with in-memory rate limiting", "error", err)
	}

	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin:     cfg.RateLimit.IPPerMin,
		SubmitLimitPerMin: cfg.RateLimit.SubmitPerMin,
		BurstMultiplier:   cfg.RateLimit.BurstMultiplier,
	}, metrics)

	secConfig := security.DefaultSecurityConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		secConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	}

	return &server{
		cfg:        cfg,
		db:         db,
		repo:       repo,
		users:      database.NewUserService(repo, jwtSecret),
		reputation: reputation.NewService(repo),
		board:      leaderboard.NewService(repo),
		metrics:    metrics,
		logger:     monitoring.NewLogger(),
		appCache:   cache.NewCache(cfg.Cache.TTL),
		limiter:    limiter,
		sec:        security.NewSecurityMiddleware(secConfig),
		gzip:       middleware.NewGzip(1024, gzip.DefaultCompression),
	}, nil
}

func (s *server) Close() {
	if err := s.db.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

func (s *server) router() *gin.Engine {
	r := gin.New()

	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.logger))
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	r.Use(security.SecurityHeadersMiddleware())
	r.Use(security.CSPMiddleware())
	r.Use(s.sec.RequestTimeout)
	r.Use(s.sec.ValidateContentType)
	r.Use(s.sec.CORSConfig())

	r.Use(ratelimit.IPRateLimitMiddleware(s.limiter, s.metrics))
	r.Use(s.gzip.Handler())

	// Cache hot read endpoints
	r.Use(s.appCache.Middleware(s.metrics, "/api/leaderboard", "/api/contractors"))

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.metrics.GetStats())
	})
	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"response_cache":    s.appCache.Stats(),
			"leaderboard_cache": s.board.GetCacheStats(),
		})
	})
	r.GET("/pools/database", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "database",
			"stats": s.db.GetPoolStats(),
		})
	})
	r.GET("/ratelimit/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.limiter.GetStats())
	})
	r.GET("/compression/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.gzip.Stats())
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	api.Use(ratelimit.SubmissionRateLimitMiddleware(s.limiter, s.metrics))
	{
		api.POST("/auth/login", s.handleLogin)

		api.POST("/complaints", s.handleSubmitComplaint)
		api.GET("/complaints", s.handleListComplaints)

		api.POST("/citizen-ratings", s.handleSubmitCitizenRating)
		api.GET("/citizen-ratings", s.handleListCitizenRatings)

		api.POST("/issue-reports", s.handleSubmitIssueReport)
		api.GET("/issue-reports", s.handleListIssueReports)
		api.PATCH("/issue-reports", s.requireGovernment, s.handleReviewIssue)

		api.GET("/ai-rating", s.handleGetAIRating)
		api.POST("/ai-rating", s.handlePostAIRating)

		api.POST("/qualification", s.handleSubmitQualification)
		api.GET("/qualification", s.handleGetQualification)

		api.GET("/contractors/:id/progress", s.handleProgress)
		api.GET("/contracts/:id", s.handleGetContract)

		api.GET("/leaderboard", s.handleLeaderboard)
	}

	return r
}

func (s *server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
		"database":  s.db.GetPoolStats(),
	})
}

// requireGovernment gates review endpoints behind a government session token
func (s *server) requireGovernment(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
		c.Abort()
		return
	}
	token := strings.TrimPrefix(header, "Bearer ")

	userID, role, err := s.users.ValidateSessionToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		c.Abort()
		return
	}

	switch role {
	case database.RoleLocalGovernment, database.RoleProvincialGovernment, database.RoleCentralGovernment:
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "Government role required"})
		c.Abort()
		return
	}

	c.Set("user_id", userID)
	c.Set("user_role", role)
	c.Next()
}

func (s *server) handleLogin(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		respondError(c, errors.NewValidationError("Email is required"))
		return
	}

	user, token, err := s.users.Authenticate(req.Email)
	if err != nil {
		if err == database.ErrNotFound {
			respondError(c, errors.NewNotFoundError("User", req.Email))
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

func (s *server) handleSubmitComplaint(c *gin.Context) {
	var req reputation.ComplaintRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, errors.NewValidationError("Invalid complaint payload"))
		return
	}

	req.Text = s.sec.SanitizeInput(req.Text)
	if err := s.sec.ValidateInput(req.Text); err != nil {
		respondError(c, errors.NewValidationError(err.Error()))
		return
	}

	start := time.Now()
	result, err := s.reputation.SubmitComplaint(req)
	if err != nil {
		respondError(c, err)
		return
	}

	s.metrics.RecordComplaint(string(result.Flag))
	s.logger.ScoringLogger(req.ContractorID, result.Type, string(result.Flag),
		result.Sentiment, result.Confidence, time.Since(start))

	if result.Flag == scoring.FlagVerified {
		s.invalidateRatingCaches()
	}

	c.JSON(http.StatusOK, result)
}

func (s *server) handleListComplaints(c *gin.Context) {
	contractorID := c.Query("contractorId")
	limit := queryInt(c, "limit", 50)

	complaints, stats, err := s.reputation.ComplaintHistory(contractorID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	// Public listing: never expose submitter addresses
	for i := range complaints {
		complaints[i].UserEmail = privacy.MaskEmail(complaints[i].UserEmail)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"complaints": complaints,
		"stats":      stats,
	})
}

func (s *server) handleSubmitCitizenRating(c *gin.Context) {
	var req reputation.CitizenRatingRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, errors.NewValidationError("Invalid citizen rating payload"))
		return
	}

	result, err := s.reputation.SubmitCitizenRating(req)
	if err != nil {
		respondError(c, err)
		return
	}

	s.metrics.IncrementRatingUpdate()
	s.logger.RatingLogger(req.ContractorID, "citizen_rating",
		result.PreviousRating, result.NewRating, result.NewRating < scoring.MinimumRating)
	s.invalidateRatingCaches()

	c.JSON(http.StatusOK, result)
}

func (s *server) handleListCitizenRatings(c *gin.Context) {
	contractorID := c.Query("contractorId")
	limit := queryInt(c, "limit", 50)

	ratings, err := s.reputation.ListCitizenRatings(contractorID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ratings": ratings,
	})
}

func (s *server) handleSubmitIssueReport(c *gin.Context) {
	var req reputation.IssueReportRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, errors.NewValidationError("Invalid issue report payload"))
		return
	}

	result, err := s.reputation.SubmitIssueReport(req)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Penalty > 0 {
		s.metrics.IncrementPenalty()
		s.invalidateRatingCaches()
	}

	c.JSON(http.StatusOK, result)
}

func (s *server) handleListIssueReports(c *gin.Context) {
	contractorID := c.Query("contractorId")
	status := database.IssueStatus(c.Query("status"))
	limit := queryInt(c, "limit", 50)

	reports, err := s.reputation.ListIssueReports(contractorID, status, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"issues":  reports,
	})
}

func (s *server) handleReviewIssue(c *gin.Context) {
	var req struct {
		IssueID string `json:"issueId" binding:"required"`
		Forgive *bool  `json:"forgive" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		respondError(c, errors.NewValidationError("issueId and forgive are required"))
		return
	}

	reviewedBy := c.GetString("user_id")

	result, err := s.reputation.ReviewForgiveness(req.IssueID, reviewedBy, *req.Forgive)
	if err != nil {
		respondError(c, err)
		return
	}

	s.metrics.IncrementForgivenessDecision()
	if result.Penalty > 0 {
		s.metrics.IncrementPenalty()
		s.invalidateRatingCaches()
	}

	c.JSON(http.StatusOK, result)
}

func (s *server) handleGetAIRating(c *gin.Context) {
	contractorID := c.Query("contractorId")
	if contractorID == "" {
		respondError(c, errors.NewValidationError("Contractor ID is required"))
		return
	}

	rating, err := s.reputation.GetRating(contractorID)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("includeComplaints") == "true" {
		complaints, stats, err := s.reputation.ComplaintHistory(contractorID, 50)
		if err != nil {
			respondError(c, err)
			return
		}

		for i := range complaints {
			complaints[i].UserEmail = privacy.MaskEmail(complaints[i].UserEmail)
		}

		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"rating":         rating,
			"complaints":     complaints,
			"complaintStats": stats,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "rating": rating})
}

func (s *server) handlePostAIRating(c *gin.Context) {
	var req struct {
		Type         string   `json:"type"`
		ContractorID string   `json:"contractorId"`
		Sentiment    *float64 `json:"sentiment,omitempty"`
	}
	if err := c.BindJSON(&req); err != nil {
		respondError(c, errors.NewValidationError("Invalid request payload"))
		return
	}

	if req.Type == "verify-chain" {
		result, err := s.reputation.VerifyChain()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	result, err := s.reputation.RefreshAIRating(req.ContractorID, req.Sentiment)
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Sentiment != nil {
		s.metrics.IncrementRatingUpdate()
		s.logger.RatingLogger(req.ContractorID, "ai_refresh",
			result.CurrentRating, result.NewRating, result.NewRating < scoring.MinimumRating)
		s.invalidateRatingCaches()
	}

	c.JSON(http.StatusOK, result)
}

func (s *server) handleSubmitQualification(c *gin.Context) {
	var req reputation.QualificationRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, errors.NewValidationError("Invalid qualification payload"))
		return
	}

	result, err := s.reputation.SubmitQualification(req)
	if err != nil {
		respondError(c, err)
		return
	}

	s.metrics.IncrementRatingUpdate()
	s.invalidateRatingCaches()

	c.JSON(http.StatusOK, result)
}

func (s *server) handleGetQualification(c *gin.Context) {
	contractorID := c.Query("contractorId")
	if contractorID == "" {
		respondError(c, errors.NewValidationError("Contractor ID is required"))
		return
	}

	qualification, err := s.reputation.GetQualification(contractorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "qualification": qualification})
}

func (s *server) handleProgress(c *gin.Context) {
	contractorID := c.Param("id")
	if err := s.sec.ValidateIdentifier(contractorID); err != nil {
		respondError(c, errors.NewValidationError(err.Error()))
		return
	}

	progress, err := s.reputation.GetProgress(contractorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "progress": progress})
}

func (s *server) handleGetContract(c *gin.Context) {
	contractID := c.Param("id")
	if err := s.sec.ValidateIdentifier(contractID); err != nil {
		respondError(c, errors.NewValidationError(err.Error()))
		return
	}

	contract, err := s.repo.GetContract(contractID)
	if err != nil {
		if err == database.ErrNotFound {
			respondError(c, errors.NewNotFoundError("Contract", contractID))
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"contract":      contract,
		"budgetDisplay": format.Amount(contract.Budget),
	})
}

func (s *server) handleLeaderboard(c *gin.Context) {
	limit := queryInt(c, "limit", 50)

	response, err := s.board.TopContractors(limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// invalidateRatingCaches drops every cached view that embeds a rating
func (s *server) invalidateRatingCaches() {
	s.board.Invalidate()
	s.appCache.InvalidatePrefix("/api/contractors")
	s.appCache.InvalidatePrefix("/api/leaderboard")
}

func respondError(c *gin.Context, err error) {
	appErr := errors.ToAppError(err)
	errors.LogError(c, appErr)
	c.JSON(appErr.HTTPStatus, appErr)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
