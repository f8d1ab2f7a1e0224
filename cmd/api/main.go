package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classtrack/internal/academics"
	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/config"
	"classtrack/internal/events"
	"classtrack/internal/geoclient"
	"classtrack/internal/httpmiddleware"
	"classtrack/internal/queue"
	"classtrack/internal/session"
	"classtrack/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:events")
	}
	publisher := events.NewPublisher(q, cfg.EventBuffer)
	defer publisher.Close()

	repo := session.NewPostgresRepository(db.Client)
	lookup := academics.NewLookup(db.Client)
	scheduler := session.NewScheduler(repo, lookup, lookup)
	sessions := session.NewService(repo, scheduler, publisher)
	records := attendance.NewRepository(db.Client)
	geo := geoclient.New(cfg.GeoServiceURL, cfg.GeoSkip)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			SubjectID string `json:"subject_id" binding:"required"`
			Role      string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		switch req.Role {
		case auth.RoleLecturer:
			active, err := lookup.IsLecturerActive(c.Request.Context(), req.SubjectID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if !active {
				c.JSON(http.StatusForbidden, gin.H{"error": "lecturer account not active"})
				return
			}
		case auth.RoleStudent:
			exists, err := lookup.StudentExists(c.Request.Context(), req.SubjectID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if !exists {
				c.JSON(http.StatusForbidden, gin.H{"error": "unknown student"})
				return
			}
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be lecturer or student"})
			return
		}

		tokens, err := auth.Issue(req.SubjectID, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	lecturerGroup := r.Group("/v1", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleLecturer))

	lecturerGroup.POST("/sessions", func(c *gin.Context) {
		var req session.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		view, err := sessions.Create(c.Request.Context(), auth.Subject(c), req)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, view)
	})

	lecturerGroup.GET("/sessions", func(c *gin.Context) {
		filter := session.ListFilter{
			ProgramID: c.Query("program_id"),
			CourseID:  c.Query("course_id"),
			StreamID:  c.Query("stream_id"),
			Page:      intQuery(c, "page", 1),
			PageSize:  intQuery(c, "page_size", 0),
		}
		if v := c.Query("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an RFC 3339 timestamp"})
				return
			}
			filter.From = &t
		}
		if v := c.Query("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be an RFC 3339 timestamp"})
				return
			}
			filter.To = &t
		}

		page, err := sessions.List(c.Request.Context(), auth.Subject(c), filter)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, page)
	})

	lecturerGroup.GET("/sessions/:id", func(c *gin.Context) {
		view, err := sessions.Get(c.Request.Context(), auth.Subject(c), c.Param("id"))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, view)
	})

	lecturerGroup.PATCH("/sessions/:id", func(c *gin.Context) {
		var req session.UpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		view, err := sessions.Update(c.Request.Context(), auth.Subject(c), c.Param("id"), req)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, view)
	})

	lecturerGroup.POST("/sessions/:id/end", func(c *gin.Context) {
		view, err := sessions.End(c.Request.Context(), auth.Subject(c), c.Param("id"))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, view)
	})

	lecturerGroup.GET("/sessions/:id/attendance", func(c *gin.Context) {
		sess, err := sessions.Load(c.Request.Context(), auth.Subject(c), c.Param("id"))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		roster, err := records.Roster(c.Request.Context(), sess.ProgramID, sess.StreamID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		checkins, err := records.RecordsBySession(c.Request.Context(), sess.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rows": attendance.Classify(sess, roster, checkins)})
	})

	lecturerGroup.POST("/sessions/:id/report", func(c *gin.Context) {
		sess, err := sessions.Load(c.Request.Context(), auth.Subject(c), c.Param("id"))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		report, err := records.CreateReport(c.Request.Context(), sess.ID, auth.Subject(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := q.Publish(c.Request.Context(), queue.Message{Type: "report.generate", Body: []byte(report.ID)}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
		c.JSON(http.StatusAccepted, gin.H{"report_id": report.ID, "session_id": report.SessionID})
	})

	lecturerGroup.GET("/reports/:id", func(c *gin.Context) {
		report, err := records.GetReport(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		sess, err := sessions.Load(c.Request.Context(), auth.Subject(c), report.SessionID)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"report_id":      report.ID,
			"session_id":     sess.ID,
			"generated_by":   report.GeneratedBy,
			"generated_date": report.GeneratedDate,
			"file_path":      report.FilePath,
			"file_type":      report.FileType,
			"exported":       report.Exported(),
		})
	})

	studentGroup := r.Group("/v1", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleStudent))

	studentGroup.POST("/checkins", func(c *gin.Context) {
		var req struct {
			SessionID string   `json:"session_id" binding:"required"`
			Latitude  *float64 `json:"latitude" binding:"required"`
			Longitude *float64 `json:"longitude" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sess, err := repo.Get(c.Request.Context(), req.SessionID)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		verdict, err := geo.Verify(c.Request.Context(),
			sess.Location.Latitude(), sess.Location.Longitude(),
			*req.Latitude, *req.Longitude, sess.Location.RadiusMeters())
		if err != nil {
			log.Printf("geo verify failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "location verification failed"})
			return
		}

		rec, err := records.InsertRecord(c.Request.Context(), sess.ID, auth.Subject(c),
			time.Now(), *req.Latitude, *req.Longitude, verdict.WithinRadius)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"session_id":    sess.ID,
			"time_recorded": rec.TimeRecorded,
			"within_radius": verdict.WithinRadius,
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// statusFor maps domain rejections onto HTTP status codes.
func statusFor(err error) int {
	var validation *session.ValidationError
	switch {
	case errors.As(err, &validation),
		errors.Is(err, session.ErrInvalidTimeWindow),
		errors.Is(err, session.ErrInvalidLocation):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrOverlappingSession):
		return http.StatusConflict
	case errors.Is(err, session.ErrCourseNotInProgram),
		errors.Is(err, session.ErrStreamsNotSupported),
		errors.Is(err, session.ErrStreamNotInProgram),
		errors.Is(err, session.ErrLecturerNotAssigned),
		errors.Is(err, session.ErrLecturerInactive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, attendance.ErrReportNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
