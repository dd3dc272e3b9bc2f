package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/safeagree/internal/policy"
)

const (
	defaultMaxUploadBytes int64 = 16 << 20
	maxHistoryLimit             = 500
)

// PolicyService is the document-processing surface the API exposes.
type PolicyService interface {
	ProcessDocument(ctx context.Context, req policy.ProcessRequest) (*policy.Result, error)
	GetEntry(ctx context.Context, entryID int64) (*policy.EntryView, error)
	History(ctx context.Context, limit int) ([]policy.CatalogEntry, error)
}

// LibraryService manages per-user libraries.
type LibraryService interface {
	AddExisting(ctx context.Context, userID, entryID int64) error
	List(ctx context.Context, userID int64) ([]policy.LibraryItem, error)
	Remove(ctx context.Context, userID, entryID int64) (bool, error)
	RefreshAll(ctx context.Context, userID int64) (*policy.RefreshReport, error)
	ImportFromLinkList(ctx context.Context, userID int64, text string) (*policy.ImportReport, error)
	Export(ctx context.Context, userID int64) ([]string, error)
}

// HealthChecker reports backing-store reachability.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Services struct {
	Policies PolicyService
	Library  LibraryService
	Health   HealthChecker
}

type Options struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
	MaxUploadBytes     int64
}

type Server struct {
	policies PolicyService
	library  LibraryService
	health   HealthChecker
	logger   zerolog.Logger
	opts     Options
}

func NewServer(services Services, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	// Summaries can take as long as the summarizer timeout.
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 120 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	return &Server{
		policies: services.Policies,
		library:  services.Library,
		health:   services.Health,
		logger:   logger,
		opts: Options{
			Host:               host,
			Port:               port,
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			ShutdownTimeout:    shutdownTimeout,
			CORSAllowedOrigins: opts.CORSAllowedOrigins,
			MaxUploadBytes:     maxUpload,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.policies == nil || s.library == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.newEcho()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("safeagree api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("safeagree api server stopped")
	return nil
}

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	allowOrigins := s.opts.CORSAllowedOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", headerUserID},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))
	e.Use(middleware.BodyLimit(strconv.FormatInt(s.opts.MaxUploadBytes, 10)))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/history", s.handleHistory)
	api.GET("/policies/:id", s.handleGetPolicy)

	user := api.Group("", s.requireUser())
	user.POST("/policies", s.handleProcessPolicy)
	user.GET("/library", s.handleListLibrary)
	user.POST("/library", s.handleAddToLibrary)
	user.DELETE("/library/:id", s.handleRemoveFromLibrary)
	user.POST("/library/refresh", s.handleRefreshLibrary)
	user.POST("/library/import", s.handleImportLibrary)
	user.GET("/library/export", s.handleExportLibrary)

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		s.logger.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("unhandled handler error")
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	payload := map[string]any{
		"service":  "safeagree",
		"time":     time.Now().UTC(),
		"database": "unchecked",
	}
	if s.health != nil {
		if err := s.health.Ping(c.Request().Context()); err != nil {
			s.logger.Error().Err(err).Msg("health check failed")
			return errorWithStatus(c, http.StatusServiceUnavailable, "Database unavailable")
		}
		payload["database"] = "ok"
	}
	return success(c, payload)
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

func parseEntryID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return id, nil
}
