package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/storyline/internal/clustering"
	"horse.fit/storyline/internal/globaltime"
	"horse.fit/storyline/internal/ingest"
	"horse.fit/storyline/internal/news"
)

// StoryReader is the read side of a story store.
type StoryReader interface {
	Ping(ctx context.Context) error
	ListActiveStories(ctx context.Context, since time.Time, limit int) ([]news.Story, error)
	GetStory(ctx context.Context, storyID string) (news.Story, error)
}

type Ingester interface {
	IngestOne(ctx context.Context, item news.RawItem, feed news.FeedMeta) (ingest.Result, error)
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Location        *time.Location
	Retention       time.Duration
}

type Server struct {
	stories  StoryReader
	ingester Ingester
	builder  *clustering.Builder
	sweeper  *ingest.Sweeper
	logger   zerolog.Logger
	opts     Options
	now      func() time.Time
}

func NewServer(
	stories StoryReader,
	ingester Ingester,
	builder *clustering.Builder,
	sweeper *ingest.Sweeper,
	logger zerolog.Logger,
	opts Options,
) *Server {
	return &Server{
		stories:  stories,
		ingester: ingester,
		builder:  builder,
		sweeper:  sweeper,
		logger:   logger,
		now:      globaltime.UTC,
		opts:     opts.withDefaults(),
	}
}

func (o Options) withDefaults() Options {
	if o.Host = strings.TrimSpace(o.Host); o.Host == "" {
		o.Host = "0.0.0.0"
	}
	if o.Port <= 0 {
		o.Port = 8090
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 30 * time.Second
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 10 * time.Second
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Retention <= 0 {
		o.Retention = ingest.DefaultRetention
	}
	return o
}

// Handler builds the echo instance with all routes. Start serves it.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("2M"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:     true,
		LogURI:        true,
		LogMethod:     true,
		LogLatency:    true,
		LogRemoteIP:   true,
		LogRequestID:  true,
		LogError:      true,
		LogValuesFunc: s.logRequest,
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.POST("/items", s.handleIngestItem)
	api.POST("/clusters", s.handleClusterItems)
	api.GET("/clusters", s.handleLiveClusters)
	api.GET("/timeline", s.handleTimeline)
	api.GET("/stories", s.handleStories)
	api.GET("/stories/:story_id", s.handleStoryDetail)
	return e
}

func (s *Server) logRequest(_ echo.Context, v middleware.RequestLoggerValues) error {
	event := s.logger.Info()
	msg := "http request"
	if v.Error != nil {
		event = s.logger.Error().Err(v.Error)
		msg = "http request failed"
	}
	event.
		Str("method", v.Method).
		Str("uri", v.URI).
		Int("status", v.Status).
		Dur("latency", v.Latency).
		Str("remote_ip", v.RemoteIP).
		Str("request_id", v.RequestID).
		Msg(msg)
	return nil
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.stories == nil || s.ingester == nil || s.builder == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
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

	s.logger.Info().Str("addr", addr).Msg("storyline api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("storyline api server stopped")
	return nil
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
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	data := map[string]any{
		"service": "storyline",
		"time":    s.now(),
	}
	if s.sweeper != nil {
		data["sweeper"] = s.sweeper.State()
	}
	if err := s.stories.Ping(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("story store ping failed")
		return unavailable(c, "Story store unavailable")
	}
	return success(c, data)
}
