// Package server exposes the meal journal over a JSON REST API and a
// websocket, and serves the static front-end.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/franckalain/mealcoach/internal/journal"
	"github.com/franckalain/mealcoach/internal/models"
	"github.com/franckalain/mealcoach/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Journal is what the transports call into
type Journal interface {
	RecordMeal(ctx context.Context, sess *session.Session, in journal.MealInput) (*journal.MealResult, error)
	GetDay(ctx context.Context, sess *session.Session, date string) (*journal.DayView, error)
	EvaluateDay(ctx context.Context, sess *session.Session, date string) (*models.DailyEvaluation, error)
	Today() string
}

// Sessions logs users in and checks their tokens
type Sessions interface {
	Login(password string) (*session.Session, error)
	Verify(token string) (*session.Session, error)
}

const maxUploadSize = "12M"

type Server struct {
	journal  Journal
	sessions Sessions
	clients  sync.Map
	debug    bool
	echo     *echo.Echo
}

func New(j Journal, sessions Sessions, staticDir string, debug bool) *Server {
	s := &Server{
		journal:  j,
		sessions: sessions,
		debug:    debug,
	}
	s.echo = s.routes(staticDir)
	if debug {
		log.Debug().Msg("Debug logging enabled")
	}
	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) routes(staticDir string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger)
	e.Use(middleware.BodyLimit(maxUploadSize))

	e.GET("/health", s.handleHealth)
	e.GET("/ws", s.handleWebSocket)
	e.POST("/api/login", s.handleLogin)

	api := e.Group("/api", s.requireSession)
	api.POST("/meals", s.handleRecordMeal)
	api.GET("/days/:date", s.handleGetDay)
	api.POST("/days/:date/evaluation", s.handleEvaluateDay)

	if staticDir != "" {
		e.Static("/", staticDir)
	}
	return e
}

// Start serves on port until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Msg("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	s.clients.Range(func(key, value any) bool {
		value.(*websocket.Conn).Close()
		return true
	})
	return srv.Shutdown(shutdownCtx)
}

// requestLogger tags every request with an id and logs its outcome
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()
		c.Set("logger", &logger)

		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		logger.Info().
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", c.Response().Status).
			Dur("latency", time.Since(start)).
			Msg("Handled request")
		return nil
	}
}

func loggerFrom(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get("logger").(*zerolog.Logger); ok {
		return l
	}
	return &log.Logger
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}
