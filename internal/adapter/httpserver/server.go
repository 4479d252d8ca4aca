// Package httpserver exposes the question API and the websocket hub
// endpoint over echo.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/adammasjid/ProjectTest/internal/broadcast"
	"github.com/adammasjid/ProjectTest/internal/domain"
	apperrors "github.com/adammasjid/ProjectTest/internal/errors"
	"github.com/adammasjid/ProjectTest/internal/platform/config"
)

// QuestionService is the application surface the handlers need.
type QuestionService interface {
	GetQuestion(ctx context.Context, questionID int) (*domain.Question, error)
	ListQuestions(ctx context.Context, includeAnswers bool) ([]domain.Question, error)
	SearchQuestions(ctx context.Context, search string, page, pageSize int) ([]domain.QuestionSummary, error)
	UnansweredQuestions(ctx context.Context) ([]domain.QuestionSummary, error)
	AnsweredQuestions(ctx context.Context) ([]domain.QuestionSummary, error)
	CreateQuestion(ctx context.Context, title, content, userID, userName string) (*domain.Question, error)
	UpdateQuestion(ctx context.Context, questionID int, title, content string) (*domain.Question, error)
	DeleteQuestion(ctx context.Context, questionID int) error
	PostAnswer(ctx context.Context, questionID int, content, userID, userName string) (*domain.Answer, error)
}

// SubscriptionHub is the fan-out surface the websocket handler needs.
type SubscriptionHub interface {
	Subscribe(questionID int, conn *broadcast.Conn)
	Unsubscribe(questionID int, conn *broadcast.Conn)
	ConnectionClosed(conn *broadcast.Conn)
}

// pinger reports backend liveness for readiness checks.
type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	service   QuestionService
	hub       SubscriptionHub
	clock     clockwork.Clock
	db        pinger
	startTime time.Time
}

func NewServer(cfg *config.Config, service QuestionService, hub SubscriptionHub, clock clockwork.Clock, db pinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		service:   service,
		hub:       hub,
		clock:     clock,
		db:        db,
		startTime: clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
				slog.Warn("Request failed", attrs...)
				return nil
			}
			slog.Info("Request handled", attrs...)
			return nil
		},
	})
}
