package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Mutating routes are rate limited per client IP.
	writeLimiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(s.config.WriteRatePerSecond),
			Burst: s.config.WriteRateBurst,
		}),
	})

	// Question API
	s.echo.GET("/api/questions", s.handleGetQuestions)
	s.echo.GET("/api/questions/unanswered", s.handleGetUnansweredQuestions)
	s.echo.GET("/api/questions/answered", s.handleGetAnsweredQuestions)
	s.echo.GET("/api/questions/:questionId", s.handleGetQuestion)
	s.echo.POST("/api/questions", s.handlePostQuestion, writeLimiter)
	s.echo.PUT("/api/questions/:questionId", s.handlePutQuestion, writeLimiter)
	s.echo.DELETE("/api/questions/:questionId", s.handleDeleteQuestion, writeLimiter)
	s.echo.POST("/api/questions/answer", s.handlePostAnswer, writeLimiter)

	// Live question hub (websocket)
	s.echo.GET("/questionshub", s.handleQuestionsHub)
}
