package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/adammasjid/ProjectTest/internal/domain"
	apperrors "github.com/adammasjid/ProjectTest/internal/errors"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

type postQuestionPayload struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type putQuestionPayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type postAnswerPayload struct {
	QuestionID int    `json:"questionId"`
	Content    string `json:"content"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
}

func (s *Server) handleGetQuestions(c echo.Context) error {
	ctx := c.Request().Context()

	if search := c.QueryParam("search"); search != "" {
		page := intQueryParam(c, "page", defaultPage)
		pageSize := intQueryParam(c, "pageSize", defaultPageSize)
		if page < 1 {
			return apperrors.ValidationError("page must be at least 1")
		}
		if pageSize < 1 || pageSize > maxPageSize {
			return apperrors.ValidationError("pageSize must be between 1 and 100")
		}

		summaries, err := s.service.SearchQuestions(ctx, search, page, pageSize)
		if err != nil {
			return apperrors.InternalError("failed to search questions", err)
		}
		return c.JSON(http.StatusOK, summaries)
	}

	includeAnswers, _ := strconv.ParseBool(c.QueryParam("includeAnswers"))
	questions, err := s.service.ListQuestions(ctx, includeAnswers)
	if err != nil {
		return apperrors.InternalError("failed to list questions", err)
	}
	return c.JSON(http.StatusOK, questions)
}

func (s *Server) handleGetUnansweredQuestions(c echo.Context) error {
	summaries, err := s.service.UnansweredQuestions(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list unanswered questions", err)
	}
	return c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleGetAnsweredQuestions(c echo.Context) error {
	summaries, err := s.service.AnsweredQuestions(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list answered questions", err)
	}
	return c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleGetQuestion(c echo.Context) error {
	questionID, err := questionIDParam(c)
	if err != nil {
		return err
	}

	question, err := s.service.GetQuestion(c.Request().Context(), questionID)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return apperrors.NotFoundError("question not found").WithField("question_id", questionID)
	}
	if err != nil {
		return apperrors.InternalError("failed to load question", err)
	}
	return c.JSON(http.StatusOK, question)
}

func (s *Server) handlePostQuestion(c echo.Context) error {
	var payload postQuestionPayload
	if err := c.Bind(&payload); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if payload.Title == "" {
		return apperrors.ValidationError("title must not be empty")
	}
	if payload.Content == "" {
		return apperrors.ValidationError("content must not be empty")
	}

	question, err := s.service.CreateQuestion(c.Request().Context(), payload.Title, payload.Content, payload.UserID, payload.UserName)
	if err != nil {
		return apperrors.InternalError("failed to create question", err)
	}
	return c.JSON(http.StatusCreated, question)
}

func (s *Server) handlePutQuestion(c echo.Context) error {
	questionID, err := questionIDParam(c)
	if err != nil {
		return err
	}

	var payload putQuestionPayload
	if err := c.Bind(&payload); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if payload.Title == "" && payload.Content == "" {
		return apperrors.ValidationError("title or content must be provided")
	}

	question, err := s.service.UpdateQuestion(c.Request().Context(), questionID, payload.Title, payload.Content)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return apperrors.NotFoundError("question not found").WithField("question_id", questionID)
	}
	if err != nil {
		return apperrors.InternalError("failed to update question", err)
	}
	return c.JSON(http.StatusOK, question)
}

func (s *Server) handleDeleteQuestion(c echo.Context) error {
	questionID, err := questionIDParam(c)
	if err != nil {
		return err
	}

	err = s.service.DeleteQuestion(c.Request().Context(), questionID)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return apperrors.NotFoundError("question not found").WithField("question_id", questionID)
	}
	if err != nil {
		return apperrors.InternalError("failed to delete question", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handlePostAnswer(c echo.Context) error {
	var payload postAnswerPayload
	if err := c.Bind(&payload); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if payload.QuestionID <= 0 {
		return apperrors.ValidationError("questionId must be positive")
	}
	if payload.Content == "" {
		return apperrors.ValidationError("content must not be empty")
	}

	answer, err := s.service.PostAnswer(c.Request().Context(), payload.QuestionID, payload.Content, payload.UserID, payload.UserName)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return apperrors.NotFoundError("question not found").WithField("question_id", payload.QuestionID)
	}
	if err != nil {
		return apperrors.InternalError("failed to post answer", err)
	}
	return c.JSON(http.StatusCreated, answer)
}

func questionIDParam(c echo.Context) (int, error) {
	questionID, err := strconv.Atoi(c.Param("questionId"))
	if err != nil || questionID <= 0 {
		return 0, apperrors.ValidationError("questionId must be a positive integer")
	}
	return questionID, nil
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
