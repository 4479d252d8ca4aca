// Package app is the application layer - the only component that references
// multiple domain components. It orchestrates all use cases around the
// question repository, the snapshot cache and the notification hub.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/adammasjid/ProjectTest/internal/cache"
	"github.com/adammasjid/ProjectTest/internal/domain"
)

// InvalidationPublisher tells other instances a question was written.
// Best-effort: a publish failure is logged, never surfaced to the caller.
type InvalidationPublisher func(ctx context.Context, questionID int) error

// Service orchestrates reads through the snapshot cache and routes every
// completed write through the notifier. A failed write has no cache or
// notification side effect.
type Service struct {
	repo        domain.QuestionRepository
	cache       *cache.QuestionCache
	notifier    domain.Notifier
	clock       clockwork.Clock
	publish     InvalidationPublisher
	lookupGroup singleflight.Group
	breaker     *gobreaker.CircuitBreaker
}

// NewService creates the application layer service. publish may be nil when
// cross-instance invalidation is not configured.
func NewService(repo domain.QuestionRepository, snapshots *cache.QuestionCache, notifier domain.Notifier, clock clockwork.Clock, publish InvalidationPublisher) *Service {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "question-storage",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Storage circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Service{
		repo:     repo,
		cache:    snapshots,
		notifier: notifier,
		clock:    clock,
		publish:  publish,
		breaker:  breaker,
	}
}

// GetQuestion returns the snapshot for questionID, cache-first. Concurrent
// misses for the same question are collapsed into one storage fetch, and
// the fetch is guarded by a circuit breaker so a dead database fails fast.
func (s *Service) GetQuestion(ctx context.Context, questionID int) (*domain.Question, error) {
	if question, ok := s.cache.Get(questionID); ok {
		return question, nil
	}

	result, err := s.lookupQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if !result.stored {
		// A write invalidated the snapshot while the fetch was in flight,
		// so the fetched value may predate that write. Refetch once so the
		// caller never sees a snapshot older than an acknowledged write.
		result, err = s.lookupQuestion(ctx, questionID)
		if err != nil {
			return nil, err
		}
	}
	return result.question, nil
}

// lookupResult carries a fetched snapshot out of the singleflight together
// with whether the population survived the generation check.
type lookupResult struct {
	question *domain.Question
	stored   bool
}

func (s *Service) lookupQuestion(ctx context.Context, questionID int) (lookupResult, error) {
	result, err, _ := s.lookupGroup.Do(strconv.Itoa(questionID), func() (any, error) {
		// The generation is captured before the fetch; a write landing in
		// between bumps it and the population below is discarded.
		gen := s.cache.BeginPopulate(questionID)

		fetched, err := s.breaker.Execute(func() (any, error) {
			question, err := s.repo.FetchQuestion(ctx, questionID)
			if errors.Is(err, domain.ErrQuestionNotFound) {
				// Absence is not a storage failure; keep the breaker closed.
				return (*domain.Question)(nil), nil
			}
			return question, err
		})
		if err != nil {
			s.cache.EndPopulate(questionID, gen, nil)
			return nil, fmt.Errorf("question lookup failed: %w", err)
		}

		question := fetched.(*domain.Question)
		if question == nil {
			s.cache.EndPopulate(questionID, gen, nil)
			return nil, domain.ErrQuestionNotFound
		}

		stored := s.cache.EndPopulate(questionID, gen, question)
		return lookupResult{question: question, stored: stored}, nil
	})
	if err != nil {
		return lookupResult{}, err
	}

	return result.(lookupResult), nil
}

// ListQuestions returns all questions, optionally with answers.
func (s *Service) ListQuestions(ctx context.Context, includeAnswers bool) ([]domain.Question, error) {
	return s.repo.ListQuestions(ctx, includeAnswers)
}

// SearchQuestions returns matching questions, paged.
func (s *Service) SearchQuestions(ctx context.Context, search string, page, pageSize int) ([]domain.QuestionSummary, error) {
	return s.repo.SearchQuestions(ctx, search, page, pageSize)
}

// UnansweredQuestions returns questions without answers.
func (s *Service) UnansweredQuestions(ctx context.Context) ([]domain.QuestionSummary, error) {
	return s.repo.UnansweredQuestions(ctx)
}

// AnsweredQuestions returns questions with at least one answer.
func (s *Service) AnsweredQuestions(ctx context.Context) ([]domain.QuestionSummary, error) {
	return s.repo.AnsweredQuestions(ctx)
}

// CreateQuestion persists a new question and notifies subscribers.
func (s *Service) CreateQuestion(ctx context.Context, title, content, userID, userName string) (*domain.Question, error) {
	question, err := s.repo.CreateQuestion(ctx, domain.PostQuestionRequest{
		Title:    title,
		Content:  content,
		UserID:   userID,
		UserName: userName,
		Created:  s.clock.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.questionWritten(ctx, question.ID)
	return question, nil
}

// UpdateQuestion replaces title and content (empty fields keep the stored
// value) and notifies subscribers.
func (s *Service) UpdateQuestion(ctx context.Context, questionID int, title, content string) (*domain.Question, error) {
	question, err := s.repo.UpdateQuestion(ctx, questionID, domain.PutQuestionRequest{
		Title:   title,
		Content: content,
	})
	if err != nil {
		return nil, err
	}

	s.questionWritten(ctx, questionID)
	return question, nil
}

// DeleteQuestion removes a question and notifies subscribers of the deletion.
func (s *Service) DeleteQuestion(ctx context.Context, questionID int) error {
	if err := s.repo.DeleteQuestion(ctx, questionID); err != nil {
		return err
	}

	s.notifier.QuestionDeleted(ctx, questionID)
	s.publishInvalidation(ctx, questionID)
	return nil
}

// PostAnswer appends an answer to an existing question and notifies the
// question's subscribers with the full updated snapshot.
func (s *Service) PostAnswer(ctx context.Context, questionID int, content, userID, userName string) (*domain.Answer, error) {
	answer, err := s.repo.AppendAnswer(ctx, domain.PostAnswerRequest{
		QuestionID: questionID,
		Content:    content,
		UserID:     userID,
		UserName:   userName,
		Created:    s.clock.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.questionWritten(ctx, questionID)
	return answer, nil
}

func (s *Service) questionWritten(ctx context.Context, questionID int) {
	s.notifier.QuestionWritten(ctx, questionID)
	s.publishInvalidation(ctx, questionID)
}

func (s *Service) publishInvalidation(ctx context.Context, questionID int) {
	if s.publish == nil {
		return
	}
	if err := s.publish(ctx, questionID); err != nil {
		slog.Warn("Failed to publish cross-instance invalidation", "question_id", questionID, "error", err)
	}
}
