package domain

import "context"

// QuestionRepository is the persistence contract for questions and answers.
// All methods may fail with a transport or storage error; FetchQuestion and
// the mutating calls return ErrQuestionNotFound when the question is absent.
type QuestionRepository interface {
	FetchQuestion(ctx context.Context, questionID int) (*Question, error)
	ListQuestions(ctx context.Context, includeAnswers bool) ([]Question, error)
	SearchQuestions(ctx context.Context, search string, page, pageSize int) ([]QuestionSummary, error)
	UnansweredQuestions(ctx context.Context) ([]QuestionSummary, error)
	AnsweredQuestions(ctx context.Context) ([]QuestionSummary, error)
	CreateQuestion(ctx context.Context, req PostQuestionRequest) (*Question, error)
	UpdateQuestion(ctx context.Context, questionID int, req PutQuestionRequest) (*Question, error)
	DeleteQuestion(ctx context.Context, questionID int) error
	AppendAnswer(ctx context.Context, req PostAnswerRequest) (*Answer, error)
	QuestionExists(ctx context.Context, questionID int) (bool, error)
}
