package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adammasjid/ProjectTest/internal/domain"
)

// questionColumns must match the Scan order in scanQuestion.
const questionColumns = `question_id, title, content, user_id, user_name, created`

// answerColumns must match the Scan order in scanAnswer.
const answerColumns = `answer_id, question_id, content, user_id, user_name, created`

// QuestionRepo implements domain.QuestionRepository backed by PostgreSQL.
type QuestionRepo struct {
	pool *pgxpool.Pool
}

func NewQuestionRepo(pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{pool: pool}
}

func scanQuestion(row pgx.Row) (*domain.Question, error) {
	var q domain.Question
	err := row.Scan(&q.ID, &q.Title, &q.Content, &q.UserID, &q.UserName, &q.Created)
	if err != nil {
		return nil, err
	}
	q.Answers = []domain.Answer{}
	return &q, nil
}

// FetchQuestion returns the full snapshot of one question including its
// answers ordered by creation.
func (r *QuestionRepo) FetchQuestion(ctx context.Context, questionID int) (*domain.Question, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE question_id = $1`, questionID)

	question, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch question: %w", err)
	}

	answers, err := r.answersFor(ctx, questionID)
	if err != nil {
		return nil, err
	}
	question.Answers = answers

	return question, nil
}

func (r *QuestionRepo) answersFor(ctx context.Context, questionID int) ([]domain.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE question_id = $1 ORDER BY created, answer_id`,
		questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch answers: %w", err)
	}
	defer rows.Close()

	answers := []domain.Answer{}
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Content, &a.UserID, &a.UserName, &a.Created); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read answers: %w", err)
	}
	return answers, nil
}

// ListQuestions returns all questions, newest first, optionally with their
// answers attached.
func (r *QuestionRepo) ListQuestions(ctx context.Context, includeAnswers bool) ([]domain.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions ORDER BY created DESC, question_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Title, &q.Content, &q.UserID, &q.UserName, &q.Created); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		q.Answers = []domain.Answer{}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}

	if !includeAnswers {
		return questions, nil
	}

	for i := range questions {
		answers, err := r.answersFor(ctx, questions[i].ID)
		if err != nil {
			return nil, err
		}
		questions[i].Answers = answers
	}
	return questions, nil
}

// SearchQuestions returns questions whose title or content matches search,
// paged.
func (r *QuestionRepo) SearchQuestions(ctx context.Context, search string, page, pageSize int) ([]domain.QuestionSummary, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions
		 WHERE title ILIKE '%' || $1 || '%' OR content ILIKE '%' || $1 || '%'
		 ORDER BY created DESC, question_id DESC
		 LIMIT $2 OFFSET $3`,
		search, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search questions: %w", err)
	}
	defer rows.Close()

	return collectSummaries(rows)
}

// UnansweredQuestions returns questions without any answer, newest first.
func (r *QuestionRepo) UnansweredQuestions(ctx context.Context) ([]domain.QuestionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions q
		 WHERE NOT EXISTS (SELECT 1 FROM answers a WHERE a.question_id = q.question_id)
		 ORDER BY created DESC, question_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unanswered questions: %w", err)
	}
	defer rows.Close()

	return collectSummaries(rows)
}

// AnsweredQuestions returns questions with at least one answer, newest first.
func (r *QuestionRepo) AnsweredQuestions(ctx context.Context) ([]domain.QuestionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions q
		 WHERE EXISTS (SELECT 1 FROM answers a WHERE a.question_id = q.question_id)
		 ORDER BY created DESC, question_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list answered questions: %w", err)
	}
	defer rows.Close()

	return collectSummaries(rows)
}

func collectSummaries(rows pgx.Rows) ([]domain.QuestionSummary, error) {
	summaries := []domain.QuestionSummary{}
	for rows.Next() {
		var s domain.QuestionSummary
		var userID string
		if err := rows.Scan(&s.ID, &s.Title, &s.Content, &userID, &s.UserName, &s.Created); err != nil {
			return nil, fmt.Errorf("failed to scan question summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read question summaries: %w", err)
	}
	return summaries, nil
}

// CreateQuestion persists a new question and returns its snapshot.
func (r *QuestionRepo) CreateQuestion(ctx context.Context, req domain.PostQuestionRequest) (*domain.Question, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO questions (title, content, user_id, user_name, created)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+questionColumns,
		req.Title, req.Content, req.UserID, req.UserName, req.Created)

	question, err := scanQuestion(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return question, nil
}

// UpdateQuestion replaces title and content; empty fields keep the stored
// value. Returns the updated snapshot including answers.
func (r *QuestionRepo) UpdateQuestion(ctx context.Context, questionID int, req domain.PutQuestionRequest) (*domain.Question, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE questions
		 SET title = COALESCE(NULLIF($2, ''), title),
		     content = COALESCE(NULLIF($3, ''), content)
		 WHERE question_id = $1
		 RETURNING `+questionColumns,
		questionID, req.Title, req.Content)

	question, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	answers, err := r.answersFor(ctx, questionID)
	if err != nil {
		return nil, err
	}
	question.Answers = answers

	return question, nil
}

// DeleteQuestion removes a question and, via cascade, its answers.
func (r *QuestionRepo) DeleteQuestion(ctx context.Context, questionID int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE question_id = $1`, questionID)
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// AppendAnswer persists a new answer for an existing question.
func (r *QuestionRepo) AppendAnswer(ctx context.Context, req domain.PostAnswerRequest) (*domain.Answer, error) {
	exists, err := r.QuestionExists(ctx, req.QuestionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrQuestionNotFound
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO answers (question_id, content, user_id, user_name, created)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+answerColumns,
		req.QuestionID, req.Content, req.UserID, req.UserName, req.Created)

	var a domain.Answer
	if err := row.Scan(&a.ID, &a.QuestionID, &a.Content, &a.UserID, &a.UserName, &a.Created); err != nil {
		return nil, fmt.Errorf("failed to append answer: %w", err)
	}
	return &a, nil
}

// QuestionExists reports whether a question with the given ID is stored.
func (r *QuestionRepo) QuestionExists(ctx context.Context, questionID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM questions WHERE question_id = $1)`, questionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check question existence: %w", err)
	}
	return exists, nil
}
