package domain

import "time"

// Question is an immutable snapshot of a question and its answers at one
// point in time. Writers never mutate a snapshot in place; every completed
// write produces a new value that replaces the old one wholesale.
type Question struct {
	ID       int       `json:"questionId"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	Created  time.Time `json:"created"`
	Answers  []Answer  `json:"answers"`
}

// Answer is one answer record inside a question snapshot, ordered by
// creation time.
type Answer struct {
	ID         int       `json:"answerId"`
	QuestionID int       `json:"questionId"`
	Content    string    `json:"content"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	Created    time.Time `json:"created"`
}

// QuestionSummary is the list-view projection of a question (no answers).
type QuestionSummary struct {
	ID       int       `json:"questionId"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	UserName string    `json:"userName"`
	Created  time.Time `json:"created"`
}

// PostQuestionRequest carries the fields for a new question.
type PostQuestionRequest struct {
	Title    string
	Content  string
	UserID   string
	UserName string
	Created  time.Time
}

// PutQuestionRequest carries the fields for a question update. Empty fields
// keep the stored value.
type PutQuestionRequest struct {
	Title   string
	Content string
}

// PostAnswerRequest carries the fields for a new answer.
type PostAnswerRequest struct {
	QuestionID int
	Content    string
	UserID     string
	UserName   string
	Created    time.Time
}
