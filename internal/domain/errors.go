package domain

import "errors"

var ErrQuestionNotFound = errors.New("question not found")
