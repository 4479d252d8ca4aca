// Package protocol defines the JSON messages exchanged on the question hub
// websocket. Both the server hub and the Go client speak this package.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/adammasjid/ProjectTest/internal/domain"
)

// Message types. Subscribe/Unsubscribe are inbound commands, the rest are
// outbound acks and pushes.
const (
	TypeSubscribe       = "subscribe"
	TypeUnsubscribe     = "unsubscribe"
	TypeSubscribed      = "subscribed"
	TypeUnsubscribed    = "unsubscribed"
	TypeQuestionUpdated = "questionUpdated"
	TypeQuestionDeleted = "questionDeleted"
)

// Message is one frame on the hub websocket. Question is set only for
// questionUpdated pushes.
type Message struct {
	Type       string           `json:"type"`
	QuestionID int              `json:"questionId"`
	Question   *domain.Question `json:"question,omitempty"`
}

func Subscribe(questionID int) Message {
	return Message{Type: TypeSubscribe, QuestionID: questionID}
}

func Unsubscribe(questionID int) Message {
	return Message{Type: TypeUnsubscribe, QuestionID: questionID}
}

func Subscribed(questionID int) Message {
	return Message{Type: TypeSubscribed, QuestionID: questionID}
}

func Unsubscribed(questionID int) Message {
	return Message{Type: TypeUnsubscribed, QuestionID: questionID}
}

func QuestionUpdated(question *domain.Question) Message {
	return Message{Type: TypeQuestionUpdated, QuestionID: question.ID, Question: question}
}

func QuestionDeleted(questionID int) Message {
	return Message{Type: TypeQuestionDeleted, QuestionID: questionID}
}

// Encode marshals a message to its wire form.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", m.Type, err)
	}
	return data, nil
}

// Decode parses one wire frame. Unknown types are returned as-is so callers
// can decide whether to ignore them.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("malformed hub message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("hub message missing type")
	}
	return m, nil
}
