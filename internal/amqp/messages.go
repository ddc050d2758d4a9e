package amqp

import (
	"encoding/json"
	"time"
)

// Actions carried by an ExpenseChangeMessage.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ExpenseChangeMessage is a lightweight notification that an expense
// changed. It carries only the id and action; consumers fetch the current
// row from storage, so a stale message can never overwrite newer data.
type ExpenseChangeMessage struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseChangeMessage creates a change notification for an expense id.
func NewExpenseChangeMessage(id, action string) *ExpenseChangeMessage {
	return &ExpenseChangeMessage{
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ExpenseChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangeMessageFromJSON creates a message from JSON bytes.
func ExpenseChangeMessageFromJSON(data []byte) (*ExpenseChangeMessage, error) {
	var msg ExpenseChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
