package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExpenseExportMessage asks the worker to export one stored expense.
// The worker reloads the expense by ID, so the body stays small.
type ExpenseExportMessage struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseExportMessage creates a message stamped with the current time.
func NewExpenseExportMessage(id int64, userID string, version int64) *ExpenseExportMessage {
	return &ExpenseExportMessage{
		ID:        id,
		UserID:    userID,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseExportMessageFromJSON decodes and sanity-checks a message body.
func ExpenseExportMessageFromJSON(data []byte) (*ExpenseExportMessage, error) {
	var msg ExpenseExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid expense id %d", msg.ID)
	}
	return &msg, nil
}
