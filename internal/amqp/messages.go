package amqp

import (
	"encoding/json"
	"time"
)

// StatementProcessMessage asks a worker to process an uploaded
// statement. It carries only the id, the worker fetches the statement
// record and file from storage.
type StatementProcessMessage struct {
	StatementID string    `json:"statement_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewStatementProcessMessage creates a message for the given statement.
func NewStatementProcessMessage(statementID string) *StatementProcessMessage {
	return &StatementProcessMessage{
		StatementID: statementID,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *StatementProcessMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StatementProcessMessageFromJSON creates a message from JSON bytes
func StatementProcessMessageFromJSON(data []byte) (*StatementProcessMessage, error) {
	var msg StatementProcessMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.StatementID == "" {
		return nil, errEmptyStatementID
	}
	return &msg, nil
}
