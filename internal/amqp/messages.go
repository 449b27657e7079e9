package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op is the kind of change applied to a record.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// RecordChangedMessage announces that a record was written or removed.
// It carries identifiers only; consumers reload the record from storage.
type RecordChangedMessage struct {
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	Op        Op        `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordChangedMessage(userID, kind, id string, op Op) *RecordChangedMessage {
	return &RecordChangedMessage{
		UserID:    userID,
		Kind:      kind,
		ID:        id,
		Op:        op,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangedMessageFromJSON decodes and checks a message body.
func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	var msg RecordChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" || msg.UserID == "" {
		return nil, fmt.Errorf("message missing record or user id")
	}
	switch msg.Op {
	case OpUpsert, OpDelete:
	default:
		return nil, fmt.Errorf("unknown op %q", msg.Op)
	}
	return &msg, nil
}
