package amqp

import (
	"encoding/json"
	"time"
)

// ItemCompletedMessage tells the finance worker a line item reached the
// Completed state. It carries only the ID; the worker fetches the full
// record from the database.
type ItemCompletedMessage struct {
	ItemID    int64     `json:"item_id"`
	Timestamp time.Time `json:"timestamp"`
}

// JobUploadedMessage announces a new Schedule of Works upload. Published on
// its own routing key for downstream consumers.
type JobUploadedMessage struct {
	JobID     int64     `json:"job_id"`
	ItemCount int       `json:"item_count"`
	Timestamp time.Time `json:"timestamp"`
}

func NewItemCompletedMessage(itemID int64) *ItemCompletedMessage {
	return &ItemCompletedMessage{
		ItemID:    itemID,
		Timestamp: time.Now(),
	}
}

func NewJobUploadedMessage(jobID int64, itemCount int) *JobUploadedMessage {
	return &JobUploadedMessage{
		JobID:     jobID,
		ItemCount: itemCount,
		Timestamp: time.Now(),
	}
}

func (m *ItemCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ItemCompletedMessageFromJSON(data []byte) (*ItemCompletedMessage, error) {
	var msg ItemCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *JobUploadedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func JobUploadedMessageFromJSON(data []byte) (*JobUploadedMessage, error) {
	var msg JobUploadedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
