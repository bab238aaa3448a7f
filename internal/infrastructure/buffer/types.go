package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EntitySessionEvent = "session_event"

	OperationCreate = "create"
)

// Item is a write that could not reach primary storage and waits to be replayed.
type Item struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"client_id"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
