package domain

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

const (
	EventImageUploaded          = "image-uploaded"
	EventUserRegistered         = "user-registered"
	EventPasswordResetRequested = "password-reset-requested"
)

// Event is an outbound notification published to the events queue.
type Event struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"`
	UserKey string                 `json:"userKey"`
	Data    sonic.NoCopyRawMessage `json:"data,omitempty"`
	Time    int64                  `json:"time"`
}

// NewEvent encodes data and stamps the event with a fresh id and time.
func NewEvent(typ, userKey string, data any) (Event, error) {
	raw, err := sonic.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:      uuid.NewString(),
		Type:    typ,
		UserKey: userKey,
		Data:    sonic.NoCopyRawMessage(raw),
		Time:    time.Now().UnixMilli(),
	}, nil
}
