package realtime

import "github.com/google/uuid"

type EventType string

const (
	EventConnected    EventType = "connected"
	EventNotification EventType = "notification"
)

// Event is the frame written to a live channel.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

type connectedData struct {
	UserID uuid.UUID `json:"userId"`
}
