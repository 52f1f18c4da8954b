package types

import "time"

// EventType represents the type of real-time event
type EventType string

const (
	EventMediaRegistered  EventType = "media.registered"
	EventMediaValidation  EventType = "media.validation"
	EventCarStatusChanged EventType = "car.status_changed"
)

// Event represents a real-time event that can be sent over WebSocket
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// MediaRegisteredEvent fires when a media asset finishes registration.
type MediaRegisteredEvent struct {
	CarID        string `json:"car_id"`
	MediaID      string `json:"media_id"`
	MediaType    string `json:"media_type"`
	PhotoType    string `json:"photo_type,omitempty"`
	RegisteredAt string `json:"registered_at"`
}

// MediaValidationEvent carries the recomputed checklist for a car.
type MediaValidationEvent struct {
	CarID                string `json:"car_id"`
	IsValid              bool   `json:"is_valid"`
	HasVideo             bool   `json:"has_video"`
	CompletionPercentage int    `json:"completion_percentage"`
}

// CarStatusChangedEvent fires on car lifecycle transitions.
type CarStatusChangedEvent struct {
	CarID     string    `json:"car_id"`
	Status    CarStatus `json:"status"`
	ChangedAt string    `json:"changed_at"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
