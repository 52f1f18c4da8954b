package events

import (
	"time"

	"github.com/motorscan/carhealth/internal/types"
	"github.com/motorscan/carhealth/internal/types/media"
)

// Publisher pushes real-time media pipeline events to car owners.
type Publisher interface {
	PublishMediaRegistered(ownerID string, m media.Media) error
	PublishValidation(ownerID, carID string, result media.ValidationResult) error
	PublishCarStatusChanged(ownerID, carID string, status types.CarStatus) error
}

// WebSocketHub interface for the WebSocket hub
type WebSocketHub interface {
	BroadcastToUser(userID string, event *types.Event)
	IsUserConnected(userID string) bool
}

// EventPublisher implements the Publisher interface over a hub.
type EventPublisher struct {
	hub WebSocketHub
}

func NewEventPublisher(hub WebSocketHub) *EventPublisher {
	return &EventPublisher{hub: hub}
}

// PublishMediaRegistered notifies the owner that one of their assets
// finished registration.
func (p *EventPublisher) PublishMediaRegistered(ownerID string, m media.Media) error {
	if !p.hub.IsUserConnected(ownerID) {
		return nil
	}

	eventData := &types.MediaRegisteredEvent{
		CarID:        m.CarID,
		MediaID:      m.ID,
		MediaType:    string(m.Type),
		PhotoType:    string(m.PhotoType),
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
	}

	p.hub.BroadcastToUser(ownerID, types.NewEvent(types.EventMediaRegistered, eventData))
	return nil
}

// PublishValidation pushes a freshly computed checklist so connected
// owners see completeness move without waiting for the next poll.
func (p *EventPublisher) PublishValidation(ownerID, carID string, result media.ValidationResult) error {
	if !p.hub.IsUserConnected(ownerID) {
		return nil
	}

	eventData := &types.MediaValidationEvent{
		CarID:                carID,
		IsValid:              result.IsValid,
		HasVideo:             result.HasVideo,
		CompletionPercentage: result.CompletionPercentage,
	}

	p.hub.BroadcastToUser(ownerID, types.NewEvent(types.EventMediaValidation, eventData))
	return nil
}

// PublishCarStatusChanged notifies the owner of a lifecycle change.
func (p *EventPublisher) PublishCarStatusChanged(ownerID, carID string, status types.CarStatus) error {
	if !p.hub.IsUserConnected(ownerID) {
		return nil
	}

	eventData := &types.CarStatusChangedEvent{
		CarID:     carID,
		Status:    status,
		ChangedAt: time.Now().UTC().Format(time.RFC3339),
	}

	p.hub.BroadcastToUser(ownerID, types.NewEvent(types.EventCarStatusChanged, eventData))
	return nil
}

// NopPublisher drops every event. Used when no hub is running.
type NopPublisher struct{}

func (NopPublisher) PublishMediaRegistered(string, media.Media) error { return nil }
func (NopPublisher) PublishValidation(string, string, media.ValidationResult) error {
	return nil
}
func (NopPublisher) PublishCarStatusChanged(string, string, types.CarStatus) error { return nil }
