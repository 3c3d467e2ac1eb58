package model

import "time"

// MusicEventType names a record change.
type MusicEventType string

const (
	MusicCreated MusicEventType = "created"
	MusicUpdated MusicEventType = "updated"
	MusicDeleted MusicEventType = "deleted"
)

// MusicEvent is pushed to change feed subscribers.
type MusicEvent struct {
	Type      MusicEventType `json:"type"`
	Music     *Music         `json:"music"`
	Timestamp int64          `json:"timestamp"`
}

// NewMusicEvent stamps an event with the current time in milliseconds.
func NewMusicEvent(t MusicEventType, m *Music) MusicEvent {
	return MusicEvent{Type: t, Music: m, Timestamp: time.Now().UnixMilli()}
}
