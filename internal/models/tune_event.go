package models

import (
	"time"

	"github.com/google/uuid"
)

// TuneAction is what the voice client should do after a COM1 change
type TuneAction string

const (
	TuneActionJoin       TuneAction = "join"       // Join the controller's channel
	TuneActionDisconnect TuneAction = "disconnect" // Leave voice, UNICOM selected
	TuneActionNone       TuneAction = "none"       // Keep the current channel
)

// TuneEvent records one reaction to a COM1 frequency change
type TuneEvent struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Action    TuneAction `json:"action"`
	Frequency string     `json:"frequency"`
	Position  Position   `json:"position"`

	// Set for join events
	Channel     string `json:"channel,omitempty"` // controller callsign
	StationName string `json:"station_name,omitempty"`
	MatchedKey  string `json:"matched_key,omitempty"`
	Alternate   bool   `json:"alternate,omitempty"`

	SnapshotID string `json:"snapshot_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// NewTuneEvent creates an event with a fresh id
func NewTuneEvent(action TuneAction, frequency string, pos Position) *TuneEvent {
	return &TuneEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Frequency: frequency,
		Position:  pos,
	}
}
