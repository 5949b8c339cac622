package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/globepath/go/internal/models"
)

// Wire types shared between the relay and the globe client

// Envelope is the frame carried over the live connection
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PathSavedPayload is published after a submitted path reaches disk
type PathSavedPayload struct {
	FileName     string    `json:"file_name"`
	ConnectionID string    `json:"connection_id"`
	Points       int       `json:"points"`
	SavedAt      time.Time `json:"saved_at"`
}

// Encode marshals an event with its payload into a frame
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Decode parses a frame
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

// PingFrame is the heartbeat frame. Its payload carries no meaning.
func PingFrame() []byte {
	frame, _ := Encode(models.EventPing, models.EventPing)
	return frame
}

// SavePathFrame wraps a path submission
func SavePathFrame(path models.Path) ([]byte, error) {
	if path == nil {
		path = models.Path{}
	}
	return Encode(models.EventSavePath, path)
}
