package pathstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/globepath/go/internal/models"
)

var (
	// ErrWriterStopped is returned when a submission arrives after Stop.
	ErrWriterStopped = errors.New("path writer stopped")
	// ErrQueueFull is returned when the writer cannot accept more work.
	ErrQueueFull = errors.New("path writer queue full")
	// ErrNameExhausted is returned when every collision suffix is taken.
	ErrNameExhausted = errors.New("no free path file name")
)

// Submission is one save-path event as received by the relay. Raw, when
// set, is the payload exactly as the client sent it and is what gets stored.
type Submission struct {
	ConnectionID string
	ReceivedAt   time.Time
	Path         models.Path
	Raw          json.RawMessage
}

// Payload returns the bytes to persist: Raw if present, otherwise Path as a
// JSON array.
func (s Submission) Payload() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	path := s.Path
	if path == nil {
		path = models.Path{}
	}
	data, err := json.Marshal(path)
	if err != nil {
		return nil, fmt.Errorf("marshal path: %w", err)
	}
	return data, nil
}

// PointCount is the number of array elements in the payload.
func (s Submission) PointCount() int {
	if len(s.Raw) > 0 {
		var items []json.RawMessage
		if err := json.Unmarshal(s.Raw, &items); err == nil {
			return len(items)
		}
	}
	return len(s.Path)
}

// SavedPath is a submission that reached storage
type SavedPath struct {
	Submission
	FileName string
	SavedAt  time.Time
}

// Store persists a submission and returns the name it was stored under
type Store interface {
	Save(ctx context.Context, sub Submission) (string, error)
}

// Publisher is notified after a submission reaches storage.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, saved SavedPath) error
}
