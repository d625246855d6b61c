package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/blackmichael/multipass/internal/mastodon"
	"github.com/blackmichael/multipass/internal/source"
)

// Event names of the Mastodon streaming API that the subscriber acts on.
const (
	EventUpdate       = "update"
	EventStatusUpdate = "status.update"
	EventDelete       = "delete"
)

// streamMessage is one WebSocket frame. Payload is itself a JSON document
// encoded as a string.
type streamMessage struct {
	Stream  []string `json:"stream,omitempty"`
	Event   string   `json:"event"`
	Payload string   `json:"payload"`
}

// event is a decoded frame. Status is set for update and status.update,
// DeletedID for delete.
type event struct {
	Name      string
	Status    *mastodon.Status
	DeletedID string
}

func parseEvent(data []byte) (*event, error) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("message has no event name")
	}

	ev := &event{Name: msg.Event}
	switch msg.Event {
	case EventUpdate, EventStatusUpdate:
		var st mastodon.Status
		if err := source.DecodeBytes("mastodon stream "+msg.Event, []byte(msg.Payload), &st); err != nil {
			return nil, err
		}
		ev.Status = &st
	case EventDelete:
		if msg.Payload == "" {
			return nil, fmt.Errorf("delete event has no status id")
		}
		ev.DeletedID = msg.Payload
	}
	return ev, nil
}
