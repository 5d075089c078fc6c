// Package push holds the console's single connection to the backend push
// channel and fans named events out to reference-counted subscribers.
package push

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Event names on the push channel.
const (
	EventNewOrder           = "new order"
	EventOrderStatusClient  = "order:status:client"
	EventOrderStatusUpdated = "order:status:updated"
	EventUserRegistered     = "user:registered"
	EventUserLoggedIn       = "user:newUserLoggedIn"
	EventUserDisconnected   = "user:disconnected"
	EventMessageReceived    = "message:received"
	EventProductStock       = "product:quantity_in_stock"

	// EventAdminJoin is the only event the console emits: it asks the
	// server to add this connection to the admin room.
	EventAdminJoin = "admin:join"
)

// Event is one named message on the push channel. Data is the raw JSON
// payload; use On or Decode for a typed view.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals payload into an Event.
func NewEvent(name string, payload interface{}) (Event, error) {
	if payload == nil {
		return Event{Name: name}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, errors.Wrapf(err, "marshal %q payload", name)
	}
	return Event{Name: name, Data: b}, nil
}

// MarshalFrame encodes the event as a JSON envelope.
func (e Event) MarshalFrame() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalFrame decodes a JSON envelope. Frames without an event name are
// rejected.
func UnmarshalFrame(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, errors.Wrap(err, "decode frame")
	}
	if e.Name == "" {
		return Event{}, errors.New("decode frame: missing event name")
	}
	return e, nil
}
