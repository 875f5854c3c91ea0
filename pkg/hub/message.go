// Package hub fans monitor events out to websocket subscribers.
//
// One goroutine owns the subscriber set; publishers never block on a slow
// client, they drop it instead.
package hub

import "encoding/json"

// Event is one message to subscribers.
type Event struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// NewEvent encodes v under topic.
func NewEvent(topic string, v any) (Event, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, err
	}
	return Event{Topic: topic, Data: data}, nil
}

// Bytes returns the JSON encoding of e.
func (e Event) Bytes() ([]byte, error) {
	return json.Marshal(e)
}
