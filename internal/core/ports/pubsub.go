package ports

import "encoding/json"

// Event is pushed to every open page context.
type Event struct {
	Name string
	Data json.RawMessage
}

// Broadcaster delivers events to all page contexts that have a relay
// installed. Contexts that cannot be reached are skipped silently.
type Broadcaster interface {
	Broadcast(event Event)
}
