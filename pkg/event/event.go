// Package event is an in-process publish/subscribe bus. The proxy pushes one event for every step a
// session takes (SessionOpen, PlayerLogin, SessionBridged, ...), the payload structs live next to the
// topic names in the proxypass package.
package event

import (
	"time"

	"github.com/gofrs/uuid"
)

// Event is delivered to every recipient that is attached to at least one of its topics.
type Event struct {
	// ID is unique per push and shared by all recipients of it.
	ID         string
	OccurredAt time.Time
	// Topics are ordered, the first one is the primary topic.
	Topics []string
	Data   any
}

// Topic returns the primary topic of the event or an empty string if it has none.
func (e Event) Topic() string {
	if len(e.Topics) == 0 {
		return ""
	}
	return e.Topics[0]
}

func (e Event) HasTopic(topic string) bool {
	for _, t := range e.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

type Handler interface {
	Handle(Event)
}

type HandlerFunc func(Event)

func (fn HandlerFunc) Handle(e Event) {
	fn(e)
}

// New creates an event with a random ID. The topics are copied, so callers may reuse the slice.
func New(data any, topics ...string) Event {
	return Event{
		ID:         uuid.Must(uuid.NewV4()).String(),
		OccurredAt: time.Now(),
		Topics:     append([]string(nil), topics...),
		Data:       data,
	}
}
