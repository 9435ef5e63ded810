package event

import (
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
)

var DefaultBus = NewInternalBus()

// Bus is an event bus system that notifies all it's attached recipients of pushed events.
// Every recipient handles its events in order on a goroutine of its own.
type Bus interface {
	// Push pushes an event with arbitrary data to the event bus.
	Push(data any, topics ...string)
	// AttachHandler attaches a handler for the given topics. All events are handled if no topic is given.
	// An existing recipient with the same id is replaced. A random id is generated if id is empty.
	AttachHandler(id string, h Handler, topics ...string) (handlerID string, replaced bool)
	AttachHandlerFunc(id string, fn HandlerFunc, topics ...string) (handlerID string, replaced bool)
	DetachRecipient(id string) (success bool)
	DetachAllRecipients() (n int)
}

func Push(data any, topics ...string) {
	DefaultBus.Push(data, topics...)
}

func AttachHandler(id string, h Handler, topics ...string) (string, bool) {
	return DefaultBus.AttachHandler(id, h, topics...)
}

func AttachHandlerFunc(id string, fn HandlerFunc, topics ...string) (string, bool) {
	return DefaultBus.AttachHandlerFunc(id, fn, topics...)
}

func DetachRecipient(id string) bool {
	return DefaultBus.DetachRecipient(id)
}

func DetachAllRecipients() int {
	return DefaultBus.DetachAllRecipients()
}

type internalBus struct {
	sync.RWMutex
	ws map[string]*worker
}

func NewInternalBus() Bus {
	return &internalBus{
		ws: map[string]*worker{},
	}
}

func (b *internalBus) Push(data any, topics ...string) {
	e := New(data, topics...)

	b.RLock()
	defer b.RUnlock()
	for _, w := range b.ws {
		w.push(e)
	}
}

func (b *internalBus) AttachHandler(id string, h Handler, topics ...string) (string, bool) {
	if h == nil {
		panic(fmt.Sprintf("AttachHandler called with id %q and nil handler", id))
	}

	if len(topics) > 0 {
		h = topicFilterFunc(topics, h)
	}

	if id == "" {
		id = uuid.Must(uuid.NewV4()).String()
	}

	b.Lock()
	defer b.Unlock()
	w, replaced := b.ws[id]
	if replaced {
		w.close()
	}

	b.ws[id] = newWorker(h)

	return id, replaced
}

func (b *internalBus) AttachHandlerFunc(id string, fn HandlerFunc, topics ...string) (string, bool) {
	return b.AttachHandler(id, fn, topics...)
}

func (b *internalBus) DetachRecipient(id string) bool {
	b.Lock()
	defer b.Unlock()

	w, ok := b.ws[id]
	if !ok {
		return false
	}

	w.close()
	delete(b.ws, id)
	return true
}

func (b *internalBus) DetachAllRecipients() int {
	b.Lock()
	defer b.Unlock()

	n := len(b.ws)
	for _, w := range b.ws {
		w.close()
	}
	b.ws = map[string]*worker{}

	return n
}

func topicFilterFunc(topics []string, h Handler) Handler {
	return HandlerFunc(func(e Event) {
		for _, topic := range topics {
			if e.HasTopic(topic) {
				h.Handle(e)
				return
			}
		}
	})
}

const workerQueueSize = 100

type worker struct {
	in chan Event
	h  Handler
}

func newWorker(h Handler) *worker {
	w := &worker{
		in: make(chan Event, workerQueueSize),
		h:  h,
	}
	go w.process()
	return w
}

// close must only be called while the bus holds its write lock, so no push can race with it.
func (w *worker) close() {
	close(w.in)
}

func (w *worker) process() {
	for e := range w.in {
		w.h.Handle(e)
	}
}

// push drops the event if the queue of the worker is full.
func (w *worker) push(e Event) {
	select {
	case w.in <- e:
	default:
	}
}
