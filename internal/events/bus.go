// Package events is the typed pub/sub bus between the shared data store and its consumers.
package events

import (
	"sync"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Type names an event.
type Type string

const (
	Loading            Type = "loading"
	DataUpdated        Type = "dataUpdated"
	Error              Type = "error"
	GoalAdded          Type = "goalAdded"
	GoalUpdated        Type = "goalUpdated"
	GoalDeleted        Type = "goalDeleted"
	TransactionAdded   Type = "transactionAdded"
	TransactionUpdated Type = "transactionUpdated"
	TransactionDeleted Type = "transactionDeleted"
)

// Event is one published occurrence. Payload holds one of the payload types below.
type Event struct {
	ID         uuid.UUID   `json:"id"`
	Type       Type        `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

// Payloads, by event type:
//
//	loading            LoadingPayload
//	dataUpdated        domain.Snapshot
//	error              ErrorPayload
//	goalAdded          domain.Goal
//	goalUpdated        GoalUpdatedPayload
//	goalDeleted        DeletedPayload
//	transactionAdded   domain.Transaction
//	transactionUpdated domain.Transaction
//	transactionDeleted DeletedPayload
type LoadingPayload struct {
	Loading bool `json:"loading"`
}

// ErrorPayload describes a failed refresh or mutation.
type ErrorPayload struct {
	Op      string `json:"op"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// GoalUpdatedPayload carries the id and the server's version of the goal.
type GoalUpdatedPayload struct {
	ID   string      `json:"id"`
	Goal domain.Goal `json:"goal"`
}

// DeletedPayload carries the id of a removed goal or transaction.
type DeletedPayload struct {
	ID string `json:"id"`
}

// Handler receives events on the publishing goroutine.
type Handler func(Event)

// Observer is told about every published event, typically for metrics.
type Observer interface {
	ObserveEvent(t Type, subscribers int)
}

type subscription struct {
	id      uint64
	all     bool
	typ     Type
	handler Handler
}

// Bus dispatches events synchronously, in subscription order. A panicking
// handler is logged and skipped; the remaining handlers still run.
type Bus struct {
	mu       sync.RWMutex
	subs     []subscription
	nextID   uint64
	closed   bool
	log      zerolog.Logger
	observer Observer
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log}
}

// SetObserver attaches an observer. Call before publishing.
func (b *Bus) SetObserver(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observer = o
}

// Subscribe registers h for events of type t and returns its unsubscribe func.
func (b *Bus) Subscribe(t Type, h Handler) func() {
	return b.add(subscription{typ: t, handler: h})
}

// SubscribeAll registers h for every event type.
func (b *Bus) SubscribeAll(h Handler) func() {
	return b.add(subscription{all: true, handler: h})
}

func (b *Bus) add(s subscription) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}
	b.nextID++
	s.id = b.nextID
	b.subs = append(b.subs, s)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(s.id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit publishes an event of type t with payload.
func (b *Bus) Emit(t Type, payload interface{}) {
	b.Publish(Event{Type: t, Payload: payload})
}

// Publish dispatches e to matching handlers. It is a no-op after Close.
func (b *Bus) Publish(e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	var targets []Handler
	for _, s := range b.subs {
		if s.all || s.typ == e.Type {
			targets = append(targets, s.handler)
		}
	}
	observer := b.observer
	b.mu.RUnlock()

	if observer != nil {
		observer.ObserveEvent(e.Type, len(targets))
	}

	for _, h := range targets {
		b.dispatch(h, e)
	}
}

func (b *Bus) dispatch(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event_type", string(e.Type)).
				Str("event_id", e.ID.String()).
				Interface("panic", r).
				Msg("Event handler panicked")
		}
	}()
	h(e)
}

// Clear removes every subscription but keeps the bus usable.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// Close removes every subscription; later Publish and Subscribe calls do nothing.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
	b.closed = true
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
