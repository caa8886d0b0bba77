package events

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Domain event names emitted by the platform
const (
	EnrolmentCreated  = "enrolment_created"
	EnrolmentDeleted  = "enrolment_deleted"
	CompletionUpdated = "completion_updated"
	CohortMemberAdded = "cohort_member_added"
	SessionSignup     = "session_signup"
)

// Event is one domain event. SubjectID identifies the thing the event is
// about (a course module, cohort, session) and is what condition reverse
// lookup matches against.
type Event struct {
	ID         uuid.UUID              `json:"id"`
	Name       string                 `json:"name"`
	CourseID   uuid.UUID              `json:"course_id"`
	UserID     uuid.UUID              `json:"user_id"`
	SubjectID  uuid.UUID              `json:"subject_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Handler receives a published event
type Handler func(ctx context.Context, evt Event) error

// Store durably records an event before handlers run. Publishing persists
// first so handlers can query the record within the same call.
type Store interface {
	Persist(ctx context.Context, evt *Event) error
}

// Bus is a synchronous in-process event bus backed by a durable store
type Bus struct {
	store    Store
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates a new event bus
func NewBus(store Store) *Bus {
	return &Bus{
		store:    store,
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for an event name
func (b *Bus) Subscribe(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

// Publish persists the event and then invokes every subscribed handler.
// Handler errors are logged and do not stop the remaining handlers.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}

	if b.store != nil {
		if err := b.store.Persist(ctx, &evt); err != nil {
			return fmt.Errorf("failed to persist event %s: %w", evt.Name, err)
		}
	}

	b.mu.RLock()
	handlers := b.handlers[evt.Name]
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, evt); err != nil {
			log.Printf("⚠️ Event handler failed for %s (course=%s user=%s): %v", evt.Name, evt.CourseID, evt.UserID, err)
		}
	}

	return nil
}
