package testutil

import (
	"sync"

	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
)

// Recorder collects delivered events per identity.
type Recorder struct {
	mu     sync.Mutex
	events map[string][]entity.Event
}

func NewRecorder() *Recorder {
	return &Recorder{events: make(map[string][]entity.Event)}
}

func (that *Recorder) Deliver(identity string, event entity.Event) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events[identity] = append(that.events[identity], event)
}

// Events returns a copy of everything delivered to identity.
func (that *Recorder) Events(identity string) []entity.Event {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]entity.Event(nil), that.events[identity]...)
}

// Last returns the most recent event delivered to identity.
func (that *Recorder) Last(identity string) entity.Event {
	events := that.Events(identity)
	if len(events) == 0 {
		return entity.Event{}
	}

	return events[len(events)-1]
}

func (that *Recorder) Reset() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events = make(map[string][]entity.Event)
}

// Types lists the event types in order.
func Types(events []entity.Event) []entity.EventType {
	types := make([]entity.EventType, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}

	return types
}
