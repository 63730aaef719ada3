package automation

import (
	"log"
	"sync"

	"github.com/roofline/roofline-backend/internal/model"
)

// EventQueue is the bounded in-process queue that carries stage-change
// events emitted by change_pipeline_stage steps back to the trigger
// dispatcher. The engine drains it within the same poll pass, so
// campaign chains execute without unbounded recursion on the call
// stack.
type EventQueue struct {
	mu     sync.Mutex
	events []model.StageChangeEvent
	cap    int
}

// NewEventQueue creates a queue holding at most capacity events.
func NewEventQueue(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = 8
	}
	return &EventQueue{cap: capacity}
}

// Publish enqueues an event. When the queue is full the event is
// dropped and logged; a chain that deep is a campaign configuration
// problem, not something to crash a poll pass over.
func (q *EventQueue) Publish(ev model.StageChangeEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) >= q.cap {
		log.Printf("[EventQueue] capacity %d reached, dropping stage change project=%s %s->%s",
			q.cap, ev.ProjectID, ev.FromStage, ev.ToStage)
		return false
	}
	q.events = append(q.events, ev)
	return true
}

// Pop dequeues the oldest event.
func (q *EventQueue) Pop() (model.StageChangeEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return model.StageChangeEvent{}, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

// Len reports the number of queued events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
