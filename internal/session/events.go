package session

import (
	"sync"
	"time"
)

// EventType names a transcript event.
type EventType string

const (
	EventConversationReset EventType = "conversation.reset"
	EventRunStarted        EventType = "run.started"
	EventRunFinished       EventType = "run.finished"
	EventUserMessage       EventType = "message.user"
	EventAssistantStart    EventType = "message.assistant.start"
	EventAssistantDelta    EventType = "message.assistant.delta"
	EventAssistantDone     EventType = "message.assistant.done"
	EventError             EventType = "message.error"
	EventChainStep         EventType = "chain.step"
)

// Event is one transcript update. UI layers render these; the controller
// never touches presentation directly.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	// Step is the 1-based chain badge, 0 for the main prompt.
	Step   int    `json:"step,omitempty"`
	StepID string `json:"step_id,omitempty"`
	// State is the chain step state for EventChainStep.
	State string `json:"state,omitempty"`
	// Content is the user text, the delta fragment, or the error text.
	Content string `json:"content,omitempty"`
	// Text is the accumulated assistant text.
	Text string `json:"text,omitempty"`
}

// Sink receives transcript events. Emit is called from the run goroutine
// and must not block for long.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans events out to every sink in order.
func Multi(sinks ...Sink) Sink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multiSink []Sink

func (m multiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// Recorder keeps every event, for tests and run reports.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
