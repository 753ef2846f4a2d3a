package bootstrap

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Observer receives structured events as the run progresses.
type Observer interface {
	Event(event Event)
}

// Event describes one state change during a run.
type Event struct {
	Type      EventType
	Resource  string
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

// EventType classifies run events.
type EventType string

const (
	// EventRunStarted indicates the run began with a validated plan.
	EventRunStarted EventType = "run.started"
	// EventRunCompleted indicates the run finished and the report is final.
	EventRunCompleted EventType = "run.completed"

	// EventResourceApplying indicates an apply call is starting.
	EventResourceApplying EventType = "resource.applying"
	// EventResourceWaiting indicates readiness polling has begun.
	EventResourceWaiting EventType = "resource.waiting"
	// EventResourceReady indicates the resource reached its terminal Ready state.
	EventResourceReady EventType = "resource.ready"
	// EventResourceFailed indicates the apply call failed.
	EventResourceFailed EventType = "resource.failed"
	// EventResourceTimedOut indicates the readiness budget was exhausted.
	EventResourceTimedOut EventType = "resource.timedout"
	// EventResourceSkipped indicates a dependency made the resource unreachable.
	EventResourceSkipped EventType = "resource.skipped"
	// EventResourceCancelled indicates the run aborted before the resource resolved.
	EventResourceCancelled EventType = "resource.cancelled"
)

// ConsoleObserver implements Observer using the standard log package.
type ConsoleObserver struct{}

// NewConsoleObserver creates a console-based observer.
func NewConsoleObserver() *ConsoleObserver {
	return &ConsoleObserver{}
}

// Event implements Observer.
func (o *ConsoleObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	log.Print(formatEvent(event))
}

func formatEvent(event Event) string {
	parts := []string{string(event.Type)}
	if event.Resource != "" {
		parts = append(parts, fmt.Sprintf("resource=%s", event.Resource))
	}
	if event.Message != "" {
		parts = append(parts, event.Message)
	}
	if len(event.Fields) > 0 {
		fieldParts := make([]string, 0, len(event.Fields))
		for k, v := range event.Fields {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%s", k, v))
		}
		parts = append(parts, "("+strings.Join(fieldParts, ", ")+")")
	}
	return strings.Join(parts, " ")
}

// NopObserver discards all events. Used by tests and the plan command.
type NopObserver struct{}

// Event implements Observer.
func (NopObserver) Event(Event) {}
