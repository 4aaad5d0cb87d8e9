package rpc

import (
	"encoding/json"
)

type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeChanged
	EventTypeRemoved
	EventTypeUnsubscribed
	EventTypeConnectionClosed
)

func (e EventType) String() string {
	switch e {
	case EventTypeAdded:
		return "added"
	case EventTypeChanged:
		return "changed"
	case EventTypeRemoved:
		return "removed"
	case EventTypeUnsubscribed:
		return "unsubscribed"
	case EventTypeConnectionClosed:
		return "connection_closed"
	default:
		return "unknown"
	}
}

// CollectionEvent is a server-pushed document update of a subscribed collection.
type CollectionEvent struct {
	Collection string
	ID         string
	Fields     json.RawMessage
	Cleared    []string
}

// EventHandler receives the events of a subscription. Emit is called from the connection's
// read goroutine and must not block.
type EventHandler interface {
	Emit(eventType EventType, subscriptionID string, event *CollectionEvent, err error)
}

type EventHandlerFunc func(eventType EventType, subscriptionID string, event *CollectionEvent, err error)

func (f EventHandlerFunc) Emit(eventType EventType, subscriptionID string, event *CollectionEvent, err error) {
	f(eventType, subscriptionID, event, err)
}

func eventTypeForKind(kind MessageKind) (EventType, bool) {
	switch kind {
	case MessageKindAdded:
		return EventTypeAdded, true
	case MessageKindChanged:
		return EventTypeChanged, true
	case MessageKindRemoved:
		return EventTypeRemoved, true
	}
	return 0, false
}
