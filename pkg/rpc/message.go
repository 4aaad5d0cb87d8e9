package rpc

import (
	"encoding/json"
	"strconv"
)

// MessageKind identifies a normalized inbound message independent of the wire protocol.
type MessageKind string

const (
	MessageKindConnected MessageKind = "connected"
	MessageKindFailed    MessageKind = "failed"
	MessageKindResult    MessageKind = "result"
	MessageKindReady     MessageKind = "ready"
	MessageKindNoSub     MessageKind = "nosub"
	MessageKindAdded     MessageKind = "added"
	MessageKindChanged   MessageKind = "changed"
	MessageKindRemoved   MessageKind = "removed"
	MessageKindUpdated   MessageKind = "updated"
	MessageKindPing      MessageKind = "ping"
	MessageKindPong      MessageKind = "pong"
	MessageKindError     MessageKind = "error"
)

// Message is an inbound frame decoded by a Protocol.
type Message struct {
	Kind    MessageKind
	ID      string
	Session string
	Version string
	Result  json.RawMessage
	// Error is set when the server reported a failure for ID.
	Error *MethodCallError
	// DecodeErr is set when the frame could be correlated but its body was malformed.
	DecodeErr  error
	Collection string
	DocumentID string
	Fields     json.RawMessage
	Cleared    []string
	Subs       []string
	Methods    []string
	Reason     string
	Raw        []byte
}

// rawID turns a JSON id (string or number) into its string form.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		id, err := strconv.Unquote(string(raw))
		if err == nil {
			return id
		}
	}
	return string(raw)
}
