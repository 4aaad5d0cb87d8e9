package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrAlreadyConnected      = errors.New("client is already connected")
	ErrConnectInProgress     = errors.New("connect is in progress")
	ErrNotConnected          = errors.New("client is not connected")
	ErrHandshakeRejected     = errors.New("server rejected the connect handshake")
	ErrHandshakeTimeout      = errors.New("timed out waiting for the connect handshake")
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrConnectionClosed      = errors.New("connection closed")
	ErrUnknownSubscription   = errors.New("unknown subscription")
	ErrUnexpectedMessageType = errors.New("unexpected message type")
)

// MethodCallError is returned when the server answers a method call or a subscription with an error.
type MethodCallError struct {
	Method  string
	Code    int
	ErrName string
	Type    string
	Reason  string
	Trace   json.RawMessage
	Extra   json.RawMessage
}

func (e *MethodCallError) Error() string {
	name := e.ErrName
	if name == "" {
		name = fmt.Sprintf("code %d", e.Code)
	}
	if e.Method == "" {
		return fmt.Sprintf("call failed with %s: %s", name, e.Reason)
	}
	return fmt.Sprintf("call %s failed with %s: %s", e.Method, name, e.Reason)
}

// DeserializeError is returned when a response could not be decoded. Payload holds the raw frame.
type DeserializeError struct {
	Method  string
	Payload []byte
	Err     error
}

func (e *DeserializeError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("could not deserialize response: %v", e.Err)
	}
	return fmt.Sprintf("could not deserialize response of %s: %v", e.Method, e.Err)
}

func (e *DeserializeError) Unwrap() error {
	return e.Err
}

// errorObject is the error payload shared by DDP results and JSON-RPC error data.
type errorObject struct {
	Error   int             `json:"error"`
	ErrName string          `json:"errname"`
	Type    *string         `json:"type"`
	Reason  string          `json:"reason"`
	Trace   json.RawMessage `json:"trace,omitempty"`
	Extra   json.RawMessage `json:"extra,omitempty"`
}

func (o *errorObject) methodCallError() *MethodCallError {
	callErr := &MethodCallError{
		Code:    o.Error,
		ErrName: o.ErrName,
		Reason:  o.Reason,
		Trace:   o.Trace,
		Extra:   o.Extra,
	}
	if o.Type != nil {
		callErr.Type = *o.Type
	}
	return callErr
}
