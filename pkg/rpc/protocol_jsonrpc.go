package rpc

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"
)

const (
	JSONRPCVersion = "2.0"
	JSONRPCPath    = "/api/current"

	JSONRPCMethodSubscribe   = "core.subscribe"
	JSONRPCMethodUnsubscribe = "core.unsubscribe"
	JSONRPCMethodPing        = "core.ping"

	JSONRPCNotificationCollectionUpdate   = "collection_update"
	JSONRPCNotificationNotifyUnsubscribed = "notify_unsubscribed"
)

type JSONRPCMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// JSONRPCCollectionUpdate is the params object of collection_update and notify_unsubscribed notifications.
type JSONRPCCollectionUpdate struct {
	Msg        string          `json:"msg"`
	Collection string          `json:"collection"`
	Id         json.RawMessage `json:"id,omitempty"`
	Fields     json.RawMessage `json:"fields,omitempty"`
	Cleared    []string        `json:"cleared,omitempty"`
	Error      json.RawMessage `json:"error,omitempty"`
}

type JSONRPCMessageReader struct {
	logger abstractlogger.Logger
}

// Read deserializes a byte slice to the JSONRPCMessage struct.
func (j *JSONRPCMessageReader) Read(data []byte) (*JSONRPCMessage, error) {
	var message JSONRPCMessage
	err := json.Unmarshal(data, &message)
	if err != nil {
		j.logger.Error("rpc.JSONRPCMessageReader.Read: on json unmarshal",
			abstractlogger.Error(err),
			abstractlogger.ByteString("data", data),
		)

		return nil, err
	}
	return &message, nil
}

func (j *JSONRPCMessageReader) DeserializeCollectionUpdate(message *JSONRPCMessage) (*JSONRPCCollectionUpdate, error) {
	var update JSONRPCCollectionUpdate
	err := json.Unmarshal(message.Params, &update)
	if err != nil {
		j.logger.Error("rpc.JSONRPCMessageReader.DeserializeCollectionUpdate: on params deserialization",
			abstractlogger.Error(err),
			abstractlogger.ByteString("params", message.Params),
		)
		return nil, err
	}

	return &update, nil
}

// JSONRPCMessageWriter encodes JSON-RPC 2.0 requests.
type JSONRPCMessageWriter struct {
	logger abstractlogger.Logger
}

// Request encodes a request frame. A nil params slice is sent as an empty array.
func (j *JSONRPCMessageWriter) Request(id string, method string, params []interface{}) ([]byte, error) {
	if params == nil {
		params = []interface{}{}
	}
	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	message := &JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		Id:      quoteID(id),
		Method:  method,
		Params:  paramsBytes,
	}
	return j.encode(message)
}

func (j *JSONRPCMessageWriter) encode(message *JSONRPCMessage) ([]byte, error) {
	jsonData, err := json.Marshal(message)
	if err != nil {
		j.logger.Error("rpc.JSONRPCMessageWriter.encode: on json marshal",
			abstractlogger.Error(err),
			abstractlogger.ByteString("id", message.Id),
			abstractlogger.String("method", message.Method),
		)
		return nil, err
	}
	return jsonData, nil
}

// ProtocolJSONRPC speaks the JSON-RPC 2.0 variant of the middleware api. It has no
// connect handshake; subscriptions and pings are plain method calls.
type ProtocolJSONRPC struct {
	logger abstractlogger.Logger
	reader JSONRPCMessageReader
	writer JSONRPCMessageWriter
	lastID *atomic.Uint64
}

func NewProtocolJSONRPC(logger abstractlogger.Logger) *ProtocolJSONRPC {
	return &ProtocolJSONRPC{
		logger: logger,
		reader: JSONRPCMessageReader{logger: logger},
		writer: JSONRPCMessageWriter{logger: logger},
		lastID: atomic.NewUint64(0),
	}
}

func (p *ProtocolJSONRPC) Name() ProtocolName {
	return ProtocolNameJSONRPC
}

func (p *ProtocolJSONRPC) Path() string {
	return JSONRPCPath
}

func (p *ProtocolJSONRPC) NextID() string {
	return strconv.FormatUint(p.lastID.Inc(), 10)
}

func (p *ProtocolJSONRPC) ConnectMessage() ([]byte, error) {
	return nil, nil
}

func (p *ProtocolJSONRPC) MethodMessage(id string, method string, params []interface{}) ([]byte, error) {
	return p.writer.Request(id, method, params)
}

func (p *ProtocolJSONRPC) SubscribeMessage(id string, collection string) ([]byte, error) {
	return p.writer.Request(id, JSONRPCMethodSubscribe, []interface{}{collection})
}

// ClientSubscriptionIDs is false: core.subscribe returns the id to unsubscribe with.
func (p *ProtocolJSONRPC) ClientSubscriptionIDs() bool {
	return false
}

func (p *ProtocolJSONRPC) UnsubscribeMessage(id string, subscriptionID string) ([]byte, error) {
	return p.writer.Request(id, JSONRPCMethodUnsubscribe, []interface{}{subscriptionID})
}

func (p *ProtocolJSONRPC) PingMessage(id string) ([]byte, error) {
	return p.writer.Request(id, JSONRPCMethodPing, nil)
}

// PongMessage returns nil: the server never pings a JSON-RPC client.
func (p *ProtocolJSONRPC) PongMessage(_ string) ([]byte, error) {
	return nil, nil
}

func (p *ProtocolJSONRPC) Read(data []byte) (*Message, error) {
	rpcMessage, err := p.reader.Read(data)
	if err != nil {
		return nil, err
	}

	message := &Message{
		ID:  rawID(rpcMessage.Id),
		Raw: data,
	}

	if message.ID == "" {
		return p.readNotification(rpcMessage, message)
	}

	message.Kind = MessageKindResult
	message.Result = rpcMessage.Result
	message.Error, message.DecodeErr = p.readError(rpcMessage.Error)
	return message, nil
}

func (p *ProtocolJSONRPC) readNotification(rpcMessage *JSONRPCMessage, message *Message) (*Message, error) {
	switch rpcMessage.Method {
	case JSONRPCNotificationCollectionUpdate, JSONRPCNotificationNotifyUnsubscribed:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedMessageType, rpcMessage.Method)
	}

	update, err := p.reader.DeserializeCollectionUpdate(rpcMessage)
	if err != nil {
		return nil, err
	}

	message.Collection = update.Collection

	if rpcMessage.Method == JSONRPCNotificationNotifyUnsubscribed {
		message.Kind = MessageKindNoSub
		message.Error, message.DecodeErr = p.readErrorObject(update.Error)
		return message, nil
	}

	kind := MessageKind(update.Msg)
	if _, ok := eventTypeForKind(kind); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedMessageType, update.Msg)
	}
	message.Kind = kind
	message.DocumentID = rawID(update.Id)
	message.Fields = update.Fields
	message.Cleared = update.Cleared
	return message, nil
}

// readError decodes a JSON-RPC error. Middleware errors carry the errno details in data.
func (p *ProtocolJSONRPC) readError(raw json.RawMessage) (*MethodCallError, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var rpcError JSONRPCError
	if err := json.Unmarshal(raw, &rpcError); err != nil {
		p.logger.Error("rpc.ProtocolJSONRPC.readError: on error deserialization",
			abstractlogger.Error(err),
			abstractlogger.ByteString("error", raw),
		)
		return nil, err
	}

	callErr, err := p.readErrorObject(rpcError.Data)
	if err != nil || callErr == nil {
		return &MethodCallError{Code: rpcError.Code, Reason: rpcError.Message}, nil
	}
	if callErr.Reason == "" {
		callErr.Reason = rpcError.Message
	}
	return callErr, nil
}

func (p *ProtocolJSONRPC) readErrorObject(raw json.RawMessage) (*MethodCallError, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var object errorObject
	if err := json.Unmarshal(raw, &object); err != nil {
		return nil, err
	}
	return object.methodCallError(), nil
}

var _ Protocol = (*ProtocolJSONRPC)(nil)
