package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jensneuse/abstractlogger"
)

const (
	DDPMessageTypeConnect   = "connect"
	DDPMessageTypeConnected = "connected"
	DDPMessageTypeFailed    = "failed"
	DDPMessageTypeSub       = "sub"
	DDPMessageTypeUnsub     = "unsub"
	DDPMessageTypeNoSub     = "nosub"
	DDPMessageTypeAdded     = "added"
	DDPMessageTypeChanged   = "changed"
	DDPMessageTypeRemoved   = "removed"
	DDPMessageTypeReady     = "ready"
	DDPMessageTypeMethod    = "method"
	DDPMessageTypeResult    = "result"
	DDPMessageTypeUpdated   = "updated"
	DDPMessageTypePing      = "ping"
	DDPMessageTypePong      = "pong"
	DDPMessageTypeError     = "error"

	DDPVersion = "1"
	DDPPath    = "/websocket"
)

type DDPMessage struct {
	Msg              string          `json:"msg"`
	Id               json.RawMessage `json:"id,omitempty"`
	Session          string          `json:"session,omitempty"`
	Version          string          `json:"version,omitempty"`
	Support          []string        `json:"support,omitempty"`
	Method           string          `json:"method,omitempty"`
	Name             string          `json:"name,omitempty"`
	Params           json.RawMessage `json:"params,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`
	Error            json.RawMessage `json:"error,omitempty"`
	Collection       string          `json:"collection,omitempty"`
	Fields           json.RawMessage `json:"fields,omitempty"`
	Cleared          []string        `json:"cleared,omitempty"`
	Subs             []string        `json:"subs,omitempty"`
	Methods          []string        `json:"methods,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	OffendingMessage json.RawMessage `json:"offendingMessage,omitempty"`
}

type DDPMessageReader struct {
	logger abstractlogger.Logger
}

func (d *DDPMessageReader) Read(data []byte) (*DDPMessage, error) {
	var message DDPMessage
	err := json.Unmarshal(data, &message)
	if err != nil {
		d.logger.Error("rpc.DDPMessageReader.Read: on json unmarshal",
			abstractlogger.Error(err),
			abstractlogger.ByteString("data", data),
		)

		return nil, err
	}
	return &message, nil
}

type DDPMessageWriter struct {
	logger abstractlogger.Logger
}

func (d *DDPMessageWriter) Connect() ([]byte, error) {
	message := &DDPMessage{
		Msg:     DDPMessageTypeConnect,
		Version: DDPVersion,
		Support: []string{DDPVersion},
	}
	return d.encode(message)
}

func (d *DDPMessageWriter) Method(id string, method string, params []interface{}) ([]byte, error) {
	if params == nil {
		params = []interface{}{}
	}
	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	message := &DDPMessage{
		Msg:    DDPMessageTypeMethod,
		Id:     quoteID(id),
		Method: method,
		Params: paramsBytes,
	}
	return d.encode(message)
}

func (d *DDPMessageWriter) Sub(id string, name string) ([]byte, error) {
	message := &DDPMessage{
		Msg:  DDPMessageTypeSub,
		Id:   quoteID(id),
		Name: name,
	}
	return d.encode(message)
}

func (d *DDPMessageWriter) Unsub(id string) ([]byte, error) {
	message := &DDPMessage{
		Msg: DDPMessageTypeUnsub,
		Id:  quoteID(id),
	}
	return d.encode(message)
}

func (d *DDPMessageWriter) Ping(id string) ([]byte, error) {
	message := &DDPMessage{
		Msg: DDPMessageTypePing,
		Id:  quoteID(id),
	}
	return d.encode(message)
}

func (d *DDPMessageWriter) Pong(id string) ([]byte, error) {
	message := &DDPMessage{
		Msg: DDPMessageTypePong,
		Id:  quoteID(id),
	}
	return d.encode(message)
}

func (d *DDPMessageWriter) encode(message *DDPMessage) ([]byte, error) {
	jsonData, err := json.Marshal(message)
	if err != nil {
		d.logger.Error("rpc.DDPMessageWriter.encode: on json marshal",
			abstractlogger.Error(err),
			abstractlogger.ByteString("id", message.Id),
			abstractlogger.String("msg", message.Msg),
		)
		return nil, err
	}
	return jsonData, nil
}

// ProtocolDDP speaks the DDP dialect of the middleware websocket endpoint.
type ProtocolDDP struct {
	logger abstractlogger.Logger
	reader DDPMessageReader
	writer DDPMessageWriter
}

func NewProtocolDDP(logger abstractlogger.Logger) *ProtocolDDP {
	return &ProtocolDDP{
		logger: logger,
		reader: DDPMessageReader{logger: logger},
		writer: DDPMessageWriter{logger: logger},
	}
}

func (p *ProtocolDDP) Name() ProtocolName {
	return ProtocolNameDDP
}

func (p *ProtocolDDP) Path() string {
	return DDPPath
}

func (p *ProtocolDDP) NextID() string {
	return uuid.New().String()
}

func (p *ProtocolDDP) ConnectMessage() ([]byte, error) {
	return p.writer.Connect()
}

func (p *ProtocolDDP) MethodMessage(id string, method string, params []interface{}) ([]byte, error) {
	return p.writer.Method(id, method, params)
}

func (p *ProtocolDDP) SubscribeMessage(id string, collection string) ([]byte, error) {
	return p.writer.Sub(id, collection)
}

func (p *ProtocolDDP) ClientSubscriptionIDs() bool {
	return true
}

// UnsubscribeMessage addresses the subscription itself; DDP has no separate request id for unsub.
func (p *ProtocolDDP) UnsubscribeMessage(_ string, subscriptionID string) ([]byte, error) {
	return p.writer.Unsub(subscriptionID)
}

func (p *ProtocolDDP) PingMessage(id string) ([]byte, error) {
	return p.writer.Ping(id)
}

func (p *ProtocolDDP) PongMessage(id string) ([]byte, error) {
	return p.writer.Pong(id)
}

func (p *ProtocolDDP) Read(data []byte) (*Message, error) {
	ddpMessage, err := p.reader.Read(data)
	if err != nil {
		return nil, err
	}

	message := &Message{
		ID:  rawID(ddpMessage.Id),
		Raw: data,
	}

	switch ddpMessage.Msg {
	case DDPMessageTypeConnected:
		message.Kind = MessageKindConnected
		message.Session = ddpMessage.Session
	case DDPMessageTypeFailed:
		message.Kind = MessageKindFailed
		message.Version = ddpMessage.Version
	case DDPMessageTypeResult:
		message.Kind = MessageKindResult
		message.Result = ddpMessage.Result
		message.Error, message.DecodeErr = p.readError(ddpMessage.Error)
	case DDPMessageTypeReady:
		message.Kind = MessageKindReady
		message.Subs = ddpMessage.Subs
	case DDPMessageTypeNoSub:
		message.Kind = MessageKindNoSub
		message.Error, message.DecodeErr = p.readError(ddpMessage.Error)
	case DDPMessageTypeAdded, DDPMessageTypeChanged, DDPMessageTypeRemoved:
		message.Kind = MessageKind(ddpMessage.Msg)
		message.Collection = ddpMessage.Collection
		message.DocumentID = message.ID
		message.Fields = ddpMessage.Fields
		message.Cleared = ddpMessage.Cleared
	case DDPMessageTypeUpdated:
		message.Kind = MessageKindUpdated
		message.Methods = ddpMessage.Methods
	case DDPMessageTypePing:
		message.Kind = MessageKindPing
	case DDPMessageTypePong:
		message.Kind = MessageKindPong
	case DDPMessageTypeError:
		message.Kind = MessageKindError
		message.Reason = ddpMessage.Reason
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedMessageType, ddpMessage.Msg)
	}

	return message, nil
}

func (p *ProtocolDDP) readError(raw json.RawMessage) (*MethodCallError, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var object errorObject
	if err := json.Unmarshal(raw, &object); err != nil {
		p.logger.Error("rpc.ProtocolDDP.readError: on error object deserialization",
			abstractlogger.Error(err),
			abstractlogger.ByteString("error", raw),
		)
		return nil, err
	}
	return object.methodCallError(), nil
}

func quoteID(id string) json.RawMessage {
	if id == "" {
		return nil
	}
	quoted, _ := json.Marshal(id)
	return quoted
}

var _ Protocol = (*ProtocolDDP)(nil)
