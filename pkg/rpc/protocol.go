package rpc

import (
	"errors"
	"net/url"
	"strings"

	"github.com/jensneuse/abstractlogger"
)

type ProtocolName string

const (
	ProtocolNameDDP     ProtocolName = "ddp"
	ProtocolNameJSONRPC ProtocolName = "jsonrpc"
)

var DefaultProtocol = ProtocolNameDDP

var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// Protocol encodes outbound frames and normalizes inbound frames of one wire dialect.
type Protocol interface {
	Name() ProtocolName
	// Path is the endpoint path used when the configured url has none.
	Path() string
	NextID() string
	// ConnectMessage returns the handshake frame, or nil when the dialect has no handshake.
	ConnectMessage() ([]byte, error)
	MethodMessage(id string, method string, params []interface{}) ([]byte, error)
	SubscribeMessage(id string, collection string) ([]byte, error)
	// ClientSubscriptionIDs reports whether the server addresses a subscription by the id the
	// client chose, so it can be unsubscribed before it is confirmed.
	ClientSubscriptionIDs() bool
	UnsubscribeMessage(id string, subscriptionID string) ([]byte, error)
	PingMessage(id string) ([]byte, error)
	PongMessage(id string) ([]byte, error)
	Read(data []byte) (*Message, error)
}

// NewProtocol returns the protocol implementation registered for name.
func NewProtocol(name ProtocolName, logger abstractlogger.Logger) (Protocol, error) {
	if logger == nil {
		logger = abstractlogger.Noop{}
	}
	switch name {
	case ProtocolNameDDP, "":
		return NewProtocolDDP(logger), nil
	case ProtocolNameJSONRPC:
		return NewProtocolJSONRPC(logger), nil
	}
	return nil, errors.New("unknown protocol: " + string(name))
}

// EndpointURL maps an http(s) or ws(s) base url to the websocket endpoint of the protocol.
func EndpointURL(base string, protocol Protocol) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", ErrUnsupportedScheme
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = protocol.Path()
	}

	return u.String(), nil
}
