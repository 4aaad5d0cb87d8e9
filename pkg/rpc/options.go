package rpc

import (
	"context"
	"time"

	"github.com/jensneuse/abstractlogger"

	"github.com/truecharts/truenas-go/pkg/rpc/websocket"
)

const DefaultHandshakeTimeout = 5 * time.Second

type ClientOptions struct {
	Logger            abstractlogger.Logger
	Protocol          Protocol
	Dialer            Dialer
	Credentials       Credentials
	HandshakeTimeout  time.Duration
	KeepAliveInterval time.Duration
	DialOptions       websocket.DialOptions
}

type ClientOptionFunc func(opts *ClientOptions)

func WithLogger(logger abstractlogger.Logger) ClientOptionFunc {
	return func(opts *ClientOptions) {
		opts.Logger = logger
	}
}

func WithProtocol(protocol Protocol) ClientOptionFunc {
	return func(opts *ClientOptions) {
		opts.Protocol = protocol
	}
}

func WithDialer(dialer Dialer) ClientOptionFunc {
	return func(opts *ClientOptions) {
		opts.Dialer = dialer
	}
}

func WithCredentials(credentials Credentials) ClientOptionFunc {
	return func(opts *ClientOptions) {
		opts.Credentials = credentials
	}
}

func WithHandshakeTimeout(timeout time.Duration) ClientOptionFunc {
	return func(opts *ClientOptions) {
		opts.HandshakeTimeout = timeout
	}
}

func WithKeepAliveInterval(keepAliveInterval time.Duration) ClientOptionFunc {
	return func(opts *ClientOptions) {
		opts.KeepAliveInterval = keepAliveInterval
	}
}

func WithDialOptions(dialOptions websocket.DialOptions) ClientOptionFunc {
	return func(opts *ClientOptions) {
		opts.DialOptions = dialOptions
	}
}

// websocketDialer is the default Dialer. It upgrades a real websocket connection.
type websocketDialer struct {
	options websocket.DialOptions
}

func (w websocketDialer) Dial(ctx context.Context, url string) (TransportClient, error) {
	client, err := websocket.Dial(ctx, url, w.options)
	if err != nil {
		return nil, err
	}
	return client, nil
}
