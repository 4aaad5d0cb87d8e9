package rpc

//go:generate mockgen -destination=transport_client_mock_test.go -package=rpc . TransportClient,Dialer

import (
	"context"
)

// TransportClient provides an interface that can be implemented by any possible connection to the
// middleware server like websockets or in-memory pipes. It operates with raw byte slices.
type TransportClient interface {
	// ReadBytesFromServer will invoke a read operation from the server connection and return a byte slice.
	ReadBytesFromServer() ([]byte, error)
	// WriteBytesToServer will invoke a write operation to the server connection using a byte slice.
	WriteBytesToServer([]byte) error
	// IsConnected will indicate if a connection is still established.
	IsConnected() bool
	// Disconnect will close the connection between client and server.
	Disconnect() error
}

// Dialer opens a new TransportClient for the given endpoint url.
type Dialer interface {
	Dial(ctx context.Context, url string) (TransportClient, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (TransportClient, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (TransportClient, error) {
	return f(ctx, url)
}
