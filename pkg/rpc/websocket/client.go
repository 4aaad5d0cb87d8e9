package websocket

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"
)

var ErrClientDisconnected = errors.New("websocket client is disconnected")

// DialOptions configures the websocket upgrade performed by Dial.
type DialOptions struct {
	Logger             abstractlogger.Logger
	Header             http.Header
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Client is an actual implementation of the rpc transport client interface.
type Client struct {
	logger abstractlogger.Logger
	// serverConn holds the actual connection to the server.
	serverConn net.Conn
	// reader is the buffered handshake reader when the server sent frames right after the upgrade.
	reader    io.Reader
	writeMu   sync.Mutex
	closeOnce sync.Once
	// isClosedConnection indicates if the websocket connection is closed.
	isClosedConnection *atomic.Bool
}

// NewClient will create a new websocket client on top of an already upgraded connection.
func NewClient(logger abstractlogger.Logger, serverConn net.Conn) *Client {
	return newClient(logger, serverConn, nil)
}

func newClient(logger abstractlogger.Logger, serverConn net.Conn, br *bufio.Reader) *Client {
	if logger == nil {
		logger = abstractlogger.Noop{}
	}

	var reader io.Reader = serverConn
	if br != nil {
		reader = io.MultiReader(br, serverConn)
	}

	return &Client{
		logger:             logger,
		serverConn:         serverConn,
		reader:             reader,
		isClosedConnection: atomic.NewBool(false),
	}
}

// Dial performs the websocket upgrade against url and returns a connected client.
func Dial(ctx context.Context, url string, options DialOptions) (*Client, error) {
	if options.Logger == nil {
		options.Logger = abstractlogger.Noop{}
	}

	dialer := ws.Dialer{
		Timeout: options.Timeout,
	}
	if len(options.Header) > 0 {
		dialer.Header = ws.HandshakeHeaderHTTP(options.Header)
	}
	if options.InsecureSkipVerify {
		dialer.TLSConfig = &tls.Config{InsecureSkipVerify: true} // nolint:gosec
	}

	conn, br, _, err := dialer.Dial(ctx, url)
	if err != nil {
		options.Logger.Error("websocket.Dial: on websocket upgrade",
			abstractlogger.String("url", url),
			abstractlogger.Error(err),
		)
		return nil, err
	}

	options.Logger.Debug("websocket.Dial: on websocket upgrade",
		abstractlogger.String("message", "connection established"),
		abstractlogger.String("url", url),
	)

	return newClient(options.Logger, conn, br), nil
}

// ReadBytesFromServer will read a message from the websocket server.
// It returns nil data without an error once the connection is closed.
func (c *Client) ReadBytesFromServer() ([]byte, error) {
	var data []byte
	var opCode ws.OpCode

	rw := struct {
		io.Reader
		io.Writer
	}{c.reader, &lockedWriter{mu: &c.writeMu, w: c.serverConn}}

	data, opCode, err := wsutil.ReadServerData(rw)
	if err != nil {
		if c.isClosedConnectionError(err) {
			return nil, nil
		}

		c.logger.Error("websocket.Client.ReadBytesFromServer()",
			abstractlogger.Error(err),
			abstractlogger.ByteString("data", data),
			abstractlogger.Any("opCode", opCode),
		)

		return nil, err
	}

	return data, nil
}

// WriteBytesToServer will write a text message to the websocket server.
func (c *Client) WriteBytesToServer(message []byte) error {
	if c.isClosedConnection.Load() {
		return ErrClientDisconnected
	}

	c.writeMu.Lock()
	err := wsutil.WriteClientMessage(c.serverConn, ws.OpText, message)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Error("websocket.Client.WriteBytesToServer()",
			abstractlogger.Error(err),
			abstractlogger.ByteString("message", message),
		)

		return err
	}

	return nil
}

// IsConnected will indicate if the websocket connection is still established.
func (c *Client) IsConnected() bool {
	return !c.isClosedConnection.Load()
}

// Disconnect will close the websocket connection. Calling it more than once is a no-op.
func (c *Client) Disconnect() error {
	c.isClosedConnection.Store(true)

	var err error
	c.closeOnce.Do(func() {
		c.logger.Debug("websocket.Client.Disconnect()",
			abstractlogger.String("message", "disconnecting from server"),
		)
		err = c.serverConn.Close()
	})
	return err
}

// isClosedConnectionError will indicate if the given error is a connection closed error.
func (c *Client) isClosedConnectionError(err error) bool {
	var closedErr wsutil.ClosedError
	if errors.As(err, &closedErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) {
		c.isClosedConnection.Store(true)
	}

	return c.isClosedConnection.Load()
}

// lockedWriter serializes control frame replies issued while reading with regular writes.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
