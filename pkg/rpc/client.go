package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jensneuse/abstractlogger"
)

type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnectionState is a snapshot of the client lifecycle. Session is only set while connected.
type ConnectionState struct {
	Status  ConnectionStatus
	Session string
}

// Client multiplexes method calls and collection subscriptions over one middleware connection.
// It never reconnects on its own.
type Client struct {
	logger            abstractlogger.Logger
	protocol          Protocol
	dialer            Dialer
	credentials       Credentials
	handshakeTimeout  time.Duration
	keepAliveInterval time.Duration

	mu     sync.Mutex
	status ConnectionStatus
	conn   *connection
}

func NewClient(options ...ClientOptionFunc) *Client {
	definedOptions := ClientOptions{
		Logger: abstractlogger.Noop{},
	}

	for _, optionFunc := range options {
		optionFunc(&definedOptions)
	}

	return NewClientWithOptions(definedOptions)
}

func NewClientWithOptions(options ClientOptions) *Client {
	// Use noop logger to prevent nil pointers if none was provided
	if options.Logger == nil {
		options.Logger = abstractlogger.Noop{}
	}

	client := &Client{
		logger:            options.Logger,
		protocol:          options.Protocol,
		dialer:            options.Dialer,
		credentials:       options.Credentials,
		handshakeTimeout:  options.HandshakeTimeout,
		keepAliveInterval: options.KeepAliveInterval,
	}

	if client.protocol == nil {
		client.protocol = NewProtocolDDP(options.Logger)
	}
	if client.dialer == nil {
		dialOptions := options.DialOptions
		if dialOptions.Logger == nil {
			dialOptions.Logger = options.Logger
		}
		client.dialer = websocketDialer{options: dialOptions}
	}
	if client.handshakeTimeout <= 0 {
		client.handshakeTimeout = DefaultHandshakeTimeout
	}

	return client
}

// State returns the current lifecycle state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := ConnectionState{Status: c.status}
	if c.status == StatusConnected && c.conn != nil {
		state.Session = c.conn.session
	}
	return state
}

// Connect dials url, performs the handshake and authenticates. url may be an http(s) base url,
// the protocol endpoint path is appended when it has none.
func (c *Client) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	switch c.status {
	case StatusConnected:
		c.mu.Unlock()
		return ErrAlreadyConnected
	case StatusConnecting:
		c.mu.Unlock()
		return ErrConnectInProgress
	}
	c.status = StatusConnecting
	c.mu.Unlock()

	conn, err := c.establish(ctx, url)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.status = StatusDisconnected
		return err
	}

	select {
	case <-conn.done:
		c.status = StatusDisconnected
		return ErrConnectionClosed
	default:
	}

	c.conn = conn
	c.status = StatusConnected

	c.logger.Info("rpc.Client.Connect: on connection established",
		abstractlogger.String("protocol", string(c.protocol.Name())),
		abstractlogger.String("session", conn.session),
	)

	if c.keepAliveInterval > 0 {
		go c.keepAlive(conn)
	}

	return nil
}

func (c *Client) establish(ctx context.Context, url string) (*connection, error) {
	endpoint, err := EndpointURL(url, c.protocol)
	if err != nil {
		return nil, err
	}

	transport, err := c.dialer.Dial(ctx, endpoint)
	if err != nil {
		c.logger.Error("rpc.Client.Connect: on dialing server",
			abstractlogger.String("url", endpoint),
			abstractlogger.Error(err),
		)
		return nil, err
	}

	conn := newConnection(c.logger, c.protocol, transport, c.connectionClosed)

	connectMessage, err := c.protocol.ConnectMessage()
	if err != nil {
		conn.close(err)
		return nil, err
	}

	if connectMessage != nil {
		if err := conn.write(connectMessage); err != nil {
			c.logger.Error("rpc.Client.Connect: on writing connect message",
				abstractlogger.Error(err),
			)
			conn.close(err)
			return nil, err
		}
	}

	go conn.readLoop()

	if connectMessage != nil {
		if err := c.awaitHandshake(ctx, conn); err != nil {
			c.logger.Error("rpc.Client.Connect: on handshake",
				abstractlogger.Error(err),
			)
			conn.close(err)
			return nil, err
		}
	}
	conn.handshakeDone.Store(true)

	if err := c.authenticate(ctx, conn); err != nil {
		c.logger.Error("rpc.Client.Connect: on authentication",
			abstractlogger.Error(err),
		)
		conn.close(err)
		return nil, err
	}

	return conn, nil
}

func (c *Client) awaitHandshake(ctx context.Context, conn *connection) error {
	timer := time.NewTimer(c.handshakeTimeout)
	defer timer.Stop()

	select {
	case message := <-conn.handshake:
		switch message.Kind {
		case MessageKindConnected:
			conn.session = message.Session
			return nil
		case MessageKindFailed:
			return fmt.Errorf("%w: server supports version %q", ErrHandshakeRejected, message.Version)
		default:
			return fmt.Errorf("%w: %s", ErrHandshakeRejected, message.Reason)
		}
	case <-timer.C:
		return ErrHandshakeTimeout
	case <-conn.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) authenticate(ctx context.Context, conn *connection) error {
	if c.credentials == nil {
		return nil
	}

	method, params := c.credentials.LoginCall()

	var authenticated bool
	err := conn.callMethod(ctx, method, params, &authenticated)
	if err != nil {
		if _, ok := err.(*MethodCallError); ok {
			return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		}
		return err
	}
	if !authenticated {
		return ErrAuthenticationFailed
	}
	return nil
}

// connectionClosed resets the client when its current connection is torn down by the server.
func (c *Client) connectionClosed(conn *connection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != conn {
		return
	}
	c.conn = nil
	c.status = StatusDisconnected

	c.logger.Info("rpc.Client.connectionClosed: on connection closed",
		abstractlogger.String("message", "server has disconnected"),
	)
}

func (c *Client) connected() (*connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusConnected || c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// CallMethod invokes method and decodes its result into result, which may be nil.
func (c *Client) CallMethod(ctx context.Context, method string, params []interface{}, result interface{}) error {
	conn, err := c.connected()
	if err != nil {
		return err
	}
	return conn.callMethod(ctx, method, params, result)
}

// Subscribe subscribes to collection and returns the subscription id once the server confirmed it.
// Events of the collection may reach handler before Subscribe returns.
func (c *Client) Subscribe(ctx context.Context, collection string, handler EventHandler) (string, error) {
	conn, err := c.connected()
	if err != nil {
		return "", err
	}
	return conn.subscribe(ctx, collection, handler)
}

func (c *Client) Unsubscribe(id string) error {
	conn, err := c.connected()
	if err != nil {
		return err
	}
	return conn.unsubscribe(id)
}

func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.connected()
	if err != nil {
		return err
	}
	return conn.ping(ctx)
}

// Disconnect closes the connection. It is a no-op when already disconnected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	switch c.status {
	case StatusDisconnected:
		c.mu.Unlock()
		return nil
	case StatusConnecting:
		c.mu.Unlock()
		return ErrConnectInProgress
	}
	conn := c.conn
	c.conn = nil
	c.status = StatusDisconnected
	c.mu.Unlock()

	if conn != nil {
		conn.close(ErrConnectionClosed)
	}
	return nil
}

func (c *Client) keepAlive(conn *connection) {
	ticker := time.NewTicker(c.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.keepAliveInterval)
			err := conn.ping(ctx)
			cancel()
			if err != nil {
				c.logger.Warn("rpc.Client.keepAlive: on ping",
					abstractlogger.Error(err),
				)
			}
		}
	}
}
