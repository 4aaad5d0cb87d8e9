package rpc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"
)

// connection owns one transport session together with its pending calls and subscriptions.
type connection struct {
	logger    abstractlogger.Logger
	protocol  Protocol
	transport TransportClient
	writeMu   sync.Mutex
	session   string

	mu      sync.Mutex
	closed  bool
	pending map[string]chan *Message
	subs    map[string]*subscription

	handshake     chan *Message
	handshakeDone *atomic.Bool
	done          chan struct{}
	closeOnce     sync.Once
	onClose       func(conn *connection)
}

type subscription struct {
	id         string
	remoteID   string
	collection string
	handler    EventHandler
	confirmed  bool
	// cancelled is set when the caller gave up before the server confirmed the subscription.
	cancelled bool
	ready     chan *Message
}

func newConnection(logger abstractlogger.Logger, protocol Protocol, transport TransportClient, onClose func(conn *connection)) *connection {
	return &connection{
		logger:        logger,
		protocol:      protocol,
		transport:     transport,
		pending:       make(map[string]chan *Message),
		subs:          make(map[string]*subscription),
		handshake:     make(chan *Message, 1),
		handshakeDone: atomic.NewBool(false),
		done:          make(chan struct{}),
		onClose:       onClose,
	}
}

func (c *connection) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.transport.WriteBytesToServer(frame)
}

func (c *connection) readLoop() {
	defer c.close(ErrConnectionClosed)

	for {
		if !c.transport.IsConnected() {
			c.logger.Debug("rpc.connection.readLoop: on transport is connected check",
				abstractlogger.String("message", "server has disconnected"),
			)
			return
		}

		data, err := c.transport.ReadBytesFromServer()
		if err != nil {
			c.logger.Error("rpc.connection.readLoop: on reading bytes from server",
				abstractlogger.Error(err),
				abstractlogger.ByteString("message", data),
			)
			return
		}
		if len(data) == 0 {
			continue
		}

		message, err := c.protocol.Read(data)
		if err != nil {
			c.logger.Error("rpc.connection.readLoop: on protocol reading message",
				abstractlogger.Error(err),
				abstractlogger.ByteString("message", data),
			)
			c.failUndecodable(data, err)
			continue
		}

		c.dispatch(message)
	}
}

// failUndecodable hands a frame that could not be decoded to the caller waiting on its id, so
// the call fails instead of waiting forever. The id is looked up leniently since the frame may
// be truncated.
func (c *connection) failUndecodable(data []byte, decodeErr error) {
	value, dataType, _, err := jsonparser.Get(data, "id")
	if err != nil {
		return
	}

	var id string
	switch dataType {
	case jsonparser.String:
		id, err = jsonparser.ParseString(value)
		if err != nil {
			return
		}
	case jsonparser.Number:
		id = string(value)
	default:
		return
	}

	message := &Message{
		Kind:      MessageKindResult,
		ID:        id,
		Raw:       data,
		DecodeErr: decodeErr,
	}

	c.mu.Lock()
	listener, exists := c.pending[id]
	if exists {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if exists {
		listener <- message
		return
	}
	c.confirm(id, message)
}

func (c *connection) dispatch(message *Message) {
	switch message.Kind {
	case MessageKindConnected, MessageKindFailed:
		c.deliverHandshake(message)
	case MessageKindError:
		if !c.handshakeDone.Load() {
			c.deliverHandshake(message)
			return
		}
		c.logger.Error("rpc.connection.dispatch: on protocol error message",
			abstractlogger.String("reason", message.Reason),
			abstractlogger.ByteString("message", message.Raw),
		)
	case MessageKindResult, MessageKindPong:
		c.resolve(message)
	case MessageKindReady:
		for _, id := range message.Subs {
			c.confirm(id, message)
		}
	case MessageKindNoSub:
		c.unsubscribed(message)
	case MessageKindAdded, MessageKindChanged, MessageKindRemoved:
		c.publish(message)
	case MessageKindPing:
		frame, err := c.protocol.PongMessage(message.ID)
		if err != nil || frame == nil {
			return
		}
		if err := c.write(frame); err != nil {
			c.logger.Error("rpc.connection.dispatch: on writing pong",
				abstractlogger.Error(err),
				abstractlogger.String("id", message.ID),
			)
		}
	case MessageKindUpdated:
		c.logger.Debug("rpc.connection.dispatch: on updated message",
			abstractlogger.Any("methods", message.Methods),
		)
	default:
		c.logger.Warn("rpc.connection.dispatch: on message with unexpected kind",
			abstractlogger.String("kind", string(message.Kind)),
			abstractlogger.ByteString("message", message.Raw),
		)
	}
}

func (c *connection) deliverHandshake(message *Message) {
	select {
	case c.handshake <- message:
	default:
		c.logger.Warn("rpc.connection.deliverHandshake: on duplicate handshake message",
			abstractlogger.String("kind", string(message.Kind)),
		)
	}
}

func (c *connection) resolve(message *Message) {
	c.mu.Lock()
	listener, exists := c.pending[message.ID]
	if exists {
		delete(c.pending, message.ID)
	}
	c.mu.Unlock()

	if exists {
		listener <- message
		return
	}

	// JSON-RPC confirms subscriptions with the result of core.subscribe.
	if c.confirm(message.ID, message) {
		return
	}

	c.logger.Debug("rpc.connection.resolve: on result for unknown id",
		abstractlogger.String("id", message.ID),
	)
}

func (c *connection) confirm(id string, message *Message) bool {
	c.mu.Lock()
	sub, exists := c.subs[id]
	if !exists || sub.confirmed {
		c.mu.Unlock()
		return false
	}
	sub.confirmed = true

	if sub.cancelled {
		delete(c.subs, id)
		c.mu.Unlock()
		if accepted(message) {
			_ = c.sendUnsubscribe(remoteSubscriptionID(sub, message))
		}
		return true
	}

	if !accepted(message) {
		delete(c.subs, id)
	}
	sub.ready <- message
	c.mu.Unlock()
	return true
}

// accepted reports whether a subscription confirmation is a success.
func accepted(message *Message) bool {
	return message.Error == nil && message.DecodeErr == nil && message.Kind != MessageKindNoSub
}

// remoteSubscriptionID is the id the server knows the subscription by. JSON-RPC returns it as
// the result of core.subscribe, DDP uses the id chosen by the client.
func remoteSubscriptionID(sub *subscription, confirmation *Message) string {
	if confirmation != nil && confirmation.Kind == MessageKindResult && len(confirmation.Result) > 0 {
		var remoteID string
		if err := json.Unmarshal(confirmation.Result, &remoteID); err == nil && remoteID != "" {
			return remoteID
		}
	}
	return sub.id
}

func (c *connection) unsubscribed(message *Message) {
	var removed []*subscription

	c.mu.Lock()
	for id, sub := range c.subs {
		if id != message.ID && (message.ID != "" || sub.collection != message.Collection) {
			continue
		}
		delete(c.subs, id)
		if !sub.confirmed {
			sub.confirmed = true
			sub.ready <- message
			continue
		}
		removed = append(removed, sub)
	}
	c.mu.Unlock()

	var err error
	if message.Error != nil {
		err = message.Error
	}

	for _, sub := range removed {
		sub.handler.Emit(EventTypeUnsubscribed, sub.id, nil, err)
	}
}

func (c *connection) publish(message *Message) {
	eventType, _ := eventTypeForKind(message.Kind)

	var handlers []*subscription
	c.mu.Lock()
	for _, sub := range c.subs {
		if sub.collection == message.Collection && !sub.cancelled {
			handlers = append(handlers, sub)
		}
	}
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.logger.Debug("rpc.connection.publish: on event without subscription",
			abstractlogger.String("collection", message.Collection),
		)
		return
	}

	event := &CollectionEvent{
		Collection: message.Collection,
		ID:         message.DocumentID,
		Fields:     message.Fields,
		Cleared:    message.Cleared,
	}
	for _, sub := range handlers {
		sub.handler.Emit(eventType, sub.id, event, nil)
	}
}

// roundTrip writes frame and waits for the result carrying id.
func (c *connection) roundTrip(ctx context.Context, id string, frame []byte) (*Message, error) {
	listener := make(chan *Message, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	c.pending[id] = listener
	c.mu.Unlock()

	if err := c.write(frame); err != nil {
		c.removeListener(id)
		return nil, err
	}

	select {
	case message := <-listener:
		return message, nil
	case <-c.done:
		c.removeListener(id)
		select {
		case message := <-listener:
			return message, nil
		default:
		}
		return nil, ErrConnectionClosed
	case <-ctx.Done():
		c.removeListener(id)
		return nil, ctx.Err()
	}
}

func (c *connection) removeListener(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *connection) callMethod(ctx context.Context, method string, params []interface{}, result interface{}) error {
	id := c.protocol.NextID()
	frame, err := c.protocol.MethodMessage(id, method, params)
	if err != nil {
		return err
	}

	c.logger.Debug("rpc.connection.callMethod: on calling method",
		abstractlogger.String("method", method),
		abstractlogger.String("id", id),
	)

	message, err := c.roundTrip(ctx, id, frame)
	if err != nil {
		return err
	}

	return decodeResult(method, message, result)
}

func decodeResult(method string, message *Message, result interface{}) error {
	if message.DecodeErr != nil {
		return &DeserializeError{Method: method, Payload: message.Raw, Err: message.DecodeErr}
	}
	if message.Error != nil {
		callErr := *message.Error
		callErr.Method = method
		return &callErr
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(message.Result, result); err != nil {
		return &DeserializeError{Method: method, Payload: message.Raw, Err: err}
	}
	return nil
}

func (c *connection) subscribe(ctx context.Context, collection string, handler EventHandler) (string, error) {
	id := c.protocol.NextID()
	frame, err := c.protocol.SubscribeMessage(id, collection)
	if err != nil {
		return "", err
	}

	sub := &subscription{
		id:         id,
		remoteID:   id,
		collection: collection,
		handler:    handler,
		ready:      make(chan *Message, 1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrConnectionClosed
	}
	c.subs[id] = sub
	c.mu.Unlock()

	if err := c.write(frame); err != nil {
		c.removeSubscription(id)
		return "", err
	}

	var message *Message
	select {
	case message = <-sub.ready:
	case <-c.done:
		return "", ErrConnectionClosed
	case <-ctx.Done():
		c.cancelSubscription(sub)
		return "", ctx.Err()
	}

	if message.DecodeErr != nil {
		return "", &DeserializeError{Method: collection, Payload: message.Raw, Err: message.DecodeErr}
	}
	if message.Error != nil {
		callErr := *message.Error
		callErr.Method = collection
		return "", &callErr
	}
	if message.Kind == MessageKindNoSub {
		return "", &MethodCallError{Method: collection, Reason: "subscription was rejected"}
	}

	remoteID := remoteSubscriptionID(sub, message)
	c.mu.Lock()
	sub.remoteID = remoteID
	c.mu.Unlock()

	return id, nil
}

// cancelSubscription drops a subscription whose caller gave up after the request was written.
// The server is told to unsubscribe as soon as the subscription id it uses is known: right away
// when the client chose it, otherwise once the confirmation arrives.
func (c *connection) cancelSubscription(sub *subscription) {
	c.mu.Lock()
	var confirmation *Message
	if sub.confirmed {
		select {
		case confirmation = <-sub.ready:
		default:
		}
	} else if !c.protocol.ClientSubscriptionIDs() {
		sub.cancelled = true
		c.mu.Unlock()
		return
	}
	delete(c.subs, sub.id)
	c.mu.Unlock()

	if confirmation != nil && !accepted(confirmation) {
		return
	}
	_ = c.sendUnsubscribe(remoteSubscriptionID(sub, confirmation))
}

func (c *connection) sendUnsubscribe(remoteID string) error {
	frame, err := c.protocol.UnsubscribeMessage(c.protocol.NextID(), remoteID)
	if err != nil {
		return err
	}
	if err := c.write(frame); err != nil {
		c.logger.Error("rpc.connection.sendUnsubscribe: on writing unsubscribe message",
			abstractlogger.String("subscription", remoteID),
			abstractlogger.Error(err),
		)
		return err
	}
	return nil
}

func (c *connection) removeSubscription(id string) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func (c *connection) unsubscribe(id string) error {
	c.mu.Lock()
	sub, exists := c.subs[id]
	if exists {
		delete(c.subs, id)
	}
	remoteID := ""
	if exists {
		remoteID = sub.remoteID
	}
	c.mu.Unlock()

	if !exists {
		return ErrUnknownSubscription
	}

	return c.sendUnsubscribe(remoteID)
}

func (c *connection) ping(ctx context.Context) error {
	id := c.protocol.NextID()
	frame, err := c.protocol.PingMessage(id)
	if err != nil {
		return err
	}

	message, err := c.roundTrip(ctx, id, frame)
	if err != nil {
		return err
	}
	return decodeResult("ping", message, nil)
}

// close tears the connection down once: callers waiting on results are released and
// every subscription is notified.
func (c *connection) close(reason error) {
	c.closeOnce.Do(func() {
		var confirmed []*subscription
		c.mu.Lock()
		c.closed = true
		for _, sub := range c.subs {
			if sub.confirmed {
				confirmed = append(confirmed, sub)
			}
		}
		c.subs = make(map[string]*subscription)
		c.mu.Unlock()

		close(c.done)

		if err := c.transport.Disconnect(); err != nil {
			c.logger.Error("rpc.connection.close: on disconnecting transport",
				abstractlogger.Error(err),
			)
		}

		for _, sub := range confirmed {
			sub.handler.Emit(EventTypeConnectionClosed, sub.id, nil, reason)
		}

		if c.onClose != nil {
			c.onClose(c)
		}
	})
}
