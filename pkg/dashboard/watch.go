package dashboard

import (
	"context"

	"github.com/jensneuse/abstractlogger"

	"github.com/truecharts/truenas-go/pkg/rpc"
)

// Subscriber is the part of rpc.Client the watcher needs.
type Subscriber interface {
	Subscribe(ctx context.Context, collection string, handler rpc.EventHandler) (string, error)
	Unsubscribe(id string) error
}

// Watcher turns reporting.realtime events into Realtime samples.
type Watcher struct {
	logger     abstractlogger.Logger
	subscriber Subscriber
	onSample   func(rt *Realtime)
	onClosed   func(err error)
}

func NewWatcher(logger abstractlogger.Logger, subscriber Subscriber, onSample func(rt *Realtime), onClosed func(err error)) *Watcher {
	if logger == nil {
		logger = abstractlogger.Noop{}
	}
	return &Watcher{
		logger:     logger,
		subscriber: subscriber,
		onSample:   onSample,
		onClosed:   onClosed,
	}
}

// Start subscribes and returns the subscription id to pass to Stop.
func (w *Watcher) Start(ctx context.Context) (string, error) {
	return w.subscriber.Subscribe(ctx, RealtimeCollection, w)
}

func (w *Watcher) Stop(id string) error {
	return w.subscriber.Unsubscribe(id)
}

func (w *Watcher) Emit(eventType rpc.EventType, subscriptionID string, event *rpc.CollectionEvent, err error) {
	switch eventType {
	case rpc.EventTypeAdded, rpc.EventTypeChanged:
		rt, parseErr := ParseRealtime(event.Fields)
		if parseErr != nil {
			w.logger.Error("dashboard.Watcher.Emit: on parsing realtime fields",
				abstractlogger.String("subscription", subscriptionID),
				abstractlogger.Error(parseErr),
				abstractlogger.ByteString("fields", event.Fields),
			)
			return
		}
		if w.onSample != nil {
			w.onSample(rt)
		}
	case rpc.EventTypeUnsubscribed, rpc.EventTypeConnectionClosed:
		w.logger.Debug("dashboard.Watcher.Emit: on subscription ended",
			abstractlogger.String("subscription", subscriptionID),
			abstractlogger.String("event", eventType.String()),
		)
		if w.onClosed != nil {
			w.onClosed(err)
		}
	}
}

var _ rpc.EventHandler = (*Watcher)(nil)
