package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/atomic"

	"github.com/truecharts/truenas-go/pkg/rpc"
)

func newCallCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [json params array]",
		Short: "Call a middleware method and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params []interface{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
					return fmt.Errorf("params must be a json array: %w", err)
				}
			}

			ctx, cancel := signalContext()
			defer cancel()

			client, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Disconnect()

			var result json.RawMessage
			if err := client.CallMethod(ctx, args[0], params, &result); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newSubscribeCommand(a *app) *cobra.Command {
	var limit int

	command := &cobra.Command{
		Use:   "subscribe <collection>",
		Short: "Print collection events until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			client, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Disconnect()

			out := cmd.OutOrStdout()
			received := atomic.NewInt64(0)
			reachedLimit := make(chan struct{})
			ended := make(chan error, 1)

			handler := rpc.EventHandlerFunc(func(eventType rpc.EventType, id string, event *rpc.CollectionEvent, err error) {
				switch eventType {
				case rpc.EventTypeUnsubscribed, rpc.EventTypeConnectionClosed:
					select {
					case ended <- err:
					default:
					}
					return
				}
				_ = printJSON(out, map[string]interface{}{
					"event":      eventType.String(),
					"collection": event.Collection,
					"id":         event.ID,
					"fields":     event.Fields,
					"cleared":    event.Cleared,
				})
				if received.Inc() == int64(limit) {
					close(reachedLimit)
				}
			})

			id, err := client.Subscribe(ctx, args[0], handler)
			if err != nil {
				return err
			}

			select {
			case <-reachedLimit:
			case err := <-ended:
				return err
			case <-ctx.Done():
			}
			return client.Unsubscribe(id)
		},
	}

	command.Flags().IntVarP(&limit, "limit", "n", 0, "stop after this many events, 0 runs until interrupted")
	return command
}
