package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jensneuse/abstractlogger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/truecharts/truenas-go/pkg/config"
	"github.com/truecharts/truenas-go/pkg/logging"
	"github.com/truecharts/truenas-go/pkg/rest"
	"github.com/truecharts/truenas-go/pkg/rpc"
	"github.com/truecharts/truenas-go/pkg/rpc/websocket"
)

type app struct {
	configPath string
	url        string
	protocol   string
	logLevel   string

	config    *config.Config
	logger    abstractlogger.Logger
	zapLogger *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "truenasctl",
		Short:         "Inspect a TrueNAS server over its websocket and REST apis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.zapLogger != nil {
				_ = a.zapLogger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default ./truenasctl.yaml or ~/.config/truenas/truenasctl.yaml)")
	flags.StringVar(&a.url, "url", "", "server url, overrides server.url")
	flags.StringVar(&a.protocol, "protocol", "", "websocket protocol: ddp or jsonrpc")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newCallCommand(a),
		newSubscribeCommand(a),
		newJobsCommand(a),
		newDashboardCommand(a),
		newPoolsCommand(a),
		newAppsCommand(a),
		newGraphCommand(a),
	)

	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.url != "" {
		cfg.Server.URL = a.url
	}
	if a.protocol != "" {
		cfg.Server.Protocol = a.protocol
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, zapLogger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	a.config = cfg
	a.logger = logger
	a.zapLogger = zapLogger
	return nil
}

// signalContext is cancelled on interrupt or terminate.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// connect dials the websocket api and authenticates. The caller disconnects.
func (a *app) connect(ctx context.Context) (*rpc.Client, error) {
	protocol, err := rpc.NewProtocol(a.config.ProtocolName(), a.logger)
	if err != nil {
		return nil, err
	}

	client := rpc.NewClient(
		rpc.WithLogger(a.logger),
		rpc.WithProtocol(protocol),
		rpc.WithCredentials(a.config.Credentials()),
		rpc.WithHandshakeTimeout(a.config.Server.HandshakeTimeout),
		rpc.WithKeepAliveInterval(a.config.Server.KeepAliveInterval),
		rpc.WithDialOptions(websocket.DialOptions{
			InsecureSkipVerify: a.config.Server.InsecureSkipVerify,
			Timeout:            a.config.Server.HandshakeTimeout,
		}),
	)

	if err := client.Connect(ctx, a.config.Server.URL); err != nil {
		return nil, err
	}
	return client, nil
}

func (a *app) restClient() (*rest.Client, error) {
	options := append(a.config.RESTOptions(), rest.WithLogger(a.logger))
	return rest.NewClient(a.config.Server.URL, options...)
}

func printJSON(w io.Writer, value interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
