package console

import (
	"context"

	"github.com/psousa/waconsole/internal/bus"
	"github.com/psousa/waconsole/internal/config"
	"github.com/psousa/waconsole/internal/feed"
	"github.com/psousa/waconsole/internal/loader"
	"github.com/psousa/waconsole/internal/logging"
	"github.com/psousa/waconsole/internal/outbox"
	"github.com/psousa/waconsole/internal/push"
	"github.com/psousa/waconsole/internal/rest"
	"github.com/psousa/waconsole/internal/status"
	"github.com/psousa/waconsole/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved configuration passed to the fx module.
type Params struct {
	Config *config.Config
}

// Module returns the fx module for the console, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("console",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideStore,
			provideRESTClient,
			provideFeedClient,
			provideQuery,
			provideHandler,
			provideManager,
			provideLoader,
			provideSender,
			provideClient,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(p.Config.Log.Path)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideStore(p Params, b *bus.Bus, logger *zap.Logger) *store.Store {
	return store.New(b, logger, p.Config.Notifications.HistoryCap)
}

func provideRESTClient(p Params) *rest.Client {
	return rest.New(p.Config.API)
}

func provideFeedClient(p Params, st *store.Store, b *bus.Bus, logger *zap.Logger) *feed.Client {
	return feed.New(p.Config.Feed, st, b, logger)
}

func provideQuery(p Params) *feed.Query {
	return feed.NewQuery(p.Config.Feed)
}

func provideHandler(st *store.Store, logger *zap.Logger) *push.Handler {
	return push.NewHandler(st, logger)
}

func provideManager(p Params, st *store.Store, machine *status.Machine, handler *push.Handler, logger *zap.Logger) *push.Manager {
	return push.NewManager(p.Config.Push, st, machine, handler, logger)
}

func provideLoader(p Params, query *feed.Query, api *rest.Client, st *store.Store, logger *zap.Logger) *loader.Loader {
	return loader.New(p.Config.Snapshot, query, api, st, logger)
}

func provideSender(st *store.Store, api *rest.Client, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(st, api, b, logger)
}

func provideClient(st *store.Store, b *bus.Bus, pm *push.Manager, fc *feed.Client, ld *loader.Loader, ob *outbox.Sender, api *rest.Client, logger *zap.Logger) *Client {
	return NewClient(st, b, pm, fc, ld, ob, api, logger)
}

func registerLifecycle(lc fx.Lifecycle, client *Client, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go client.Start(context.Background())
			return nil
		},
		OnStop: func(_ context.Context) error {
			client.Stop()
			logger.Info("console stopped")
			return nil
		},
	})
}
