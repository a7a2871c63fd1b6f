package injector

import (
	"github.com/google/wire"

	"github.com/extensivelabs/agentecs-viz/internal/config"
	"github.com/extensivelabs/agentecs-viz/internal/core/clock"
	"github.com/extensivelabs/agentecs-viz/internal/core/events/bus"
	"github.com/extensivelabs/agentecs-viz/internal/core/observability/log"
	"github.com/extensivelabs/agentecs-viz/internal/core/transport"
	"github.com/extensivelabs/agentecs-viz/internal/core/world"
)

// App is everything a client process needs, built from one Config.
type App struct {
	Config    config.Config
	Logger    *log.Logger
	Bus       bus.EventBus
	Transport *transport.Transport
	Store     *world.Store
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideClock,
	ProvideDialer,
	ProvideTransport,
	ProvideBus,
	ProvideStore,
	wire.Struct(new(App), "*"),
)

// ProvideLogger builds the process logger. The cleanup flushes it.
func ProvideLogger(cfg config.Config) (*log.Logger, func(), error) {
	logger, err := log.New(cfg.LogOptions())
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideClock() clock.Clock {
	return clock.Real()
}

func ProvideDialer(cfg config.Config) transport.Dialer {
	return transport.NewDialer(cfg.TransportConfig())
}

func ProvideTransport(cfg config.Config, dialer transport.Dialer, clk clock.Clock, logger *log.Logger) *transport.Transport {
	return transport.New(cfg.URL, cfg.TransportConfig(), dialer, clk, logger)
}

// ProvideBus returns a bus that logs failing subscribers.
func ProvideBus(logger *log.Logger) bus.EventBus {
	b := bus.New()
	b.AddObserver(bus.NewLogObserver(logger))
	return b
}

func ProvideStore(cfg config.Config, t *transport.Transport, b bus.EventBus, clk clock.Clock, logger *log.Logger) *world.Store {
	return world.NewStore(t, b, clk, logger, cfg.StoreOptions())
}
