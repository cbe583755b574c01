// Package app assembles the engine from configuration: store, traffic
// overlay, dispatcher, movement simulator, metrics sinks, the optional
// MQTT publisher and the HTTP API.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emsroute/ers/api"
	"github.com/emsroute/ers/config"
	"github.com/emsroute/ers/core/dispatch"
	coresim "github.com/emsroute/ers/core/sim"
	"github.com/emsroute/ers/core/traffic"
	"github.com/emsroute/ers/infra/logger"
	"github.com/emsroute/ers/infra/metrics"
	"github.com/emsroute/ers/infra/mqtt"
	memstore "github.com/emsroute/ers/infra/store"
	"github.com/emsroute/ers/internal/eventbus"
)

// Service orchestrates the dispatch engine and its transports.
type Service struct {
	Dispatcher *dispatch.Dispatcher
	Simulator  *coresim.Simulator

	store       *memstore.Memory
	bus         *eventbus.Bus[coresim.TrackingEvent]
	publisher   *mqtt.TrackingPublisher
	router      *gin.Engine
	log         logger.Logger
	addr        string
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	if cfg.Data.SeedPath == "" {
		return nil, fmt.Errorf("data.seed_path is required")
	}
	st, err := memstore.NewMemoryFromSeed(cfg.Data.SeedPath)
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}

	sink, err := metrics.NewSink(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	overlay := traffic.New(st, cfg.Routing.PeakHours)
	dispatcher, err := dispatch.NewDispatcher(st, overlay, logger.New("dispatcher"), sink)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	var publisher *mqtt.TrackingPublisher
	var pub coresim.Publisher = coresim.NopPublisher{}
	if cfg.MQTT.Enabled {
		publisher, err = mqtt.NewTrackingPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		pub = publisher
	}

	bus := eventbus.New[coresim.TrackingEvent]()
	tick := time.Duration(cfg.Routing.TickMilliseconds) * time.Millisecond
	simulator, err := coresim.New(st, dispatcher, bus, pub, logger.New("simulator"), sink, tick)
	if err != nil {
		return nil, fmt.Errorf("simulator: %w", err)
	}

	router := api.NewRouter(api.NewHandler(dispatcher, simulator, st, logger.New("api")), cfg.Server.CORSOrigins)

	return &Service{
		Dispatcher:  dispatcher,
		Simulator:   simulator,
		store:       st,
		bus:         bus,
		publisher:   publisher,
		router:      router,
		log:         logg,
		addr:        cfg.Server.Address,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

// Run serves the HTTP API until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases the transports held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	return nil
}
