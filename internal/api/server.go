package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nvalkov/station-core/internal/infrastructure/config"
	"github.com/nvalkov/station-core/internal/infrastructure/database"
	"github.com/nvalkov/station-core/internal/infrastructure/influxdb"
	"github.com/nvalkov/station-core/internal/infrastructure/logging"
	"github.com/nvalkov/station-core/internal/infrastructure/mqtt"
	"github.com/nvalkov/station-core/internal/pipeline"
	"github.com/nvalkov/station-core/internal/storage"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight
// requests before tearing down the listener.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Pipeline *pipeline.Pipeline
	Store    *storage.Store
	DB       *database.DB
	MQTT     *mqtt.Client     // optional: connection flag in /api/v1/metrics
	Influx   *influxdb.Client // optional: connection flag in /api/v1/metrics

	// Hub, if set, is used instead of creating one. The caller owns its Run
	// loop. Needed when the pipeline broadcaster is built around the hub
	// before the server exists.
	Hub *Hub

	// Broadcaster receives the live scalar_data event published on each
	// accepted scalar ingest. Defaults to the hub when nil.
	Broadcaster pipeline.Broadcaster

	Version string
}

// validate reports the first missing mandatory dependency. MQTT and
// InfluxDB are not checked: endpoints report them as disconnected when
// they were never wired.
func (d Deps) validate() error {
	switch {
	case d.Logger == nil:
		return fmt.Errorf("logger is required")
	case d.Pipeline == nil:
		return fmt.Errorf("pipeline is required")
	case d.Store == nil:
		return fmt.Errorf("store is required")
	case d.DB == nil:
		return fmt.Errorf("database is required")
	}
	return nil
}

// Server is the HTTP API server for Station Core.
//
// It owns the HTTP listener, the routes and middleware, and (unless one was
// injected) the WebSocket hub. Build it with New, bring it up with Start.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	pipeline    *pipeline.Pipeline
	store       *storage.Store
	db          *database.DB
	mqtt        *mqtt.Client
	influx      *influxdb.Client
	broadcaster pipeline.Broadcaster
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	cancel      context.CancelFunc // stops the hub's run loop on Close()
}

// New checks deps and assembles a server. Nothing listens until Start.
//
// Parameters:
//   - deps: Handler wiring; Logger, Pipeline, Store and DB are mandatory
//
// Returns:
//   - *Server: Ready for Start
//   - error: When a mandatory dependency is nil
func New(deps Deps) (*Server, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		pipeline:    deps.Pipeline,
		store:       deps.Store,
		db:          deps.DB,
		mqtt:        deps.MQTT,
		influx:      deps.Influx,
		hub:         deps.Hub,
		broadcaster: deps.Broadcaster,
		version:     deps.Version,
		startTime:   time.Now(),
	}, nil
}

// Start builds the router and opens the listener in a background goroutine.
// Stop the server with Close.
//
// Parameters:
//   - ctx: Parent for the hub's run loop; the listener itself is stopped by
//     Close, not by this context
//
// Returns:
//   - error: Always nil today; bind failures surface in the log because the
//     listener runs detached
func (s *Server) Start(ctx context.Context) error {
	srvCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	// An injected hub is already running under its owner's context.
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	// Scalar live events go to the hub unless a wider fan-out was injected
	if s.broadcaster == nil {
		s.broadcaster = s.hub
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go s.serve()
	return nil
}

// serve runs the blocking listen call and logs its terminal error. A normal
// Close arrives here as http.ErrServerClosed, which is not worth a log line.
func (s *Server) serve() {
	var err error
	if s.cfg.TLS.Enabled {
		s.logger.Info("API server starting with TLS",
			"address", s.server.Addr,
			"cert", s.cfg.TLS.CertFile,
		)
		err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	} else {
		s.logger.Info("API server starting", "address", s.server.Addr)
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("API server error", "error", err)
	}
}

// Close stops the hub and drains in-flight requests, waiting up to
// gracefulShutdownTimeout before remaining connections are cut.
//
// Returns:
//   - error: If the drain fails or times out
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the listener has been started. It backs the
// process-level health poll in main.
//
// Parameters:
//   - ctx: Checked for cancellation before anything else
//
// Returns:
//   - error: nil while running, otherwise what is wrong
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
