package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-webos/internal/bridges/webos"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// WebSocket broadcast channels.
const (
	ChannelStateChanged = "tv.state_changed"
	ChannelDiscovered   = "tv.discovered"
)

// Bridge is the subset of *webos.Bridge the API needs.
type Bridge interface {
	Sessions() []webos.SessionInfo
	Discovered() []webos.DiscoveredInfo
	Request(ctx context.Context, deviceID, uri string, payload any, timeout time.Duration) (json.RawMessage, error)
	SetOnStateChange(fn func(deviceID string, from, to webos.State))
	SetOnDiscovered(fn func(webos.DiscoveredInfo))
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Bridge  Bridge
	Version string
}

// Server is the HTTP API server for the webOS bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	bridge  Bridge
	version string
	server  *http.Server
	hub     *Hub
	cancel  context.CancelFunc // cancels background goroutines on Close()

	addrMu sync.RWMutex
	addr   string
}

// StateChangeEvent is the payload broadcast on ChannelStateChanged.
type StateChangeEvent struct {
	DeviceID string `json:"device_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, bridge)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("webos bridge is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		bridge:  deps.Bridge,
		version: deps.Version,
		hub:     NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, hooks bridge state and discovery callbacks
// into hub broadcasts, binds the listener and serves in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub and background goroutines
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.relayBridgeEvents()

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.addrMu.Lock()
	s.addr = ln.Addr().String()
	s.addrMu.Unlock()

	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

// relayBridgeEvents forwards session transitions and SSDP discoveries to
// WebSocket subscribers.
func (s *Server) relayBridgeEvents() {
	s.bridge.SetOnStateChange(func(deviceID string, from, to webos.State) {
		s.hub.Broadcast(ChannelStateChanged, StateChangeEvent{
			DeviceID: deviceID,
			From:     from.String(),
			To:       to.String(),
		})
	})
	s.bridge.SetOnDiscovered(func(info webos.DiscoveredInfo) {
		s.hub.Broadcast(ChannelDiscovered, info)
	})
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Detach before the hub goes away so late callbacks do not broadcast.
	s.bridge.SetOnStateChange(nil)
	s.bridge.SetOnDiscovered(nil)

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

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
