// Package server exposes the command bridge over WebSocket: one message per
// request, one JSON result per message, one device session per client.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/bridge"
	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/device"
	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/pixelcmd"
)

// Options configures the WebSocket bridge server
type Options struct {
	Addr           string // listen address, e.g. "localhost:4444"
	DeviceAddress  string // BLE peripheral address
	SessionOptions *device.SessionOptions
	LoopOptions    *bridge.LoopOptions
}

// Server accepts WebSocket clients and runs one session loop per
// connection. Each client acquires its own device session; concurrent
// clients therefore race for the physical link, a limitation inherited from
// the one-session-per-client contract.
type Server struct {
	opts      *Options
	registry  *pixelcmd.Registry
	transport device.Transport
	logger    *logrus.Logger

	clients   *hashmap.Map[uint64, *websocket.Conn]
	nextID    atomic.Uint64
	httpSrv   *http.Server
	boundAddr string
}

// New creates a bridge server.
func New(opts *Options, registry *pixelcmd.Registry, transport device.Transport, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		opts:      opts,
		registry:  registry,
		transport: transport,
		logger:    logger,
		clients:   hashmap.New[uint64, *websocket.Conn](),
	}
}

// Start begins accepting WebSocket connections. Blocks until the context is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()

	s.httpSrv = &http.Server{Handler: http.HandlerFunc(s.handleUpgrade)}

	s.logger.WithField("addr", s.boundAddr).Info("WebSocket server started")

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down, closing all client connections.
func (s *Server) Stop(ctx context.Context) error {
	s.clients.Range(func(id uint64, ws *websocket.Conn) bool {
		_ = ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.clients.Del(id)
		return true
	})

	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// BoundAddr returns the actual listen address. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The bridge serves unauthenticated LAN clients; origin checking
		// would only break non-browser tooling.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.WithField("error", err).Warn("WebSocket accept failed")
		return
	}

	connID := s.nextID.Add(1)
	s.clients.Set(connID, ws)
	s.logger.WithField("conn_id", connID).Info("Client connected")

	defer func() {
		s.clients.Del(connID)
		_ = ws.Close(websocket.StatusNormalClosure, "")
		s.logger.WithField("conn_id", connID).Info("Client disconnected")
	}()

	session := device.NewSession(s.transport, s.opts.DeviceAddress, s.opts.SessionOptions, s.logger)
	dispatcher := bridge.NewDispatcher(s.registry, s.logger)
	loop := bridge.NewLoop(session, dispatcher, s.opts.LoopOptions, s.logger)

	if err := loop.Run(r.Context(), &wsClientConn{ws: ws}); err != nil {
		s.logger.WithFields(logrus.Fields{
			"conn_id": connID,
			"error":   err,
		}).Warn("Client loop ended with error")
	}
}

// wsClientConn adapts a websocket connection to bridge.ClientConn.
type wsClientConn struct {
	ws *websocket.Conn
}

func (c *wsClientConn) Receive(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	return data, err
}

func (c *wsClientConn) Send(ctx context.Context, result bridge.Result) error {
	return wsjson.Write(ctx, c.ws, result)
}
