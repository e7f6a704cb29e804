package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmaft/dmaft-server/internal/logging"
	"github.com/dmaft/dmaft-server/internal/server/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Server accepts WebSocket connections and runs one client per connection.
type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	registry   *registry.Registry
	dispatcher *Dispatcher
	maxFrame   int64
	certFile   string
	keyFile    string
	logger     logging.Logger
}

// NewServer wires the endpoint. With certFile and keyFile set the listener
// speaks TLS; without them it serves plaintext, which is only meant for
// local development.
func NewServer(addr string, certFile, keyFile string, maxFrame int64,
	reg *registry.Registry, dispatcher *Dispatcher, logger logging.Logger) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// clients are native apps, not browsers; no origin policy
			CheckOrigin: func(*http.Request) bool { return true },
		},
		registry:   reg,
		dispatcher: dispatcher,
		maxFrame:   maxFrame,
		certFile:   certFile,
		keyFile:    keyFile,
		logger:     logger.With("module", "ws"),
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/ws", s.serveWS)

	s.httpServer = &http.Server{Addr: addr, Handler: router}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.certFile != "" && s.keyFile != "" {
			s.logger.Info(ctx, "listening with TLS", "addr", s.httpServer.Addr)
			err = s.httpServer.ListenAndServeTLS(s.certFile, s.keyFile)
		} else {
			s.logger.Warn(ctx, "listening without TLS", "addr", s.httpServer.Addr)
			err = s.httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "upgrade failed", "remote", r.RemoteAddr, "error", err.Error())
		return
	}

	client := newClient(conn, s.dispatcher, s.registry, s.maxFrame, s.logger)
	s.registry.Register(client)
	s.logger.Debug(r.Context(), "client connected", "remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump(context.Background())
}
