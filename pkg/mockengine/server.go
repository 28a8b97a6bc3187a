package mockengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	"go.uber.org/zap"

	// register tcp, ipc and inproc transports
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// Server answers requests for an Engine on a REP socket.
type Server struct {
	engine   *Engine
	sock     mangos.Socket
	endpoint string
	done     chan struct{}
	once     sync.Once
}

// Listen binds endpoint and starts answering requests in the background.
// The socket is listening when Listen returns.
func (e *Engine) Listen(endpoint string) (*Server, error) {
	sock, err := rep.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to open rep socket: %w", err)
	}
	if err := sock.Listen(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", endpoint, err)
	}

	s := &Server{engine: e, sock: sock, endpoint: endpoint, done: make(chan struct{})}
	go s.loop()
	e.logger.Info("mock engine listening", zap.String("endpoint", endpoint))
	return s, nil
}

// Serve listens on endpoint and blocks until ctx is done.
func (e *Engine) Serve(ctx context.Context, endpoint string) error {
	s, err := e.Listen(endpoint)
	if err != nil {
		return err
	}
	<-ctx.Done()
	return s.Close()
}

// Endpoint returns the bound address.
func (s *Server) Endpoint() string { return s.endpoint }

// Close stops the server and waits for the receive loop to exit.
func (s *Server) Close() error {
	var err error
	s.once.Do(func() {
		err = s.sock.Close()
		<-s.done
		s.engine.logger.Info("mock engine stopped", zap.String("endpoint", s.endpoint))
	})
	return err
}

func (s *Server) loop() {
	defer close(s.done)
	for {
		msg, err := s.sock.Recv()
		if err != nil {
			if !errors.Is(err, mangos.ErrClosed) {
				s.engine.logger.Warn("receive failed", zap.Error(err))
			}
			return
		}
		if err := s.sock.Send(s.engine.Handle(msg)); err != nil {
			if errors.Is(err, mangos.ErrClosed) {
				return
			}
			s.engine.logger.Warn("send failed", zap.Error(err))
		}
	}
}
