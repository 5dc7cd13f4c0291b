package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// CommunicationsError reports a listen, accept or dial failure.
type CommunicationsError struct {
	Op   string // "listen", "accept", "dial"
	Addr string
	Err  error
}

func (e *CommunicationsError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *CommunicationsError) Unwrap() error { return e.Err }

// Listen binds a TCP listener on every interface. Port 0 picks an ephemeral port.
func Listen(port int) (net.Listener, error) {
	addr := net.JoinHostPort("", strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &CommunicationsError{Op: "listen", Addr: addr, Err: err}
	}
	return ln, nil
}

// Port returns the TCP port ln is bound to, or 0.
func Port(ln net.Listener) int {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Server accepts connections and hands each to the Handler on its own goroutine.
type Server struct {
	handler *Handler
	log     *zerolog.Logger
	wg      sync.WaitGroup
}

// NewServer builds a server around handler.
func NewServer(handler *Handler, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{handler: handler, log: logger}
}

// Serve accepts until ctx is done or accept fails. There is no limit on
// concurrent connections. Serve waits for in-flight handlers before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.wg.Wait()

	// Shut the listener down when the context expires.
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("accepting connections")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &CommunicationsError{Op: "accept", Addr: ln.Addr().String(), Err: err}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handler.ServeConn(ctx, conn)
		}()
	}
}
