package core

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultOutboundQueue is the number of lines buffered per session.
	DefaultOutboundQueue = 32
	// DefaultWriteTimeout bounds a single line write to a peer.
	DefaultWriteTimeout = 5 * time.Second
)

// SessionOptions tunes the outbound side of a session.
type SessionOptions struct {
	QueueSize    int
	WriteTimeout time.Duration
	Logger       *zerolog.Logger
}

// Session is one connection as seen by the core layer. Lines are written by a
// dedicated goroutine so that senders never block on the network.
type Session struct {
	ID string

	conn         net.Conn
	writeTimeout time.Duration
	log          zerolog.Logger

	// name and counts are guarded by the owning Registry's lock.
	name   string
	counts SessionCounts

	mu     sync.Mutex
	closed bool
	out    chan string
	done   chan struct{}
}

// NewSession wraps conn and starts its writer.
func NewSession(id string, conn net.Conn, opts SessionOptions) *Session {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultOutboundQueue
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("conn_id", id).Logger()
	}

	s := &Session{
		ID:           id,
		conn:         conn,
		writeTimeout: opts.WriteTimeout,
		log:          logger,
		out:          make(chan string, opts.QueueSize),
		done:         make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Send queues a line for delivery. It never blocks: a closed session or a
// full queue drops the line and returns false.
func (s *Session) Send(line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.out <- line:
		return true
	default:
		s.log.Warn().Msg("outbound queue full, dropping line")
		return false
	}
}

// Close stops accepting lines. Lines already queued are flushed before the
// connection is closed. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

// Final queues line as the last one and closes the session. A full queue
// gives up its oldest pending line to make room, so line is never dropped
// while the connection can still take it.
func (s *Session) Final(line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	for {
		select {
		case s.out <- line:
			s.closed = true
			close(s.out)
			return true
		default:
		}
		select {
		case <-s.out:
			s.log.Warn().Msg("outbound queue full, discarding oldest line")
		default:
		}
	}
}

// Done is closed once the writer has exited and the connection is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// RemoteAddr reports the peer address, or "" if unknown.
func (s *Session) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (s *Session) writeLoop() {
	defer close(s.done)
	defer s.conn.Close()

	for line := range s.out {
		if s.writeTimeout > 0 {
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}
		if _, err := io.WriteString(s.conn, line); err != nil {
			s.log.Debug().Err(err).Msg("write to peer failed")
			return
		}
	}
}
