package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/transport/tcp"
)

const (
	// DefaultLeaveGrace lets an outbound LEAVE reach the server before exit.
	DefaultLeaveGrace = 300 * time.Millisecond

	leavePrefix  = "*"
	leaveCommand = "*LEAVE:"
)

// Options configures a Client.
type Options struct {
	Name       string
	Credential string
	Terminal   io.Reader
	Output     io.Writer
	LeaveGrace time.Duration
	MaxLine    int
	Logger     *zerolog.Logger
}

// Client drives one chat session from a terminal. It owns its connection.
type Client struct {
	conn     net.Conn
	lines    *proto.LineReader
	identity *Identity

	terminal io.Reader
	out      io.Writer
	grace    time.Duration
	maxLine  int
	log      *zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to a chat server.
func Dial(ctx context.Context, host string, port int) (net.Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCommunications, &tcp.CommunicationsError{Op: "dial", Addr: addr, Err: err})
	}
	return conn, nil
}

// New wraps an established connection.
func New(conn net.Conn, opts Options) *Client {
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.LeaveGrace <= 0 {
		opts.LeaveGrace = DefaultLeaveGrace
	}
	return &Client{
		conn:     conn,
		lines:    proto.NewLineReader(conn, opts.MaxLine),
		identity: NewIdentity(opts.Name, opts.Credential),
		terminal: opts.Terminal,
		out:      opts.Output,
		grace:    opts.LeaveGrace,
		maxLine:  opts.MaxLine,
		log:      opts.Logger,
		closed:   make(chan struct{}),
	}
}

// Identity exposes the handshake state.
func (c *Client) Identity() *Identity {
	return c.identity
}

// Run runs the server and terminal loops until one of them finishes and
// returns its outcome: nil for a normal exit, otherwise an error wrapping
// ErrKicked, ErrAuthentication or ErrCommunications. Cancelling ctx ends the
// session normally. The connection is closed before Run returns.
func (c *Client) Run(ctx context.Context) error {
	defer c.close()

	serverErr := make(chan error, 1)
	terminalErr := make(chan error, 1)
	go func() {
		serverErr <- c.serverLoop()
	}()
	go func() {
		terminalErr <- c.terminalLoop(ctx)
	}()

	// A terminal read cannot be interrupted, so only the server loop is
	// waited for; it ends once the connection is closed.
	var err error
	select {
	case err = <-serverErr:
		return err
	case err = <-terminalErr:
	case <-ctx.Done():
	}
	c.close()
	<-serverErr
	return err
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.identity.Close()
		_ = c.conn.Close()
	})
}

// transition handles one decoded server line.
type transition func(c *Client, msg proto.Message) error

var transitions = map[proto.Tag]transition{
	proto.TagAuth:      (*Client).onAuth,
	proto.TagWho:       (*Client).onWho,
	proto.TagNameTaken: (*Client).onNameTaken,
	proto.TagOK:        (*Client).onOK,
	proto.TagEnter:     (*Client).onNotice,
	proto.TagLeave:     (*Client).onNotice,
	proto.TagMsg:       (*Client).onNotice,
	proto.TagList:      (*Client).onNotice,
	proto.TagKick:      (*Client).onKick,
}

func (c *Client) serverLoop() error {
	for {
		line, err := c.lines.ReadLine()
		if err != nil {
			if c.identity.AwaitingVerdict() {
				return ErrAuthentication
			}
			if c.identity.Leaving() {
				return nil
			}
			return commsError("read", err)
		}

		msg, err := proto.Decode(line)
		if err != nil {
			continue
		}
		step, ok := transitions[msg.Tag]
		if !ok {
			c.log.Debug().Str("tag", msg.Raw).Msg("ignoring server line")
			continue
		}
		if err := step(c, msg); err != nil {
			return err
		}
	}
}

func (c *Client) onAuth(proto.Message) error {
	if c.identity.Active() {
		return nil
	}
	c.identity.CredentialSent()
	return c.send(proto.AuthResponse(c.identity.Credential()))
}

func (c *Client) onWho(proto.Message) error {
	if c.identity.Progress() != 1 {
		return nil
	}
	return c.send(proto.Name(c.identity.DisplayName()))
}

func (c *Client) onNameTaken(proto.Message) error {
	if c.identity.Progress() == 1 {
		c.identity.NameTaken()
		c.log.Debug().Str("next", c.identity.DisplayName()).Msg("name taken")
	}
	return nil
}

func (c *Client) onOK(proto.Message) error {
	if p := c.identity.Ack(); p == progressActive {
		c.log.Debug().Str("name", c.identity.DisplayName()).Msg("session active")
	}
	return nil
}

func (c *Client) onNotice(msg proto.Message) error {
	if !c.identity.Active() {
		return nil
	}
	if text, ok := Render(msg); ok {
		_, _ = fmt.Fprintln(c.out, text)
	}
	return nil
}

func (c *Client) onKick(proto.Message) error {
	return ErrKicked
}

func (c *Client) terminalLoop(ctx context.Context) error {
	if c.terminal == nil || !c.identity.WaitActive() {
		return nil
	}

	input := proto.NewLineReader(c.terminal, c.maxLine)
	for {
		line, err := input.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Debug().Err(err).Msg("terminal read failed")
			}
			return nil
		}

		if cmd, ok := strings.CutPrefix(line, leavePrefix); ok {
			if line == leaveCommand {
				c.identity.Leave()
			}
			if err := c.send(cmd + "\n"); err != nil {
				return err
			}
			if line == leaveCommand {
				c.pause(ctx)
				return nil
			}
			continue
		}
		if err := c.send(proto.Say(line)); err != nil {
			return err
		}
	}
}

func (c *Client) pause(ctx context.Context) {
	t := time.NewTimer(c.grace)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-c.closed:
	}
}

func (c *Client) send(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := io.WriteString(c.conn, line); err != nil {
		return commsError("write", err)
	}
	return nil
}
