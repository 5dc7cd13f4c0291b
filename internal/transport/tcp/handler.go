package tcp

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/utils"
)

const ledgerTimeout = 2 * time.Second

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Secret          *auth.Secret
	Store           store.SessionStore
	Logger          *zerolog.Logger
	QueueSize       int
	WriteTimeout    time.Duration
	MaxLine         int
	CommandInterval time.Duration
}

// Handler runs the chat protocol for one connection at a time. It is safe to
// call ServeConn from many goroutines.
type Handler struct {
	registry *core.Registry
	secret   *auth.Secret
	store    store.SessionStore
	log      *zerolog.Logger

	queueSize    int
	writeTimeout time.Duration
	maxLine      int
	interval     time.Duration
}

// NewHandler builds a handler over registry.
func NewHandler(registry *core.Registry, opts HandlerOptions) *Handler {
	if opts.Store == nil {
		opts.Store = store.Nop{}
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	return &Handler{
		registry:     registry,
		secret:       opts.Secret,
		store:        opts.Store,
		log:          opts.Logger,
		queueSize:    opts.QueueSize,
		writeTimeout: opts.WriteTimeout,
		maxLine:      opts.MaxLine,
		interval:     opts.CommandInterval,
	}
}

type state int

const (
	stateConnected state = iota
	stateAuthenticating
	stateNaming
	stateActive
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateConnected:
		return "connected"
	case stateAuthenticating:
		return "authenticating"
	case stateNaming:
		return "name_negotiation"
	case stateActive:
		return "active"
	default:
		return "closed"
	}
}

// conversation is the per-connection state the handler steps through.
type conversation struct {
	h      *Handler
	sess   *core.Session
	lines  *proto.LineReader
	log    zerolog.Logger
	name   string
	reason store.LeaveReason
}

// ServeConn drives conn through authentication, name negotiation and the
// command loop, then releases it. It returns when the connection is closed.
func (h *Handler) ServeConn(ctx context.Context, conn net.Conn) {
	id := utils.NewID()
	logger := h.log.With().Str("conn_id", id).Str("remote", remoteAddr(conn)).Logger()

	sess := core.NewSession(id, conn, core.SessionOptions{
		QueueSize:    h.queueSize,
		WriteTimeout: h.writeTimeout,
		Logger:       &logger,
	})
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	c := &conversation{
		h:      h,
		sess:   sess,
		lines:  proto.NewLineReader(conn, h.maxLine),
		log:    logger,
		reason: store.LeaveReasonDisconnect,
	}

	logger.Debug().Msg("connection accepted")
	for st := stateConnected; st != stateClosed; {
		next := c.step(st)
		if next != st {
			logger.Debug().Stringer("from", st).Stringer("to", next).Msg("state change")
		}
		st = next
	}
	c.close(ctx)
}

func (c *conversation) step(st state) state {
	switch st {
	case stateConnected:
		c.sess.Send(proto.AuthChallenge())
		return stateAuthenticating
	case stateAuthenticating:
		return c.authenticate()
	case stateNaming:
		return c.negotiateName()
	case stateActive:
		return c.dispatch()
	default:
		return stateClosed
	}
}

func (c *conversation) authenticate() state {
	line, err := c.readLine()
	if err != nil {
		return stateClosed
	}
	c.h.registry.Count(nil, core.CommandAuth)

	msg, err := proto.Decode(line)
	if err != nil || msg.Tag != proto.TagAuth {
		c.log.Info().Str("tag", msg.Raw).Msg("expected auth response")
		return stateClosed
	}
	if !c.h.secret.Accepts(msg.Payload) {
		c.log.Info().Msg("authentication failed")
		return stateClosed
	}

	c.sess.Send(proto.OK())
	return stateNaming
}

func (c *conversation) negotiateName() state {
	c.sess.Send(proto.Who())

	line, err := c.readLine()
	if err != nil {
		return stateClosed
	}
	msg, err := proto.Decode(line)
	if err != nil || msg.Tag != proto.TagName {
		c.log.Info().Str("tag", msg.Raw).Msg("expected name proposal")
		return stateClosed
	}
	c.h.registry.Count(nil, core.CommandName)

	name := proto.Sanitize(msg.Payload)
	if err := c.h.registry.Join(c.sess, name, proto.OK()); err != nil {
		c.log.Debug().Str("name", name).Str("code", core.Code(err)).Msg("name rejected")
		c.sess.Send(proto.NameTaken())
		return stateNaming
	}

	c.name = name
	c.log = c.log.With().Str("name", name).Logger()
	c.log.Info().Msg("session entered")
	c.recordJoin()
	return stateActive
}

func (c *conversation) dispatch() state {
	line, err := c.readLine()
	if err != nil {
		return stateClosed
	}
	msg, err := proto.Decode(line)
	if err != nil {
		return stateActive
	}
	reg := c.h.registry
	payload := proto.Sanitize(msg.Payload)

	switch msg.Tag {
	case proto.TagSay:
		err = reg.Say(c.sess, payload)
	case proto.TagKick:
		var kicked bool
		kicked, err = reg.Kick(c.sess, payload)
		if kicked {
			c.log.Info().Str("target", payload).Msg("session kicked")
		}
	case proto.TagList:
		err = reg.List(c.sess)
	case proto.TagLeave:
		if payload != "" {
			break
		}
		if err = reg.Record(c.sess, core.CommandLeave); err == nil {
			c.reason = store.LeaveReasonLeave
			return stateClosed
		}
	default:
		c.log.Debug().Str("tag", msg.Raw).Msg("ignoring unknown command")
	}
	if errors.Is(err, core.ErrNotRegistered) {
		// Kicked while this line was in flight.
		return stateClosed
	}

	if c.h.interval > 0 {
		time.Sleep(c.h.interval)
	}
	return stateActive
}

func (c *conversation) readLine() (string, error) {
	line, err := c.lines.ReadLine()
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		c.log.Debug().Err(err).Msg("read from peer failed")
	}
	return line, err
}

// close runs once per connection. A named session is removed and its
// departure announced only if nobody else removed it first.
func (c *conversation) close(ctx context.Context) {
	if c.name != "" {
		if !c.h.registry.Leave(c.name) {
			c.reason = store.LeaveReasonKicked
		}
		c.log.Info().Str("reason", string(c.reason)).Msg("session left")
		c.recordLeave(ctx)
	}

	c.sess.Close()
	<-c.sess.Done()
}

func (c *conversation) recordJoin() {
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()

	rec := store.SessionRecord{
		ID:       c.sess.ID,
		Name:     c.name,
		Remote:   c.sess.RemoteAddr(),
		JoinedAt: time.Now(),
	}
	if err := c.h.store.RecordJoin(ctx, rec); err != nil {
		c.log.Warn().Err(err).Msg("failed to record join")
	}
}

func (c *conversation) recordLeave(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()

	counts := c.h.registry.CountsOf(c.sess)
	err := c.h.store.RecordLeave(ctx, c.sess.ID, c.reason, store.SessionCounts{
		Say:  counts.Say,
		Kick: counts.Kick,
		List: counts.List,
	}, time.Now())
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to record leave")
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
