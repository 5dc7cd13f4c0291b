package http

import (
	"context"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/transport/tcp"
)

const readHeaderTimeout = 5 * time.Second

// Options configures the admin server.
type Options struct {
	Addr     string
	Registry *core.Registry
	Store    store.SessionStore
	// Handler, when set, serves the line protocol over WebSocket at /ws.
	Handler *tcp.Handler
	MaxLine int
	// BaseContext is the parent of every request context; cancelling it ends
	// bridged WebSocket sessions.
	BaseContext context.Context
	Logger      *zerolog.Logger
}

// NewRouter builds the gin engine with all admin routes.
func NewRouter(opts Options) *gin.Engine {
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.Store == nil {
		opts.Store = store.Nop{}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(opts.Logger))

	api := NewAPIHandlers(opts.Registry, opts.Store, opts.Logger)
	router.GET("/health", api.Health)
	router.GET("/stats", api.Stats)
	router.GET("/names", api.Names)
	router.GET("/sessions", api.Sessions)
	return router
}

// NewHandler mounts the WebSocket bridge at /ws and the admin router
// everywhere else. The bridge stays outside gin so Accept can hijack the
// connection.
func NewHandler(opts Options) stdhttp.Handler {
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	mux := stdhttp.NewServeMux()
	if opts.Handler != nil {
		mux.Handle("/ws", NewWSHandler(opts.Handler, opts.MaxLine, opts.Logger))
	}
	mux.Handle("/", NewRouter(opts))
	return mux
}

// NewServer builds an HTTP server around NewHandler.
func NewServer(opts Options) *stdhttp.Server {
	srv := &stdhttp.Server{
		Addr:              opts.Addr,
		Handler:           NewHandler(opts),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	if opts.BaseContext != nil {
		base := opts.BaseContext
		srv.BaseContext = func(net.Listener) context.Context { return base }
	}
	return srv
}
