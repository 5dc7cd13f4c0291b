package http

import (
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/transport/tcp"
)

// WSHandler upgrades HTTP connections and runs the line protocol over them.
// Each text message written by the server carries one line; inbound messages
// are read as a continuous byte stream, so peers must terminate their lines.
type WSHandler struct {
	handler *tcp.Handler
	maxLine int
	log     *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(handler *tcp.Handler, maxLine int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{handler: handler, maxLine: maxLine, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.maxLine > 0 {
		conn.SetReadLimit(int64(h.maxLine) + 1)
	}

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("ws session bridged")
	h.handler.ServeConn(ctx, websocket.NetConn(ctx, conn, websocket.MessageText))
}
