package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/peercall/internal/app/orch"
	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Options tune a single WebSocket signaling connection.
type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int

	// RateLimit of 0 disables inbound rate limiting.
	RateLimit rate.Limit
	Burst     int

	AllowedOrigin string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ReadLimit:     cfg.ReadLimit,
		PingPeriod:    cfg.PingPeriod,
		PongWait:      cfg.PongWait,
		WriteWait:     cfg.WriteWait,
		SendBuffer:    cfg.SendBuffer,
		RateLimit:     rate.Limit(cfg.MaxMessagesPerSecond),
		Burst:         cfg.MessageBurst,
		AllowedOrigin: cfg.CORSOrigin,
	}
}

type SignalWSController struct {
	Orch *orch.Orchestrator
	opts Options

	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	ctl := &SignalWSController{Orch: o, opts: opts}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	if ctl.opts.AllowedOrigin == "" || ctl.opts.AllowedOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == ctl.opts.AllowedOrigin
}

// WsSignalConn is the outbound side of one WebSocket. Frames are queued
// without blocking and written by writePump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and serves the connection until either
// side closes it or ctx ends.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	client := c.GetString("client_token")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("client", client).Msg("ws upgrade")
		return
	}

	id := domain.NewConnID()
	log.Info().Str("module", "signal").Str("sid", string(id)).Str("client", client).Msg("new WS connection")

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	ctx, cancel := context.WithCancel(ctx)
	kill := func() {
		cancel()
		conn.Close()
	}
	ctl.Orch.Connect(id, conn, kill, client)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, id, conn, kill)
}

func (ctl *SignalWSController) newLimiter() *rate.Limiter {
	if ctl.opts.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := ctl.opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(ctl.opts.RateLimit, burst)
}
