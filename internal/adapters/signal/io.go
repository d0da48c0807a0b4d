package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

// readPump owns the connection lifecycle: when it returns, the connection is
// disconnected from the coordinator exactly once.
func (ctl *SignalWSController) readPump(ctx context.Context, id domain.ConnID, c *WsSignalConn, kill func()) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(id)).Msg("readPump closing")
		ctl.Orch.Disconnect(id)
		kill()
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	limiter := ctl.newLimiter()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(id)).Msg("readPump read error")
				}
				return
			}
			if !limiter.Allow() {
				ctl.Orch.Metrics.Dropped(metrics.DropRateLimited)
				ctl.replyError(id, codeRateLimited, "too many messages")
				continue
			}
			ctl.handleMessage(id, data)
		}
	}
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (ctl *SignalWSController) handleMessage(id domain.ConnID, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("sid", string(id)).Interface("panic", r).Msg("handler panic")
		}
	}()

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(id)).Msg("bad json")
		ctl.Orch.Metrics.Dropped(metrics.DropBadPayload)
		ctl.replyError(id, codeBadPayload, "malformed envelope")
		return
	}

	var err error
	switch env.Type {
	case "register":
		err = ctl.handleRegister(id, env.Data)
	case "get-users":
		err = ctl.handleGetUsers(id, env.Data)
	case "signal":
		err = ctl.handleRelaySignal(id, env.Data)
	case "call-user":
		err = ctl.handleCallUser(id, env.Data)
	case "answer-call":
		err = ctl.handleAnswerCall(id, env.Data)
	case "reject-call":
		err = ctl.handleRejectCall(id, env.Data)
	case "hang-up":
		err = ctl.handleHangUp(id, env.Data)
	case "ping":
		err = ctl.handlePing(id)
	default:
		log.Warn().Str("module", "signal").Str("sid", string(id)).Str("type", env.Type).Msg("unknown signal")
		ctl.Orch.Metrics.Inbound("unknown")
		ctl.replyError(id, codeUnknownEvent, "unknown event "+env.Type)
		return
	}
	ctl.Orch.Metrics.Inbound(env.Type)
	if err != nil {
		ctl.replyFailure(id, env.Type, err)
	}
}

func (ctl *SignalWSController) reply(id domain.ConnID, ev core.Event) {
	if err := ctl.Orch.Sessions.Send(id, ev); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(id)).Str("event", ev.Type).Msg("reply not sent")
	}
}
