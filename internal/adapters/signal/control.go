package signal

import (
	"errors"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Error codes sent in error events.
const (
	codeInvalidInput  = "invalid_input"
	codeNotRegistered = "not_registered"
	codeNoCall        = "no_call"
	codeBadPayload    = "bad_payload"
	codeRateLimited   = "rate_limited"
	codeUnknownEvent  = "unknown_event"
)

var errBadPayload = errors.New("bad payload")

func (ctl *SignalWSController) handlePing(id domain.ConnID) error {
	ctl.reply(id, core.Event{Type: core.EventPong})
	return nil
}

func (ctl *SignalWSController) replyError(id domain.ConnID, code, message string) {
	ctl.reply(id, core.Event{
		Type: core.EventError,
		Data: core.ErrorData{Code: code, Message: message},
	})
}

// replyFailure reports a failed event to its sender. Undeliverable targets and
// transport failures are only logged; the sender is not told about them.
func (ctl *SignalWSController) replyFailure(id domain.ConnID, event string, err error) {
	level := zerolog.WarnLevel
	switch {
	case errors.Is(err, errBadPayload):
		ctl.Orch.Metrics.Dropped(metrics.DropBadPayload)
		ctl.replyError(id, codeBadPayload, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		ctl.replyError(id, codeInvalidInput, err.Error())
	case errors.Is(err, domain.ErrNotRegistered):
		ctl.replyError(id, codeNotRegistered, "register first")
	case errors.Is(err, domain.ErrNoCall):
		ctl.Orch.Metrics.Dropped(metrics.DropNoCall)
		ctl.replyError(id, codeNoCall, err.Error())
	case errors.Is(err, domain.ErrUnknownTarget), errors.Is(err, domain.ErrTransport):
		level = zerolog.InfoLevel
	}
	log.WithLevel(level).Err(err).Str("module", "signal").Str("sid", string(id)).Str("event", event).Msg("event failed")
}
