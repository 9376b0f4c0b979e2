package services

import (
	"context"
	"encoding/json"

	"github.com/Akitash/opentogethertube/internal/core/domain"
	"github.com/Akitash/opentogethertube/pkg/retry"
)

// publishJSON marshals msg and publishes it to channel over the bus,
// wrapped in the circuit breaker + retry policy since the bus is the one
// genuinely flaky dependency a Room has.
func (r *Room) publishJSON(ctx context.Context, channel string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Errorw("failed to marshal bus message", "channel", channel, "error", err)
		return
	}
	err = r.busBreaker.Execute(ctx, func() error {
		return retry.Retry(ctx, r.busRetry, func() error {
			return r.bus.Publish(ctx, channel, payload)
		})
	})
	if err != nil {
		r.logger.Warnw("failed to publish to bus", "channel", channel, "error", err)
	}
}

// publishEvent publishes the literal {action: "event", request, user,
// additional?} notification spec'd for a completed state-changing request
// (spec §6), so every node's gateway can relay it to its locally-joined
// clients and a client can later echo request.kind/request.clientId back
// as an UndoRequest's Prior (domain.Event).
func (r *Room) publishEvent(ctx context.Context, req domain.Request, clientID domain.ClientID, additional any) {
	msg := map[string]any{
		"action": "event",
		"request": map[string]any{
			"kind":     requestKind(req),
			"clientId": clientID,
		},
		"user": userInfoForWire(r.state.FindUser(clientID)),
	}
	if additional != nil {
		msg["additional"] = additional
	}
	r.publishJSON(ctx, channelForRoom(r.state.Name), msg)
}
