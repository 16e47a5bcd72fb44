package movement

import (
	"context"

	"presence-room/logging"
)

const (
	// EventMoveStarted is emitted when the local avatar starts walking a new path.
	EventMoveStarted logging.EventType = "movement.started"
	// EventMoveRejected is emitted when a requested target has no route.
	EventMoveRejected logging.EventType = "movement.rejected"
	// EventMoveCompleted is emitted when the local avatar reaches its target.
	EventMoveCompleted logging.EventType = "movement.completed"
	// EventSyncSent is emitted for each drift-correction broadcast.
	EventSyncSent logging.EventType = "movement.sync_sent"
)

// MovePayload describes a local move request.
type MovePayload struct {
	From      [3]float64 `json:"from"`
	To        [3]float64 `json:"to"`
	Waypoints int        `json:"waypoints,omitempty"`
}

// PositionPayload carries a single position.
type PositionPayload struct {
	Position [3]float64 `json:"position"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryMovement,
		Payload:  payload,
		Extra:    extra,
	})
}

// MoveStarted publishes an info event for a new local path.
func MoveStarted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MovePayload, extra map[string]any) {
	publish(ctx, pub, EventMoveStarted, logging.SeverityInfo, tick, actor, payload, extra)
}

// MoveRejected publishes a warning when no route reaches the target.
func MoveRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MovePayload, extra map[string]any) {
	publish(ctx, pub, EventMoveRejected, logging.SeverityWarn, tick, actor, payload, extra)
}

// MoveCompleted publishes an info event when the local avatar stops.
func MoveCompleted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PositionPayload, extra map[string]any) {
	publish(ctx, pub, EventMoveCompleted, logging.SeverityInfo, tick, actor, payload, extra)
}

// SyncSent publishes a debug event for a drift-correction broadcast.
func SyncSent(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PositionPayload, extra map[string]any) {
	publish(ctx, pub, EventSyncSent, logging.SeverityDebug, tick, actor, payload, extra)
}
