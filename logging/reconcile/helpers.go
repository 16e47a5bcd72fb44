package reconcile

import (
	"context"

	"presence-room/logging"
)

const (
	// EventUnknownPlayer is emitted when an event names a player that is not in the roster.
	EventUnknownPlayer logging.EventType = "reconcile.unknown_player"
	// EventStale is emitted when an event is older than the last one applied for that player.
	EventStale logging.EventType = "reconcile.stale"
	// EventDuplicateMove is emitted when a move intent repeats the last applied one.
	EventDuplicateMove logging.EventType = "reconcile.duplicate_move"
	// EventRemoteMove is emitted when a remote path is recomputed.
	EventRemoteMove logging.EventType = "reconcile.remote_move"
	// EventFallback is emitted when a remote move falls back to dead reckoning.
	EventFallback logging.EventType = "reconcile.fallback"
	// EventStopDeferred is emitted when a stop retargets an in-flight path.
	EventStopDeferred logging.EventType = "reconcile.stop_deferred"
	// EventStopCorrected is emitted when a deferred stop forces the final position.
	EventStopCorrected logging.EventType = "reconcile.stop_corrected"
	// EventSyncDiscarded is emitted when a position sync arrives mid-path.
	EventSyncDiscarded logging.EventType = "reconcile.sync_discarded"
)

// EventPayload names the inbound event being reconciled.
type EventPayload struct {
	Event     string `json:"event"`
	Timestamp int64  `json:"timestamp"`
}

// MovePayload describes a recomputed remote path.
type MovePayload struct {
	Timestamp int64 `json:"timestamp"`
	Waypoints int   `json:"waypoints"`
}

// CorrectionPayload measures how far a correction moved a player.
type CorrectionPayload struct {
	Drift float64 `json:"drift"`
}

// UnknownPlayer publishes a warning for an event that names no known player.
func UnknownPlayer(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EventPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUnknownPlayer,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryMovement,
		Payload:  payload,
		Extra:    extra,
	})
}

// Stale publishes a debug event for an out-of-order event.
func Stale(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EventPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStale,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryMovement,
		Payload:  payload,
		Extra:    extra,
	})
}

// DuplicateMove publishes a debug event for a redelivered move.
func DuplicateMove(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EventPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDuplicateMove,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryMovement,
		Payload:  payload,
		Extra:    extra,
	})
}

// RemoteMove publishes a debug event for a recomputed remote path.
func RemoteMove(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MovePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRemoteMove,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryMovement,
		Payload:  payload,
		Extra:    extra,
	})
}

// Fallback publishes a warning when a remote move has to dead reckon.
func Fallback(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MovePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFallback,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryMovement,
		Payload:  payload,
		Extra:    extra,
	})
}

// StopDeferred publishes a debug event when a stop waits for the local walk.
func StopDeferred(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EventPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStopDeferred,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryMovement,
		Payload:  payload,
		Extra:    extra,
	})
}

// StopCorrected publishes an info event when a deferred stop is forced.
func StopCorrected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CorrectionPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStopCorrected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMovement,
		Payload:  payload,
		Extra:    extra,
	})
}

// SyncDiscarded publishes a debug event when a sync loses to an active path.
func SyncDiscarded(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EventPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSyncDiscarded,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryMovement,
		Payload:  payload,
		Extra:    extra,
	})
}
