package roster

import (
	"context"

	"presence-room/logging"
)

const (
	EventJoined        logging.EventType = "roster.joined"
	EventLeft          logging.EventType = "roster.left"
	EventWorldMismatch logging.EventType = "roster.world_mismatch"
)

type MemberPayload struct {
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
	Size  int    `json:"size"`
}

type MismatchPayload struct {
	Local  string `json:"local"`
	Remote string `json:"remote"`
}

func Joined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MemberPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPresence,
		Payload:  payload,
		Extra:    extra,
	})
}

func Left(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MemberPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventLeft,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPresence,
		Payload:  payload,
		Extra:    extra,
	})
}

// WorldMismatch warns that a member advertises a different room layout, so
// paths computed for it will not match what it walks.
func WorldMismatch(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MismatchPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventWorldMismatch,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryPresence,
		Payload:  payload,
		Extra:    extra,
	})
}
