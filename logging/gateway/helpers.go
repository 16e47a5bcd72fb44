package gateway

import (
	"context"

	"presence-room/logging"
)

const (
	// EventSubscribed is emitted once the gateway is listening on its channel.
	EventSubscribed logging.EventType = "gateway.subscribed"
	// EventUnsubscribed is emitted when the gateway releases its subscription.
	EventUnsubscribed logging.EventType = "gateway.unsubscribed"
	// EventDecodeFailed is emitted for inbound payloads that cannot be decoded.
	EventDecodeFailed logging.EventType = "gateway.decode_failed"
	// EventSendFailed is emitted when the transport rejects an outbound event.
	EventSendFailed logging.EventType = "gateway.send_failed"
	// EventSelfEcho is emitted when an inbound event claims the local player id.
	EventSelfEcho logging.EventType = "gateway.self_echo"
	// EventInboxFull is emitted when the session inbox rejects an inbound event.
	EventInboxFull logging.EventType = "gateway.inbox_full"
)

// ChannelPayload identifies a subscription.
type ChannelPayload struct {
	Channel string `json:"channel"`
	Codec   string `json:"codec,omitempty"`
}

// FailurePayload describes a failed inbound or outbound event.
type FailurePayload struct {
	Event string `json:"event"`
	Error string `json:"error,omitempty"`
}

func Subscribed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ChannelPayload) {
	emit(ctx, pub, EventSubscribed, logging.SeverityInfo, actor, payload)
}

func Unsubscribed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ChannelPayload) {
	emit(ctx, pub, EventUnsubscribed, logging.SeverityInfo, actor, payload)
}

func DecodeFailed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload FailurePayload) {
	emit(ctx, pub, EventDecodeFailed, logging.SeverityWarn, actor, payload)
}

func SendFailed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload FailurePayload) {
	emit(ctx, pub, EventSendFailed, logging.SeverityWarn, actor, payload)
}

func SelfEcho(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload FailurePayload) {
	emit(ctx, pub, EventSelfEcho, logging.SeverityDebug, actor, payload)
}

func InboxFull(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload FailurePayload) {
	emit(ctx, pub, EventInboxFull, logging.SeverityWarn, actor, payload)
}

func emit(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, actor logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
