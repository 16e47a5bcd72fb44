package sim

import (
	"testing"

	"presence-room/internal/net/proto"
	"presence-room/internal/telemetry"
)

func TestCommandBufferFIFOAndOverflow(t *testing.T) {
	buffer := NewCommandBuffer(3, nil)
	cmds := []Command{
		{ActorID: "a"},
		{ActorID: "b"},
		{ActorID: "c"},
	}
	for _, cmd := range cmds {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed for %+v", cmd)
		}
	}
	if buffer.Push(Command{ActorID: "overflow"}) {
		t.Fatalf("expected push to fail when buffer full")
	}
	drained := buffer.Drain()
	if len(drained) != len(cmds) {
		t.Fatalf("expected %d commands, got %d", len(cmds), len(drained))
	}
	for i, cmd := range drained {
		if cmd.ActorID != cmds[i].ActorID {
			t.Fatalf("expected drain order %v, got %v", cmds[i].ActorID, cmd.ActorID)
		}
	}
	for _, cmd := range []Command{{ActorID: "d"}, {ActorID: "e"}} {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed after drain for %+v", cmd)
		}
	}
	wrapped := buffer.Drain()
	if len(wrapped) != 2 || wrapped[0].ActorID != "d" || wrapped[1].ActorID != "e" {
		t.Fatalf("unexpected order after refill: %+v", wrapped)
	}
	if buffer.Drain() != nil {
		t.Fatalf("expected empty drain to return nil")
	}
}

func TestCommandBufferMetrics(t *testing.T) {
	counters := telemetry.NewCounters()
	buffer := NewCommandBuffer(1, counters)
	if !buffer.Push(Command{ActorID: "one"}) {
		t.Fatalf("expected initial push to succeed")
	}
	if got := counters.Get(inboxOccupancyMetricKey); got != 1 {
		t.Fatalf("expected occupancy 1, got %d", got)
	}
	if buffer.Push(Command{ActorID: "two"}) {
		t.Fatalf("expected push to fail when capacity exceeded")
	}
	if got := counters.Get(inboxOverflowMetricKey); got != 1 {
		t.Fatalf("expected overflow count 1, got %d", got)
	}
	buffer.Drain()
	if got := counters.Get(inboxOccupancyMetricKey); got != 0 {
		t.Fatalf("expected occupancy 0 after drain, got %d", got)
	}
	if got := counters.Get(inboxHighWaterMetricKey); got != 1 {
		t.Fatalf("expected high water 1, got %d", got)
	}
	if buffer.Dropped() != 1 || buffer.HighWater() != 1 {
		t.Fatalf("expected 1 drop and high water 1, got %d and %d", buffer.Dropped(), buffer.HighWater())
	}
}

func TestCommandBufferReusesSlotsAfterDrain(t *testing.T) {
	buffer := NewCommandBuffer(4, nil)
	for _, id := range []string{"a", "b", "c"} {
		buffer.Push(Command{ActorID: id})
	}
	buffer.Drain()
	for _, id := range []string{"d", "e", "f", "g"} {
		if !buffer.Push(Command{ActorID: id}) {
			t.Fatalf("expected push of %s to succeed", id)
		}
	}
	got := buffer.Drain()
	if len(got) != 4 {
		t.Fatalf("expected 4 commands, got %d", len(got))
	}
	for i, id := range []string{"d", "e", "f", "g"} {
		if got[i].ActorID != id {
			t.Fatalf("expected %s at %d, got %s", id, i, got[i].ActorID)
		}
	}
	if buffer.Len() != 0 || buffer.Capacity() != 4 {
		t.Fatalf("expected empty buffer of 4, got len %d cap %d", buffer.Len(), buffer.Capacity())
	}
}

func TestCommandFromEvent(t *testing.T) {
	for _, tc := range []struct {
		event proto.Event
		want  CommandType
		actor string
	}{
		{event: proto.MemberJoined{ID: "p1"}, want: CommandMemberJoined, actor: "p1"},
		{event: proto.MemberLeft{ID: "p2"}, want: CommandMemberLeft, actor: "p2"},
		{event: proto.MoveToTarget{PlayerID: "p3"}, want: CommandRemoteMove, actor: "p3"},
		{event: proto.PlayerStopped{PlayerID: "p4"}, want: CommandRemoteStop, actor: "p4"},
		{event: proto.PositionSync{PlayerID: "p5"}, want: CommandRemoteSync, actor: "p5"},
	} {
		t.Run(string(tc.want), func(t *testing.T) {
			cmd, ok := CommandFromEvent(tc.event, testEpoch)
			if !ok {
				t.Fatalf("expected %T to map to a command", tc.event)
			}
			if cmd.Type != tc.want || cmd.ActorID != tc.actor {
				t.Fatalf("expected %s for %s, got %s for %s", tc.want, tc.actor, cmd.Type, cmd.ActorID)
			}
		})
	}
	if _, ok := CommandFromEvent(nil, testEpoch); ok {
		t.Fatalf("expected nil event to be rejected")
	}
}
