package sim

import (
	"sync"

	"presence-room/internal/telemetry"
)

const (
	inboxOccupancyMetricKey = "sim_inbox_occupancy"
	inboxHighWaterMetricKey = "sim_inbox_high_water"
	inboxOverflowMetricKey  = "sim_inbox_overflow_total"
)

// CommandBuffer is the session inbox: a fixed-size buffer that accepts
// commands from any goroutine and is drained whole by the tick goroutine. A
// full buffer rejects new commands rather than blocking the producer.
type CommandBuffer struct {
	mu        sync.Mutex
	slots     []Command
	size      int
	highWater int
	dropped   uint64
	metrics   telemetry.Metrics
}

// NewCommandBuffer allocates a buffer holding at least one command.
func NewCommandBuffer(capacity int, metrics telemetry.Metrics) *CommandBuffer {
	return &CommandBuffer{
		slots:   make([]Command, max(capacity, 1)),
		metrics: metrics,
	}
}

// Capacity reports how many commands fit before Push starts rejecting.
func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	return len(b.slots)
}

// Push appends cmd. It reports false when the buffer is full.
func (b *CommandBuffer) Push(cmd Command) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == len(b.slots) {
		b.dropped++
		b.add(inboxOverflowMetricKey, 1)
		return false
	}
	b.slots[b.size] = cmd
	b.size++
	if b.size > b.highWater {
		b.highWater = b.size
		b.store(inboxHighWaterMetricKey, uint64(b.highWater))
	}
	b.store(inboxOccupancyMetricKey, uint64(b.size))
	return true
}

// Drain removes and returns every staged command, oldest first. An empty
// buffer yields nil.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		return nil
	}
	out := make([]Command, b.size)
	copy(out, b.slots[:b.size])
	clear(b.slots[:b.size])
	b.size = 0
	b.store(inboxOccupancyMetricKey, 0)
	return out
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Dropped reports how many pushes a full buffer rejected.
func (b *CommandBuffer) Dropped() uint64 {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// HighWater reports the largest backlog seen since construction.
func (b *CommandBuffer) HighWater() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.highWater
}

func (b *CommandBuffer) add(key string, delta uint64) {
	if b.metrics != nil {
		b.metrics.Add(key, delta)
	}
}

func (b *CommandBuffer) store(key string, value uint64) {
	if b.metrics != nil {
		b.metrics.Store(key, value)
	}
}
