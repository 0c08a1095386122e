package queue

import (
	"time"

	"github.com/mengelbart/netemu"
)

// LeakyBucket is a FIFO queue bounded by a packet count.
//
// A full LeakyBucket rejects new packets, it never evicts on its own.
// Evictions only happen through DropOldestPacket, which moves the head of the
// queue to the dropped packets.
type LeakyBucket struct {
	maxCapacity int
	live        fifo
	dropped     fifo
}

// NewLeakyBucket returns an empty LeakyBucket admitting at most capacity
// packets.
func NewLeakyBucket(capacity int) *LeakyBucket {
	q := &LeakyBucket{}
	q.SetMaxCapacity(capacity)
	return q
}

// SetMaxCapacity implements netemu.Queue.
func (q *LeakyBucket) SetMaxCapacity(n int) {
	q.maxCapacity = max(n, 0)
}

// MaxCapacity returns the current admission bound.
func (q *LeakyBucket) MaxCapacity() int {
	return q.maxCapacity
}

// Len returns the number of packets in the queue.
func (q *LeakyBucket) Len() int {
	return q.live.size()
}

// EnqueuePacket implements netemu.Queue.
func (q *LeakyBucket) EnqueuePacket(p netemu.Packet) bool {
	if q.live.size() >= q.maxCapacity {
		return false
	}
	q.live.push(p)
	return true
}

// PeekNextPacket implements netemu.Queue.
func (q *LeakyBucket) PeekNextPacket() (netemu.Packet, bool) {
	return q.live.front()
}

// DequeuePacket implements netemu.Queue. LeakyBucket does not schedule
// deliveries, now is ignored.
func (q *LeakyBucket) DequeuePacket(_ time.Time) (netemu.Packet, bool) {
	return q.live.pop()
}

// DropOldestPacket implements netemu.Evicter.
func (q *LeakyBucket) DropOldestPacket() {
	if p, ok := q.live.pop(); ok {
		q.dropped.push(p)
	}
}

// DequeueDroppedPackets implements netemu.Queue.
func (q *LeakyBucket) DequeueDroppedPackets() []netemu.Packet {
	return q.dropped.drain()
}

// Empty implements netemu.Queue.
func (q *LeakyBucket) Empty() bool {
	return q.live.size() == 0
}
