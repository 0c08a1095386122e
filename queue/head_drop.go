package queue

import "github.com/mengelbart/netemu"

// HeadDrop is a count bounded FIFO queue which makes room for new packets by
// evicting the oldest one.
//
// If the queue holds more packets than its capacity because the capacity was
// reduced, new packets are rejected until the queue drained below the
// capacity, so shrinking never evicts more than one packet per admission.
type HeadDrop struct {
	LeakyBucket
}

// NewHeadDrop returns an empty HeadDrop queue admitting at most capacity
// packets.
func NewHeadDrop(capacity int) *HeadDrop {
	q := &HeadDrop{}
	q.SetMaxCapacity(capacity)
	return q
}

// EnqueuePacket implements netemu.Queue.
func (q *HeadDrop) EnqueuePacket(p netemu.Packet) bool {
	if q.maxCapacity == 0 || q.live.size() > q.maxCapacity {
		return false
	}
	if q.live.size() == q.maxCapacity {
		q.DropOldestPacket()
	}
	q.live.push(p)
	return true
}
