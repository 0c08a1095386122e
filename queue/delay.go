package queue

import (
	"time"

	"github.com/mengelbart/netemu"
)

// Delay is a count bounded FIFO queue which holds every packet for a fixed
// delay after its send time.
//
// Admission and eviction work like in LeakyBucket. DequeuePacket only releases
// the head of the queue once it is due, so a packet which is not yet due also
// holds back all packets behind it.
type Delay struct {
	LeakyBucket
	delay time.Duration
}

// NewDelay returns an empty Delay queue admitting at most capacity packets
// and delaying each of them by delay.
func NewDelay(capacity int, delay time.Duration) *Delay {
	q := &Delay{
		delay: max(delay, 0),
	}
	q.SetMaxCapacity(capacity)
	return q
}

// DequeuePacket implements netemu.Queue.
func (q *Delay) DequeuePacket(now time.Time) (netemu.Packet, bool) {
	next, ok := q.live.front()
	if !ok || now.Before(next.SendTime.Add(q.delay)) {
		return netemu.Packet{}, false
	}
	return q.live.pop()
}

// NextDueTime returns the time at which the head of the queue becomes
// deliverable. The boolean is false if the queue is empty.
func (q *Delay) NextDueTime() (time.Time, bool) {
	next, ok := q.live.front()
	if !ok {
		return time.Time{}, false
	}
	return next.SendTime.Add(q.delay), true
}
