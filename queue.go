// Package netemu defines the packet and queue contracts shared by all link
// emulation components.
//
// A Queue models the buffer of an emulated link. Implementations decide which
// packets they admit, in which order they release them and which packets they
// evict. The simulation driver only depends on the Queue interface and obtains
// instances through a QueueFactory, so queue policies can be swapped without
// changing the driver.
//
// Queues are not safe for concurrent use. A driver owning a queue must
// serialize all calls.
package netemu

import "time"

// DefaultMaxCapacity is the number of packets a new queue admits unless
// configured otherwise.
const DefaultMaxCapacity = 10_000

// Queue is the contract every queue policy implements.
type Queue interface {
	// SetMaxCapacity sets the maximum number of packets the queue admits.
	// Packets already in the queue are never removed because of a capacity
	// change, a smaller capacity only blocks further admissions until the
	// queue drained below it.
	SetMaxCapacity(n int)

	// EnqueuePacket appends p to the tail of the queue and returns true if
	// the queue admits it. If it returns false, the queue did not store p
	// anywhere.
	EnqueuePacket(p Packet) bool

	// PeekNextPacket returns the packet at the head of the queue without
	// removing it. The boolean is false if the queue is empty.
	PeekNextPacket() (Packet, bool)

	// DequeuePacket removes and returns the packet at the head of the queue
	// if it can be delivered at now. The boolean is false if the queue is
	// empty or the head is not yet deliverable. Policies which do not
	// schedule deliveries ignore now.
	DequeuePacket(now time.Time) (Packet, bool)

	// DequeueDroppedPackets returns all packets the queue evicted since the
	// last call in eviction order and forgets them.
	DequeueDroppedPackets() []Packet

	// Empty reports whether the queue holds no packets. Dropped packets that
	// were not yet collected do not count.
	Empty() bool
}

// Evicter is implemented by queues which allow the driver to evict packets
// explicitly.
type Evicter interface {
	// DropOldestPacket moves the packet at the head of the queue to the
	// dropped packets. It does nothing if the queue is empty.
	DropOldestPacket()
}

// QueueFactory creates independent queues.
type QueueFactory interface {
	CreateQueue() Queue
}

// QueueFactoryFunc adapts a function to the QueueFactory interface.
type QueueFactoryFunc func() Queue

// CreateQueue implements QueueFactory.
func (f QueueFactoryFunc) CreateQueue() Queue {
	return f()
}
