package netemu

import (
	"cmp"
	"fmt"
	"time"
)

// A Packet describes one packet currently traversing an emulated link.
//
// Packets are values and must not be modified after they were handed to a
// Queue. Two packets are the same packet if their IDs are equal, regardless
// of their size or send time.
type Packet struct {
	// ID identifies the packet. IDs must be unique within a simulation run,
	// queues do not enforce this.
	ID uint64

	// Size is the size of the packet in bytes.
	Size int

	// SendTime is the time at which the packet was handed to the link.
	SendTime time.Time
}

// Same reports whether p and o refer to the same packet.
func (p Packet) Same(o Packet) bool {
	return p.ID == o.ID
}

// Compare orders packets by ID.
func (p Packet) Compare(o Packet) int {
	return cmp.Compare(p.ID, o.ID)
}

func (p Packet) String() string {
	return fmt.Sprintf("id=%v, size=%v, send-time=%v", p.ID, p.Size, p.SendTime.Format(time.RFC3339Nano))
}
