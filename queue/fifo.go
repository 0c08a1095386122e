package queue

import "github.com/mengelbart/netemu"

const minFIFOSize = 16

// fifo is a growable ring buffer of packets. Push and pop are amortized O(1).
type fifo struct {
	buf  []netemu.Packet
	head int
	len  int
}

func (f *fifo) size() int {
	return f.len
}

func (f *fifo) push(p netemu.Packet) {
	if f.len == len(f.buf) {
		f.grow()
	}
	f.buf[(f.head+f.len)%len(f.buf)] = p
	f.len++
}

func (f *fifo) front() (netemu.Packet, bool) {
	if f.len == 0 {
		return netemu.Packet{}, false
	}
	return f.buf[f.head], true
}

func (f *fifo) pop() (netemu.Packet, bool) {
	if f.len == 0 {
		return netemu.Packet{}, false
	}
	p := f.buf[f.head]
	f.buf[f.head] = netemu.Packet{}
	f.head = (f.head + 1) % len(f.buf)
	f.len--
	if f.len == 0 {
		f.head = 0
	}
	return p, true
}

// drain returns all packets in order and resets the buffer.
func (f *fifo) drain() []netemu.Packet {
	out := make([]netemu.Packet, 0, f.len)
	for f.len > 0 {
		p, _ := f.pop()
		out = append(out, p)
	}
	return out
}

func (f *fifo) grow() {
	size := 2 * len(f.buf)
	if size < minFIFOSize {
		size = minFIFOSize
	}
	buf := make([]netemu.Packet, size)
	for i := range f.len {
		buf[i] = f.buf[(f.head+i)%len(f.buf)]
	}
	f.buf = buf
	f.head = 0
}
