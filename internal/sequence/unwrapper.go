// Package sequence unwraps 16 bit RTP sequence numbers into monotonic 64 bit
// counters.
package sequence

const (
	maxSequenceNumberPlusOne = int64(65536)
	breakpoint               = 32768 // half of max uint16
)

// Unwrapper turns wrapping uint16 sequence numbers into int64 values that
// keep increasing across wrap arounds. The zero value is ready to use.
type Unwrapper struct {
	init          bool
	lastUnwrapped int64
}

func (u *Unwrapper) Unwrap(i uint16) int64 {
	if !u.init {
		u.init = true
		u.lastUnwrapped = int64(i)
		return u.lastUnwrapped
	}

	lastWrapped := uint16(u.lastUnwrapped)
	delta := int64(i - lastWrapped)
	if delta >= breakpoint {
		delta -= maxSequenceNumberPlusOne
	}

	u.lastUnwrapped += delta
	return u.lastUnwrapped
}
