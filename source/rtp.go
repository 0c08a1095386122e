// Package source generates synthetic media traffic for emulated links.
package source

import (
	"errors"
	"time"

	"github.com/mengelbart/netemu"
	"github.com/mengelbart/netemu/internal/sequence"
	"github.com/pion/rtp"
	"golang.org/x/time/rate"
)

const (
	defaultPayloadSize = 1200
	defaultClockRate   = 90_000
	defaultPayloadType = 96
)

// Outgoing is a generated RTP packet together with its link representation.
type Outgoing struct {
	RTP    *rtp.Packet
	Packet netemu.Packet
}

type Option func(*RTP) error

func PayloadSize(n int) Option {
	return func(r *RTP) error {
		if n <= 0 {
			return errors.New("payload size must be positive")
		}
		r.payloadSize = n
		return nil
	}
}

func SSRC(ssrc uint32) Option {
	return func(r *RTP) error {
		r.ssrc = ssrc
		return nil
	}
}

func PayloadType(pt uint8) Option {
	return func(r *RTP) error {
		r.payloadType = pt
		return nil
	}
}

func ClockRate(hz uint32) Option {
	return func(r *RTP) error {
		if hz == 0 {
			return errors.New("clock rate must be positive")
		}
		r.clockRate = hz
		return nil
	}
}

// InitialSequenceNumber sets the sequence number of the first packet.
func InitialSequenceNumber(seq uint16) Option {
	return func(r *RTP) error {
		r.seq = seq
		return nil
	}
}

// RTP generates constant size RTP packets at a target bitrate. Time is
// supplied by the caller, so RTP works on simulated clocks.
type RTP struct {
	limiter     *rate.Limiter
	payloadSize int
	payload     []byte
	ssrc        uint32
	payloadType uint8
	clockRate   uint32
	seq         uint16
	ids         sequence.Unwrapper

	start   time.Time
	started bool
}

// NewRTP returns a source sending at targetRate bits per second.
func NewRTP(targetRate int, opts ...Option) (*RTP, error) {
	if targetRate <= 0 {
		return nil, errors.New("target rate must be positive")
	}
	r := &RTP{
		payloadSize: defaultPayloadSize,
		ssrc:        0,
		payloadType: defaultPayloadType,
		clockRate:   defaultClockRate,
		seq:         0,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.payload = make([]byte, r.payloadSize)
	r.limiter = rate.NewLimiter(bytesPerSecond(targetRate), 2*r.packetSize())
	return r, nil
}

func (r *RTP) packetSize() int {
	h := rtp.Header{Version: 2}
	return h.MarshalSize() + r.payloadSize
}

// SetTargetRate changes the bitrate from now on.
func (r *RTP) SetTargetRate(now time.Time, targetRate int) {
	r.limiter.SetLimitAt(now, bytesPerSecond(targetRate))
}

// Generate returns all packets the source may send at now.
func (r *RTP) Generate(now time.Time) []Outgoing {
	if !r.started {
		r.start = now
		r.started = true
	}
	size := r.packetSize()
	out := []Outgoing{}
	for r.limiter.AllowN(now, size) {
		out = append(out, r.next(now))
	}
	return out
}

func (r *RTP) next(now time.Time) Outgoing {
	elapsed := now.Sub(r.start)
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    r.payloadType,
			SequenceNumber: r.seq,
			Timestamp:      uint32(elapsed.Seconds() * float64(r.clockRate)),
			SSRC:           r.ssrc,
		},
		Payload: r.payload,
	}
	id := r.ids.Unwrap(r.seq)
	r.seq++
	return Outgoing{
		RTP: pkt,
		Packet: netemu.Packet{
			ID:       uint64(id),
			Size:     pkt.MarshalSize(),
			SendTime: now,
		},
	}
}

func bytesPerSecond(bitsPerSecond int) rate.Limit {
	return rate.Limit(float64(bitsPerSecond) / 8)
}
