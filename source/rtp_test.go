package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Unix(500, 0)

func generateFor(r *RTP, d, tick time.Duration) []Outgoing {
	out := []Outgoing{}
	for now := t0; now.Before(t0.Add(d)); now = now.Add(tick) {
		out = append(out, r.Generate(now)...)
	}
	return out
}

func TestRTPRate(t *testing.T) {
	r, err := NewRTP(1_000_000, PayloadSize(1188))
	require.NoError(t, err)

	out := generateFor(r, time.Second, time.Millisecond)

	// 1 Mbit/s with 1200 byte packets plus the initial burst of two packets
	assert.InDelta(t, 125_000/1200+2, len(out), 2)
	for i, o := range out {
		assert.Equal(t, 1200, o.Packet.Size)
		assert.Equal(t, uint64(i), o.Packet.ID)
		assert.Equal(t, uint16(i), o.RTP.SequenceNumber)
		assert.Equal(t, uint8(2), o.RTP.Version)
	}
}

func TestRTPTimestamps(t *testing.T) {
	r, err := NewRTP(1_000_000, ClockRate(1000), SSRC(7), PayloadType(100))
	require.NoError(t, err)

	first := r.Generate(t0)
	require.NotEmpty(t, first)
	assert.Equal(t, uint32(0), first[0].RTP.Timestamp)
	assert.Equal(t, uint32(7), first[0].RTP.SSRC)
	assert.Equal(t, uint8(100), first[0].RTP.PayloadType)

	later := r.Generate(t0.Add(500 * time.Millisecond))
	require.NotEmpty(t, later)
	assert.Equal(t, uint32(500), later[0].RTP.Timestamp)
	assert.Equal(t, t0.Add(500*time.Millisecond), later[0].Packet.SendTime)
}

func TestRTPSequenceWrap(t *testing.T) {
	r, err := NewRTP(10_000_000, InitialSequenceNumber(65534))
	require.NoError(t, err)

	out := generateFor(r, 10*time.Millisecond, time.Millisecond)
	require.Greater(t, len(out), 3)
	assert.Equal(t, uint16(65534), out[0].RTP.SequenceNumber)
	assert.Equal(t, uint16(0), out[2].RTP.SequenceNumber)
	assert.Equal(t, uint64(65536), out[2].Packet.ID)
	assert.Equal(t, uint64(65537), out[3].Packet.ID)
}

func TestRTPSetTargetRate(t *testing.T) {
	r, err := NewRTP(1_000_000)
	require.NoError(t, err)
	before := generateFor(r, time.Second, time.Millisecond)

	r.SetTargetRate(t0.Add(time.Second), 2_000_000)
	after := []Outgoing{}
	for now := t0.Add(time.Second); now.Before(t0.Add(2 * time.Second)); now = now.Add(time.Millisecond) {
		after = append(after, r.Generate(now)...)
	}
	assert.InDelta(t, 2*(len(before)-2), len(after), 4)
}

func TestRTPInvalidOptions(t *testing.T) {
	_, err := NewRTP(0)
	assert.Error(t, err)
	_, err = NewRTP(1000, PayloadSize(0))
	assert.Error(t, err)
	_, err = NewRTP(1000, ClockRate(0))
	assert.Error(t, err)
}
