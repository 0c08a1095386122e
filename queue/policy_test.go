package queue

import (
	"testing"
	"time"

	"github.com/mengelbart/netemu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadDrop(t *testing.T) {
	q := NewHeadDrop(2)
	for i := range 5 {
		assert.True(t, q.EnqueuePacket(packet(uint64(i))))
	}
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []uint64{0, 1, 2}, ids(q.DequeueDroppedPackets()))

	first, _ := q.DequeuePacket(start)
	second, _ := q.DequeuePacket(start)
	assert.Equal(t, []uint64{3, 4}, []uint64{first.ID, second.ID})
}

func TestHeadDropGrandfatherRule(t *testing.T) {
	q := NewHeadDrop(5)
	for i := range 5 {
		require.True(t, q.EnqueuePacket(packet(uint64(i))))
	}
	q.SetMaxCapacity(3)
	assert.False(t, q.EnqueuePacket(packet(5)))
	assert.Equal(t, 5, q.Len())
	assert.Empty(t, q.DequeueDroppedPackets())

	_, ok := q.DequeuePacket(start)
	require.True(t, ok)
	_, ok = q.DequeuePacket(start)
	require.True(t, ok)

	// at capacity again, admission evicts the oldest
	assert.True(t, q.EnqueuePacket(packet(6)))
	assert.Equal(t, []uint64{2}, ids(q.DequeueDroppedPackets()))
	assert.Equal(t, 3, q.Len())
}

func TestHeadDropZeroCapacity(t *testing.T) {
	q := NewHeadDrop(0)
	assert.False(t, q.EnqueuePacket(packet(1)))
	assert.Empty(t, q.DequeueDroppedPackets())
}

func TestDelay(t *testing.T) {
	q := NewDelay(10, 50*time.Millisecond)
	_, ok := q.DequeuePacket(start)
	assert.False(t, ok)

	p := packet(0)
	require.True(t, q.EnqueuePacket(p))
	require.True(t, q.EnqueuePacket(packet(10)))

	due, ok := q.NextDueTime()
	require.True(t, ok)
	assert.Equal(t, p.SendTime.Add(50*time.Millisecond), due)

	_, ok = q.DequeuePacket(start.Add(49 * time.Millisecond))
	assert.False(t, ok)
	assert.False(t, q.Empty())

	got, ok := q.DequeuePacket(start.Add(50 * time.Millisecond))
	require.True(t, ok)
	assert.True(t, got.Same(p))

	_, ok = q.DequeuePacket(start.Add(55 * time.Millisecond))
	assert.False(t, ok)
	got, ok = q.DequeuePacket(start.Add(60 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, uint64(10), got.ID)
	assert.True(t, q.Empty())
}

func TestDelayEviction(t *testing.T) {
	q := NewDelay(1, time.Second)
	require.True(t, q.EnqueuePacket(packet(1)))
	assert.False(t, q.EnqueuePacket(packet(2)))
	q.DropOldestPacket()
	assert.True(t, q.EnqueuePacket(packet(2)))
	assert.Equal(t, []uint64{1}, ids(q.DequeueDroppedPackets()))
}

func TestFactory(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		f, err := NewFactory()
		require.NoError(t, err)
		q := f.CreateQueue()
		lb, ok := q.(*LeakyBucket)
		require.True(t, ok)
		assert.Equal(t, netemu.DefaultMaxCapacity, lb.MaxCapacity())
	})

	t.Run("independent instances", func(t *testing.T) {
		f, err := NewFactory(WithCapacity(1))
		require.NoError(t, err)
		a := f.CreateQueue()
		b := f.CreateQueue()
		require.True(t, a.EnqueuePacket(packet(1)))
		assert.False(t, a.EnqueuePacket(packet(2)))
		assert.True(t, b.Empty())
		assert.True(t, b.EnqueuePacket(packet(2)))
	})

	t.Run("policies", func(t *testing.T) {
		for _, tc := range []struct {
			policy Policy
			check  func(netemu.Queue) bool
		}{
			{LeakyBucketPolicy, func(q netemu.Queue) bool { _, ok := q.(*LeakyBucket); return ok }},
			{HeadDropPolicy, func(q netemu.Queue) bool { _, ok := q.(*HeadDrop); return ok }},
			{DelayPolicy, func(q netemu.Queue) bool { _, ok := q.(*Delay); return ok }},
		} {
			f, err := NewFactory(WithPolicy(tc.policy), WithDelay(time.Millisecond))
			require.NoError(t, err)
			q := f.CreateQueue()
			assert.True(t, tc.check(q), "policy %v", tc.policy)
			_, ok := q.(netemu.Evicter)
			assert.True(t, ok)
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := NewFactory(WithPolicy("red"))
		assert.ErrorIs(t, err, ErrUnknownPolicy)
		_, err = NewFactory(WithCapacity(-1))
		assert.Error(t, err)
		_, err = NewFactory(WithDelay(-time.Second))
		assert.Error(t, err)
	})

	t.Run("func adapter", func(t *testing.T) {
		q := LeakyBucketFactory(3).CreateQueue()
		assert.Equal(t, 3, q.(*LeakyBucket).MaxCapacity())
	})
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, LeakyBucketPolicy, p)

	p, err = ParsePolicy("Head-Drop")
	require.NoError(t, err)
	assert.Equal(t, HeadDropPolicy, p)

	_, err = ParsePolicy("codel")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestFIFOWrapAround(t *testing.T) {
	var f fifo
	next := uint64(0)
	want := uint64(0)
	for round := range 50 {
		for range round % 7 {
			f.push(packet(next))
			next++
		}
		for range round % 5 {
			p, ok := f.pop()
			if !ok {
				break
			}
			require.Equal(t, want, p.ID)
			want++
		}
	}
	rest := f.drain()
	for _, p := range rest {
		require.Equal(t, want, p.ID)
		want++
	}
	assert.Equal(t, next, want)
	assert.Equal(t, 0, f.size())
}
