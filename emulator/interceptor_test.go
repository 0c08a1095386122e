package emulator

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/mengelbart/netemu/network"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type written struct {
	seq uint16
	at  time.Time
}

type recorder struct {
	lock    sync.Mutex
	packets []written
}

func (r *recorder) Write(header *rtp.Header, _ []byte, _ interceptor.Attributes) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.packets = append(r.packets, written{seq: header.SequenceNumber, at: time.Now()})
	return 0, nil
}

func (r *recorder) written() []written {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]written{}, r.packets...)
}

func newInterceptor(t *testing.T, cfg network.Config) (*InterceptorFactory, *Interceptor) {
	t.Helper()
	f, err := NewInterceptorFactory(Config(cfg), Interval(time.Millisecond))
	require.NoError(t, err)
	i, err := f.NewInterceptor("")
	require.NoError(t, err)
	return f, i.(*Interceptor)
}

func write(t *testing.T, w interceptor.RTPWriter, seq uint16) error {
	t.Helper()
	_, err := w.Write(&rtp.Header{Version: 2, SequenceNumber: seq}, make([]byte, 100), interceptor.Attributes{})
	return err
}

func TestInterceptorDelaysPackets(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		cfg := network.DefaultConfig()
		cfg.QueueDelay = 50 * time.Millisecond
		_, i := newInterceptor(t, cfg)

		rec := &recorder{}
		w := i.BindLocalStream(&interceptor.StreamInfo{SSRC: 1}, interceptor.RTPWriterFunc(rec.Write))

		start := time.Now()
		n, err := w.Write(&rtp.Header{Version: 2, SequenceNumber: 1}, make([]byte, 100), interceptor.Attributes{})
		require.NoError(t, err)
		assert.Equal(t, 112, n)

		time.Sleep(49 * time.Millisecond)
		synctest.Wait()
		assert.Empty(t, rec.written())

		time.Sleep(2 * time.Millisecond)
		synctest.Wait()
		got := rec.written()
		require.Len(t, got, 1)
		assert.Equal(t, uint16(1), got[0].seq)
		assert.GreaterOrEqual(t, got[0].at.Sub(start), 50*time.Millisecond)

		require.NoError(t, i.Close())
	})
}

func TestInterceptorKeepsOrder(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		cfg := network.DefaultConfig()
		cfg.QueueDelay = 10 * time.Millisecond
		cfg.LinkCapacity = 8 * 112 * 1000 // one packet per millisecond
		_, i := newInterceptor(t, cfg)

		rec := &recorder{}
		w := i.BindLocalStream(&interceptor.StreamInfo{SSRC: 1}, interceptor.RTPWriterFunc(rec.Write))
		for seq := range uint16(10) {
			require.NoError(t, write(t, w, seq))
		}

		time.Sleep(100 * time.Millisecond)
		synctest.Wait()
		got := rec.written()
		require.Len(t, got, 10)
		for k, p := range got {
			assert.Equal(t, uint16(k), p.seq)
		}
		require.NoError(t, i.Close())
	})
}

func TestInterceptorLoss(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		cfg := network.DefaultConfig()
		cfg.LossPercent = 100
		f, i := newInterceptor(t, cfg)

		rec := &recorder{}
		w := i.BindLocalStream(&interceptor.StreamInfo{SSRC: 1}, interceptor.RTPWriterFunc(rec.Write))
		for seq := range uint16(5) {
			require.NoError(t, write(t, w, seq))
		}

		time.Sleep(10 * time.Millisecond)
		synctest.Wait()
		assert.Empty(t, rec.written())

		stats, ok := f.Stats("")
		require.True(t, ok)
		assert.Equal(t, uint64(5), stats.Lost)
		assert.Equal(t, uint64(0), stats.Delivered)
		require.NoError(t, i.Close())
	})
}

func TestInterceptorQueueOverflow(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		cfg := network.DefaultConfig()
		cfg.QueueLengthPackets = 1
		cfg.LinkCapacity = 8000
		_, i := newInterceptor(t, cfg)

		rec := &recorder{}
		w := i.BindLocalStream(&interceptor.StreamInfo{SSRC: 1}, interceptor.RTPWriterFunc(rec.Write))
		require.NoError(t, write(t, w, 0))
		assert.ErrorIs(t, write(t, w, 1), ErrQueueOverflow)

		require.NoError(t, i.Close())
		assert.ErrorIs(t, write(t, w, 2), ErrClosed)
	})
}

func TestInterceptorSetConfig(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		cfg := network.DefaultConfig()
		cfg.QueueDelay = time.Second
		f, i := newInterceptor(t, cfg)

		require.Error(t, f.SetConfig("unknown", cfg))

		cfg.QueueDelay = 0
		require.NoError(t, f.SetConfig("", cfg))

		rec := &recorder{}
		w := i.BindLocalStream(&interceptor.StreamInfo{SSRC: 1}, interceptor.RTPWriterFunc(rec.Write))
		require.NoError(t, write(t, w, 0))

		time.Sleep(5 * time.Millisecond)
		synctest.Wait()
		assert.Len(t, rec.written(), 1)

		cfg.QueueDelay = -1
		assert.ErrorIs(t, f.SetConfig("", cfg), network.ErrInvalidConfig)
		require.NoError(t, i.Close())
	})
}

func TestNewInterceptorFactoryInvalidOptions(t *testing.T) {
	_, err := NewInterceptorFactory(Interval(0))
	assert.Error(t, err)

	cfg := network.DefaultConfig()
	cfg.LossPercent = 200
	_, err = NewInterceptorFactory(Config(cfg))
	assert.ErrorIs(t, err, network.ErrInvalidConfig)
}
