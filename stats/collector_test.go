package stats

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mengelbart/netemu"
	"github.com/mengelbart/netemu/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Unix(2000, 0)

func delivered(id uint64, sent, delay time.Duration) network.Delivery {
	return network.Delivery{
		Packet: netemu.Packet{
			ID:       id,
			Size:     1200,
			SendTime: t0.Add(sent),
		},
		ReceiveTime: t0.Add(sent + delay),
	}
}

func lost(id uint64, sent time.Duration) network.Delivery {
	return network.Delivery{
		Packet: netemu.Packet{
			ID:       id,
			Size:     1200,
			SendTime: t0.Add(sent),
		},
		Lost: true,
	}
}

func TestSummaryEmpty(t *testing.T) {
	s := NewCollector().Summary()
	assert.Equal(t, Summary{}, s)
}

func TestSummary(t *testing.T) {
	c := NewCollector()
	for i := range 10 {
		c.Add(delivered(uint64(i), time.Duration(i)*time.Millisecond, time.Duration(i+1)*10*time.Millisecond))
	}
	c.Add(lost(10, 10*time.Millisecond))

	s := c.Summary()
	assert.Equal(t, uint64(10), s.Delivered)
	assert.Equal(t, uint64(1), s.Lost)
	assert.InDelta(t, 1.0/11, s.LossRate, 1e-9)
	assert.Equal(t, 55*time.Millisecond, s.MeanDelay)
	assert.Equal(t, 100*time.Millisecond, s.MaxDelay)
	assert.GreaterOrEqual(t, s.P50Delay, 40*time.Millisecond)
	assert.LessOrEqual(t, s.P50Delay, 60*time.Millisecond)
	assert.LessOrEqual(t, s.P50Delay, s.P95Delay)
	assert.LessOrEqual(t, s.P95Delay, s.P99Delay)
	assert.LessOrEqual(t, s.P99Delay, s.MaxDelay)
	assert.Greater(t, s.Jitter, time.Duration(0))
}

func TestSummaryConstantDelayHasNoJitter(t *testing.T) {
	c := NewCollector()
	for i := range 20 {
		c.Add(delivered(uint64(i), time.Duration(i)*20*time.Millisecond, 30*time.Millisecond))
	}
	s := c.Summary()
	assert.Equal(t, time.Duration(0), s.Jitter)
	assert.Equal(t, 30*time.Millisecond, s.MeanDelay)
	assert.Equal(t, 30*time.Millisecond, s.P99Delay)
}

func TestReceiverReport(t *testing.T) {
	c := NewCollector()
	_, err := c.ReceiverReport(1, 2)
	require.ErrorIs(t, err, ErrNoPackets)

	for i := range 10 {
		if i == 3 || i == 7 {
			c.Add(lost(uint64(i), time.Duration(i)*time.Millisecond))
			continue
		}
		c.Add(delivered(uint64(i), time.Duration(i)*time.Millisecond, 5*time.Millisecond))
	}

	rr, err := c.ReceiverReport(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), rr.SSRC)
	require.Len(t, rr.Reports, 1)
	report := rr.Reports[0]
	assert.Equal(t, uint32(2), report.SSRC)
	assert.Equal(t, uint32(2), report.TotalLost)
	assert.Equal(t, uint8(2*256/10), report.FractionLost)
	assert.Equal(t, uint32(9), report.LastSequenceNumber)
	assert.Equal(t, uint32(0), report.Jitter)

	// nothing new since the previous report
	rr, err = c.ReceiverReport(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), rr.Reports[0].FractionLost)
	assert.Equal(t, uint32(2), rr.Reports[0].TotalLost)

	_, err = rr.Marshal()
	assert.NoError(t, err)
}

func TestReceiverReportCountsGaps(t *testing.T) {
	c := NewCollector()
	c.Add(delivered(100, 0, time.Millisecond))
	c.Add(delivered(104, time.Millisecond, time.Millisecond))

	rr, err := c.ReceiverReport(0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), rr.Reports[0].TotalLost)
	assert.Equal(t, uint32(104), rr.Reports[0].LastSequenceNumber)
	assert.Equal(t, uint8(3*256/5), rr.Reports[0].FractionLost)
}

func TestReceiverReportJitter(t *testing.T) {
	c := NewCollector(ClockRate(1000))
	c.Add(delivered(0, 0, 10*time.Millisecond))
	c.Add(delivered(1, 20*time.Millisecond, 26*time.Millisecond))

	rr, err := c.ReceiverReport(0, 0)
	require.NoError(t, err)
	// |26 - 10| / 16 in units of the 1 kHz clock
	assert.Equal(t, uint32(1), rr.Reports[0].Jitter)
	assert.Equal(t, time.Millisecond, c.Summary().Jitter)
}

func TestSavePlot(t *testing.T) {
	c := NewCollector()
	assert.Error(t, c.SavePlot("empty", filepath.Join(t.TempDir(), "empty.png")))

	for i := range 50 {
		c.Add(delivered(uint64(i), time.Duration(i)*10*time.Millisecond, time.Duration(20+i%5)*time.Millisecond))
	}
	path := filepath.Join(t.TempDir(), "delay.png")
	require.NoError(t, c.SavePlot("delay", path))
	assert.FileExists(t, path)
}

func TestDelayPointsUseEarliestSendTime(t *testing.T) {
	c := NewCollector()
	c.Add(delivered(1, 10*time.Millisecond, 5*time.Millisecond))
	// evicted packets are reported after younger packets were delivered
	c.Add(lost(0, 0))
	c.Add(delivered(2, 20*time.Millisecond, 5*time.Millisecond))

	pts := c.delayPoints()
	require.Len(t, pts, 2)
	assert.InDelta(t, 0.010, pts[0].X, 1e-9)
	assert.InDelta(t, 0.020, pts[1].X, 1e-9)
	assert.InDelta(t, 5.0, pts[0].Y, 1e-9)
}

func TestQueueLength(t *testing.T) {
	c := NewCollector()
	assert.Error(t, c.SaveQueuePlot("empty", filepath.Join(t.TempDir(), "empty.png")))

	for i, n := range []int{0, 2, 4, 6, 3} {
		c.AddQueueLength(t0.Add(time.Duration(i)*time.Millisecond), n)
	}
	s := c.Summary()
	assert.Equal(t, 6, s.MaxQueueLength)
	assert.InDelta(t, 3.0, s.MeanQueueLength, 1e-9)
	assert.Zero(t, s.Delivered)

	pts := c.queuePoints()
	require.Len(t, pts, 5)
	assert.Equal(t, 0.0, pts[0].X)
	assert.InDelta(t, 0.004, pts[4].X, 1e-9)
	assert.Equal(t, 3.0, pts[4].Y)

	path := filepath.Join(t.TempDir(), "queue.png")
	require.NoError(t, c.SaveQueuePlot("queue", path))
	assert.FileExists(t, path)
}
