// Package stats summarizes what an emulated link did to a packet stream.
package stats

import (
	"errors"
	"math"
	"time"

	"github.com/mengelbart/netemu/network"
	"github.com/montanaflynn/stats"
	"github.com/pion/rtcp"
)

const maxTotalLost = 1<<23 - 1

// Summary aggregates delivery statistics of a stream.
type Summary struct {
	Delivered uint64        `json:"delivered"`
	Lost      uint64        `json:"lost"`
	LossRate  float64       `json:"loss-rate"`
	MeanDelay time.Duration `json:"mean-delay"`
	P50Delay  time.Duration `json:"p50-delay"`
	P95Delay  time.Duration `json:"p95-delay"`
	P99Delay  time.Duration `json:"p99-delay"`
	MaxDelay  time.Duration `json:"max-delay"`
	Jitter    time.Duration `json:"jitter"`

	MeanQueueLength float64 `json:"mean-queue-length"`
	MaxQueueLength  int     `json:"max-queue-length"`
}

type sample struct {
	sendTime time.Time
	delay    time.Duration
}

type queueSample struct {
	at     time.Time
	length int
}

type Option func(*Collector)

// ClockRate sets the RTP clock rate used for interarrival jitter in receiver
// reports.
func ClockRate(hz uint32) Option {
	return func(c *Collector) {
		c.clockRate = hz
	}
}

// Collector consumes the deliveries of one stream. Packet IDs are treated as
// extended sequence numbers. A Collector is not safe for concurrent use.
type Collector struct {
	clockRate uint32

	delivered uint64
	lost      uint64
	samples   []sample
	queue     []queueSample
	start     time.Time
	started   bool

	// receiver report state, see RFC 3550 appendix A
	haveSeq       bool
	baseSeq       uint64
	highestSeq    uint64
	received      uint64
	expectedPrior uint64
	receivedPrior uint64
	jitter        float64
	lastTransit   float64
	haveTransit   bool
}

func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		clockRate: 90_000,
		samples:   []sample{},
		queue:     []queueSample{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add records one delivery.
func (c *Collector) Add(d network.Delivery) {
	if !c.started || d.Packet.SendTime.Before(c.start) {
		c.start = d.Packet.SendTime
		c.started = true
	}
	c.updateSequence(d.Packet.ID)
	if d.Lost {
		c.lost++
		return
	}
	c.delivered++
	c.received++

	delay := d.ReceiveTime.Sub(d.Packet.SendTime)
	c.samples = append(c.samples, sample{
		sendTime: d.Packet.SendTime,
		delay:    delay,
	})

	transit := delay.Seconds() * float64(c.clockRate)
	if c.haveTransit {
		c.jitter += (math.Abs(transit-c.lastTransit) - c.jitter) / 16
	}
	c.lastTransit = transit
	c.haveTransit = true
}

// AddQueueLength records that length packets were queued at at.
func (c *Collector) AddQueueLength(at time.Time, length int) {
	c.queue = append(c.queue, queueSample{
		at:     at,
		length: length,
	})
}

func (c *Collector) updateSequence(seq uint64) {
	if !c.haveSeq {
		c.haveSeq = true
		c.baseSeq = seq
		c.highestSeq = seq
		return
	}
	if seq < c.baseSeq {
		c.baseSeq = seq
	}
	if seq > c.highestSeq {
		c.highestSeq = seq
	}
}

// Summary returns the statistics of all deliveries added so far.
func (c *Collector) Summary() Summary {
	s := Summary{
		Delivered: c.delivered,
		Lost:      c.lost,
		Jitter:    time.Duration(c.jitter / float64(c.clockRate) * float64(time.Second)),
	}
	if total := c.delivered + c.lost; total > 0 {
		s.LossRate = float64(c.lost) / float64(total)
	}
	if len(c.queue) > 0 {
		total := 0
		for _, q := range c.queue {
			total += q.length
			s.MaxQueueLength = max(s.MaxQueueLength, q.length)
		}
		s.MeanQueueLength = float64(total) / float64(len(c.queue))
	}
	if len(c.samples) == 0 {
		return s
	}
	delays := make(stats.Float64Data, 0, len(c.samples))
	for _, sample := range c.samples {
		delays = append(delays, float64(sample.delay))
	}
	s.MeanDelay = duration(delays.Mean())
	s.P50Delay = duration(delays.Percentile(50))
	s.P95Delay = duration(delays.Percentile(95))
	s.P99Delay = duration(delays.Percentile(99))
	s.MaxDelay = duration(delays.Max())
	return s
}

func duration(v float64, err error) time.Duration {
	if err != nil {
		return 0
	}
	return time.Duration(v)
}

// ErrNoPackets is returned when a report is requested before any packet was
// added.
var ErrNoPackets = errors.New("no packets received")

// ReceiverReport builds an RTCP receiver report block for mediaSSRC covering
// the packets added since the previous report.
func (c *Collector) ReceiverReport(senderSSRC, mediaSSRC uint32) (*rtcp.ReceiverReport, error) {
	if !c.haveSeq {
		return nil, ErrNoPackets
	}
	expected := c.highestSeq - c.baseSeq + 1
	var totalLost uint64
	if expected > c.received {
		totalLost = expected - c.received
	}

	expectedInterval := expected - c.expectedPrior
	receivedInterval := c.received - c.receivedPrior
	c.expectedPrior = expected
	c.receivedPrior = c.received

	var fraction uint8
	if expectedInterval > 0 && expectedInterval > receivedInterval {
		fraction = uint8(((expectedInterval - receivedInterval) << 8) / expectedInterval)
	}

	return &rtcp.ReceiverReport{
		SSRC: senderSSRC,
		Reports: []rtcp.ReceptionReport{
			{
				SSRC:               mediaSSRC,
				FractionLost:       fraction,
				TotalLost:          uint32(min(totalLost, maxTotalLost)),
				LastSequenceNumber: uint32(c.highestSeq),
				Jitter:             uint32(c.jitter),
			},
		},
	}, nil
}
