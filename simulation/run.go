package simulation

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/mengelbart/netemu/internal/logging"
	"github.com/mengelbart/netemu/network"
	"github.com/mengelbart/netemu/source"
	"github.com/mengelbart/netemu/stats"
	"github.com/pion/rtcp"
	"golang.org/x/sync/errgroup"
)

// epoch is the start of the simulated clock.
var epoch = time.Unix(0, 0)

// Result is the outcome of one scenario.
type Result struct {
	Scenario       string               `json:"scenario"`
	Sent           uint64               `json:"sent"`
	Network        network.Stats        `json:"network"`
	Summary        stats.Summary        `json:"summary"`
	ReceiverReport *rtcp.ReceiverReport `json:"receiver-report,omitempty"`

	// Collector holds the per packet samples, for example to plot them.
	Collector *stats.Collector `json:"-"`
}

// Run simulates s and returns the statistics of the stream after all packets
// left the link.
func Run(ctx context.Context, s Scenario) (*Result, error) {
	s = s.WithDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	logger := slog.Default().With("scenario", s.Name)

	src, err := source.NewRTP(s.Bitrate, source.PayloadSize(s.PayloadSize), source.SSRC(s.SSRC))
	if err != nil {
		return nil, err
	}
	qf, err := s.Link.QueueFactory()
	if err != nil {
		return nil, err
	}
	n, err := network.New(
		s.Link.NetworkConfig(),
		s.Seed,
		network.WithQueueFactory(qf),
		network.WithLoggerFactory(logging.NewLoggerFactory(logger)),
	)
	if err != nil {
		return nil, err
	}

	r := &runner{
		network:   n,
		collector: stats.NewCollector(),
		packetLog: logging.NewPacketLogger("link", logger),
	}

	logger.Info("starting simulation", "duration", time.Duration(s.Duration), "bitrate", s.Bitrate)

	end := epoch.Add(time.Duration(s.Duration))
	changes := s.LinkChanges
	sent := uint64(0)
	for now := epoch; now.Before(end); now = now.Add(time.Duration(s.Tick)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for len(changes) > 0 && !now.Before(epoch.Add(time.Duration(changes[0].At))) {
			if err := n.SetConfigAt(changes[0].Link.NetworkConfig(), now); err != nil {
				return nil, err
			}
			logger.Info("link changed", "time", now.Sub(epoch))
			changes = changes[1:]
		}
		for _, o := range src.Generate(now) {
			sent++
			r.enqueue(o)
		}
		r.deliver(now)
		r.collector.AddQueueLength(now, n.QueueLen())
	}

	// let everything in flight arrive
	for {
		next, ok := n.NextDeliveryTime()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.deliver(next)
	}

	result := &Result{
		Scenario:  s.Name,
		Sent:      sent,
		Network:   n.Stats(),
		Summary:   r.collector.Summary(),
		Collector: r.collector,
	}
	if rr, err := r.collector.ReceiverReport(0, s.SSRC); err == nil {
		result.ReceiverReport = rr
	}
	logger.Info("simulation done", "sent", sent, "delivered", result.Network.Delivered, "lost", result.Network.Lost, "rejected", result.Network.Rejected)
	return result, nil
}

type runner struct {
	network   *network.Network
	collector *stats.Collector
	packetLog *logging.PacketLogger
}

func (r *runner) enqueue(o source.Outgoing) {
	if !r.network.EnqueuePacket(o.Packet) {
		r.packetLog.LogPacket(logging.Rejected, o.Packet, o.Packet.SendTime)
		return
	}
	r.packetLog.LogPacket(logging.Enqueued, o.Packet, o.Packet.SendTime)
}

func (r *runner) deliver(now time.Time) {
	for _, d := range r.network.DequeueDeliverablePackets(now) {
		r.collector.Add(d)
		switch {
		case d.Lost && d.ReceiveTime.IsZero():
			r.packetLog.LogPacket(logging.Evicted, d.Packet, now)
		case d.Lost:
			r.packetLog.LogPacket(logging.Lost, d.Packet, d.ReceiveTime)
		default:
			r.packetLog.LogPacket(logging.Delivered, d.Packet, d.ReceiveTime)
		}
	}
}

// RunAll runs scenarios in parallel. The results are in the order of
// scenarios. The first failing scenario cancels the others.
func RunAll(ctx context.Context, scenarios []Scenario) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range scenarios {
		g.Go(func() error {
			r, err := Run(ctx, s)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
