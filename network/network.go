// Package network emulates a network link on a simulated clock.
//
// Packets pass three stages: a queue (any netemu.Queue), a capacity link
// which serializes one packet at a time at the configured link capacity, and
// a delay link which adds propagation delay, jitter and loss. The caller owns
// the clock. It enqueues packets with their send time and periodically asks
// for the packets which arrived until a given time.
package network

import (
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/mengelbart/netemu"
	"github.com/mengelbart/netemu/queue"
	"github.com/pion/logging"
)

// Delivery is the outcome of one packet on the link.
type Delivery struct {
	Packet netemu.Packet

	// ReceiveTime is the time the packet left the link. It is zero for
	// packets evicted from the queue.
	ReceiveTime time.Time

	// Lost is true if the packet was evicted from the queue or dropped by
	// the loss model.
	Lost bool
}

// Stats counts packets by what happened to them.
type Stats struct {
	Enqueued  uint64 `json:"enqueued"`
	Rejected  uint64 `json:"rejected"`
	Evicted   uint64 `json:"evicted"`
	Lost      uint64 `json:"lost"`
	Delivered uint64 `json:"delivered"`
}

type linkPacket struct {
	packet     netemu.Packet
	lastUpdate time.Time
	bitsLeft   int64
	arrival    time.Time
	lost       bool
}

type dueTimer interface {
	NextDueTime() (time.Time, bool)
}

type lener interface {
	Len() int
}

type Option func(*Network) error

// WithQueueFactory sets the factory creating the queue of the link. The
// default creates a queue.LeakyBucket.
func WithQueueFactory(f netemu.QueueFactory) Option {
	return func(n *Network) error {
		n.queue = f.CreateQueue()
		return nil
	}
}

// WithLoggerFactory sets the logger factory of the link.
func WithLoggerFactory(f logging.LoggerFactory) Option {
	return func(n *Network) error {
		n.log = f.NewLogger("network")
		return nil
	}
}

// Network is an emulated link. It is safe for concurrent use.
type Network struct {
	lock sync.Mutex
	log  logging.LeveledLogger

	queue  netemu.Queue
	random *rand.Rand

	config            Config
	probLossBursting  float64
	probStartBursting float64
	pauseUntil        time.Time
	bursting          bool

	capacityLink         *linkPacket
	lastCapacityLinkExit time.Time
	delayLink            []linkPacket

	nextProcessTime         time.Time
	hasNextProcessTime      bool
	onNextProcessTimeChange func()

	stats Stats
}

// New returns a Network using cfg. The seed initializes the random source
// of the loss and jitter models, equal seeds produce equal runs.
func New(cfg Config, seed uint64, opts ...Option) (*Network, error) {
	n := &Network{
		log:       logging.NewDefaultLoggerFactory().NewLogger("network"),
		queue:     queue.NewLeakyBucket(netemu.DefaultMaxCapacity),
		random:    rand.New(rand.NewPCG(seed, seed)),
		delayLink: []linkPacket{},
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n.setConfigLocked(cfg)
	return n, nil
}

// Config returns the current configuration.
func (n *Network) Config() Config {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.config
}

// Stats returns the packet counters.
func (n *Network) Stats() Stats {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.stats
}

// SetConfig replaces the configuration. The packet currently being
// serialized keeps its arrival time, use SetConfigAt to recompute it.
func (n *Network) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	n.setConfigLocked(cfg)
	return nil
}

// SetConfigAt replaces the configuration at time now. The part of the
// packet in the capacity link which was not yet serialized at now is
// serialized at the new link capacity.
func (n *Network) SetConfigAt(cfg Config, now time.Time) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	n.lock.Lock()
	// packets which left the capacity link before now did so at the old capacity
	n.updateCapacityLink(now)
	if n.capacityLink != nil {
		elapsed := now.Sub(n.capacityLink.lastUpdate)
		n.capacityLink.bitsLeft -= min(bitsSent(elapsed, n.config.LinkCapacity), n.capacityLink.bitsLeft)
		n.capacityLink.lastUpdate = now
	}
	n.setConfigLocked(cfg)
	n.updateCapacityLink(now)
	changed := n.updateNextProcessTime()
	callback := n.onNextProcessTimeChange
	n.lock.Unlock()

	if changed && callback != nil {
		callback()
	}
	return nil
}

// UpdateConfig applies modify to a copy of the current configuration and
// installs the result if it is valid.
func (n *Network) UpdateConfig(modify func(*Config)) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	cfg := n.config
	modify(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	n.setConfigLocked(cfg)
	return nil
}

// PauseTransmissionUntil holds every packet leaving the capacity link
// before until back until then.
func (n *Network) PauseTransmissionUntil(until time.Time) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.pauseUntil = until
}

// RegisterDeliveryTimeChangedCallback registers f to be called when a
// configuration change moves the next delivery time.
func (n *Network) RegisterDeliveryTimeChangedCallback(f func()) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.onNextProcessTimeChange = f
}

func (n *Network) setConfigLocked(cfg Config) {
	capacity := netemu.DefaultMaxCapacity
	if cfg.QueueLengthPackets > 0 {
		// one packet sits in the capacity link
		capacity = cfg.QueueLengthPackets - 1
	}
	n.queue.SetMaxCapacity(capacity)
	n.config = cfg
	n.probLossBursting, n.probStartBursting = cfg.lossProbabilities()
	n.log.Debugf("config updated: queue-capacity=%v, link-capacity=%v, delay=%v, loss=%v%%", capacity, cfg.LinkCapacity, cfg.QueueDelay, cfg.LossPercent)
}

// EnqueuePacket hands p to the link at p.SendTime. It returns false if the
// link rejected the packet. Send times are expected to not decrease.
func (n *Network) EnqueuePacket(p netemu.Packet) bool {
	n.lock.Lock()
	defer n.lock.Unlock()

	p.Size += n.config.PacketOverhead

	accepted := n.enqueue(p)
	if n.capacityLink != nil {
		n.count(accepted)
		return accepted
	}
	if n.queue.Empty() {
		// an idle link takes the packet even if the queue has no room
		n.startTransmission(p, p.SendTime, n.lastCapacityLinkExit)
		n.count(true)
	} else {
		n.count(accepted)
		n.pullNextPacket()
	}
	if !n.hasNextProcessTime && n.capacityLink != nil {
		n.nextProcessTime = n.capacityLink.arrival
		n.hasNextProcessTime = true
	}
	return accepted || n.capacityLink != nil && n.capacityLink.packet.Same(p)
}

func (n *Network) enqueue(p netemu.Packet) bool {
	if n.queue.EnqueuePacket(p) {
		return true
	}
	if !n.config.DropOldestOnOverflow || n.queue.Empty() {
		return false
	}
	ev, ok := n.queue.(netemu.Evicter)
	if !ok {
		return false
	}
	ev.DropOldestPacket()
	return n.queue.EnqueuePacket(p)
}

func (n *Network) count(accepted bool) {
	if accepted {
		n.stats.Enqueued++
		return
	}
	n.stats.Rejected++
	n.log.Debugf("queue rejected packet, queue-length-packets=%v", n.config.QueueLengthPackets)
}

// startTransmission moves p into the capacity link. Serialization starts at
// the later of the send time of p and notBefore.
func (n *Network) startTransmission(p netemu.Packet, lastUpdate, notBefore time.Time) {
	start := latest(p.SendTime, notBefore)
	bits := 8 * int64(p.Size)
	n.capacityLink = &linkPacket{
		packet:     p,
		lastUpdate: lastUpdate,
		bitsLeft:   bits,
		arrival:    arrivalTime(start, bits, n.config.LinkCapacity),
	}
}

// pullNextPacket moves the head of the queue into the idle capacity link.
func (n *Network) pullNextPacket() bool {
	next, ok := n.queue.PeekNextPacket()
	if !ok {
		return false
	}
	start := latest(n.lastCapacityLinkExit, next.SendTime)
	if dt, ok := n.queue.(dueTimer); ok {
		if due, ok := dt.NextDueTime(); ok {
			start = latest(start, due)
		}
	}
	p, ok := n.queue.DequeuePacket(start)
	if !ok {
		return false
	}
	n.startTransmission(p, start, start)
	return true
}

// QueueLen returns the number of packets waiting in the queue. The packet
// in the capacity link is not counted. It returns 0 for queues which do not
// report their length.
func (n *Network) QueueLen() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	if l, ok := n.queue.(lener); ok {
		return l.Len()
	}
	return 0
}

// NextDeliveryTime returns the earliest time at which
// DequeueDeliverablePackets may return packets. The boolean is false if no
// packets are in flight.
func (n *Network) NextDeliveryTime() (time.Time, bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.nextProcessTime, n.hasNextProcessTime
}

// DequeueDeliverablePackets advances the link to now and returns all
// packets evicted from the queue followed by all packets which left the
// link until now.
func (n *Network) DequeueDeliverablePackets(now time.Time) []Delivery {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.updateCapacityLink(now)

	deliveries := []Delivery{}
	for _, p := range n.queue.DequeueDroppedPackets() {
		deliveries = append(deliveries, Delivery{
			Packet: p,
			Lost:   true,
		})
		n.stats.Evicted++
		n.stats.Lost++
	}
	for len(n.delayLink) > 0 && !now.Before(n.delayLink[0].arrival) {
		lp := n.delayLink[0]
		n.delayLink = n.delayLink[1:]
		deliveries = append(deliveries, Delivery{
			Packet:      lp.packet,
			ReceiveTime: lp.arrival,
			Lost:        lp.lost,
		})
		if lp.lost {
			n.stats.Lost++
		} else {
			n.stats.Delivered++
		}
	}
	n.updateNextProcessTime()
	return deliveries
}

func (n *Network) updateCapacityLink(now time.Time) {
	if n.capacityLink == nil {
		if !n.pullNextPacket() {
			return
		}
	} else {
		// the capacity may have changed since the arrival time was computed
		n.capacityLink.lastUpdate = latest(n.capacityLink.lastUpdate, n.lastCapacityLinkExit)
		n.capacityLink.arrival = arrivalTime(n.capacityLink.lastUpdate, n.capacityLink.bitsLeft, n.config.LinkCapacity)
	}
	if now.Before(n.capacityLink.arrival) {
		return
	}

	reorder := false
	for n.capacityLink != nil && !now.Before(n.capacityLink.arrival) {
		lp := *n.capacityLink
		n.capacityLink = nil

		if n.pauseUntil.After(lp.arrival) {
			lp.arrival = n.pauseUntil
		}
		n.lastCapacityLinkExit = lp.arrival

		if n.lose() {
			lp.lost = true
		} else {
			jitter := n.jitter()
			if len(n.delayLink) > 0 {
				last := n.delayLink[len(n.delayLink)-1].arrival
				if !n.config.AllowReordering && lp.arrival.Add(jitter).Before(last) {
					jitter = last.Sub(lp.arrival)
				}
				lp.arrival = lp.arrival.Add(jitter)
				if last.After(lp.arrival) {
					reorder = true
				}
			} else {
				lp.arrival = lp.arrival.Add(jitter)
			}
		}
		n.delayLink = append(n.delayLink, lp)

		n.pullNextPacket()
	}

	if n.config.AllowReordering && reorder {
		slices.SortStableFunc(n.delayLink, func(a, b linkPacket) int {
			return a.arrival.Compare(b.arrival)
		})
	}
}

func (n *Network) lose() bool {
	if n.bursting {
		n.bursting = n.random.Float64() < n.probLossBursting
	} else {
		n.bursting = n.random.Float64() < n.probStartBursting
	}
	return n.bursting
}

func (n *Network) jitter() time.Duration {
	mean := float64(n.config.QueueDelay)
	if n.config.DelayStdDev == 0 {
		return n.config.QueueDelay
	}
	d := n.random.NormFloat64()*float64(n.config.DelayStdDev) + mean
	return time.Duration(max(d, 0))
}

func (n *Network) updateNextProcessTime() bool {
	prev, hadPrev := n.nextProcessTime, n.hasNextProcessTime

	n.nextProcessTime, n.hasNextProcessTime = time.Time{}, false
	if len(n.delayLink) > 0 {
		n.nextProcessTime, n.hasNextProcessTime = n.delayLink[0].arrival, true
	} else if n.capacityLink != nil {
		n.nextProcessTime, n.hasNextProcessTime = n.capacityLink.arrival, true
	}
	return hadPrev != n.hasNextProcessTime || !prev.Equal(n.nextProcessTime)
}

// arrivalTime returns the time at which bits sent from start at capacity
// bits per second have been serialized, rounded up to whole microseconds.
func arrivalTime(start time.Time, bits, capacity int64) time.Time {
	if capacity <= 0 {
		return start
	}
	micros := (bits*1_000_000 + capacity - 1) / capacity
	return start.Add(time.Duration(micros) * time.Microsecond)
}

// bitsSent returns how many bits a link with capacity bits per second
// serializes in d. An unlimited link serializes everything.
func bitsSent(d time.Duration, capacity int64) int64 {
	if capacity <= 0 {
		return math.MaxInt64
	}
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	micros := (d % time.Second).Microseconds()
	part := micros*(capacity/1_000_000) + micros*(capacity%1_000_000)/1_000_000
	if secs > (math.MaxInt64-part)/capacity {
		return math.MaxInt64
	}
	return secs*capacity + part
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
