// Package emulator routes outgoing RTP streams of a pion interceptor chain
// through emulated network links in wall-clock time.
package emulator

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/mengelbart/netemu"
	netlog "github.com/mengelbart/netemu/internal/logging"
	"github.com/mengelbart/netemu/network"
	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/rtp"
)

var (
	ErrClosed        = errors.New("emulator closed")
	ErrQueueOverflow = errors.New("emulator queue overflow")
)

const defaultInterval = time.Millisecond

type Option func(*InterceptorFactory) error

// Config sets the link configuration of new interceptors.
func Config(cfg network.Config) Option {
	return func(f *InterceptorFactory) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		f.config = cfg
		return nil
	}
}

func QueueFactory(qf netemu.QueueFactory) Option {
	return func(f *InterceptorFactory) error {
		f.queueFactory = qf
		return nil
	}
}

// Seed sets the seed of the loss and jitter models. Interceptors created
// later get consecutive seeds.
func Seed(seed uint64) Option {
	return func(f *InterceptorFactory) error {
		f.seed = seed
		return nil
	}
}

// Interval sets how often interceptors deliver due packets.
func Interval(d time.Duration) Option {
	return func(f *InterceptorFactory) error {
		if d <= 0 {
			return fmt.Errorf("invalid delivery interval: %v", d)
		}
		f.interval = d
		return nil
	}
}

func LoggerFactory(lf logging.LoggerFactory) Option {
	return func(f *InterceptorFactory) error {
		f.loggerFactory = lf
		return nil
	}
}

func PacketLogger(pl *netlog.PacketLogger) Option {
	return func(f *InterceptorFactory) error {
		f.packetLogger = pl
		return nil
	}
}

type InterceptorFactory struct {
	lock         sync.Mutex
	interceptors map[string]*Interceptor

	config        network.Config
	queueFactory  netemu.QueueFactory
	seed          uint64
	interval      time.Duration
	loggerFactory logging.LoggerFactory
	packetLogger  *netlog.PacketLogger
}

func NewInterceptorFactory(opts ...Option) (*InterceptorFactory, error) {
	f := &InterceptorFactory{
		lock:          sync.Mutex{},
		interceptors:  map[string]*Interceptor{},
		config:        network.DefaultConfig(),
		queueFactory:  nil,
		seed:          0,
		interval:      defaultInterval,
		loggerFactory: logging.NewDefaultLoggerFactory(),
		packetLogger:  nil,
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// NewInterceptor implements interceptor.Factory.
func (f *InterceptorFactory) NewInterceptor(id string) (interceptor.Interceptor, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	opts := []network.Option{network.WithLoggerFactory(f.loggerFactory)}
	if f.queueFactory != nil {
		opts = append(opts, network.WithQueueFactory(f.queueFactory))
	}
	n, err := network.New(f.config, f.seed+uint64(len(f.interceptors)), opts...)
	if err != nil {
		return nil, err
	}

	i := &Interceptor{
		NoOp:      interceptor.NoOp{},
		log:       f.loggerFactory.NewLogger("emulator"),
		packetLog: f.packetLogger,
		network:   n,
		interval:  f.interval,
		lock:      sync.Mutex{},
		pending:   map[uint64]packet{},
		nextID:    0,
		wake:      make(chan struct{}, 1),
		closed:    make(chan struct{}),
		wg:        sync.WaitGroup{},
	}
	n.RegisterDeliveryTimeChangedCallback(i.notify)
	f.interceptors[id] = i

	i.wg.Go(i.loop)

	return i, nil
}

// SetConfig changes the link of the interceptor created with id.
func (f *InterceptorFactory) SetConfig(id string, cfg network.Config) error {
	f.lock.Lock()
	i, ok := f.interceptors[id]
	f.lock.Unlock()
	if !ok {
		return fmt.Errorf("unknown interceptor id: %q", id)
	}
	return i.network.SetConfigAt(cfg, time.Now())
}

// Stats returns the link counters of the interceptor created with id.
func (f *InterceptorFactory) Stats(id string) (network.Stats, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	i, ok := f.interceptors[id]
	if !ok {
		return network.Stats{}, false
	}
	return i.network.Stats(), true
}

type packet struct {
	writer     interceptor.RTPWriter
	header     *rtp.Header
	payload    []byte
	attributes interceptor.Attributes
}

// Interceptor holds back outgoing RTP packets until the emulated link
// delivers them. Packets lost on the link are never written.
type Interceptor struct {
	interceptor.NoOp
	log       logging.LeveledLogger
	packetLog *netlog.PacketLogger
	network   *network.Network
	interval  time.Duration

	lock    sync.Mutex
	pending map[uint64]packet
	nextID  uint64

	wake      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// BindLocalStream implements interceptor.Interceptor.
func (i *Interceptor) BindLocalStream(info *interceptor.StreamInfo, writer interceptor.RTPWriter) interceptor.RTPWriter {
	return interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, attributes interceptor.Attributes) (int, error) {
		select {
		case <-i.closed:
			return 0, ErrClosed
		default:
		}
		hdr := header.Clone()
		pay := make([]byte, len(payload))
		copy(pay, payload)
		size := header.MarshalSize() + len(payload)

		i.lock.Lock()
		id := i.nextID
		i.nextID++
		i.pending[id] = packet{
			writer:     writer,
			header:     &hdr,
			payload:    pay,
			attributes: maps.Clone(attributes),
		}
		i.lock.Unlock()

		p := netemu.Packet{
			ID:       id,
			Size:     size,
			SendTime: time.Now(),
		}
		if !i.network.EnqueuePacket(p) {
			i.lock.Lock()
			delete(i.pending, id)
			i.lock.Unlock()
			i.logPacket(netlog.Rejected, p, &hdr, len(pay))
			return 0, ErrQueueOverflow
		}
		i.logPacket(netlog.Enqueued, p, &hdr, len(pay))
		return size, nil
	})
}

// Close implements interceptor.Interceptor. Packets still on the link are
// discarded.
func (i *Interceptor) Close() error {
	i.closeOnce.Do(func() {
		close(i.closed)
	})
	i.wg.Wait()
	return nil
}

func (i *Interceptor) notify() {
	select {
	case i.wake <- struct{}{}:
	default:
	}
}

func (i *Interceptor) loop() {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			i.deliver(now)
		case <-i.wake:
			i.deliver(time.Now())
		case <-i.closed:
			return
		}
	}
}

func (i *Interceptor) deliver(now time.Time) {
	for _, d := range i.network.DequeueDeliverablePackets(now) {
		i.lock.Lock()
		pkt, ok := i.pending[d.Packet.ID]
		delete(i.pending, d.Packet.ID)
		i.lock.Unlock()
		if !ok {
			i.log.Warnf("delivered unknown packet %v", d.Packet.ID)
			continue
		}
		if d.Lost {
			i.logPacket(netlog.Lost, d.Packet, pkt.header, len(pkt.payload))
			continue
		}
		if _, err := pkt.writer.Write(pkt.header, pkt.payload, pkt.attributes); err != nil {
			i.log.Warnf("error on writing RTP packet: %v", err)
			continue
		}
		i.logPacket(netlog.Delivered, d.Packet, pkt.header, len(pkt.payload))
	}
}

func (i *Interceptor) logPacket(event netlog.PacketEvent, p netemu.Packet, header *rtp.Header, payloadLen int) {
	if i.packetLog == nil {
		return
	}
	i.packetLog.LogPacket(event, p, time.Now())
	i.packetLog.LogRTPPacket(event, header, payloadLen)
}
