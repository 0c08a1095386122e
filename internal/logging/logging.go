package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mengelbart/netemu"
	"github.com/mengelbart/netemu/internal/sequence"
	"github.com/pion/rtp"
)

type Format string

const (
	TextFormat Format = "text"
	JSONFormat Format = "json"
)

// ParseFormat validates a format name as given on the command line.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case TextFormat, JSONFormat:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format: %q", s)
	}
}

func Configure(format Format, level slog.Level, writer io.Writer) {
	if writer == nil {
		writer = os.Stderr
	}
	ho := &slog.HandlerOptions{
		AddSource:   false,
		Level:       level,
		ReplaceAttr: nil,
	}
	switch format {
	case JSONFormat:
		slog.SetDefault(slog.New(slog.NewJSONHandler(writer, ho)))
	case TextFormat:
		slog.SetDefault(slog.New(slog.NewTextHandler(writer, ho)))
	default:
		panic(fmt.Sprintf("unexpected logging.format: %#v", format))
	}
}

// PacketEvent names what happened to a packet on an emulated link.
type PacketEvent string

const (
	Enqueued  PacketEvent = "enqueued"
	Rejected  PacketEvent = "rejected"
	Evicted   PacketEvent = "evicted"
	Delivered PacketEvent = "delivered"
	Lost      PacketEvent = "lost"
)

// PacketLogger writes one debug record per packet event. It is safe for
// concurrent use.
type PacketLogger struct {
	logger *slog.Logger

	lock sync.Mutex
	seq  *sequence.Unwrapper
}

func NewPacketLogger(vantagePoint string, logger *slog.Logger) *PacketLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &PacketLogger{
		logger: logger.With("vantage-point", vantagePoint).WithGroup("packet"),
		seq:    &sequence.Unwrapper{},
	}
}

func (l *PacketLogger) LogPacket(event PacketEvent, p netemu.Packet, now time.Time) {
	l.logger.Debug(
		string(event),
		"id", p.ID,
		"size", p.Size,
		"send-time", p.SendTime,
		"time", now,
		"sojourn", now.Sub(p.SendTime),
	)
}

func (l *PacketLogger) LogRTPPacket(event PacketEvent, header *rtp.Header, payloadLen int) {
	l.lock.Lock()
	u := l.seq.Unwrap(header.SequenceNumber)
	l.lock.Unlock()
	l.logger.Debug(
		string(event),
		"version", header.Version,
		"padding", header.Padding,
		"marker", header.Marker,
		"payload-type", header.PayloadType,
		"sequence-number", header.SequenceNumber,
		"unwrapped-sequence-number", u,
		"timestamp", header.Timestamp,
		"ssrc", header.SSRC,
		"payload-length", header.MarshalSize()+payloadLen,
	)
}
