// Package udp forwards RTP datagrams between UDP sockets through an
// interceptor chain.
package udp

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

const maxDatagramSize = 1500

// Relay reads RTP packets from a socket and writes everything the
// interceptor chain lets through to a remote address.
type Relay struct {
	logger *slog.Logger
	conn   net.PacketConn
	remote net.Addr

	interceptor interceptor.Interceptor
	writer      interceptor.RTPWriter
}

func NewRelay(conn net.PacketConn, remote net.Addr, i interceptor.Interceptor) *Relay {
	r := &Relay{
		logger:      slog.Default(),
		conn:        conn,
		remote:      remote,
		interceptor: i,
		writer:      nil,
	}
	r.writer = i.BindLocalStream(&interceptor.StreamInfo{}, interceptor.RTPWriterFunc(r.write))
	return r
}

func (r *Relay) write(header *rtp.Header, payload []byte, _ interceptor.Attributes) (int, error) {
	pkt := &rtp.Packet{
		Header:  *header,
		Payload: payload,
	}
	buf, err := pkt.Marshal()
	if err != nil {
		return 0, err
	}
	return r.conn.WriteTo(buf, r.remote)
}

// Run relays packets until ctx is canceled or reading fails. It closes the
// socket and the interceptor chain on return.
func (r *Relay) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		r.conn.Close()
	})
	defer stop()
	defer r.interceptor.Close()

	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			r.logger.Debug("dropping non RTP datagram", "from", from, "error", err)
			continue
		}
		if _, err := r.writer.Write(&pkt.Header, pkt.Payload, interceptor.Attributes{}); err != nil {
			r.logger.Debug("packet not relayed", "sequence-number", pkt.SequenceNumber, "error", err)
		}
	}
}
