package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/mengelbart/netemu"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, JSONFormat, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestPacketLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewPacketLogger("link", newJSONLogger(&buf))

	now := time.Unix(10, 0)
	l.LogPacket(Delivered, netemu.Packet{ID: 7, Size: 100, SendTime: now.Add(-time.Second)}, now)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "delivered", record["msg"])
	assert.Equal(t, "link", record["vantage-point"])
	pkt, ok := record["packet"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(7), pkt["id"])
	assert.Equal(t, float64(time.Second), pkt["sojourn"])
}

func TestPacketLoggerRTP(t *testing.T) {
	var buf bytes.Buffer
	l := NewPacketLogger("sender", newJSONLogger(&buf))
	l.LogRTPPacket(Lost, &rtp.Header{Version: 2, SequenceNumber: 3, SSRC: 1}, 10)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	pkt := record["packet"].(map[string]any)
	assert.Equal(t, float64(3), pkt["unwrapped-sequence-number"])
	assert.Equal(t, float64(22), pkt["payload-length"])
}

func TestLoggerFactory(t *testing.T) {
	var buf bytes.Buffer
	f := NewLoggerFactory(newJSONLogger(&buf))
	l := f.NewLogger("network")
	l.Warnf("queue %v full", "a")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "queue a full", record["msg"])
	assert.Equal(t, "network", record["scope"])
	assert.Equal(t, "WARN", record["level"])
}
