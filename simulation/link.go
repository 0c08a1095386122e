package simulation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mengelbart/netemu"
	"github.com/mengelbart/netemu/network"
	"github.com/mengelbart/netemu/queue"
)

// Duration is a time.Duration which is written to JSON as a string like
// "20ms". It can be read from such a string or from a number of nanoseconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration: %s", b)
	}
	return nil
}

// Link describes an emulated path.
type Link struct {
	QueueLengthPackets int      `json:"queue-length-packets"`
	QueueDelay         Duration `json:"queue-delay"`
	DelayStdDev        Duration `json:"delay-std-dev"`
	LinkCapacity       int64    `json:"link-capacity"`
	LossPercent        float64  `json:"loss-percent"`

	// AvgBurstLossLength selects uniform loss if zero or -1.
	AvgBurstLossLength   int  `json:"avg-burst-loss-length"`
	AllowReordering      bool `json:"allow-reordering"`
	PacketOverhead       int  `json:"packet-overhead"`
	DropOldestOnOverflow bool `json:"drop-oldest-on-overflow"`

	// Policy names the queue policy, see queue.ParsePolicy.
	Policy string `json:"policy,omitempty"`

	// PolicyDelay is the sojourn time of the delay policy.
	PolicyDelay Duration `json:"policy-delay,omitempty"`
}

// NetworkConfig returns l as a network configuration.
func (l Link) NetworkConfig() network.Config {
	burst := l.AvgBurstLossLength
	if burst == 0 {
		burst = -1
	}
	return network.Config{
		QueueLengthPackets:   l.QueueLengthPackets,
		QueueDelay:           time.Duration(l.QueueDelay),
		DelayStdDev:          time.Duration(l.DelayStdDev),
		LinkCapacity:         l.LinkCapacity,
		LossPercent:          l.LossPercent,
		AvgBurstLossLength:   burst,
		AllowReordering:      l.AllowReordering,
		PacketOverhead:       l.PacketOverhead,
		DropOldestOnOverflow: l.DropOldestOnOverflow,
	}
}

// QueueFactory returns a factory for the queue policy of l.
func (l Link) QueueFactory() (netemu.QueueFactory, error) {
	policy, err := queue.ParsePolicy(l.Policy)
	if err != nil {
		return nil, err
	}
	f, err := queue.NewFactory(
		queue.WithPolicy(policy),
		queue.WithDelay(time.Duration(l.PolicyDelay)),
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (l Link) validate() error {
	if err := l.NetworkConfig().Validate(); err != nil {
		return err
	}
	_, err := l.QueueFactory()
	return err
}
