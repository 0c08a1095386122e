package network

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ErrInvalidConfig is wrapped by all configuration validation errors.
var ErrInvalidConfig = errors.New("invalid network config")

// Config describes the behavior of an emulated link.
type Config struct {
	// QueueLengthPackets is the number of packets the link can hold including
	// the packet currently being serialized. Zero means the queue is only
	// bounded by netemu.DefaultMaxCapacity.
	QueueLengthPackets int `json:"queue-length-packets"`

	// QueueDelay is the mean propagation delay added after serialization.
	QueueDelay time.Duration `json:"queue-delay"`

	// DelayStdDev is the standard deviation of the normally distributed
	// jitter added to QueueDelay.
	DelayStdDev time.Duration `json:"delay-std-dev"`

	// LinkCapacity is the serialization rate in bits per second. Zero means
	// unlimited.
	LinkCapacity int64 `json:"link-capacity"`

	// LossPercent is the average packet loss in percent.
	LossPercent float64 `json:"loss-percent"`

	// AvgBurstLossLength selects uniform loss if -1, otherwise losses occur in
	// bursts with the given average length (Gilbert-Elliott model).
	AvgBurstLossLength int `json:"avg-burst-loss-length"`

	// AllowReordering lets jitter reorder packets. If false, jitter is
	// limited so that packets arrive in the order they were sent.
	AllowReordering bool `json:"allow-reordering"`

	// PacketOverhead is added to the size of every packet on enqueue.
	PacketOverhead int `json:"packet-overhead"`

	// DropOldestOnOverflow makes room for a packet the queue rejects by
	// evicting the oldest queued packet, if the queue supports eviction.
	DropOldestOnOverflow bool `json:"drop-oldest-on-overflow"`
}

// DefaultConfig returns a config for a lossless link without delay and
// capacity limit.
func DefaultConfig() Config {
	return Config{
		QueueLengthPackets:   0,
		QueueDelay:           0,
		DelayStdDev:          0,
		LinkCapacity:         0,
		LossPercent:          0,
		AvgBurstLossLength:   -1,
		AllowReordering:      false,
		PacketOverhead:       0,
		DropOldestOnOverflow: false,
	}
}

// Validate returns an error listing every invalid field of c.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.QueueLengthPackets < 0 {
		result = multierror.Append(result, fmt.Errorf("queue length must not be negative, got %v", c.QueueLengthPackets))
	}
	if c.QueueDelay < 0 {
		result = multierror.Append(result, fmt.Errorf("queue delay must not be negative, got %v", c.QueueDelay))
	}
	if c.DelayStdDev < 0 {
		result = multierror.Append(result, fmt.Errorf("delay standard deviation must not be negative, got %v", c.DelayStdDev))
	}
	if c.LinkCapacity < 0 {
		result = multierror.Append(result, fmt.Errorf("link capacity must not be negative, got %v", c.LinkCapacity))
	}
	if c.PacketOverhead < 0 {
		result = multierror.Append(result, fmt.Errorf("packet overhead must not be negative, got %v", c.PacketOverhead))
	}
	if c.LossPercent < 0 || c.LossPercent > 100 {
		result = multierror.Append(result, fmt.Errorf("loss percent must be in [0, 100], got %v", c.LossPercent))
	} else if c.AvgBurstLossLength != -1 {
		if err := c.validateBurstLoss(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) validateBurstLoss() error {
	probLoss := c.LossPercent / 100
	if probLoss >= 1 {
		return errors.New("bursty loss requires a loss percent below 100")
	}
	minLength := int(math.Ceil(probLoss / (1 - probLoss)))
	if c.AvgBurstLossLength <= minLength {
		return fmt.Errorf("for a total packet loss of %v%% the average burst loss length must be %v or higher, got %v", c.LossPercent, minLength+1, c.AvgBurstLossLength)
	}
	return nil
}

// lossProbabilities returns the probability to lose a packet while in a loss
// burst and the probability to start a burst.
func (c Config) lossProbabilities() (bursting, start float64) {
	probLoss := c.LossPercent / 100
	if c.AvgBurstLossLength == -1 {
		return probLoss, probLoss
	}
	avg := float64(c.AvgBurstLossLength)
	return 1 - 1/avg, probLoss / (1 - probLoss) / avg
}
