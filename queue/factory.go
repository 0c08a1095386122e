package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mengelbart/netemu"
)

// ErrUnknownPolicy is returned for queue policy names that do not exist.
var ErrUnknownPolicy = errors.New("unknown queue policy")

// Policy selects the queue implementation a Factory creates.
type Policy string

const (
	LeakyBucketPolicy Policy = "leaky-bucket"
	HeadDropPolicy    Policy = "head-drop"
	DelayPolicy       Policy = "delay"
)

// Policies lists all known policies.
var Policies = []Policy{LeakyBucketPolicy, HeadDropPolicy, DelayPolicy}

func (p Policy) String() string {
	return string(p)
}

// ParsePolicy returns the policy called name. The empty string selects
// LeakyBucketPolicy.
func ParsePolicy(name string) (Policy, error) {
	if name == "" {
		return LeakyBucketPolicy, nil
	}
	for _, p := range Policies {
		if strings.EqualFold(name, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}

type Option func(*Factory) error

// WithPolicy sets the policy of created queues.
func WithPolicy(p Policy) Option {
	return func(f *Factory) error {
		if _, err := ParsePolicy(string(p)); err != nil {
			return err
		}
		f.policy = p
		return nil
	}
}

// WithCapacity sets the initial capacity of created queues.
func WithCapacity(n int) Option {
	return func(f *Factory) error {
		if n < 0 {
			return fmt.Errorf("invalid queue capacity: %v", n)
		}
		f.capacity = n
		return nil
	}
}

// WithDelay sets the per packet delay used by DelayPolicy queues.
func WithDelay(d time.Duration) Option {
	return func(f *Factory) error {
		if d < 0 {
			return fmt.Errorf("invalid queue delay: %v", d)
		}
		f.delay = d
		return nil
	}
}

// Factory creates queues of one policy. The zero value is not usable, use
// NewFactory.
type Factory struct {
	policy   Policy
	capacity int
	delay    time.Duration
}

// NewFactory returns a Factory creating LeakyBucket queues with
// netemu.DefaultMaxCapacity unless configured otherwise by opts.
func NewFactory(opts ...Option) (*Factory, error) {
	f := &Factory{
		policy:   LeakyBucketPolicy,
		capacity: netemu.DefaultMaxCapacity,
		delay:    0,
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Policy returns the policy of created queues.
func (f *Factory) Policy() Policy {
	return f.policy
}

// CreateQueue implements netemu.QueueFactory.
func (f *Factory) CreateQueue() netemu.Queue {
	switch f.policy {
	case HeadDropPolicy:
		return NewHeadDrop(f.capacity)
	case DelayPolicy:
		return NewDelay(f.capacity, f.delay)
	default:
		return NewLeakyBucket(f.capacity)
	}
}

// LeakyBucketFactory returns a factory creating LeakyBucket queues with the
// given capacity.
func LeakyBucketFactory(capacity int) netemu.QueueFactory {
	return netemu.QueueFactoryFunc(func() netemu.Queue {
		return NewLeakyBucket(capacity)
	})
}
