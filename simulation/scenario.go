// Package simulation runs synthetic RTP streams over emulated links on a
// simulated clock.
package simulation

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"
)

var ErrInvalidScenario = errors.New("invalid scenario")

const (
	defaultTick        = Duration(time.Millisecond)
	defaultPayloadSize = 1200
)

// LinkChange replaces the link configuration At after the start of a
// scenario. The queue policy of a run is fixed, so Link must not set Policy
// or PolicyDelay.
type LinkChange struct {
	At   Duration `json:"at"`
	Link Link     `json:"link"`
}

// Scenario describes one simulation run.
type Scenario struct {
	Name     string   `json:"name"`
	Duration Duration `json:"duration"`

	// Tick is the step of the simulated clock.
	Tick Duration `json:"tick,omitempty"`

	// Bitrate is the sending rate of the source in bits per second.
	Bitrate     int    `json:"bitrate"`
	PayloadSize int    `json:"payload-size,omitempty"`
	SSRC        uint32 `json:"ssrc,omitempty"`
	Seed        uint64 `json:"seed"`

	Link        Link         `json:"link"`
	LinkChanges []LinkChange `json:"link-changes,omitempty"`
}

// WithDefaults returns s with unset optional fields set to their defaults.
func (s Scenario) WithDefaults() Scenario {
	if s.Tick == 0 {
		s.Tick = defaultTick
	}
	if s.PayloadSize == 0 {
		s.PayloadSize = defaultPayloadSize
	}
	s.LinkChanges = slices.Clone(s.LinkChanges)
	slices.SortStableFunc(s.LinkChanges, func(a, b LinkChange) int {
		return cmp.Compare(a.At, b.At)
	})
	return s
}

// Validate returns an error listing every problem of s.
func (s Scenario) Validate() error {
	var result *multierror.Error
	if s.Duration <= 0 {
		result = multierror.Append(result, fmt.Errorf("duration must be positive, got %v", time.Duration(s.Duration)))
	}
	if s.Tick < 0 {
		result = multierror.Append(result, fmt.Errorf("tick must not be negative, got %v", time.Duration(s.Tick)))
	}
	if s.Bitrate <= 0 {
		result = multierror.Append(result, fmt.Errorf("bitrate must be positive, got %v", s.Bitrate))
	}
	if s.PayloadSize < 0 {
		result = multierror.Append(result, fmt.Errorf("payload size must not be negative, got %v", s.PayloadSize))
	}
	if err := s.Link.validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("link: %w", err))
	}
	for i, c := range s.LinkChanges {
		if c.At < 0 {
			result = multierror.Append(result, fmt.Errorf("link change %v: time must not be negative", i))
		}
		if err := c.Link.validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("link change %v: %w", i, err))
		}
		// the queue is created once per run
		if c.Link.Policy != "" || c.Link.PolicyDelay != 0 {
			result = multierror.Append(result, fmt.Errorf("link change %v: queue policy cannot change during a run", i))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		if s.Name != "" {
			return fmt.Errorf("%w %q: %w", ErrInvalidScenario, s.Name, err)
		}
		return fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	return nil
}

// ParseScenarios reads a JSON scenario or a JSON array of scenarios.
func ParseScenarios(data []byte) ([]Scenario, error) {
	data = bytes.TrimSpace(data)
	scenarios := []Scenario{}
	if bytes.HasPrefix(data, []byte("[")) {
		if err := json.Unmarshal(data, &scenarios); err != nil {
			return nil, fmt.Errorf("failed to parse scenarios: %w", err)
		}
	} else {
		var s Scenario
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse scenario: %w", err)
		}
		scenarios = append(scenarios, s)
	}
	for i, s := range scenarios {
		if s.Name == "" {
			s.Name = fmt.Sprintf("scenario-%v", i)
		}
		scenarios[i] = s.WithDefaults()
		if err := scenarios[i].Validate(); err != nil {
			return nil, err
		}
	}
	return scenarios, nil
}

// LoadScenarios reads scenarios from the JSON file at path.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenarios(data)
}
