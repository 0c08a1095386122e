package model

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/mengelbart/netemu/simulation"
)

var ErrNotFound = errors.New("simulation not found")

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Simulation struct {
	ID       int                 `json:"id"`
	Scenario simulation.Scenario `json:"scenario"`
	Result   *simulation.Result  `json:"result"`
}

// Store runs simulations and keeps their results in memory.
type Store struct {
	lock        sync.Mutex
	nextID      int
	simulations map[int]*Simulation
}

func NewStore() *Store {
	return &Store{
		lock:        sync.Mutex{},
		nextID:      1,
		simulations: map[int]*Simulation{},
	}
}

// CreateSimulation runs s and stores the result. Failed runs are not
// stored.
func (s *Store) CreateSimulation(ctx context.Context, scenario simulation.Scenario) (*Simulation, error) {
	scenario = scenario.WithDefaults()
	result, err := simulation.Run(ctx, scenario)
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	sim := &Simulation{
		ID:       s.nextID,
		Scenario: scenario,
		Result:   result,
	}
	s.nextID++
	s.simulations[sim.ID] = sim
	return sim, nil
}

// ListSimulations returns all stored simulations ordered by ID.
func (s *Store) ListSimulations() []*Simulation {
	s.lock.Lock()
	defer s.lock.Unlock()
	ids := slices.Sorted(maps.Keys(s.simulations))
	sims := make([]*Simulation, 0, len(ids))
	for _, id := range ids {
		sims = append(sims, s.simulations[id])
	}
	return sims
}

func (s *Store) GetSimulation(id int) (*Simulation, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	sim, ok := s.simulations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sim, nil
}
