package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/mengelbart/netemu/internal/model"
	"github.com/mengelbart/netemu/simulation"
)

const maxRequestBodySize = 1 << 20

type SimulationService interface {
	CreateSimulation(ctx context.Context, s simulation.Scenario) (*model.Simulation, error)
	ListSimulations() []*model.Simulation
	GetSimulation(id int) (*model.Simulation, error)
}

type API struct {
	logger      *slog.Logger
	simulations SimulationService
}

func NewApi(simulations SimulationService) *API {
	return &API{
		logger:      slog.Default(),
		simulations: simulations,
	}
}

func (a *API) RegisterRoutes(mux *httprouter.Router) {
	mux.HandlerFunc("POST", "/api/v1/simulations", a.CreateSimulation)
	mux.HandlerFunc("GET", "/api/v1/simulations", a.ListSimulations)
	mux.HandlerFunc("GET", "/api/v1/simulations/:id", a.GetSimulation)
}

func (a *API) GetSimulation(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	id, err := strconv.Atoi(params.ByName("id"))
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid simulation id")
		return
	}
	sim, err := a.simulations.GetSimulation(id)
	if errors.Is(err, model.ErrNotFound) {
		a.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, sim)
}

func (a *API) ListSimulations(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.simulations.ListSimulations())
}

func (a *API) CreateSimulation(w http.ResponseWriter, r *http.Request) {
	var scenario simulation.Scenario
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&scenario); err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sim, err := a.simulations.CreateSimulation(r.Context(), scenario)
	if errors.Is(err, simulation.ErrInvalidScenario) {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.logger.Error("simulation failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Location", "/api/v1/simulations/"+strconv.Itoa(sim.ID))
	a.writeJSON(w, http.StatusCreated, sim)
}

func (a *API) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to write response", "error", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, code int, msg string) {
	a.writeJSON(w, code, model.Error{
		Code:    code,
		Message: msg,
	})
}
