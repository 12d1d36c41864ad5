package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/whatsagent/landing/internal/experiment"
	ihttp "github.com/whatsagent/landing/internal/http"

	"github.com/go-chi/chi/v5"
)

var errMissingVisitor = errors.New("visitor missing from request context")

type Experiment struct{ API }

func (ep Experiment) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := ihttp.VisitorFromContext(r.Context())
	if !ok {
		ihttp.ErrInternal(ep.logger, w, errMissingVisitor)
		return
	}

	assignment, err := ep.experiments.Assign(r.Context(), visitorID, chi.URLParam(r, "key"))
	if errors.Is(err, experiment.ErrUnknownExperiment) {
		ihttp.ErrNotFound(w)
		return
	}
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}
	ep.countExposures([]experiment.Assignment{assignment})

	if err := json.NewEncoder(w).Encode(assignment); err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
	}
}

type Conversion struct{ API }

func (ep Conversion) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := ihttp.VisitorFromContext(r.Context())
	if !ok {
		ihttp.ErrInternal(ep.logger, w, errMissingVisitor)
		return
	}

	assignment, counted, err := ep.experiments.Convert(r.Context(), visitorID, chi.URLParam(r, "key"))
	if errors.Is(err, experiment.ErrUnknownExperiment) {
		ihttp.ErrNotFound(w)
		return
	}
	if errors.Is(err, experiment.ErrNotAssigned) {
		ihttp.ErrConflict(w)
		return
	}
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	if counted {
		ep.metrics.ExperimentConverted(assignment.Experiment, assignment.Variant)
	}

	w.WriteHeader(http.StatusNoContent)
}

type ExperimentStats struct{ API }

func (ep ExperimentStats) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Experiment string                    `json:"experiment"`
		Variants   []experiment.VariantStats `json:"variants"`
	}

	key := chi.URLParam(r, "key")
	stats, err := ep.experiments.Stats(r.Context(), key)
	if errors.Is(err, experiment.ErrUnknownExperiment) {
		ihttp.ErrNotFound(w)
		return
	}
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(response{Experiment: key, Variants: stats}); err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
	}
}

func (api API) countExposures(assignments []experiment.Assignment) {
	for _, assignment := range assignments {
		if assignment.New {
			api.metrics.ExperimentExposed(assignment.Experiment, assignment.Variant)
		}
	}
}
