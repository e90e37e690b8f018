package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/internal/pipeline"
	"github.com/aretw0/kiln/pkg/extension"
	"github.com/aretw0/kiln/pkg/unit"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Unit states reported by /units.
const (
	StatePending = "pending"
	StateDefined = "defined"
	StateFailed  = "failed"
)

// Runtime is what the inspection API reads from.
type Runtime interface {
	// Units returns every registry unit sorted by name.
	Units() []*unit.Unit
	// Unit returns one registry unit.
	Unit(name string) (*unit.Unit, bool)
	// Modules returns the loaded extensions in load order.
	Modules() []extension.Loaded
	// Outcome reports the transformation outcome of a unit, if any.
	Outcome(name string) (pipeline.Outcome, bool)
}

// UnitSummary is one row of /units.
type UnitSummary struct {
	Name   string `json:"name"`
	Super  string `json:"super,omitempty"`
	Source string `json:"source,omitempty"`
	State  string `json:"state"`
	Domain string `json:"domain,omitempty"`
	Error  string `json:"error,omitempty"`
}

// UnitDetail is the body of /units/{name}.
type UnitDetail struct {
	UnitSummary
	Unit *unit.Unit `json:"unit"`
}

// ModuleSummary is one row of /modules.
type ModuleSummary struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Entrypoint string `json:"entrypoint"`
	Path       string `json:"path"`
	Domain     string `json:"domain"`
}

// Options configures the handler.
type Options struct {
	Version  string
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

type server struct {
	rt      Runtime
	version string
	logger  *slog.Logger
}

// NewHandler creates the read-only inspection API for rt.
func NewHandler(rt Runtime, opts Options) http.Handler {
	s := &server{rt: rt, version: opts.Version, logger: opts.Logger}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.logger = logging.Component(s.logger, "http")

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Get("/health", s.health)
	r.Get("/info", s.info)
	r.Get("/units", s.listUnits)
	r.Get("/units/{name}", s.getUnit)
	r.Get("/modules", s.listModules)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) info(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"app": "kiln", "version": s.version})
}

func (s *server) summary(u *unit.Unit) UnitSummary {
	sum := UnitSummary{
		Name:   unit.BinaryName(u.Name),
		Source: u.Source,
		State:  StatePending,
	}
	if super := u.SuperName(); super != "" {
		sum.Super = unit.BinaryName(super)
	}
	if out, ok := s.rt.Outcome(u.Name); ok {
		if out.Err != nil {
			sum.State = StateFailed
			sum.Error = out.Err.Error()
		} else {
			sum.State = StateDefined
			sum.Domain = out.Type.Domain()
		}
	}
	return sum
}

func (s *server) listUnits(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	units := s.rt.Units()
	out := make([]UnitSummary, 0, len(units))
	for _, u := range units {
		sum := s.summary(u)
		if state != "" && sum.State != state {
			continue
		}
		out = append(out, sum)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *server) getUnit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	u, ok := s.rt.Unit(name)
	if !ok {
		http.Error(w, "unit not found: "+name, http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, UnitDetail{UnitSummary: s.summary(u), Unit: u})
}

func (s *server) listModules(w http.ResponseWriter, r *http.Request) {
	mods := s.rt.Modules()
	out := make([]ModuleSummary, 0, len(mods))
	for _, m := range mods {
		ms := ModuleSummary{
			Name:       m.Descriptor.Name,
			Version:    m.Descriptor.Version,
			Entrypoint: m.Descriptor.Entrypoint,
			Path:       m.Descriptor.Path,
		}
		if m.Domain != nil {
			ms.Domain = m.Domain.Name()
		}
		out = append(out, ms)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "err", err)
	}
}
