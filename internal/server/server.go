// Package server exposes the minimization drivers over HTTP: runs are
// submitted as jobs, executed asynchronously, and polled for their
// terminal status and best point.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/peakline/descent/internal/config"
	"github.com/peakline/descent/internal/logging"
	"github.com/peakline/descent/internal/optimization"
	"github.com/peakline/descent/internal/optimization/conjgrad"
	"github.com/peakline/descent/internal/optimization/functions"
)

var (
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "descent_runs_started_total",
		Help: "Minimization runs submitted.",
	})
	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "descent_runs_finished_total",
		Help: "Minimization runs finished, by terminal status.",
	}, []string{"status"})
	runFunEvals = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "descent_run_fun_evals",
		Help:    "Function evaluations per finished run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	runIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "descent_run_iterations",
		Help:    "Outer iterations per finished run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// Logger is the logging interface used by the server.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Job tracks one minimization run from submission to its terminal
// status.
type Job struct {
	ID        string               `json:"id"`
	Objective string               `json:"objective"`
	State     string               `json:"state"` // "pending", "running", "done"
	Submitted time.Time            `json:"submitted"`
	Finished  *time.Time           `json:"finished,omitempty"`
	Result    *optimization.Result `json:"-"`
}

// Server implements the HTTP API over the optimization drivers.
type Server struct {
	cfg    *config.Config
	logger Logger

	jobs   map[string]*Job
	jobsMu sync.RWMutex
	nextID int
}

// NewServer creates a server with the given config and logger.
func NewServer(cfg *config.Config, logger Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[string]*Job),
	}
}

// RegisterRoutes mounts the API on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/minimize", s.handleMinimize)
		r.Get("/jobs", s.handleJobs)
		r.Get("/jobs/{id}", s.handleJob)
	})
}

// minimizeRequest is the submission payload. Omitted parameters take
// the conventional defaults; the evaluation and iteration caps are
// clamped to the service-wide limits.
type minimizeRequest struct {
	Objective string    `json:"objective"`
	Dim       int       `json:"dim,omitempty"`
	X0        []float64 `json:"x0"`
	Method    string    `json:"method,omitempty"`  // "ncg" (default) or "sd"
	Formula   string    `json:"formula,omitempty"` // "fr", "pr", "hs", "dy"
	Restart   int       `json:"r_start,omitempty"`

	Eps         *float64 `json:"eps,omitempty"`
	MaxFunEvals *int     `json:"max_f_eval,omitempty"`
	MaxIter     *int     `json:"max_iter,omitempty"`
	M1          *float64 `json:"m1,omitempty"`
	M2          *float64 `json:"m2,omitempty"`
	StepStart   *float64 `json:"a_start,omitempty"`
	Tau         *float64 `json:"tau,omitempty"`
	Safeguard   *float64 `json:"sfgrd,omitempty"`
	MInf        *float64 `json:"m_inf,omitempty"`
	MinStep     *float64 `json:"min_a,omitempty"`
	BatchSize   int      `json:"batch_size,omitempty"`
	Seed        int64    `json:"seed,omitempty"`
}

func (s *Server) buildConfig(req *minimizeRequest) (conjgrad.Config, error) {
	cfg := conjgrad.DefaultConfig()
	cfg.Eps = s.cfg.Optimizer.Eps
	cfg.MaxFunEvals = s.cfg.Optimizer.MaxFunEvals
	cfg.MaxIter = s.cfg.Optimizer.MaxIter

	if req.Formula != "" {
		formula, ok := conjgrad.ParseFormula(req.Formula)
		if !ok {
			return cfg, fmt.Errorf("unknown formula %q", req.Formula)
		}
		cfg.Formula = formula
	}
	cfg.RestartPeriod = req.Restart
	cfg.BatchSize = req.BatchSize
	cfg.Seed = req.Seed

	if req.Eps != nil {
		cfg.Eps = *req.Eps
	}
	if req.MaxFunEvals != nil && *req.MaxFunEvals < cfg.MaxFunEvals {
		cfg.MaxFunEvals = *req.MaxFunEvals
	}
	if req.MaxIter != nil && *req.MaxIter < cfg.MaxIter {
		cfg.MaxIter = *req.MaxIter
	}
	if req.M1 != nil {
		cfg.M1 = *req.M1
	}
	if req.M2 != nil {
		cfg.M2 = *req.M2
	}
	if req.StepStart != nil {
		cfg.StepStart = *req.StepStart
	}
	if req.Tau != nil {
		cfg.Tau = *req.Tau
	}
	if req.Safeguard != nil {
		cfg.Safeguard = *req.Safeguard
	}
	if req.MInf != nil {
		cfg.MInf = *req.MInf
	}
	if req.MinStep != nil {
		cfg.MinStep = *req.MinStep
	}
	return cfg, nil
}

func (s *Server) handleMinimize(w http.ResponseWriter, r *http.Request) {
	var req minimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Objective == "" {
		s.respondError(w, http.StatusBadRequest, "objective is required")
		return
	}

	dim := req.Dim
	if dim == 0 {
		dim = len(req.X0)
	}
	obj, err := functions.ByName(req.Objective, dim)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	x0 := req.X0
	if x0 == nil {
		x0 = make([]float64, obj.Dim())
	}

	cfg, err := s.buildConfig(&req)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	zlog := logging.NewZapLogger(s.logger.WithFields(nil))
	var opt *conjgrad.Optimizer
	if req.Method == "sd" {
		opt, err = conjgrad.NewSteepestDescent(obj, x0, cfg, zlog)
	} else {
		opt, err = conjgrad.New(obj, x0, cfg, zlog)
	}
	if err != nil {
		// Construction-time validation failure: the parameters were out
		// of domain, the run never started.
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.jobsMu.Lock()
	s.nextID++
	id := fmt.Sprintf("job_%d", s.nextID)
	job := &Job{
		ID:        id,
		Objective: req.Objective,
		State:     "pending",
		Submitted: time.Now(),
	}
	s.jobs[id] = job
	s.jobsMu.Unlock()

	runsStarted.Inc()
	go s.run(job, opt)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"job_id": id,
		"state":  "pending",
	})
}

// run executes one minimization to its terminal status. The run is not
// cancellable: the evaluation and iteration budgets are the only
// stopping controls.
func (s *Server) run(job *Job, opt *conjgrad.Optimizer) {
	s.jobsMu.Lock()
	job.State = "running"
	s.jobsMu.Unlock()

	_, status := opt.Minimize()
	result := opt.Result()

	s.jobsMu.Lock()
	job.State = "done"
	job.Result = &result
	now := time.Now()
	job.Finished = &now
	s.jobsMu.Unlock()

	runsFinished.WithLabelValues(status.String()).Inc()
	runFunEvals.Observe(float64(result.FunEvals))
	runIterations.Observe(float64(result.Iterations))

	s.logger.Info("Minimization finished", map[string]interface{}{
		"job_id":     job.ID,
		"objective":  job.Objective,
		"status":     status.String(),
		"value":      result.Value,
		"iterations": result.Iterations,
		"f_eval":     result.FunEvals,
	})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.jobsMu.RLock()
	job, ok := s.jobs[id]
	var resp map[string]interface{}
	if ok {
		resp = map[string]interface{}{
			"id":        job.ID,
			"objective": job.Objective,
			"state":     job.State,
			"submitted": job.Submitted.Format(time.RFC3339),
		}
		if job.Finished != nil {
			resp["finished"] = job.Finished.Format(time.RFC3339)
		}
		if job.Result != nil {
			resp["result"] = map[string]interface{}{
				"x":          job.Result.X,
				"value":      job.Result.Value,
				"status":     job.Result.Status.String(),
				"iterations": job.Result.Iterations,
				"f_eval":     job.Result.FunEvals,
			}
		}
	}
	s.jobsMu.RUnlock()

	if !ok {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	s.jobsMu.RLock()
	list := make([]map[string]string, 0, len(s.jobs))
	for _, job := range s.jobs {
		list = append(list, map[string]string{
			"id":    job.ID,
			"state": job.State,
		})
	}
	s.jobsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"jobs": list})
}

func (s *Server) respondError(w http.ResponseWriter, code int, message string) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
