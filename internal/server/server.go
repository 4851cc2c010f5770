package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/tupyy/rigctl/internal/dispatch"
	"github.com/tupyy/rigctl/internal/entity"
	"github.com/tupyy/rigctl/internal/history"
	"github.com/tupyy/rigctl/internal/profile"
	"github.com/tupyy/rigctl/internal/registry"
	"go.uber.org/zap"
)

const (
	maxBodySize     = 1 << 20
	defaultRunLimit = 20
)

//go:generate mockgen -package=server -destination=mock_commander.go --build_flags=--mod=mod . Commander

// Commander is the command surface of the dispatch loop.
type Commander interface {
	StartProfile(path string) error
	StopProfile()
	ApplyManualValues(values map[string]string) error
	SelectProfileSource(path string)
	SelectLogDestination(path string)
	SetRecording(enabled bool)
	StopController(name string) error
	Snapshot() entity.Snapshot
}

type RunLister interface {
	List(limit int) ([]history.Run, error)
}

type pathRequest struct {
	Path string `json:"path"`
}

type recordingRequest struct {
	Enabled *bool `json:"enabled"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes the commands and the status of the rig over http.
type Server struct {
	commander Commander
	runs      RunLister
	metrics   http.Handler
	server    http.Server

	// ShutdownTimeout bounds the graceful shutdown of Run.
	ShutdownTimeout time.Duration
}

// New returns a server listening on addr. runs and metrics are optional.
func New(addr string, commander Commander, runs RunLister, metrics http.Handler) *Server {
	s := &Server{
		commander:       commander,
		runs:            runs,
		metrics:         metrics,
		ShutdownTimeout: 5 * time.Second,
	}
	s.server = http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/profile/start", s.startProfile).Methods(http.MethodPost)
	api.HandleFunc("/profile/stop", s.stopProfile).Methods(http.MethodPost)
	api.HandleFunc("/profile/source", s.selectProfileSource).Methods(http.MethodPut)
	api.HandleFunc("/log/destination", s.selectLogDestination).Methods(http.MethodPut)
	api.HandleFunc("/recording", s.setRecording).Methods(http.MethodPut)
	api.HandleFunc("/manual", s.applyManualValues).Methods(http.MethodPost)
	api.HandleFunc("/controllers/{name}/stop", s.stopController).Methods(http.MethodPost)
	api.HandleFunc("/status", s.status).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.listRuns).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("http server started", "address", s.server.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
		defer cancel()
		zap.S().Infow("http server stopping")
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) startProfile(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	if err := s.commander.StartProfile(req.Path); err != nil {
		zap.S().Errorw("cannot start profile", "path", req.Path, "error", err)
		writeError(w, statusOf(err), err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) stopProfile(w http.ResponseWriter, _ *http.Request) {
	s.commander.StopProfile()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) selectProfileSource(w http.ResponseWriter, r *http.Request) {
	path, ok := readPath(w, r)
	if !ok {
		return
	}
	s.commander.SelectProfileSource(path)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) selectLogDestination(w http.ResponseWriter, r *http.Request) {
	path, ok := readPath(w, r)
	if !ok {
		return
	}
	s.commander.SelectLogDestination(path)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) setRecording(w http.ResponseWriter, r *http.Request) {
	var req recordingRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, errors.New("missing 'enabled'"))
		return
	}

	s.commander.SetRecording(*req.Enabled)
	w.WriteHeader(http.StatusAccepted)
}

// applyManualValues accepts an object of channel name to value. Numbers and strings are taken
// as they are, null clears the operator target.
func (s *Server) applyManualValues(w http.ResponseWriter, r *http.Request) {
	var req map[string]interface{}
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	values := make(map[string]string, len(req))
	for name, v := range req {
		switch value := v.(type) {
		case nil:
			values[name] = ""
		case string:
			values[name] = value
		case float64:
			values[name] = strconv.FormatFloat(value, 'f', -1, 64)
		default:
			writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported value for '%s': %v", name, v))
			return
		}
	}

	if err := s.commander.ApplyManualValues(values); err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) stopController(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.commander.StopController(name); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.commander.Snapshot())
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit '%s'", l))
			return
		}
		limit = n
	}

	runs := []history.Run{}
	if s.runs != nil {
		var err error
		if runs, err = s.runs.List(limit); err != nil {
			zap.S().Errorw("cannot list runs", "error", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, runs)
}

func readPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req pathRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return "", false
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing 'path'"))
		return "", false
	}
	return req.Path, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnknownChannel):
		return http.StatusNotFound
	case errors.Is(err, profile.ErrNoSource):
		return http.StatusConflict
	case errors.Is(err, registry.ErrReadOnly), errors.Is(err, dispatch.ErrNotController), errors.Is(err, dispatch.ErrEmptyProfile):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Debugw("cannot write response", "error", err)
	}
}
