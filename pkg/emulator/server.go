package emulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/3s-rg-codes/faasruntime/pkg/runtimeAPI"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InvokePath is where clients post events for the function.
const InvokePath = "/2015-03-31/functions/function/invocations"

// HeaderFunctionError marks an invoke response carrying a function error.
const HeaderFunctionError = "X-Amz-Function-Error"

const queueSize = 128

// ErrInitFailed is returned by Invoke once the function reported an init error.
var ErrInitFailed = errors.New("function initialization failed")

type Config struct {
	Address      string
	FunctionName string
	FunctionArn  string
	Timeout      time.Duration
}

// Result is what the function reported for one invocation.
type Result struct {
	Payload []byte
	Error   *runtimeAPI.InvocationError
}

func (r Result) Failed() bool {
	return r.Error != nil
}

type invocation struct {
	ctx       context.Context
	requestID string
	traceID   string
	payload   []byte
	result    chan Result
}

// Server plays the control plane for a single function process: it hands
// out queued events on the next invocation call and routes the reported
// results back to the waiting caller.
type Server struct {
	config  Config
	logger  *slog.Logger
	metrics *metrics
	router  chi.Router

	pending      chan *invocation
	shutdown     chan struct{}
	shutdownOnce sync.Once

	mu       sync.Mutex
	inFlight map[string]*invocation
	// expired holds handed out invocations whose caller gave up; the
	// function may still report them.
	expired map[string]struct{}
	initErr *runtimeAPI.InvocationError
}

type completion int

const (
	completed completion = iota
	late
	unknown
)

func NewServer(config Config, logger *slog.Logger) *Server {
	if config.FunctionName == "" {
		config.FunctionName = "function"
	}
	if config.FunctionArn == "" {
		config.FunctionArn = fmt.Sprintf("arn:aws:lambda:local:000000000000:function:%s", config.FunctionName)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	s := &Server{
		config:   config,
		logger:   logger,
		metrics:  newMetrics(logger),
		pending:  make(chan *invocation, queueSize),
		shutdown: make(chan struct{}),
		inFlight: make(map[string]*invocation),
		expired:  make(map[string]struct{}),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route(runtimeAPI.BasePath, func(r chi.Router) {
		r.Get("/invocation/next", s.handleNext)
		r.Post("/invocation/{requestID}/response", s.handleResponse)
		r.Post("/invocation/{requestID}/error", s.handleError)
		r.Post("/init/error", s.handleInitError)
	})
	r.Post(InvokePath, s.handleInvoke)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then shuts the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.config.Address,
		Handler: s.router,
	}
	server.RegisterOnShutdown(s.Close)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Emulator listening", "address", s.config.Address, "function", s.config.FunctionName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Gracefully shutting down emulator")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("emulator forced to shutdown: %w", err)
	}
	s.logger.Info("Emulator gracefully stopped")
	return nil
}

// Close releases runtimes blocked on the next invocation call.
func (s *Server) Close() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
	})
}

// Invoke queues payload for the function and waits for its result.
func (s *Server) Invoke(ctx context.Context, payload []byte) (Result, error) {
	if initErr := s.initError(); initErr != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrInitFailed, initErr.ErrorMessage)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	inv := &invocation{
		ctx:       ctx,
		requestID: uuid.New().String(),
		traceID:   newTraceID(),
		payload:   payload,
		result:    make(chan Result, 1),
	}

	s.metrics.invocations.Inc()
	start := time.Now()
	defer func() {
		s.metrics.duration.Observe(time.Since(start).Seconds())
	}()

	s.logger.Debug("Queueing invocation", "request ID", inv.requestID)
	select {
	case s.pending <- inv:
	case <-ctx.Done():
		return Result{}, fmt.Errorf("queue invocation %s: %w", inv.requestID, ctx.Err())
	}

	select {
	case result := <-inv.result:
		return result, nil
	case <-ctx.Done():
		s.expire(inv.requestID)
		return Result{}, fmt.Errorf("invocation %s: %w", inv.requestID, ctx.Err())
	}
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.shutdown:
			http.Error(w, "emulator shutting down", http.StatusServiceUnavailable)
			return
		case inv := <-s.pending:
			if inv.ctx.Err() != nil {
				continue
			}

			s.mu.Lock()
			initErr := s.initErr
			if initErr == nil {
				s.inFlight[inv.requestID] = inv
			}
			s.mu.Unlock()
			if initErr != nil {
				inv.result <- Result{Error: initErr}
				continue
			}
			s.metrics.inFlight.Inc()

			deadline, _ := inv.ctx.Deadline()
			h := w.Header()
			h.Set(runtimeAPI.HeaderRequestID, inv.requestID)
			h.Set(runtimeAPI.HeaderDeadlineMs, strconv.FormatInt(deadline.UnixMilli(), 10))
			h.Set(runtimeAPI.HeaderInvokedFunctionArn, s.config.FunctionArn)
			h.Set(runtimeAPI.HeaderTraceID, inv.traceID)
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)

			if _, err := w.Write(inv.payload); err != nil {
				s.logger.Error("Error writing invocation", "request ID", inv.requestID, "error", err)
			}
			s.logger.Debug("Handed out invocation", "request ID", inv.requestID)
			return
		}
	}
}

func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	switch s.complete(requestID, Result{Payload: body}) {
	case unknown:
		http.Error(w, "unknown request id", http.StatusNotFound)
		return
	case completed:
		s.metrics.responses.Inc()
	}
	writeAccepted(w)
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	invocationErr, err := readInvocationError(r)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	switch s.complete(requestID, Result{Error: invocationErr}) {
	case unknown:
		http.Error(w, "unknown request id", http.StatusNotFound)
		return
	case completed:
		s.metrics.errors.WithLabelValues("invocation").Inc()
	}
	writeAccepted(w)
}

func (s *Server) handleInitError(w http.ResponseWriter, r *http.Request) {
	initErr, err := readInvocationError(r)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	s.logger.Error("Function reported init error", "message", initErr.ErrorMessage, "type", initErr.ErrorType)
	s.metrics.errors.WithLabelValues("init").Inc()

	s.mu.Lock()
	s.initErr = initErr
	for id, inv := range s.inFlight {
		inv.result <- Result{Error: initErr}
		delete(s.inFlight, id)
		s.metrics.inFlight.Dec()
	}
	s.mu.Unlock()

	for {
		select {
		case inv := <-s.pending:
			inv.result <- Result{Error: initErr}
		default:
			writeAccepted(w)
			return
		}
	}
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	result, err := s.Invoke(r.Context(), payload)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, runtimeAPI.InvocationError{ErrorMessage: err.Error(), ErrorType: "EmulatorError"})
		return
	}

	if result.Failed() {
		w.Header().Set(HeaderFunctionError, "Unhandled")
		writeJSON(w, http.StatusOK, result.Error)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Payload); err != nil {
		s.logger.Error("Error writing response", "error", err)
	}
}

// complete hands result to the waiting caller. A result for an invocation
// that already timed out is accepted once and dropped.
func (s *Server) complete(requestID string, result Result) completion {
	s.mu.Lock()
	inv, ok := s.inFlight[requestID]
	if ok {
		delete(s.inFlight, requestID)
	}
	_, expired := s.expired[requestID]
	if expired {
		delete(s.expired, requestID)
	}
	s.mu.Unlock()

	switch {
	case ok:
		s.metrics.inFlight.Dec()
		inv.result <- result
		return completed
	case expired:
		s.logger.Warn("Dropping late result for timed out invocation", "request ID", requestID, "failed", result.Failed())
		s.metrics.lateResults.Inc()
		return late
	default:
		s.logger.Warn("Result for unknown request", "request ID", requestID)
		return unknown
	}
}

// expire removes a handed out invocation whose caller stopped waiting and
// keeps its id so the function's late report is still accepted.
func (s *Server) expire(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[requestID]; ok {
		delete(s.inFlight, requestID)
		s.expired[requestID] = struct{}{}
		s.metrics.inFlight.Dec()
	}
}

func (s *Server) initError() *runtimeAPI.InvocationError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initErr
}

func readInvocationError(r *http.Request) (*runtimeAPI.InvocationError, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	var invocationErr runtimeAPI.InvocationError
	if err := json.Unmarshal(body, &invocationErr); err != nil {
		invocationErr = runtimeAPI.InvocationError{ErrorMessage: string(body), ErrorType: "Unknown"}
	}
	return &invocationErr, nil
}

func writeAccepted(w http.ResponseWriter) {
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "OK"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newTraceID builds an X-Ray style trace header.
func newTraceID() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("Root=1-%08x-%s;Sampled=0", time.Now().Unix(), id[:24])
}
