package functionRuntimeInterface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/3s-rg-codes/faasruntime/pkg/runtimeAPI"
	"github.com/3s-rg-codes/faasruntime/pkg/utils"
)

// RuntimeAPI is the control plane seen from the function. runtimeAPI.Client implements it.
type RuntimeAPI interface {
	Next(ctx context.Context) ([]byte, http.Header, error)
	PostResponse(ctx context.Context, requestID string, body []byte) error
	PostError(ctx context.Context, requestID string, invocationErr error) error
	PostInitError(ctx context.Context, initErr error) error
}

// Runtime pulls invocations from the control plane one at a time, dispatches
// them to the active handler and reports the result.
type Runtime struct {
	api         RuntimeAPI
	environment *Environment
	handlerName string
	handlers    map[string]Handler
	logger      *slog.Logger

	stopped     atomic.Bool
	invocations atomic.Int64
}

type Option func(*options)

type options struct {
	logger  *slog.Logger
	api     RuntimeAPI
	timeout time.Duration
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRuntimeAPI replaces the HTTP client built from AWS_LAMBDA_RUNTIME_API.
func WithRuntimeAPI(api RuntimeAPI) Option {
	return func(o *options) { o.api = api }
}

// WithRequestTimeout overrides FAAS_REQUEST_TIMEOUT.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *options) { o.timeout = timeout }
}

// New reads AWS_LAMBDA_RUNTIME_API and _HANDLER from the environment. It
// fails if either is missing or if the handler selector has no dot.
func New(environment *Environment, opts ...Option) (*Runtime, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	settings, err := loadRuntimeSettings(environment)
	if err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger, err = utils.NewLogger(settings.logConfig())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}

	api := o.api
	if api == nil {
		timeout := settings.RequestTimeout
		if o.timeout > 0 {
			timeout = o.timeout
		}
		api, err = runtimeAPI.NewClient(settings.runtimeAPI, timeout, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}

	return &Runtime{
		api:         api,
		environment: environment,
		handlerName: settings.handlerName,
		handlers:    make(map[string]Handler),
		logger:      logger.With("handler", settings.handlerSelector),
	}, nil
}

// Register adds handler under name, replacing any previous one. Registration
// must happen before Run.
func (r *Runtime) Register(name string, handler Handler) {
	r.handlers[name] = handler
}

// HandlerName is the active handler resolved from the selector.
func (r *Runtime) HandlerName() string {
	return r.handlerName
}

// Invocations returns the number of invocations handled so far.
func (r *Runtime) Invocations() int64 {
	return r.invocations.Load()
}

// Stop makes Run return at the start of its next iteration. It does not
// interrupt an invocation in progress.
func (r *Runtime) Stop() {
	r.stopped.Store(true)
}

func (r *Runtime) cancelled(ctx context.Context) bool {
	return r.stopped.Load() || ctx.Err() != nil
}

// Run loops until Stop is called, ctx is done, or a fatal error occurs.
// Handler failures are reported to the control plane and never stop the loop.
// ctx only cuts short the wait for the next invocation: once an invocation is
// received, its dispatch and report run to completion.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("Runtime started", "handler name", r.handlerName)
	defer func() {
		r.logger.Info("Runtime stopped", "invocations", r.Invocations())
	}()

	for !r.cancelled(ctx) {
		if err := r.handleNext(ctx); err != nil {
			r.logger.Error("Runtime failed", "error", err)
			return err
		}
	}
	return nil
}

func (r *Runtime) handleNext(ctx context.Context) error {
	payload, headers, err := r.api.Next(ctx)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, runtimeAPI.ErrProtocol) {
			// Interrupted while waiting, nothing was received.
			return nil
		}
		return fmt.Errorf("get next invocation: %w", err)
	}
	ctx = context.WithoutCancel(ctx)
	r.logger.Debug("Received invocation", "request ID", headers.Get(runtimeAPI.HeaderRequestID), "size", len(payload))

	if traceID := headers.Get(runtimeAPI.HeaderTraceID); traceID != "" {
		r.environment.SetIfAbsent(EnvTraceID, traceID)
	}

	handler, ok := r.handlers[r.handlerName]
	if !ok {
		initErr := &MissingEnvironmentVariableError{Key: EnvHandler}
		r.logger.Error("No handler registered", "handler name", r.handlerName)
		if err := r.api.PostInitError(ctx, initErr); err != nil {
			return fmt.Errorf("post init error: %w", err)
		}
		return fmt.Errorf("handler %q not registered: %w", r.handlerName, initErr)
	}

	md, err := NewMetadata(r.environment.Snapshot(), headers)
	if err != nil {
		return r.reportMetadataError(ctx, headers, err)
	}

	handlerCtx, cancel := context.WithDeadline(ctx, md.Deadline())
	defer cancel()

	start := time.Now()
	result := handler.Dispatch(handlerCtx, payload, md)
	logger := r.logger.With("request ID", md.RequestID, "duration", time.Since(start))

	if result.Failed() {
		stage := Stage("")
		var handlerErr *HandlerError
		if errors.As(result.Err, &handlerErr) {
			stage = handlerErr.Stage
		}
		logger.Warn("Function failed", "stage", stage, "error", result.Err)

		if err := r.api.PostError(ctx, md.RequestID, result.Err); err != nil {
			return fmt.Errorf("post invocation error: %w", err)
		}
	} else {
		logger.Debug("Function handler called and generated response", "size", len(result.Payload))

		if err := r.api.PostResponse(ctx, md.RequestID, result.Payload); err != nil {
			return fmt.Errorf("post invocation response: %w", err)
		}
	}

	r.invocations.Add(1)
	return nil
}

// reportMetadataError fails only the current invocation when a header is
// missing or malformed and the request id is known. A missing request id or
// a missing environment variable is fatal.
func (r *Runtime) reportMetadataError(ctx context.Context, headers http.Header, err error) error {
	requestID := headers.Get(runtimeAPI.HeaderRequestID)
	if requestID == "" || !errors.Is(err, ErrMetadata) {
		return fmt.Errorf("build invocation metadata: %w", err)
	}

	r.logger.Warn("Invalid invocation metadata", "request ID", requestID, "error", err)
	if postErr := r.api.PostError(ctx, requestID, err); postErr != nil {
		return fmt.Errorf("post invocation error: %w", postErr)
	}

	r.invocations.Add(1)
	return nil
}
