package functionRuntimeInterface

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Result is the outcome of one invocation: either a payload or an error.
type Result struct {
	Payload []byte
	Err     error
}

func Success(payload []byte) Result {
	return Result{Payload: payload}
}

func Failure(err error) Result {
	return Result{Err: err}
}

func (r Result) Failed() bool {
	return r.Err != nil
}

// Handler runs user code for one invocation. Dispatch returns only once the
// invocation is complete, and every failure is folded into the Result.
type Handler interface {
	Dispatch(ctx context.Context, payload []byte, md *Metadata) Result
}

// HandlerFunc works on the raw event bytes.
type HandlerFunc func(ctx context.Context, payload []byte, md *Metadata) ([]byte, error)

func (f HandlerFunc) Dispatch(ctx context.Context, payload []byte, md *Metadata) Result {
	var out []byte
	err := invokeSafely(func() (err error) {
		out, err = f(ctx, payload, md)
		return err
	})
	if err != nil {
		return Failure(err)
	}
	return Success(out)
}

// SyncFunc receives the event as a generic JSON object.
type SyncFunc func(ctx context.Context, event map[string]any, md *Metadata) (map[string]any, error)

// AsyncFunc receives the event as a generic JSON object and must call
// complete exactly once, from any goroutine.
type AsyncFunc func(ctx context.Context, event map[string]any, md *Metadata, complete func(map[string]any, error))

// TypedFunc receives the event decoded into E and returns a value encoded as JSON.
type TypedFunc[E, R any] func(ctx context.Context, event E, md *Metadata) (R, error)

// TypedAsyncFunc is the asynchronous form of TypedFunc.
type TypedAsyncFunc[E, R any] func(ctx context.Context, event E, md *Metadata, complete func(R, error))

// Sync adapts a synchronous function working on generic JSON objects.
func Sync(fn func(ctx context.Context, event map[string]any, md *Metadata) (map[string]any, error)) Handler {
	return SyncFunc(fn)
}

// Async adapts an asynchronous function working on generic JSON objects.
func Async(fn func(ctx context.Context, event map[string]any, md *Metadata, complete func(map[string]any, error))) Handler {
	return AsyncFunc(fn)
}

// Typed adapts a synchronous function whose event and result types are inferred from fn.
func Typed[E, R any](fn func(ctx context.Context, event E, md *Metadata) (R, error)) Handler {
	return TypedFunc[E, R](fn)
}

// TypedAsync adapts an asynchronous function whose event and result types are inferred from fn.
func TypedAsync[E, R any](fn func(ctx context.Context, event E, md *Metadata, complete func(R, error))) Handler {
	return TypedAsyncFunc[E, R](fn)
}

func (f SyncFunc) Dispatch(ctx context.Context, payload []byte, md *Metadata) Result {
	event, err := decodeObject(payload)
	if err != nil {
		return Failure(err)
	}

	var out map[string]any
	if err := invokeSafely(func() (err error) {
		out, err = f(ctx, event, md)
		return err
	}); err != nil {
		return Failure(err)
	}

	return encodeResult(out, encodeObject)
}

func (f AsyncFunc) Dispatch(ctx context.Context, payload []byte, md *Metadata) Result {
	event, err := decodeObject(payload)
	if err != nil {
		return Failure(err)
	}

	return awaitCompletion(func(complete func(map[string]any, error)) {
		f(ctx, event, md, complete)
	}, encodeObject)
}

func (f TypedFunc[E, R]) Dispatch(ctx context.Context, payload []byte, md *Metadata) Result {
	event, err := decodeTyped[E](payload)
	if err != nil {
		return Failure(err)
	}

	var out R
	if err := invokeSafely(func() (err error) {
		out, err = f(ctx, event, md)
		return err
	}); err != nil {
		return Failure(err)
	}

	return encodeResult(out, encodeTyped[R])
}

func (f TypedAsyncFunc[E, R]) Dispatch(ctx context.Context, payload []byte, md *Metadata) Result {
	event, err := decodeTyped[E](payload)
	if err != nil {
		return Failure(err)
	}

	return awaitCompletion(func(complete func(R, error)) {
		f(ctx, event, md, complete)
	}, encodeTyped[R])
}

// awaitCompletion blocks until the first call of complete. Later calls are ignored.
func awaitCompletion[R any](start func(complete func(R, error)), encode func(R) ([]byte, error)) Result {
	done := make(chan Result, 1)
	var once sync.Once
	finish := func(result Result) {
		once.Do(func() {
			done <- result
		})
	}

	complete := func(out R, err error) {
		if err != nil {
			finish(Failure(&HandlerError{Stage: StageInvoke, Err: err}))
			return
		}
		finish(encodeResult(out, encode))
	}

	if err := invokeSafely(func() error {
		start(complete)
		return nil
	}); err != nil {
		finish(Failure(err))
	}

	return <-done
}

// invokeSafely runs user code, turning returned errors and panics into a HandlerError.
func invokeSafely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{Stage: StageInvoke, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := fn(); err != nil {
		return &HandlerError{Stage: StageInvoke, Err: err}
	}
	return nil
}

func encodeResult[R any](out R, encode func(R) ([]byte, error)) Result {
	data, err := encode(out)
	if err != nil {
		return Failure(err)
	}
	return Success(data)
}

func decodeObject(payload []byte) (map[string]any, error) {
	var event map[string]any
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, &HandlerError{Stage: StageDecode, Err: fmt.Errorf("%w: %v", ErrInvalidJSON, err)}
	}
	if event == nil {
		return nil, &HandlerError{Stage: StageDecode, Err: fmt.Errorf("%w: event is not an object", ErrInvalidJSON)}
	}
	return event, nil
}

func encodeObject(out map[string]any) ([]byte, error) {
	if out == nil {
		out = map[string]any{}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, &HandlerError{Stage: StageEncode, Err: fmt.Errorf("%w: %v", ErrInvalidJSON, err)}
	}
	return data, nil
}

func decodeTyped[E any](payload []byte) (E, error) {
	var event E
	if err := json.Unmarshal(payload, &event); err != nil {
		return event, &HandlerError{Stage: StageDecode, Err: fmt.Errorf("%w: %v", ErrInvalidJSON, err)}
	}
	return event, nil
}

func encodeTyped[R any](out R) ([]byte, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return nil, &HandlerError{Stage: StageEncode, Err: fmt.Errorf("%w: %v", ErrInvalidJSON, err)}
	}
	return data, nil
}
