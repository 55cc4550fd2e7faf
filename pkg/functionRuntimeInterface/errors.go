package functionRuntimeInterface

import (
	"errors"
	"fmt"
)

// Categories of failure. Typed errors below match one of them with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrMetadata      = errors.New("invocation metadata error")
	ErrHandler       = errors.New("handler error")
)

// ErrInvalidJSON is returned when a payload or a result is not a JSON object.
var ErrInvalidJSON = errors.New("invalid JSON")

type MissingEnvironmentVariableError struct {
	Key EnvironmentKey
}

func (e *MissingEnvironmentVariableError) Error() string {
	return fmt.Sprintf("missing environment variable %s", e.Key)
}

func (e *MissingEnvironmentVariableError) Is(target error) bool {
	return target == ErrConfiguration
}

// MissingResponseHeaderError is returned when a required header of the next
// invocation response is absent or malformed.
type MissingResponseHeaderError struct {
	Key string
}

func (e *MissingResponseHeaderError) Error() string {
	return fmt.Sprintf("missing response header %s", e.Key)
}

func (e *MissingResponseHeaderError) Is(target error) bool {
	return target == ErrMetadata
}

// InvalidHandlerSelectorError is returned when the handler selector is not
// in the <module>.<entry> format.
type InvalidHandlerSelectorError struct {
	Selector string
}

func (e *InvalidHandlerSelectorError) Error() string {
	return fmt.Sprintf("invalid handler %q: expected format <module>.<handler>", e.Selector)
}

func (e *InvalidHandlerSelectorError) Is(target error) bool {
	return target == ErrConfiguration
}

// Stage identifies where a handler failed.
type Stage string

const (
	StageDecode Stage = "decode"
	StageInvoke Stage = "invoke"
	StageEncode Stage = "encode"
)

// HandlerError is the failure of a single invocation. It is reported to the
// control plane and never stops the runtime.
type HandlerError struct {
	Stage Stage
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

func (e *HandlerError) Is(target error) bool {
	return target == ErrHandler
}
