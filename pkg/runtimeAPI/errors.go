package runtimeAPI

import (
	"errors"
	"fmt"
)

// ErrProtocol matches every EndpointError with errors.Is.
var ErrProtocol = errors.New("runtime API protocol error")

// EndpointError is returned when a control-plane call fails at the transport
// level, returns no HTTP response, or answers with a status outside [200,300).
type EndpointError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *EndpointError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: unexpected status code %d", e.Op, e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("%s %s: invalid HTTP response from runtime API", e.Op, e.URL)
	}
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}

func (e *EndpointError) Is(target error) bool {
	return target == ErrProtocol
}
