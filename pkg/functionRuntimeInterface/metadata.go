package functionRuntimeInterface

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/3s-rg-codes/faasruntime/pkg/runtimeAPI"
)

// Metadata describes a single invocation. It is built from the environment
// and the headers of the next invocation response, and is never modified.
type Metadata struct {
	FunctionName    string
	FunctionVersion string
	LogGroupName    string
	LogStreamName   string
	MemoryLimitInMB string

	// RequestID identifies the invocation.
	RequestID string
	// DeadlineMs is the Unix time in milliseconds at which the invocation times out.
	DeadlineMs int64
	// InvokedFunctionArn identifies the function, version or alias that was invoked.
	InvokedFunctionArn string
	// TraceID is empty when the control plane sent none.
	TraceID string
	// ClientContext and Identity are nil unless the header held a JSON object.
	ClientContext map[string]any
	Identity      map[string]any

	environment map[string]string
}

// NewMetadata validates the required environment variables and headers.
// The first missing key is returned as a MissingEnvironmentVariableError or
// a MissingResponseHeaderError.
func NewMetadata(environment map[string]string, headers http.Header) (*Metadata, error) {
	md := &Metadata{environment: make(map[string]string, len(environment))}
	for k, v := range environment {
		md.environment[k] = v
	}

	required := []struct {
		key    EnvironmentKey
		target *string
	}{
		{EnvFunctionName, &md.FunctionName},
		{EnvFunctionVersion, &md.FunctionVersion},
		{EnvLogGroupName, &md.LogGroupName},
		{EnvLogStreamName, &md.LogStreamName},
		{EnvMemoryLimitInMB, &md.MemoryLimitInMB},
	}
	for _, r := range required {
		v, ok := md.environment[string(r.key)]
		if !ok {
			return nil, &MissingEnvironmentVariableError{Key: r.key}
		}
		*r.target = v
	}

	var err error
	if md.RequestID, err = requiredHeader(headers, runtimeAPI.HeaderRequestID); err != nil {
		return nil, err
	}
	if md.InvokedFunctionArn, err = requiredHeader(headers, runtimeAPI.HeaderInvokedFunctionArn); err != nil {
		return nil, err
	}

	deadline, err := requiredHeader(headers, runtimeAPI.HeaderDeadlineMs)
	if err != nil {
		return nil, err
	}
	md.DeadlineMs, err = strconv.ParseInt(deadline, 10, 64)
	if err != nil {
		return nil, &MissingResponseHeaderError{Key: runtimeAPI.HeaderDeadlineMs}
	}

	md.TraceID = headers.Get(runtimeAPI.HeaderTraceID)
	md.ClientContext = objectHeader(headers, runtimeAPI.HeaderClientContext)
	md.Identity = objectHeader(headers, runtimeAPI.HeaderCognitoIdentity)

	return md, nil
}

func requiredHeader(headers http.Header, key string) (string, error) {
	values := headers.Values(key)
	if len(values) == 0 {
		return "", &MissingResponseHeaderError{Key: key}
	}
	return values[0], nil
}

// objectHeader decodes a header holding a JSON object. Anything else is nil.
func objectHeader(headers http.Header, key string) map[string]any {
	raw := headers.Get(key)
	if raw == "" {
		return nil
	}
	var object map[string]any
	if err := json.Unmarshal([]byte(raw), &object); err != nil {
		return nil
	}
	return object
}

// Deadline returns the time at which the invocation times out.
func (m *Metadata) Deadline() time.Time {
	return time.UnixMilli(m.DeadlineMs)
}

// RemainingTime is negative once the deadline has passed.
func (m *Metadata) RemainingTime() time.Duration {
	return time.Until(m.Deadline())
}

// Environment looks up any variable of the environment snapshot taken for this invocation.
func (m *Metadata) Environment(key EnvironmentKey) (string, bool) {
	v, ok := m.environment[string(key)]
	return v, ok
}

func (m *Metadata) Handler() (string, bool)         { return m.Environment(EnvHandler) }
func (m *Metadata) Region() (string, bool)          { return m.Environment(EnvRegion) }
func (m *Metadata) ExecutionEnv() (string, bool)    { return m.Environment(EnvExecutionEnv) }
func (m *Metadata) AccessKeyID() (string, bool)     { return m.Environment(EnvAccessKeyID) }
func (m *Metadata) SecretAccessKey() (string, bool) { return m.Environment(EnvSecretAccessKey) }
func (m *Metadata) SessionToken() (string, bool)    { return m.Environment(EnvSessionToken) }
func (m *Metadata) Lang() (string, bool)            { return m.Environment(EnvLang) }
func (m *Metadata) TimeZone() (string, bool)        { return m.Environment(EnvTimeZone) }
func (m *Metadata) TaskRoot() (string, bool)        { return m.Environment(EnvTaskRoot) }
func (m *Metadata) RuntimeDir() (string, bool)      { return m.Environment(EnvRuntimeDir) }
func (m *Metadata) Path() (string, bool)            { return m.Environment(EnvPath) }
func (m *Metadata) LDLibraryPath() (string, bool)   { return m.Environment(EnvLDLibraryPath) }
func (m *Metadata) NodePath() (string, bool)        { return m.Environment(EnvNodePath) }
func (m *Metadata) PythonPath() (string, bool)      { return m.Environment(EnvPythonPath) }
func (m *Metadata) GemPath() (string, bool)         { return m.Environment(EnvGemPath) }
func (m *Metadata) RuntimeAPI() (string, bool)      { return m.Environment(EnvRuntimeAPI) }

// XAmznTraceID is the trace id propagated into the environment by the runtime.
func (m *Metadata) XAmznTraceID() (string, bool) { return m.Environment(EnvTraceID) }
