package functionRuntimeInterface

import (
	"os"
	"sync"

	"github.com/caarlos0/env/v11"
)

// EnvironmentKey is the name of a well-known variable of the execution environment.
type EnvironmentKey string

const (
	EnvHandler         EnvironmentKey = "_HANDLER"
	EnvRegion          EnvironmentKey = "AWS_REGION"
	EnvExecutionEnv    EnvironmentKey = "AWS_EXECUTION_ENV"
	EnvFunctionName    EnvironmentKey = "AWS_LAMBDA_FUNCTION_NAME"
	EnvMemoryLimitInMB EnvironmentKey = "AWS_LAMBDA_FUNCTION_MEMORY_SIZE"
	EnvFunctionVersion EnvironmentKey = "AWS_LAMBDA_FUNCTION_VERSION"
	EnvLogGroupName    EnvironmentKey = "AWS_LAMBDA_LOG_GROUP_NAME"
	EnvLogStreamName   EnvironmentKey = "AWS_LAMBDA_LOG_STREAM_NAME"
	EnvAccessKeyID     EnvironmentKey = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey EnvironmentKey = "AWS_SECRET_ACCESS_KEY"
	EnvSessionToken    EnvironmentKey = "AWS_SESSION_TOKEN"
	EnvLang            EnvironmentKey = "LANG"
	EnvTimeZone        EnvironmentKey = "TZ"
	EnvTaskRoot        EnvironmentKey = "LAMBDA_TASK_ROOT"
	EnvRuntimeDir      EnvironmentKey = "LAMBDA_RUNTIME_DIR"
	EnvPath            EnvironmentKey = "PATH"
	EnvLDLibraryPath   EnvironmentKey = "LD_LIBRARY_PATH"
	EnvNodePath        EnvironmentKey = "NODE_PATH"
	EnvPythonPath      EnvironmentKey = "PYTHONPATH"
	EnvGemPath         EnvironmentKey = "GEM_PATH"
	EnvRuntimeAPI      EnvironmentKey = "AWS_LAMBDA_RUNTIME_API"
	EnvTraceID         EnvironmentKey = "_X_AMZN_TRACE_ID"
)

// Environment holds the variables of the execution environment. It is read
// once at startup and only grows afterwards: SetIfAbsent never overwrites.
type Environment struct {
	mu      sync.RWMutex
	vars    map[string]string
	process bool
}

// NewEnvironment returns an isolated Environment backed by a copy of vars.
func NewEnvironment(vars map[string]string) *Environment {
	copied := make(map[string]string, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	return &Environment{vars: copied}
}

// FromProcess snapshots os.Environ. Variables set through SetIfAbsent are
// also exported to the process so user code reading os.Getenv sees them.
func FromProcess() *Environment {
	return &Environment{
		vars:    env.ToMap(os.Environ()),
		process: true,
	}
}

func (e *Environment) Lookup(key EnvironmentKey) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vars[string(key)]
	return v, ok
}

// SetIfAbsent stores value under key unless the key is already set.
// It reports whether the value was stored.
func (e *Environment) SetIfAbsent(key EnvironmentKey, value string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.vars[string(key)]; ok {
		return false
	}
	e.vars[string(key)] = value

	if e.process {
		if _, ok := os.LookupEnv(string(key)); !ok {
			_ = os.Setenv(string(key), value)
		}
	}
	return true
}

// Snapshot returns a copy of every variable.
func (e *Environment) Snapshot() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snapshot := make(map[string]string, len(e.vars))
	for k, v := range e.vars {
		snapshot[k] = v
	}
	return snapshot
}
