package functionRuntimeInterface

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvironment_CopiesInput(t *testing.T) {
	vars := map[string]string{"AWS_REGION": "eu-central-1"}
	environment := NewEnvironment(vars)

	vars["AWS_REGION"] = "us-east-1"

	v, ok := environment.Lookup(EnvRegion)
	require.True(t, ok)
	assert.Equal(t, "eu-central-1", v)
}

func TestEnvironment_SetIfAbsent(t *testing.T) {
	environment := NewEnvironment(map[string]string{string(EnvTraceID): "existing"})

	assert.False(t, environment.SetIfAbsent(EnvTraceID, "new"))
	v, _ := environment.Lookup(EnvTraceID)
	assert.Equal(t, "existing", v)

	assert.True(t, environment.SetIfAbsent(EnvRegion, "eu-central-1"))
	v, ok := environment.Lookup(EnvRegion)
	require.True(t, ok)
	assert.Equal(t, "eu-central-1", v)
}

func TestEnvironment_SetIfAbsent_EmptyValueCountsAsSet(t *testing.T) {
	environment := NewEnvironment(map[string]string{string(EnvTraceID): ""})

	assert.False(t, environment.SetIfAbsent(EnvTraceID, "Root=1"))
}

func TestEnvironment_Snapshot_IsACopy(t *testing.T) {
	environment := NewEnvironment(map[string]string{"LANG": "en_US.UTF-8"})

	snapshot := environment.Snapshot()
	snapshot["LANG"] = "de_DE.UTF-8"

	v, _ := environment.Lookup(EnvLang)
	assert.Equal(t, "en_US.UTF-8", v)
}

func TestFromProcess(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "from-process")

	environment := FromProcess()

	v, ok := environment.Lookup(EnvFunctionName)
	require.True(t, ok)
	assert.Equal(t, "from-process", v)
}

func TestFromProcess_SetIfAbsentExportsToProcess(t *testing.T) {
	key := EnvironmentKey("FAAS_RUNTIME_TEST_EXPORTED")
	require.NoError(t, os.Unsetenv(string(key)))
	t.Cleanup(func() { _ = os.Unsetenv(string(key)) })

	environment := FromProcess()
	require.True(t, environment.SetIfAbsent(key, "value"))

	assert.Equal(t, "value", os.Getenv(string(key)))
}
