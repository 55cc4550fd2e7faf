package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/3s-rg-codes/faasruntime/pkg/emulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoke_RepeatInParallel(t *testing.T) {
	var calls, inFlight, maxInFlight atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, emulator.InvokePath, r.URL.Path)
		calls.Add(1)
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)

		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	client := emulator.NewClient(ts.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	outcomes, err := Invoke(context.Background(), client, []byte(`{"n":1}`), 6, 2, 1)

	require.NoError(t, err)
	require.Len(t, outcomes, 6)
	for i, o := range outcomes {
		assert.Equal(t, i, o.Call)
		assert.False(t, o.Failed)
		assert.JSONEq(t, `{"n":1}`, o.Payload)
	}
	assert.EqualValues(t, 6, calls.Load())
	assert.LessOrEqual(t, maxInFlight.Load(), int32(2))
}

func TestInvoke_FunctionErrorIsAnOutcome(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(emulator.HeaderFunctionError, "Unhandled")
		_, _ = w.Write([]byte(`{"errorMessage":"boom","errorType":"PostInvocationError"}`))
	}))
	defer ts.Close()

	client := emulator.NewClient(ts.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	outcomes, err := Invoke(context.Background(), client, []byte(`{}`), 1, 1, 1)

	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Failed)
	assert.Equal(t, "PostInvocationError: boom", outcomes[0].Error)
}

func TestInvoke_RetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	client := emulator.NewClient(ts.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	outcomes, err := Invoke(context.Background(), client, []byte(`{}`), 1, 1, 3)

	require.NoError(t, err)
	assert.False(t, outcomes[0].Failed)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGetMetrics(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metrics", r.URL.Path)
		_, _ = w.Write([]byte("emulator_invocations_total 3\n"))
	}))
	defer ts.Close()

	metrics, err := GetMetrics(context.Background(), ts.URL, time.Second)

	require.NoError(t, err)
	assert.Contains(t, metrics, "emulator_invocations_total 3")
}
