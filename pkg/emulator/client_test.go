package emulator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockHTTPClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if m.DoFunc != nil {
		return m.DoFunc(req)
	}
	return nil, nil
}

// Helper function to create mock responses
func NewMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func TestClient_Invoke_Success(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	mockClient := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "http://localhost:9000"+InvokePath, req.URL.String())
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			assert.JSONEq(t, `{"name":"input"}`, string(body))

			return NewMockResponse(http.StatusOK, `{"value":"test"}`), nil
		},
	}

	client := NewClientWithHTTPClient("localhost:9000", logger, mockClient)
	result, err := client.Invoke(context.Background(), []byte(`{"name":"input"}`))

	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.JSONEq(t, `{"value":"test"}`, string(result.Payload))
}

func TestClient_Invoke_KeepsScheme(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	mockClient := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "https://emulator.local"+InvokePath, req.URL.String())
			return NewMockResponse(http.StatusOK, `{}`), nil
		},
	}

	client := NewClientWithHTTPClient("https://emulator.local/", logger, mockClient)
	_, err := client.Invoke(context.Background(), []byte(`{}`))

	require.NoError(t, err)
}

func TestClient_Invoke_FunctionError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	mockClient := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			resp := NewMockResponse(http.StatusOK, `{"errorMessage":"boom","errorType":"PostInvocationError"}`)
			resp.Header.Set(HeaderFunctionError, "Unhandled")
			return resp, nil
		},
	}

	client := NewClientWithHTTPClient("localhost:9000", logger, mockClient)
	result, err := client.Invoke(context.Background(), []byte(`{}`))

	require.NoError(t, err)
	require.True(t, result.Failed())
	assert.Equal(t, "boom", result.Error.ErrorMessage)
	assert.Equal(t, "PostInvocationError", result.Error.ErrorType)
}

func TestClient_Invoke_EmulatorError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	mockClient := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return NewMockResponse(http.StatusGatewayTimeout, `{"errorMessage":"context deadline exceeded","errorType":"EmulatorError"}`), nil
		},
	}

	client := NewClientWithHTTPClient("localhost:9000", logger, mockClient)
	_, err := client.Invoke(context.Background(), []byte(`{}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "504")
	assert.Contains(t, err.Error(), "context deadline exceeded")
}

func TestClient_Invoke_NetworkError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	networkErr := errors.New("connection refused")
	mockClient := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return nil, networkErr
		},
	}

	client := NewClientWithHTTPClient("localhost:9000", logger, mockClient)
	_, err := client.Invoke(context.Background(), []byte(`{}`))

	assert.ErrorIs(t, err, networkErr)
}

func TestClient_Invoke_NilResponse(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClientWithHTTPClient("localhost:9000", logger, &MockHTTPClient{})

	_, err := client.Invoke(context.Background(), []byte(`{}`))

	assert.Error(t, err)
}

func TestClient_Invoke_NilBody(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockClient := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Header: make(http.Header)}, nil
		},
	}

	client := NewClientWithHTTPClient("localhost:9000", logger, mockClient)
	result, err := client.Invoke(context.Background(), []byte(`{}`))

	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.Empty(t, result.Payload)
}
