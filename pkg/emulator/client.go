package emulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/3s-rg-codes/faasruntime/pkg/runtimeAPI"
)

// Client invokes a function through the emulator's invoke endpoint.
type Client struct {
	client  runtimeAPI.HTTPClient
	address string
	logger  *slog.Logger
}

// NewClient creates a new Client with a default http client using the given timeout.
func NewClient(address string, timeout time.Duration, logger *slog.Logger) *Client {
	return NewClientWithHTTPClient(address, logger, &http.Client{Timeout: timeout})
}

// NewClientWithHTTPClient creates a new Client. The httpClient must implement the HTTPClient interface
func NewClientWithHTTPClient(address string, logger *slog.Logger, httpClient runtimeAPI.HTTPClient) *Client {
	// address needs to have this format for http to work
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	return &Client{
		client:  httpClient,
		address: strings.TrimSuffix(address, "/"),
		logger:  logger,
	}
}

// Invoke sends payload to the function and returns what it reported. A
// function error is part of the Result; the returned error covers the
// transport and the emulator itself.
func (c *Client) Invoke(ctx context.Context, payload []byte) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.address+InvokePath, bytes.NewReader(payload))
	if err != nil {
		c.logger.Error("error creating POST request", "error", err)
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("error sending request", "error", err)
		return Result{}, err
	}
	if resp == nil {
		c.logger.Error("no response from emulator")
		return Result{}, errors.New("invoke failed: no response from emulator")
	}

	var body []byte
	if resp.Body != nil {
		defer func(Body io.ReadCloser) {
			err := Body.Close()
			if err != nil {
				c.logger.Error("error closing the response body", "error", err)
			}
		}(resp.Body)

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			c.logger.Error("error reading response", "error", err)
			return Result{}, err
		}
	}

	if resp.StatusCode != http.StatusOK {
		var emulatorErr runtimeAPI.InvocationError
		if json.Unmarshal(body, &emulatorErr) == nil && emulatorErr.ErrorMessage != "" {
			return Result{}, fmt.Errorf("invoke failed with status %d: %s", resp.StatusCode, emulatorErr.ErrorMessage)
		}
		return Result{}, fmt.Errorf("invoke failed with status %d", resp.StatusCode)
	}

	if resp.Header.Get(HeaderFunctionError) != "" {
		var functionErr runtimeAPI.InvocationError
		if err := json.Unmarshal(body, &functionErr); err != nil {
			functionErr = runtimeAPI.InvocationError{ErrorMessage: string(body), ErrorType: "Unknown"}
		}
		return Result{Error: &functionErr}, nil
	}

	return Result{Payload: body}, nil
}
