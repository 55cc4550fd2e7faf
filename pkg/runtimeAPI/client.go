package runtimeAPI

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds every control-plane call. The next invocation call
// blocks server side until work arrives, so it must stay large.
const DefaultTimeout = time.Hour

// HTTPClient can perform any http request
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps the http calls to the runtime API of the execution environment.
type Client struct {
	client HTTPClient
	urls   *URLBuilder
	logger *slog.Logger
}

// NewClient creates a new Client with a default http client using the given timeout.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewClientWithHTTPClient(endpoint, logger, &http.Client{Timeout: timeout})
}

// NewClientWithHTTPClient creates a new Client. The httpClient must implement the HTTPClient interface
func NewClientWithHTTPClient(endpoint string, logger *slog.Logger, httpClient HTTPClient) (*Client, error) {
	urls, err := NewURLBuilder(endpoint)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: httpClient,
		urls:   urls,
		logger: logger,
	}, nil
}

// Next asks the control plane for the next invocation. It returns the raw
// event (possibly empty) and every response header.
func (c *Client) Next(ctx context.Context) ([]byte, http.Header, error) {
	return c.do(ctx, "next invocation", http.MethodGet, c.urls.NextInvocationURL(), nil)
}

// PostResponse reports a successful invocation. The body is sent verbatim.
func (c *Client) PostResponse(ctx context.Context, requestID string, body []byte) error {
	_, _, err := c.do(ctx, "invocation response", http.MethodPost, c.urls.InvocationResponseURL(requestID), body)
	return err
}

// PostError reports a failed invocation.
func (c *Client) PostError(ctx context.Context, requestID string, invocationErr error) error {
	return c.postError(ctx, "invocation error", c.urls.InvocationErrorURL(requestID), invocationErr)
}

// PostInitError reports a failure to initialize the function.
func (c *Client) PostInitError(ctx context.Context, initErr error) error {
	return c.postError(ctx, "init error", c.urls.InitErrorURL(), initErr)
}

func (c *Client) postError(ctx context.Context, op, url string, reported error) error {
	body, err := json.Marshal(NewInvocationError(reported))
	if err != nil {
		c.logger.Error("error marshaling JSON", "error", err)
		return &EndpointError{Op: op, URL: url, Err: err}
	}

	_, _, err = c.do(ctx, op, http.MethodPost, url, body)
	return err
}

func (c *Client) do(ctx context.Context, op, method, url string, body []byte) ([]byte, http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		c.logger.Error("error creating request", "op", op, "error", err)
		return nil, nil, &EndpointError{Op: op, URL: url, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Calling runtime API", "op", op, "method", method, "url", url)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("error sending request", "op", op, "error", err)
		return nil, nil, &EndpointError{Op: op, URL: url, Err: err}
	}
	if resp == nil {
		return nil, nil, &EndpointError{Op: op, URL: url}
	}

	if resp.Body != nil {
		defer func(Body io.ReadCloser) {
			err := Body.Close()
			if err != nil {
				c.logger.Error("error closing the response body", "error", err)
			}
		}(resp.Body)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Error("request failed with status code", "op", op, "status", resp.StatusCode)
		return nil, nil, &EndpointError{Op: op, URL: url, StatusCode: resp.StatusCode}
	}

	var data []byte
	if resp.Body != nil {
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			c.logger.Error("error reading response", "op", op, "error", err)
			return nil, nil, &EndpointError{Op: op, URL: url, Err: err}
		}
	}
	if data == nil {
		data = []byte{}
	}

	headers := resp.Header
	if headers == nil {
		headers = make(http.Header)
	}

	return data, headers, nil
}
