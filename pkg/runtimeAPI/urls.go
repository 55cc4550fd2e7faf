package runtimeAPI

import (
	"errors"
	"fmt"
	"net/url"
)

// URLBuilder builds the URLs of the four control-plane operations from a fixed base.
type URLBuilder struct {
	base *url.URL
}

// NewURLBuilder validates the host:port of the control endpoint and
// derives the base URL http://{endpoint}/2018-06-01/runtime from it.
func NewURLBuilder(endpoint string) (*URLBuilder, error) {
	if endpoint == "" {
		return nil, errors.New("runtime API endpoint is empty")
	}

	base, err := url.Parse(fmt.Sprintf("http://%s%s", endpoint, BasePath))
	if err != nil {
		return nil, fmt.Errorf("invalid runtime API endpoint %q: %w", endpoint, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("invalid runtime API endpoint %q: missing host", endpoint)
	}

	return &URLBuilder{base: base}, nil
}

func (b *URLBuilder) BaseURL() string {
	return b.base.String()
}

func (b *URLBuilder) NextInvocationURL() string {
	return b.base.JoinPath("invocation", "next").String()
}

func (b *URLBuilder) InvocationResponseURL(requestID string) string {
	return b.base.JoinPath("invocation", requestID, "response").String()
}

func (b *URLBuilder) InvocationErrorURL(requestID string) string {
	return b.base.JoinPath("invocation", requestID, "error").String()
}

func (b *URLBuilder) InitErrorURL() string {
	return b.base.JoinPath("init", "error").String()
}
