package llms

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultMaxTokens = 1024

type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxTokens  int64
}

type ClientOption func(*ClientOptions)

// NewClientOptions applies opts over traced defaults.
func NewClientOptions(opts ...ClientOption) ClientOptions {
	options := ClientOptions{MaxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(&options)
	}
	if options.HTTPClient == nil {
		options.HTTPClient = NewHTTPClient()
	}
	return options
}

func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		o.BaseURL = url
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *ClientOptions) {
		o.HTTPClient = client
	}
}

func WithMaxTokens(maxTokens int64) ClientOption {
	return func(o *ClientOptions) {
		if maxTokens > 0 {
			o.MaxTokens = maxTokens
		}
	}
}

// NewHTTPClient returns a client whose requests are traced.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}
