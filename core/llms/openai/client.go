package openai

import (
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultEndpoint = "https://api.openai.com/v1/responses"

// Client prompts models through the Responses API.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithAPIKey overrides the key read from OPENAI_API_KEY.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(model string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey:   os.Getenv("OPENAI_API_KEY"),
		model:    model,
		endpoint: defaultEndpoint,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) Model() string {
	return c.model
}
