package deepgram

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

const (
	defaultEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel    = "nova-2"
)

var ErrNotStreaming = errors.New("transcription stream is not open")

// TranscriptionClient streams audio to the Deepgram live transcription API.
type TranscriptionClient struct {
	apiKey   string
	endpoint string
	model    string
	dialer   *websocket.Dialer

	conn   *websocket.Conn
	connMu sync.Mutex

	lastMsgTs atomic.Int64
}

type ClientOption func(*TranscriptionClient)

// WithAPIKey overrides the key read from DEEPGRAM_API_KEY.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) {
		c.apiKey = apiKey
	}
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) {
		c.model = model
	}
}

func WithEndpoint(endpoint string) ClientOption {
	return func(c *TranscriptionClient) {
		c.endpoint = endpoint
	}
}

func NewTranscriptionClient(opts ...ClientOption) *TranscriptionClient {
	client := &TranscriptionClient{
		apiKey:   os.Getenv("DEEPGRAM_API_KEY"),
		endpoint: defaultEndpoint,
		model:    defaultModel,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}
