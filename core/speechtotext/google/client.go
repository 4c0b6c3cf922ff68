// Package google transcribes audio with Google Cloud Speech-to-Text
// streaming recognition.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/jiroshimaya/fastvoicechat/core/audio"
	"github.com/jiroshimaya/fastvoicechat/core/speechtotext"
)

const (
	defaultChunkDuration = 100 * time.Millisecond
	defaultRestartDelay  = 500 * time.Millisecond
)

var ErrNotStreaming = errors.New("transcription stream is not open")

// recognizeStream is the part of the gRPC stream the client uses.
type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

type streamOpener func(ctx context.Context) (recognizeStream, error)

// TranscriptionClient keeps one streaming recognition session open and
// starts a new one whenever the service ends the current session.
type TranscriptionClient struct {
	openStream    streamOpener
	phrases       []string
	chunkDuration time.Duration
	restartDelay  time.Duration

	streamMu sync.Mutex
	stream   recognizeStream
	pending  []byte
	chunk    int
	stopped  bool
}

type ClientOption func(*TranscriptionClient)

// WithPhrases adds speech context hints to every session.
func WithPhrases(phrases ...string) ClientOption {
	return func(c *TranscriptionClient) {
		c.phrases = phrases
	}
}

// WithChunkDuration sets how much audio is batched into one request.
func WithChunkDuration(d time.Duration) ClientOption {
	return func(c *TranscriptionClient) {
		c.chunkDuration = d
	}
}

func WithRestartDelay(d time.Duration) ClientOption {
	return func(c *TranscriptionClient) {
		c.restartDelay = d
	}
}

// NewTranscriptionClient connects to the service with application default
// credentials (GOOGLE_APPLICATION_CREDENTIALS).
func NewTranscriptionClient(ctx context.Context, opts ...ClientOption) (*TranscriptionClient, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return newTranscriptionClient(func(ctx context.Context) (recognizeStream, error) {
		return client.StreamingRecognize(ctx)
	}, opts...), nil
}

func newTranscriptionClient(openStream streamOpener, opts ...ClientOption) *TranscriptionClient {
	client := &TranscriptionClient{
		openStream:    openStream,
		phrases:       []string{"あ", "い", "う", "え", "お"},
		chunkDuration: defaultChunkDuration,
		restartDelay:  defaultRestartDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := speechtotext.NewTranscriptionOptions(opts...)

	config, err := streamingConfig(options, c.phrases)
	if err != nil {
		return fmt.Errorf("invalid transcription options: %w", err)
	}

	c.streamMu.Lock()
	c.chunk = options.EncodingInfo.BytesFor(c.chunkDuration)
	c.stopped = false
	c.streamMu.Unlock()

	if err := c.startSession(ctx, config); err != nil {
		return err
	}

	go c.run(ctx, config, options)
	return nil
}

func streamingConfig(options speechtotext.TranscriptionOptions, phrases []string) (*speechpb.StreamingRecognitionConfig, error) {
	var encoding speechpb.RecognitionConfig_AudioEncoding
	switch options.EncodingInfo.Format {
	case audio.EncodingLinear16:
		encoding = speechpb.RecognitionConfig_LINEAR16
	case audio.EncodingMulaw:
		encoding = speechpb.RecognitionConfig_MULAW
	default:
		return nil, fmt.Errorf("unsupported encoding %q", options.EncodingInfo.Format.Name())
	}

	config := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		SampleRateHertz:            int32(options.EncodingInfo.SampleRate),
		LanguageCode:               options.Language,
		EnableAutomaticPunctuation: true,
	}
	if len(phrases) > 0 {
		config.SpeechContexts = []*speechpb.SpeechContext{{Phrases: phrases}}
	}

	return &speechpb.StreamingRecognitionConfig{
		Config:         config,
		InterimResults: true,
	}, nil
}

func (c *TranscriptionClient) startSession(ctx context.Context, config *speechpb.StreamingRecognitionConfig) error {
	stream, err := c.openStream(ctx)
	if err != nil {
		return fmt.Errorf("failed to open recognition stream: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: config,
		},
	}); err != nil {
		return fmt.Errorf("failed to send streaming config: %w", err)
	}

	c.streamMu.Lock()
	c.stream = stream
	c.pending = nil
	c.streamMu.Unlock()
	return nil
}

func (c *TranscriptionClient) run(ctx context.Context, config *speechpb.StreamingRecognitionConfig, options speechtotext.TranscriptionOptions) {
	defer func() {
		c.streamMu.Lock()
		c.stream = nil
		c.streamMu.Unlock()
	}()

	for {
		c.streamMu.Lock()
		stream := c.stream
		c.streamMu.Unlock()
		if stream == nil {
			return
		}

		err := c.listen(stream, options)
		if ctx.Err() != nil || c.isStopped() {
			return
		}
		if err != nil {
			logger.Warn("recognition session ended", "error", err)
			options.ErrorCallback(fmt.Errorf("recognition session ended: %w", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.restartDelay):
		}

		if err := c.startSession(ctx, config); err != nil {
			logger.Error("failed to restart recognition session", "error", err)
			options.ErrorCallback(err)
			return
		}
	}
}

// listen reads responses until the session ends. A clean end of stream
// returns nil.
func (c *TranscriptionClient) listen(stream recognizeStream, options speechtotext.TranscriptionOptions) error {
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if resp.Error != nil {
			return fmt.Errorf("recognition error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		dispatchResults(resp.Results, options)
	}
}

// dispatchResults reports a final result when the response carries one and
// otherwise the concatenation of the unstable results as one interim.
func dispatchResults(results []*speechpb.StreamingRecognitionResult, options speechtotext.TranscriptionOptions) {
	var interim strings.Builder
	for _, result := range results {
		if len(result.Alternatives) == 0 {
			continue
		}
		transcript := result.Alternatives[0].Transcript
		if result.IsFinal {
			options.FinalCallback(strings.TrimSpace(transcript))
			return
		}
		interim.WriteString(transcript)
	}

	if text := strings.TrimSpace(interim.String()); text != "" {
		options.InterimCallback(text)
	}
}

func (c *TranscriptionClient) isStopped() bool {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	return c.stopped
}

// SendAudio buffers audio and forwards it in fixed-size requests.
func (c *TranscriptionClient) SendAudio(data []byte) error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if c.stream == nil {
		return ErrNotStreaming
	}

	c.pending = append(c.pending, data...)
	for c.chunk > 0 && len(c.pending) >= c.chunk {
		chunk := c.pending[:c.chunk]
		if err := c.stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
		}); err != nil {
			return fmt.Errorf("failed to send audio: %w", err)
		}
		c.pending = c.pending[c.chunk:]
	}
	if len(c.pending) == 0 {
		c.pending = nil
	}
	return nil
}

func (c *TranscriptionClient) StopStream() error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	c.stopped = true
	if c.stream == nil {
		return nil
	}
	if err := c.stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close recognition stream: %w", err)
	}
	return nil
}
