// Package voicevox synthesizes speech with a VOICEVOX engine over its HTTP
// API: an audio query is created for the text and then rendered to WAV.
package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jiroshimaya/fastvoicechat/core/audio"
	"github.com/jiroshimaya/fastvoicechat/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultHost      = "http://localhost:50021"
	DefaultSpeakerID = 0
)

type Client struct {
	host       string
	speakerID  int
	httpClient *http.Client
	retry      texttospeech.RetryPolicy

	speakersMu sync.Mutex
	speakers   []Speaker
}

type ClientOption func(*Client)

func WithHost(host string) ClientOption {
	return func(c *Client) {
		c.host = host
	}
}

func WithSpeakerID(speakerID int) ClientOption {
	return func(c *Client) {
		c.speakerID = speakerID
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithRetryPolicy(policy texttospeech.RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		host:      DefaultHost,
		speakerID: DefaultSpeakerID,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retry: texttospeech.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if !strings.HasPrefix(client.host, "http") {
		client.host = "http://" + client.host
	}
	client.host = strings.TrimSuffix(client.host, "/")
	return client
}

// Synthesize renders text with the configured speaker.
func (c *Client) Synthesize(ctx context.Context, text string) (clip audio.Clip, err error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(
		attribute.Int("voicevox.speaker_id", c.speakerID),
		attribute.Int("text.length", len([]rune(text))),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if strings.TrimSpace(text) == "" {
		return audio.Clip{}, texttospeech.ErrEmptyText
	}

	params := url.Values{}
	params.Set("text", text)
	params.Set("speaker", strconv.Itoa(c.speakerID))

	var wav []byte
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		query, err := c.post(ctx, "/audio_query", params, nil)
		if err != nil {
			return fmt.Errorf("failed to create audio query: %w", err)
		}

		wav, err = c.post(ctx, "/synthesis", params, query)
		if err != nil {
			return fmt.Errorf("failed to synthesize: %w", err)
		}
		return nil
	})
	if err != nil {
		return audio.Clip{}, err
	}

	clip, err = audio.DecodeWAV(wav)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("failed to decode synthesized audio: %w", err)
	}
	if clip.IsEmpty() {
		return audio.Clip{}, texttospeech.ErrEmptyAudio
	}

	span.SetAttributes(attribute.Float64("audio.duration", clip.Duration().Seconds()))
	return clip, nil
}

// post sends body as JSON and returns the response body. Client errors are
// permanent, everything else may be retried.
func (c *Client) post(ctx context.Context, path string, params url.Values, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path+"?"+params.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, &texttospeech.PermanentError{Err: fmt.Errorf("error creating HTTP request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("voicevox request failed", "path", path, "error", err)
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, bytes.TrimSpace(respBody))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &texttospeech.PermanentError{Err: err}
		}
		return nil, err
	}
	return respBody, nil
}

type Speaker struct {
	Name   string         `json:"name"`
	UUID   string         `json:"speaker_uuid"`
	Styles []SpeakerStyle `json:"styles"`
}

type SpeakerStyle struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// Speakers lists the engine's voices. The first successful answer is cached.
func (c *Client) Speakers(ctx context.Context) ([]Speaker, error) {
	c.speakersMu.Lock()
	defer c.speakersMu.Unlock()
	if c.speakers != nil {
		return c.speakers, nil
	}

	var speakers []Speaker
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/speakers", nil)
		if err != nil {
			return &texttospeech.PermanentError{Err: err}
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("error sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		}
		return json.NewDecoder(resp.Body).Decode(&speakers)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list speakers: %w", err)
	}

	c.speakers = speakers
	return speakers, nil
}
