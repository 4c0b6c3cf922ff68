// Package deepgram synthesizes speech with the Deepgram speak websocket API.
package deepgram

import (
	"fmt"
	"os"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/jiroshimaya/fastvoicechat/core/audio"
	"github.com/jiroshimaya/fastvoicechat/core/texttospeech"
)

const (
	defaultEndpoint   = "wss://api.deepgram.com/v1/speak"
	defaultSampleRate = 24000
)

type TextToSpeechClient struct {
	apiKey       string
	endpoint     string
	voice        deepgramVoice
	encodingInfo audio.EncodingInfo
	dialer       *websocket.Dialer
	retry        texttospeech.RetryPolicy
}

type ClientOption func(*TextToSpeechClient)

// WithAPIKey overrides the key read from DEEPGRAM_API_KEY.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.apiKey = apiKey
	}
}

func WithEndpoint(endpoint string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.endpoint = endpoint
	}
}

func WithSampleRate(sampleRate int) ClientOption {
	return func(c *TextToSpeechClient) {
		c.encodingInfo.SampleRate = sampleRate
	}
}

func WithRetryPolicy(policy texttospeech.RetryPolicy) ClientOption {
	return func(c *TextToSpeechClient) {
		c.retry = policy
	}
}

func NewTextToSpeechClient(voice deepgramVoice, opts ...ClientOption) (*TextToSpeechClient, error) {
	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice %q", voice)
	}

	client := &TextToSpeechClient{
		apiKey:       os.Getenv("DEEPGRAM_API_KEY"),
		endpoint:     defaultEndpoint,
		voice:        voice,
		encodingInfo: audio.EncodingInfo{SampleRate: defaultSampleRate, Format: audio.EncodingLinear16},
		dialer:       websocket.DefaultDialer,
		retry:        texttospeech.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *TextToSpeechClient) SetVoice(voice deepgramVoice) {
	c.voice = voice
}
