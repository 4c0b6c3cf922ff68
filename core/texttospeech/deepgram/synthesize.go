package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/jiroshimaya/fastvoicechat/core/audio"
	"github.com/jiroshimaya/fastvoicechat/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var (
	flushMsg = speakMessage{Type: "Flush"}
	closeMsg = speakMessage{Type: "Close"}
)

// Synthesize speaks text over a fresh connection and collects the audio
// until the server confirms the flush.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string) (clip audio.Clip, err error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(attribute.String("deepgram.voice", string(c.voice)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if strings.TrimSpace(text) == "" {
		return audio.Clip{}, texttospeech.ErrEmptyText
	}
	if c.apiKey == "" {
		return audio.Clip{}, fmt.Errorf("deepgram api key not found")
	}

	var data []byte
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.speak(ctx, text)
		return err
	})
	if err != nil {
		return audio.Clip{}, err
	}

	clip = audio.Clip{Data: data, EncodingInfo: c.encodingInfo}
	if clip.IsEmpty() {
		return audio.Clip{}, texttospeech.ErrEmptyAudio
	}
	span.SetAttributes(attribute.Float64("audio.duration", clip.Duration().Seconds()))
	return clip, nil
}

func (c *TextToSpeechClient) speak(ctx context.Context, text string) ([]byte, error) {
	speakUrl, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, &texttospeech.PermanentError{Err: fmt.Errorf("invalid endpoint: %w", err)}
	}
	urlValues := speakUrl.Query()
	urlValues.Set("encoding", c.encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(c.encodingInfo.SampleRate))
	urlValues.Set("model", string(c.voice))
	speakUrl.RawQuery = urlValues.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, speakUrl.String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &texttospeech.PermanentError{Err: fmt.Errorf("failed to open socket connection to deepgram: %w", err)}
		}
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(speakMessage{Type: "Speak", Text: text}); err != nil {
		return nil, fmt.Errorf("failed to send text to deepgram: %w", err)
	}
	if err := conn.WriteJSON(flushMsg); err != nil {
		return nil, fmt.Errorf("failed to flush deepgram buffer: %w", err)
	}

	var buf bytes.Buffer
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to read deepgram message: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			buf.Write(msg)
		case websocket.TextMessage:
			var parsedMsg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Warn("failed to unmarshal deepgram message", "error", err)
				continue
			}
			switch parsedMsg.Type {
			case "Flushed":
				if err := conn.WriteJSON(closeMsg); err != nil {
					logger.Debug("failed to close deepgram speak stream", "error", err)
				}
				return buf.Bytes(), nil
			case "Warning", "Error":
				logger.Warn("deepgram speak message", "message", string(msg))
			}
		}
	}
}
