package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jiroshimaya/fastvoicechat/core/audio"
	"github.com/jiroshimaya/fastvoicechat/core/speechtotext"
)

type recordedTranscripts struct {
	mu            sync.Mutex
	interims      []string
	finals        []string
	utteranceEnds int
	errs          []error
}

func (r *recordedTranscripts) options(opts ...speechtotext.TranscriptionOption) []speechtotext.TranscriptionOption {
	return append([]speechtotext.TranscriptionOption{
		speechtotext.WithInterimCallback(func(transcript string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.interims = append(r.interims, transcript)
		}),
		speechtotext.WithFinalCallback(func(transcript string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.finals = append(r.finals, transcript)
		}),
		speechtotext.WithUtteranceEndCallback(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.utteranceEnds++
		}),
		speechtotext.WithErrorCallback(func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		}),
	}, opts...)
}

func TestHandleMessageDispatchesInterimFinalAndUtteranceEnd(t *testing.T) {
	recorded := &recordedTranscripts{}
	options := speechtotext.NewTranscriptionOptions(recorded.options()...)

	handleMessage([]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":" こんに "}]}}`), options)
	handleMessage([]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":""}]}}`), options)
	handleMessage([]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"こんにちは"}]}}`), options)
	handleMessage([]byte(`{"type":"UtteranceEnd","last_word_end":1.2}`), options)
	handleMessage([]byte(`not json`), options)

	if len(recorded.interims) != 1 || recorded.interims[0] != "こんに" {
		t.Fatalf("expected one trimmed interim, got %q", recorded.interims)
	}
	if len(recorded.finals) != 1 || recorded.finals[0] != "こんにちは" {
		t.Fatalf("expected one final, got %q", recorded.finals)
	}
	if recorded.utteranceEnds != 1 {
		t.Fatalf("expected one utterance end, got %d", recorded.utteranceEnds)
	}
	if len(recorded.errs) != 0 {
		t.Fatalf("expected no errors, got %v", recorded.errs)
	}
}

func TestHandleMessageReportsEmptyFinal(t *testing.T) {
	recorded := &recordedTranscripts{}
	options := speechtotext.NewTranscriptionOptions(recorded.options()...)

	handleMessage([]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":""}]}}`), options)

	if len(recorded.finals) != 1 || recorded.finals[0] != "" {
		t.Fatalf("expected an empty final to close the segment, got %q", recorded.finals)
	}
}

func TestConvertLanguageKeepsOnlyEnglishRegion(t *testing.T) {
	cases := map[string]string{
		"ja-JP": "ja",
		"":      "ja",
		"en-US": "en-US",
		"de":    "de",
	}
	for input, expected := range cases {
		if got := convertLanguage(input); got != expected {
			t.Fatalf("expected %q for %q, got %q", expected, input, got)
		}
	}
}

func TestConvertEncodingRejectsCompandedAboveEightKilohertz(t *testing.T) {
	if _, err := convertEncoding(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw}); err == nil {
		t.Fatalf("expected mulaw at 16kHz to be rejected")
	}
	encoding, err := convertEncoding(audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("expected default encoding to be accepted, got %v", err)
	}
	if encoding.SampleRate != 16000 || encoding.Format != encodingLinear16 {
		t.Fatalf("expected linear16 at 16kHz, got %+v", encoding)
	}
}

func TestTranscribeStreamsAudioAndDeliversResults(t *testing.T) {
	upgrader := websocket.Upgrader{}
	queries := make(chan string, 1)
	received := make(chan []byte, 8)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		queries <- r.URL.RawQuery

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.BinaryMessage || len(msg) != 4 {
				continue
			}
			received <- msg
			_ = conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"もしもし"}]}}`))
			_ = conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"もしもし。"}]}}`))
		}
	}))
	defer server.Close()

	client := NewTranscriptionClient(
		WithAPIKey("test-key"),
		WithEndpoint("ws"+strings.TrimPrefix(server.URL, "http")),
	)
	recorded := &recordedTranscripts{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Transcribe(ctx, recorded.options(speechtotext.WithLanguage("ja-JP"))...); err != nil {
		t.Fatalf("expected transcribe to connect, got %v", err)
	}

	query := <-queries
	for _, param := range []string{"language=ja", "interim_results=true", "sample_rate=16000", "encoding=linear16"} {
		if !strings.Contains(query, param) {
			t.Fatalf("expected query to contain %q, got %q", param, query)
		}
	}

	if err := client.SendAudio([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("expected audio to be sent, got %v", err)
	}

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatalf("expected server to receive audio")
	}

	deadline := time.Now().Add(time.Second)
	for {
		recorded.mu.Lock()
		done := len(recorded.finals) == 1
		interims := append([]string(nil), recorded.interims...)
		recorded.mu.Unlock()
		if done {
			if len(interims) != 1 || interims[0] != "もしもし" {
				t.Fatalf("expected interim before final, got %q", interims)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected final transcript within 1s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSendAudioWithoutStreamFails(t *testing.T) {
	client := NewTranscriptionClient(WithAPIKey("test-key"))
	if err := client.SendAudio([]byte{0, 0}); err != ErrNotStreaming {
		t.Fatalf("expected ErrNotStreaming, got %v", err)
	}
}
