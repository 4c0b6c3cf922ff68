package google

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/jiroshimaya/fastvoicechat/core/speechtotext"
)

type stubStream struct {
	mu        sync.Mutex
	sent      []*speechpb.StreamingRecognizeRequest
	responses chan *speechpb.StreamingRecognizeResponse
	recvErr   chan error
	closed    bool
}

func newStubStream() *stubStream {
	return &stubStream{
		responses: make(chan *speechpb.StreamingRecognizeResponse, 8),
		recvErr:   make(chan error, 1),
	}
}

func (s *stubStream) Send(req *speechpb.StreamingRecognizeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	return nil
}

func (s *stubStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	select {
	case resp := <-s.responses:
		return resp, nil
	case err := <-s.recvErr:
		return nil, err
	}
}

func (s *stubStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubStream) requests() []*speechpb.StreamingRecognizeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*speechpb.StreamingRecognizeRequest(nil), s.sent...)
}

func result(transcript string, final bool) *speechpb.StreamingRecognitionResult {
	return &speechpb.StreamingRecognitionResult{
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: transcript}},
		IsFinal:      final,
	}
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", description)
}

func TestDispatchResultsJoinsUnstableInterims(t *testing.T) {
	var interims, finals []string
	options := speechtotext.NewTranscriptionOptions(
		speechtotext.WithInterimCallback(func(text string) { interims = append(interims, text) }),
		speechtotext.WithFinalCallback(func(text string) { finals = append(finals, text) }),
	)

	dispatchResults([]*speechpb.StreamingRecognitionResult{result("今日は", false), result("いい天気", false)}, options)
	dispatchResults([]*speechpb.StreamingRecognitionResult{result("今日はいい天気ですね。", true), result("次", false)}, options)

	if len(interims) != 1 || interims[0] != "今日はいい天気" {
		t.Fatalf("expected joined interim, got %q", interims)
	}
	if len(finals) != 1 || finals[0] != "今日はいい天気ですね。" {
		t.Fatalf("expected single final, got %q", finals)
	}
}

func TestTranscribeSendsConfigFirstAndBatchesAudio(t *testing.T) {
	stream := newStubStream()
	client := newTranscriptionClient(func(context.Context) (recognizeStream, error) {
		return stream, nil
	}, WithChunkDuration(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Transcribe(ctx); err != nil {
		t.Fatalf("expected transcribe to start, got %v", err)
	}

	requests := stream.requests()
	if len(requests) != 1 {
		t.Fatalf("expected only the config request, got %d", len(requests))
	}
	config := requests[0].GetStreamingConfig()
	if config == nil {
		t.Fatalf("expected first request to carry the streaming config")
	}
	if config.GetConfig().GetLanguageCode() != "ja-JP" || !config.GetInterimResults() {
		t.Fatalf("expected ja-JP with interim results, got %+v", config)
	}
	if config.GetConfig().GetEncoding() != speechpb.RecognitionConfig_LINEAR16 {
		t.Fatalf("expected LINEAR16, got %v", config.GetConfig().GetEncoding())
	}
	if !config.GetConfig().GetEnableAutomaticPunctuation() {
		t.Fatalf("expected automatic punctuation")
	}

	if err := client.SendAudio(make([]byte, 200)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := len(stream.requests()); got != 1 {
		t.Fatalf("expected audio below one chunk to stay buffered, got %d requests", got)
	}
	if err := client.SendAudio(make([]byte, 500)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	requests = stream.requests()
	if len(requests) != 3 {
		t.Fatalf("expected two audio requests of 320 bytes, got %d requests", len(requests))
	}
	if got := len(requests[1].GetAudioContent()); got != 320 {
		t.Fatalf("expected 320 byte chunk, got %d", got)
	}
}

func TestTranscribeRestartsSessionAfterStreamError(t *testing.T) {
	first := newStubStream()
	second := newStubStream()
	streams := []*stubStream{first, second}
	var opened int
	var openedMu sync.Mutex

	client := newTranscriptionClient(func(context.Context) (recognizeStream, error) {
		openedMu.Lock()
		defer openedMu.Unlock()
		stream := streams[opened]
		opened++
		return stream, nil
	}, WithRestartDelay(time.Millisecond))

	var errs, finals []string
	var mu sync.Mutex
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := client.Transcribe(ctx,
		speechtotext.WithErrorCallback(func(err error) {
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err.Error())
		}),
		speechtotext.WithFinalCallback(func(text string) {
			mu.Lock()
			defer mu.Unlock()
			finals = append(finals, text)
		}),
	)
	if err != nil {
		t.Fatalf("expected transcribe to start, got %v", err)
	}

	first.recvErr <- errors.New("deadline exceeded")
	waitForCondition(t, time.Second, "second session", func() bool {
		openedMu.Lock()
		defer openedMu.Unlock()
		return opened == 2
	})

	second.responses <- &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{result("はい", true)},
	}
	waitForCondition(t, time.Second, "final from second session", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(finals) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 {
		t.Fatalf("expected the first session error to be reported once, got %q", errs)
	}
}

func TestSendAudioWithoutStreamFails(t *testing.T) {
	client := newTranscriptionClient(func(context.Context) (recognizeStream, error) {
		return newStubStream(), nil
	})
	if err := client.SendAudio([]byte{0, 0}); !errors.Is(err, ErrNotStreaming) {
		t.Fatalf("expected ErrNotStreaming, got %v", err)
	}
}
