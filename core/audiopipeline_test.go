package orchestration

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jiroshimaya/fastvoicechat/core/audio"
	"github.com/jiroshimaya/fastvoicechat/core/speechtotext"
	"github.com/jiroshimaya/fastvoicechat/core/vad"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// 15 ms of default encoded audio, so device buffers straddle frames.
const sourceChunkBytes = 480

type stubSource struct {
	err      error
	speaking atomic.Bool
	chunks   atomic.Int32
}

func (s *stubSource) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (s *stubSource) Capture(ctx context.Context, onAudio func([]byte)) error {
	if s.err != nil {
		return s.err
	}

	ticker := time.NewTicker(15 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if s.speaking.Load() {
			onAudio(toneChunk(sourceChunkBytes))
		} else {
			onAudio(make([]byte, sourceChunkBytes))
		}
		s.chunks.Add(1)
	}
}

func toneChunk(n int) []byte {
	samples := make([]int16, n/2)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/audio.DefaultSampleRate))
	}
	return audio.Bytes16(samples)
}

type stubTranscriber struct {
	mu      sync.Mutex
	options speechtotext.TranscriptionOptions
	sizes   []int
	sendErr error
}

func (s *stubTranscriber) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = speechtotext.NewTranscriptionOptions(opts...)
	return nil
}

func (s *stubTranscriber) SendAudio(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes = append(s.sizes, len(data))
	return s.sendErr
}

func (s *stubTranscriber) StopStream() error {
	return nil
}

func (s *stubTranscriber) sent() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.sizes...)
}

func (s *stubTranscriber) interim(text string) {
	s.mu.Lock()
	callback := s.options.InterimCallback
	s.mu.Unlock()
	callback(text)
}

func (s *stubTranscriber) final(text string) {
	s.mu.Lock()
	callback := s.options.FinalCallback
	s.mu.Unlock()
	callback(text)
}

type failingSegmenter struct {
	calls atomic.Int32
}

func (s *failingSegmenter) Segment(audio.Frame) (vad.Event, error) {
	s.calls.Add(1)
	return vad.Event{}, errors.New("model not loaded")
}

func testSegmenter() *vad.EnergySegmenter {
	return vad.NewEnergySegmenter(vad.WithMinSilence(30 * time.Millisecond))
}

func awaitTurnSignal(t *testing.T, signals <-chan TurnSignal, kind TurnSignalKind) TurnSignal {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case signal := <-signals:
			if signal.Kind == kind {
				return signal
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %v", kind)
			return TurnSignal{}
		}
	}
}

func TestCaptureFailureFailsEveryListen(t *testing.T) {
	o := startTestOrchestrator(t,
		WithConfig(testConfig()),
		WithAudioSource(&stubSource{err: errors.New("device unplugged")}),
	)

	for i := range 2 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		outcome, err := o.ListenThenUtter(ctx)
		cancel()

		if !errors.Is(err, ErrCapture) {
			t.Fatalf("call %d: expected capture failure, got %v", i, err)
		}
		var failure *Failure
		if !errors.As(err, &failure) || failure.Kind != CaptureFailure {
			t.Fatalf("call %d: expected a capture *Failure, got %T", i, err)
		}
		if outcome.Kind != OutcomeFailed {
			t.Fatalf("call %d: expected failed outcome, got %v", i, outcome.Kind)
		}
	}
	if state := o.State(); state != StateIdle {
		t.Fatalf("expected idle after capture failure, got %v", state)
	}
}

func TestCapturedAudioReachesTranscriberInWholeFrames(t *testing.T) {
	transcriber := &stubTranscriber{}
	startTestOrchestrator(t,
		WithConfig(testConfig()),
		WithAudioSource(&stubSource{}),
		WithTranscriber(transcriber),
	)

	waitForCondition(t, time.Second, "frames sent to the transcriber", func() bool {
		return len(transcriber.sent()) >= 6
	})
	frameBytes := audio.GetDefaultEncodingInfo().BytesFor(audio.DefaultFrameDuration)
	for i, size := range transcriber.sent() {
		if size != frameBytes {
			t.Fatalf("expected frame %d to be %d bytes, got %d", i, frameBytes, size)
		}
	}

	transcriber.mu.Lock()
	encodingInfo := transcriber.options.EncodingInfo
	transcriber.mu.Unlock()
	if encodingInfo != audio.GetDefaultEncodingInfo() {
		t.Fatalf("expected the source encoding to reach the transcriber, got %+v", encodingInfo)
	}
}

func TestTranscriberSendFailuresDoNotStopCapture(t *testing.T) {
	source := &stubSource{}
	transcriber := &stubTranscriber{sendErr: errors.New("stream closed")}
	startTestOrchestrator(t,
		WithConfig(testConfig()),
		WithAudioSource(source),
		WithTranscriber(transcriber),
	)

	waitForCondition(t, time.Second, "repeated send attempts", func() bool {
		return len(transcriber.sent()) >= 6 && source.chunks.Load() >= 4
	})
}

func TestCapturedSpeechCompletesCycle(t *testing.T) {
	source := &stubSource{}
	transcriber := &stubTranscriber{}
	answer := &stubGenerator{respond: respondWith("はい、聞こえます。")}
	signals := make(chan TurnSignal, 32)
	o := startTestOrchestrator(t,
		WithConfig(testConfig()),
		WithAudioSource(source),
		WithSpeechSegmenter(testSegmenter()),
		WithTranscriber(transcriber),
		WithAnswerGenerator(answer),
		WithSynthesizer(&stubSynthesizer{}),
		WithPlayer(&stubPlayer{duration: 20 * time.Millisecond}),
		WithTurnSignalCallback(func(signal TurnSignal) { signals <- signal }),
	)
	results := listen(t, o)

	source.speaking.Store(true)
	awaitTurnSignal(t, signals, SpeechStarted)
	transcriber.final("聞こえますか")
	awaitTurnSignal(t, signals, InterimTranscript)
	source.speaking.Store(false)

	result := awaitResult(t, results)
	if result.err != nil || result.outcome.Kind != OutcomeCompleted {
		t.Fatalf("expected completed cycle, got %+v, %v", result.outcome, result.err)
	}
	if result.outcome.UserText != "聞こえますか" || result.outcome.Degraded {
		t.Fatalf("expected clean user text, got %q degraded=%v", result.outcome.UserText, result.outcome.Degraded)
	}
	if got := answer.request(0).SourceText; got != "聞こえますか" {
		t.Fatalf("expected answer for the captured utterance, got %q", got)
	}
}

func TestCapturedSpeechDuringPlaybackBargesIn(t *testing.T) {
	source := &stubSource{}
	transcriber := &stubTranscriber{}
	player := &stubPlayer{duration: 5 * time.Second}
	signals := make(chan TurnSignal, 32)
	o := startTestOrchestrator(t,
		WithConfig(testConfig()),
		WithAudioSource(source),
		WithSpeechSegmenter(testSegmenter()),
		WithTranscriber(transcriber),
		WithAnswerGenerator(&stubGenerator{respond: respondWith("長い回答です。")}),
		WithSynthesizer(&stubSynthesizer{}),
		WithPlayer(player),
		WithTurnSignalCallback(func(signal TurnSignal) { signals <- signal }),
	)
	listen(t, o)

	source.speaking.Store(true)
	awaitTurnSignal(t, signals, SpeechStarted)
	transcriber.final("教えて")
	awaitTurnSignal(t, signals, InterimTranscript)
	source.speaking.Store(false)
	waitForCondition(t, 2*time.Second, "answer playback", func() bool {
		return o.State() == StatePlayingAnswer && player.IsPlaying()
	})

	source.speaking.Store(true)
	waitForCondition(t, 2*time.Second, "playback stop", func() bool { return len(player.stoppedTexts()) == 1 })
	waitForCondition(t, time.Second, "barge-in metric", func() bool {
		return testutil.ToFloat64(o.metrics.bargeIns.WithLabelValues("true")) == 1
	})
	if got := o.onsets.Load(); got != 0 {
		t.Fatalf("expected onsets to be read from the segmenter activity, got %d counted locally", got)
	}
}

func TestSegmentationFailureFallsBackToTranscripts(t *testing.T) {
	segmenter := &failingSegmenter{}
	transcriber := &stubTranscriber{}
	answer := &stubGenerator{respond: respondWith("はい。")}
	o := startTestOrchestrator(t,
		WithConfig(testConfig()),
		WithAudioSource(&stubSource{}),
		WithSpeechSegmenter(segmenter),
		WithTranscriber(transcriber),
		WithAnswerGenerator(answer),
		WithSynthesizer(&stubSynthesizer{}),
		WithPlayer(&stubPlayer{duration: 10 * time.Millisecond}),
	)
	results := listen(t, o)

	waitForCondition(t, time.Second, "segmenter calls", func() bool { return segmenter.calls.Load() >= 3 })
	time.Sleep(20 * time.Millisecond)

	transcriber.interim("もしもし")
	transcriber.final("もしもし")

	result := awaitResult(t, results)
	if result.err != nil || result.outcome.Kind != OutcomeCompleted {
		t.Fatalf("expected completed cycle, got %+v, %v", result.outcome, result.err)
	}
	if result.outcome.UserText != "もしもし" {
		t.Fatalf("expected transcript-delimited text, got %q", result.outcome.UserText)
	}
	if got := answer.requestCount(); got != 1 {
		t.Fatalf("expected one answer request, got %d", got)
	}
}
