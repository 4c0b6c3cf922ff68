package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jiroshimaya/fastvoicechat/core/audio"
	"github.com/jiroshimaya/fastvoicechat/core/generation"
)

type stubGenerator struct {
	mu       sync.Mutex
	requests []generation.Request
	delivers []func(generation.Result)
	// respond, when set, answers every request right away.
	respond func(generation.Request) generation.Result
}

func (g *stubGenerator) Submit(_ context.Context, request generation.Request, deliver func(generation.Result)) {
	g.mu.Lock()
	g.requests = append(g.requests, request)
	g.delivers = append(g.delivers, deliver)
	respond := g.respond
	g.mu.Unlock()

	if respond != nil {
		go deliver(respond(request))
	}
}

func (g *stubGenerator) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *stubGenerator) request(i int) generation.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[i]
}

// deliver answers the i-th request with text.
func (g *stubGenerator) deliver(i int, result generation.Result) {
	g.mu.Lock()
	request := g.requests[i]
	deliver := g.delivers[i]
	g.mu.Unlock()

	result.GenerationID = request.GenerationID
	result.Kind = request.Kind
	go deliver(result)
}

func respondWith(text string) func(generation.Request) generation.Result {
	return func(request generation.Request) generation.Result {
		return generation.Result{GenerationID: request.GenerationID, Kind: request.Kind, Text: text}
	}
}

type stubSynthesizer struct {
	mu     sync.Mutex
	texts  []string
	failOn string
}

func (s *stubSynthesizer) Synthesize(_ context.Context, text string) (audio.Clip, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()

	if s.failOn != "" && text == s.failOn {
		return audio.Clip{}, errors.New("synthesis backend unavailable")
	}
	return audio.Clip{Data: []byte(text), EncodingInfo: audio.GetDefaultEncodingInfo()}, nil
}

// stubPlayer plays a clip for a fixed time. The clip bytes are the text
// the stub synthesizer was given.
type stubPlayer struct {
	duration  time.Duration
	durations map[string]time.Duration

	mu      sync.Mutex
	played  []string
	stopped []string

	playing    atomic.Int32
	maxPlaying atomic.Int32
}

func (p *stubPlayer) Play(ctx context.Context, clip audio.Clip) (*audio.Playback, error) {
	text := string(clip.Data)
	duration := p.duration
	if d, ok := p.durations[text]; ok {
		duration = d
	}

	p.mu.Lock()
	p.played = append(p.played, text)
	p.mu.Unlock()

	n := p.playing.Add(1)
	for {
		current := p.maxPlaying.Load()
		if n <= current || p.maxPlaying.CompareAndSwap(current, n) {
			break
		}
	}

	playback := audio.NewPlayback()
	go func() {
		timer := time.NewTimer(duration)
		defer timer.Stop()

		select {
		case <-timer.C:
			p.playing.Add(-1)
			playback.Finish(true, nil)
		case <-playback.StopRequested():
			p.mu.Lock()
			p.stopped = append(p.stopped, text)
			p.mu.Unlock()
			p.playing.Add(-1)
			playback.Finish(false, nil)
		case <-ctx.Done():
			p.playing.Add(-1)
			playback.Finish(false, ctx.Err())
		}
	}()
	return playback, nil
}

func (p *stubPlayer) IsPlaying() bool {
	return p.playing.Load() > 0
}

func (p *stubPlayer) playedTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

func (p *stubPlayer) stoppedTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.stopped...)
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", description)
}

type listenResult struct {
	outcome CycleOutcome
	err     error
}

func testConfig() Config {
	config := DefaultConfig()
	config.InterruptCheckInterval = 2 * time.Millisecond
	config.EndOfSpeechSilence = 30 * time.Millisecond
	config.FinalTranscriptTimeout = 50 * time.Millisecond
	return config
}

func startTestOrchestrator(t *testing.T, opts ...OrchestratorOption) *Orchestrator {
	t.Helper()

	o := NewOrchestrator(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	if err := o.Start(ctx); err != nil {
		cancel()
		t.Fatalf("expected orchestrator to start, got %v", err)
	}
	t.Cleanup(func() {
		cancel()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer closeCancel()
		_ = o.Close(closeCtx)
	})
	return o
}

// listen starts ListenThenUtter in the background and waits until the
// orchestrator is listening.
func listen(t *testing.T, o *Orchestrator, opts ...UtterOption) <-chan listenResult {
	t.Helper()

	results := make(chan listenResult, 1)
	go func() {
		outcome, err := o.ListenThenUtter(context.Background(), opts...)
		results <- listenResult{outcome: outcome, err: err}
	}()
	waitForCondition(t, time.Second, "listening state", func() bool {
		return o.State() == StateListeningForSpeech
	})
	return results
}

func awaitResult(t *testing.T, results <-chan listenResult) listenResult {
	t.Helper()

	select {
	case result := <-results:
		return result
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for ListenThenUtter to return")
	}
	return listenResult{}
}

func turnSignal(kind TurnSignalKind, cycle uint64, text string) TurnSignal {
	return TurnSignal{Kind: kind, Text: text, Cycle: cycle, Timestamp: time.Now()}
}
