package orchestration

import (
	"github.com/jiroshimaya/fastvoicechat/core/events"
	"github.com/jiroshimaya/fastvoicechat/core/generation"
	"github.com/jiroshimaya/fastvoicechat/core/speechtotext"
	"github.com/prometheus/client_golang/prometheus"
)

type OrchestratorOption func(*Orchestrator)

func WithConfig(config Config) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config = config
	}
}

func WithAudioSource(source AudioSource) OrchestratorOption {
	return func(o *Orchestrator) {
		o.source = source
	}
}

// WithSpeechSegmenter sets the voice activity segmenter. Without one,
// utterances are delimited by transcript activity alone and barge-in is
// never detected.
func WithSpeechSegmenter(segmenter SpeechSegmenter) OrchestratorOption {
	return func(o *Orchestrator) {
		o.segmenter = segmenter
	}
}

func WithTranscriber(transcriber StreamingTranscriber, opts ...speechtotext.TranscriptionOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.transcriber = transcriber
		o.transcriptionOptions = opts
	}
}

func WithBackchannelGenerator(generator generation.Generator) OrchestratorOption {
	return func(o *Orchestrator) {
		o.backchannel = generator
	}
}

func WithAnswerGenerator(generator generation.Generator) OrchestratorOption {
	return func(o *Orchestrator) {
		o.answer = generator
	}
}

func WithSynthesizer(synthesizer Synthesizer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.synthesizer = synthesizer
	}
}

func WithPlayer(player Player) OrchestratorOption {
	return func(o *Orchestrator) {
		o.player = player
	}
}

// WithMetricsRegisterer registers the orchestrator metrics with registerer
// instead of a private registry.
func WithMetricsRegisterer(registerer prometheus.Registerer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.registerer = registerer
	}
}

func WithStateChangedCallback(callback func(from, to State)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onStateChanged = callback
	}
}

func WithTurnSignalCallback(callback func(TurnSignal)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onTurnSignal = callback
	}
}

func WithCycleEndedCallback(callback func(CycleOutcome)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onCycleEnded = callback
	}
}

// WithEventCallback receives every event the orchestrator reports. Calls are
// serialized.
func WithEventCallback(callback func(events.Event)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.emitter.onEvent = callback
	}
}

type utterOptions struct {
	withoutHistory      bool
	additionalUtterance string
}

type UtterOption func(*utterOptions)

// WithoutHistory keeps the cycle out of the conversation history, both as
// prompt context and as a recorded exchange.
func WithoutHistory() UtterOption {
	return func(o *utterOptions) {
		o.withoutHistory = true
	}
}

// WithAdditionalUtterance speaks text after the answer, or after the
// backchannel when no answer is needed.
func WithAdditionalUtterance(text string) UtterOption {
	return func(o *utterOptions) {
		o.additionalUtterance = text
	}
}

func newUtterOptions(opts ...UtterOption) utterOptions {
	options := utterOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
