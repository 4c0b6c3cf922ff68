package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	orchestration "github.com/jiroshimaya/fastvoicechat/core"
	"github.com/jiroshimaya/fastvoicechat/core/audio/miniaudio"
	"github.com/jiroshimaya/fastvoicechat/core/audio/portaudio"
	"github.com/jiroshimaya/fastvoicechat/core/audio/tcpip"
	"github.com/jiroshimaya/fastvoicechat/core/generation"
	"github.com/jiroshimaya/fastvoicechat/core/llms"
	"github.com/jiroshimaya/fastvoicechat/core/llms/groq"
	"github.com/jiroshimaya/fastvoicechat/core/llms/openai"
	"github.com/jiroshimaya/fastvoicechat/core/speechtotext"
	deepgramstt "github.com/jiroshimaya/fastvoicechat/core/speechtotext/deepgram"
	"github.com/jiroshimaya/fastvoicechat/core/speechtotext/google"
	deepgramtts "github.com/jiroshimaya/fastvoicechat/core/texttospeech/deepgram"
	"github.com/jiroshimaya/fastvoicechat/core/texttospeech/voicevox"
	"github.com/jiroshimaya/fastvoicechat/core/vad"
	"github.com/jiroshimaya/fastvoicechat/internal/config"
)

const portaudioBufferSize = 1024

// pipeline is everything the orchestrator needs, built from the config.
type pipeline struct {
	options []orchestration.OrchestratorOption
	closers []func()
}

func (p *pipeline) close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

type audioDevice interface {
	orchestration.AudioSource
	orchestration.Player
}

func buildPipeline(ctx context.Context, cfg config.Config, registerer prometheus.Registerer) (_ *pipeline, err error) {
	p := &pipeline{}
	defer func() {
		if err != nil {
			p.close()
		}
	}()

	devices := map[string]audioDevice{}
	device := func(kind string) (audioDevice, error) {
		if d, ok := devices[kind]; ok {
			return d, nil
		}
		switch kind {
		case "miniaudio":
			client, err := miniaudio.NewClient()
			if err != nil {
				return nil, fmt.Errorf("failed to open miniaudio device: %w", err)
			}
			p.closers = append(p.closers, client.Close)
			devices[kind] = client
			return client, nil
		case "portaudio":
			client, err := portaudio.NewClient(portaudioBufferSize)
			if err != nil {
				return nil, fmt.Errorf("failed to open portaudio device: %w", err)
			}
			p.closers = append(p.closers, client.Close)
			devices[kind] = client
			return client, nil
		default:
			return nil, fmt.Errorf("unknown audio device %q", kind)
		}
	}

	source, err := device(cfg.Capture.Type)
	if err != nil {
		return nil, err
	}

	var player orchestration.Player
	if cfg.Player.Type == "tcpip" {
		player = tcpip.NewPlayer(cfg.Player.TCPIPAddress)
	} else if player, err = device(cfg.Player.Type); err != nil {
		return nil, err
	}

	segmenter := vad.NewEnergySegmenter(
		vad.WithEncodingInfo(source.EncodingInfo()),
		vad.WithThreshold(cfg.VAD.Threshold),
		vad.WithMinSilence(cfg.Orchestration.MinSilence),
	)

	transcriber, err := buildTranscriber(ctx, cfg)
	if err != nil {
		return nil, err
	}

	synthesizer, err := buildSynthesizer(cfg)
	if err != nil {
		return nil, err
	}

	backchannel, answer, err := buildGenerators(cfg)
	if err != nil {
		return nil, err
	}

	p.options = append(p.options,
		orchestration.WithConfig(cfg.Orchestration),
		orchestration.WithAudioSource(source),
		orchestration.WithSpeechSegmenter(segmenter),
		orchestration.WithTranscriber(transcriber, speechtotext.WithLanguage(cfg.Recognition.Language)),
		orchestration.WithBackchannelGenerator(backchannel),
		orchestration.WithAnswerGenerator(answer),
		orchestration.WithSynthesizer(synthesizer),
		orchestration.WithPlayer(player),
		orchestration.WithMetricsRegisterer(registerer),
	)
	return p, nil
}

func buildTranscriber(ctx context.Context, cfg config.Config) (orchestration.StreamingTranscriber, error) {
	switch cfg.Recognition.Type {
	case "google":
		client, err := google.NewTranscriptionClient(ctx, google.WithPhrases(cfg.Recognition.Phrases...))
		if err != nil {
			return nil, fmt.Errorf("failed to create google transcriber: %w", err)
		}
		return client, nil
	case "deepgram":
		return deepgramstt.NewTranscriptionClient(), nil
	default:
		return nil, fmt.Errorf("unknown recognition type %q", cfg.Recognition.Type)
	}
}

func buildSynthesizer(cfg config.Config) (orchestration.Synthesizer, error) {
	switch cfg.Synthesizer.Type {
	case "voicevox":
		return voicevox.NewClient(
			voicevox.WithHost(cfg.Synthesizer.VoicevoxHost),
			voicevox.WithSpeakerID(cfg.Synthesizer.VoicevoxSpeaker),
		), nil
	case "deepgram":
		voice, ok := deepgramtts.ParseVoice(cfg.Synthesizer.DeepgramVoice)
		if !ok {
			return nil, fmt.Errorf("unknown deepgram voice %q", cfg.Synthesizer.DeepgramVoice)
		}
		client, err := deepgramtts.NewTextToSpeechClient(voice)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepgram synthesizer: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown synthesizer type %q", cfg.Synthesizer.Type)
	}
}

func buildGenerators(cfg config.Config) (generation.Generator, generation.Generator, error) {
	var backchannelClient, answerClient llms.StreamingClient
	var structured llms.StructuredClient
	switch cfg.LLM.Type {
	case "openai":
		backchannelClient = openai.NewClient(cfg.LLM.BackchannelModel)
		answerClient = openai.NewClient(cfg.LLM.AnswerModel)
	case "groq":
		client := groq.NewClient(cfg.LLM.BackchannelModel)
		backchannelClient, structured = client, client
		answerClient = groq.NewClient(cfg.LLM.AnswerModel)
	default:
		return nil, nil, fmt.Errorf("unknown llm type %q", cfg.LLM.Type)
	}

	var backchannel generation.Generator = generation.NewBackchannelGenerator(backchannelClient)
	if cfg.LLM.BackchannelMode == "structured" {
		if structured == nil {
			return nil, nil, fmt.Errorf("structured backchannel mode is not supported by the %s llm type", cfg.LLM.Type)
		}
		backchannel = generation.NewConstrainedBackchannelGenerator(structured, "")
	}
	return backchannel, generation.NewAnswerGenerator(answerClient), nil
}
