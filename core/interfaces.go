package orchestration

import (
	"context"

	"github.com/jiroshimaya/fastvoicechat/core/audio"
	"github.com/jiroshimaya/fastvoicechat/core/speechtotext"
	"github.com/jiroshimaya/fastvoicechat/core/vad"
)

// AudioSource captures microphone audio. Capture blocks until ctx is done
// and calls onAudio with device buffers of any length.
type AudioSource interface {
	EncodingInfo() audio.EncodingInfo
	Capture(ctx context.Context, onAudio func([]byte)) error
}

type SpeechSegmenter interface {
	Segment(frame audio.Frame) (vad.Event, error)
}

// StreamingTranscriber starts a recognition stream with Transcribe, which
// returns once the stream is open. Results come back through the callbacks
// passed as options.
type StreamingTranscriber interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
	StopStream() error
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audio.Clip, error)
}

type Player interface {
	Play(ctx context.Context, clip audio.Clip) (*audio.Playback, error)
	IsPlaying() bool
}
