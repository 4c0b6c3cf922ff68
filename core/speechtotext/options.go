package speechtotext

import "github.com/jiroshimaya/fastvoicechat/core/audio"

// DefaultLanguage is the BCP-47 code transcribers use when none is given.
const DefaultLanguage = "ja-JP"

// TranscriptionOptions carries the callbacks a transcriber reports through.
// Interim and final texts belong to the current recognition segment: after a
// final, the next interim starts a new segment.
type TranscriptionOptions struct {
	InterimCallback      func(transcript string)
	FinalCallback        func(transcript string)
	UtteranceEndCallback func()
	ErrorCallback        func(err error)

	EncodingInfo audio.EncodingInfo
	Language     string
}

type TranscriptionOption func(*TranscriptionOptions)

func NewTranscriptionOptions(opts ...TranscriptionOption) TranscriptionOptions {
	options := TranscriptionOptions{
		EncodingInfo: audio.GetDefaultEncodingInfo(),
		Language:     DefaultLanguage,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.InterimCallback == nil {
		options.InterimCallback = func(string) {}
	}
	if options.FinalCallback == nil {
		options.FinalCallback = func(string) {}
	}
	if options.UtteranceEndCallback == nil {
		options.UtteranceEndCallback = func() {}
	}
	if options.ErrorCallback == nil {
		options.ErrorCallback = func(error) {}
	}
	return options
}

func WithInterimCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimCallback = callback
	}
}

func WithFinalCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.FinalCallback = callback
	}
}

// WithUtteranceEndCallback registers a callback for the engine's own end of
// utterance marker, when it has one.
func WithUtteranceEndCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.UtteranceEndCallback = callback
	}
}

// WithErrorCallback registers a callback for failures that end the stream.
func WithErrorCallback(callback func(err error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ErrorCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}
