package orchestration

import (
	"errors"
	"fmt"
)

type FailureKind int

const (
	CaptureFailure FailureKind = iota + 1
	SegmentationFailure
	TranscriptionFailure
	GenerationFailure
	SynthesisFailure
	PlaybackFailure
)

var (
	ErrCapture       = errors.New("capture failure")
	ErrSegmentation  = errors.New("segmentation failure")
	ErrTranscription = errors.New("transcription failure")
	ErrGeneration    = errors.New("generation failure")
	ErrSynthesis     = errors.New("synthesis failure")
	ErrPlayback      = errors.New("playback failure")
)

var (
	ErrNotStarted       = errors.New("orchestrator not started")
	ErrAlreadyStarted   = errors.New("orchestrator already started")
	ErrClosed           = errors.New("orchestrator closed")
	ErrListenInProgress = errors.New("another listen request is in progress")
)

func (k FailureKind) String() string {
	switch k {
	case CaptureFailure:
		return "capture"
	case SegmentationFailure:
		return "segmentation"
	case TranscriptionFailure:
		return "transcription"
	case GenerationFailure:
		return "generation"
	case SynthesisFailure:
		return "synthesis"
	case PlaybackFailure:
		return "playback"
	default:
		return fmt.Sprintf("failure(%d)", int(k))
	}
}

func (k FailureKind) sentinel() error {
	switch k {
	case CaptureFailure:
		return ErrCapture
	case SegmentationFailure:
		return ErrSegmentation
	case TranscriptionFailure:
		return ErrTranscription
	case GenerationFailure:
		return ErrGeneration
	case SynthesisFailure:
		return ErrSynthesis
	case PlaybackFailure:
		return ErrPlayback
	default:
		return nil
	}
}

// Failure is a typed pipeline failure. errors.Is matches it against the
// sentinel of its kind, e.g. ErrSynthesis.
type Failure struct {
	Kind FailureKind
	Err  error
}

func newFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Kind.sentinel().Error()
	}
	return fmt.Sprintf("%s: %v", f.Kind.sentinel(), f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func (f *Failure) Is(target error) bool {
	return target != nil && target == f.Kind.sentinel()
}
