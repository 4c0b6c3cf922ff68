// Package vad classifies captured audio frames as speech or silence and
// derives speech start and end boundaries from the classification.
package vad

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jiroshimaya/fastvoicechat/core/audio"
)

var ErrMalformedFrame = errors.New("malformed audio frame")

type Boundary int

const (
	BoundaryNone Boundary = iota
	BoundarySpeechStart
	BoundarySpeechEnd
)

func (b Boundary) String() string {
	switch b {
	case BoundaryNone:
		return "none"
	case BoundarySpeechStart:
		return "speech_start"
	case BoundarySpeechEnd:
		return "speech_end"
	default:
		return fmt.Sprintf("boundary(%d)", int(b))
	}
}

// Event is the classification of one frame.
type Event struct {
	Seq      uint64
	Speech   bool
	Boundary Boundary
	At       time.Time
	// SilenceStartedAt is set on speech end boundaries to the capture time of
	// the first silent frame of the run that ended the speech.
	SilenceStartedAt time.Time
}

// Activity is a concurrently readable view of the segmenter state.
type Activity struct {
	active atomic.Bool
	onsets atomic.Uint64
}

func (a *Activity) Active() bool {
	return a.active.Load()
}

// Onsets counts speech start boundaries seen so far.
func (a *Activity) Onsets() uint64 {
	return a.onsets.Load()
}

type Config struct {
	EncodingInfo audio.EncodingInfo
	// Threshold is the normalised RMS level at or above which a frame counts
	// as speech.
	Threshold float64
	// StartFrames is how many consecutive speech frames open speech.
	StartFrames int
	// MinSilence is how long silence must last before speech is closed. A new
	// start can only follow a closed speech, so it also bounds the silence
	// preceding every start.
	MinSilence time.Duration
}

func DefaultConfig() Config {
	return Config{
		EncodingInfo: audio.GetDefaultEncodingInfo(),
		Threshold:    0.02,
		StartFrames:  3,
		MinSilence:   100 * time.Millisecond,
	}
}

type Option func(*Config)

func WithThreshold(threshold float64) Option {
	return func(c *Config) {
		c.Threshold = threshold
	}
}

func WithStartFrames(frames int) Option {
	return func(c *Config) {
		c.StartFrames = frames
	}
}

func WithMinSilence(d time.Duration) Option {
	return func(c *Config) {
		c.MinSilence = d
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) Option {
	return func(c *Config) {
		c.EncodingInfo = encodingInfo
	}
}

// EnergySegmenter is an RMS energy voice activity detector. It is not safe
// for concurrent Segment calls; Activity may be read from anywhere.
type EnergySegmenter struct {
	config Config

	speaking         bool
	speechRun        int
	silenceRun       time.Duration
	silenceStartedAt time.Time

	activity Activity
}

func NewEnergySegmenter(opts ...Option) *EnergySegmenter {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.StartFrames < 1 {
		config.StartFrames = 1
	}
	if config.EncodingInfo.IsZero() {
		config.EncodingInfo = audio.GetDefaultEncodingInfo()
	}

	return &EnergySegmenter{config: config}
}

func (s *EnergySegmenter) Activity() *Activity {
	return &s.activity
}

func (s *EnergySegmenter) Segment(frame audio.Frame) (Event, error) {
	if len(frame.Data) == 0 || len(frame.Data)%2 != 0 {
		return Event{}, fmt.Errorf("%w: frame %d has %d bytes", ErrMalformedFrame, frame.Seq, len(frame.Data))
	}

	at := frame.CapturedAt
	if at.IsZero() {
		at = time.Now()
	}

	event := Event{
		Seq:    frame.Seq,
		Speech: audio.RMS(frame.Data) >= s.config.Threshold,
		At:     at,
	}

	if !s.speaking {
		if !event.Speech {
			s.speechRun = 0
			return event, nil
		}

		s.speechRun++
		if s.speechRun >= s.config.StartFrames {
			s.speaking = true
			s.speechRun = 0
			s.silenceRun = 0
			event.Boundary = BoundarySpeechStart
			s.activity.active.Store(true)
			s.activity.onsets.Add(1)
		}
		return event, nil
	}

	if event.Speech {
		s.silenceRun = 0
		return event, nil
	}

	if s.silenceRun == 0 {
		s.silenceStartedAt = at
	}
	s.silenceRun += s.config.EncodingInfo.DurationOf(len(frame.Data))
	if s.silenceRun >= s.config.MinSilence {
		s.speaking = false
		s.silenceRun = 0
		event.Boundary = BoundarySpeechEnd
		event.SilenceStartedAt = s.silenceStartedAt
		s.activity.active.Store(false)
	}

	return event, nil
}
