package vad

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jiroshimaya/fastvoicechat/core/audio"
)

const frameBytes = 320

func toneFrame(seq uint64, at time.Time) audio.Frame {
	samples := make([]int16, frameBytes/2)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/audio.DefaultSampleRate))
	}
	return audio.Frame{Seq: seq, Data: audio.Bytes16(samples), CapturedAt: at}
}

func silentFrame(seq uint64, at time.Time) audio.Frame {
	return audio.Frame{Seq: seq, Data: make([]byte, frameBytes), CapturedAt: at}
}

type feeder struct {
	t         *testing.T
	segmenter *EnergySegmenter
	seq       uint64
	now       time.Time
}

func (f *feeder) feed(speech bool, n int) []Event {
	f.t.Helper()
	var events []Event
	for range n {
		var frame audio.Frame
		if speech {
			frame = toneFrame(f.seq, f.now)
		} else {
			frame = silentFrame(f.seq, f.now)
		}
		event, err := f.segmenter.Segment(frame)
		if err != nil {
			f.t.Fatalf("expected no error, got %v", err)
		}
		events = append(events, event)
		f.seq++
		f.now = f.now.Add(audio.DefaultFrameDuration)
	}
	return events
}

func boundaries(events []Event) []Event {
	var found []Event
	for _, event := range events {
		if event.Boundary != BoundaryNone {
			found = append(found, event)
		}
	}
	return found
}

func TestSegmenterOpensSpeechAfterStartFrames(t *testing.T) {
	segmenter := NewEnergySegmenter(WithStartFrames(3))
	f := &feeder{t: t, segmenter: segmenter, now: time.Unix(100, 0)}

	events := f.feed(true, 2)
	if len(boundaries(events)) != 0 {
		t.Fatalf("expected no boundary after 2 speech frames, got %+v", boundaries(events))
	}
	if segmenter.Activity().Active() {
		t.Fatalf("expected segmenter not active yet")
	}

	events = f.feed(true, 1)
	found := boundaries(events)
	if len(found) != 1 || found[0].Boundary != BoundarySpeechStart {
		t.Fatalf("expected one speech start, got %+v", found)
	}
	if !segmenter.Activity().Active() || segmenter.Activity().Onsets() != 1 {
		t.Fatalf("expected active segmenter with one onset, got active=%v onsets=%d",
			segmenter.Activity().Active(), segmenter.Activity().Onsets())
	}
}

func TestSegmenterClosesSpeechAfterMinSilence(t *testing.T) {
	segmenter := NewEnergySegmenter(WithStartFrames(1), WithMinSilence(100*time.Millisecond))
	f := &feeder{t: t, segmenter: segmenter, now: time.Unix(100, 0)}

	f.feed(true, 5)
	silenceStart := f.now

	events := f.feed(false, 9)
	if len(boundaries(events)) != 0 {
		t.Fatalf("expected no end boundary after 90ms of silence, got %+v", boundaries(events))
	}

	events = f.feed(false, 1)
	found := boundaries(events)
	if len(found) != 1 || found[0].Boundary != BoundarySpeechEnd {
		t.Fatalf("expected one speech end, got %+v", found)
	}
	if !found[0].SilenceStartedAt.Equal(silenceStart) {
		t.Fatalf("expected silence to start at %v, got %v", silenceStart, found[0].SilenceStartedAt)
	}
	if segmenter.Activity().Active() {
		t.Fatalf("expected segmenter inactive after speech end")
	}
}

func TestSegmenterShortPauseKeepsSpeechOpen(t *testing.T) {
	segmenter := NewEnergySegmenter(WithStartFrames(1), WithMinSilence(100*time.Millisecond))
	f := &feeder{t: t, segmenter: segmenter, now: time.Unix(100, 0)}

	var events []Event
	events = append(events, f.feed(true, 5)...)
	events = append(events, f.feed(false, 5)...)
	events = append(events, f.feed(true, 5)...)

	found := boundaries(events)
	if len(found) != 1 || found[0].Boundary != BoundarySpeechStart {
		t.Fatalf("expected only the first speech start, got %+v", found)
	}
	if segmenter.Activity().Onsets() != 1 {
		t.Fatalf("expected a single onset, got %d", segmenter.Activity().Onsets())
	}
}

func TestSegmenterCountsEveryOnset(t *testing.T) {
	segmenter := NewEnergySegmenter(WithStartFrames(1), WithMinSilence(50*time.Millisecond))
	f := &feeder{t: t, segmenter: segmenter, now: time.Unix(100, 0)}

	for range 3 {
		f.feed(true, 3)
		f.feed(false, 5)
	}

	if got := segmenter.Activity().Onsets(); got != 3 {
		t.Fatalf("expected 3 onsets, got %d", got)
	}
}

func TestSegmenterRejectsMalformedFrames(t *testing.T) {
	segmenter := NewEnergySegmenter()

	if _, err := segmenter.Segment(audio.Frame{}); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame for empty frame, got %v", err)
	}
	if _, err := segmenter.Segment(audio.Frame{Data: make([]byte, 3)}); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame for odd frame, got %v", err)
	}
}
