package audio

import "time"

// Frame is one fixed-duration slice of captured audio. Frames are never
// mutated after the capture pump hands them out.
type Frame struct {
	Seq        uint64
	Data       []byte
	CapturedAt time.Time
}

// Framer cuts an arbitrary stream of device buffers into frames of a fixed
// byte length, numbering them in capture order.
type Framer struct {
	frameBytes int
	pending    []byte
	nextSeq    uint64
}

func NewFramer(encoding EncodingInfo, frameDuration time.Duration) *Framer {
	frameBytes := encoding.BytesFor(frameDuration)
	if frameBytes <= 0 {
		frameBytes = GetDefaultEncodingInfo().BytesFor(DefaultFrameDuration)
	}
	return &Framer{frameBytes: frameBytes}
}

func (f *Framer) FrameBytes() int {
	return f.frameBytes
}

// Push appends captured bytes and returns every complete frame they made.
func (f *Framer) Push(data []byte, capturedAt time.Time) []Frame {
	f.pending = append(f.pending, data...)

	var frames []Frame
	for len(f.pending) >= f.frameBytes {
		frameData := make([]byte, f.frameBytes)
		copy(frameData, f.pending[:f.frameBytes])
		f.pending = f.pending[f.frameBytes:]

		frames = append(frames, Frame{Seq: f.nextSeq, Data: frameData, CapturedAt: capturedAt})
		f.nextSeq++
	}

	if len(f.pending) == 0 {
		f.pending = nil
	}
	return frames
}
