package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrInvalidWAV = errors.New("invalid wav data")

const wavFormatPCM = 1

// DecodeWAV reads a 16-bit PCM RIFF/WAVE payload into a mono linear16 clip.
// Stereo input is downmixed.
func DecodeWAV(data []byte) (Clip, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()
	if err := decoder.Err(); err != nil {
		return Clip{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if decoder.WavAudioFormat != wavFormatPCM || decoder.BitDepth != 16 || decoder.SampleRate == 0 {
		return Clip{}, fmt.Errorf("%w: unsupported format %d with %d bit samples",
			ErrInvalidWAV, decoder.WavAudioFormat, decoder.BitDepth)
	}
	if decoder.NumChans != 1 && decoder.NumChans != 2 {
		return Clip{}, fmt.Errorf("%w: unsupported channel count %d", ErrInvalidWAV, decoder.NumChans)
	}

	if err := decoder.FwdToPCM(); err != nil {
		return Clip{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	clip := Clip{EncodingInfo: EncodingInfo{SampleRate: int(decoder.SampleRate), Format: EncodingLinear16}}
	if decoder.PCMSize <= 0 {
		return clip, nil
	}

	pcm := make([]byte, decoder.PCMSize)
	n, err := io.ReadFull(decoder.PCMChunk, pcm)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Clip{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	// Streaming encoders may announce more data than they wrote.
	pcm = pcm[:n-n%2]
	if decoder.NumChans == 2 {
		pcm = downmixStereo16(pcm)
	}
	clip.Data = pcm
	return clip, nil
}

// EncodeWAV wraps a mono linear16 clip in a RIFF/WAVE container.
func EncodeWAV(clip Clip) ([]byte, error) {
	if clip.EncodingInfo.Format != EncodingLinear16 {
		return nil, fmt.Errorf("cannot encode %q audio as wav", clip.EncodingInfo.Format.Name())
	}

	samples := Samples16(clip.Data)
	data := make([]int, len(samples))
	for i, sample := range samples {
		data[i] = int(sample)
	}

	out := &writeSeeker{}
	encoder := wav.NewEncoder(out, clip.EncodingInfo.SampleRate, 16, 1, wavFormatPCM)
	err := encoder.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: clip.EncodingInfo.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish wav: %w", err)
	}
	return out.buf, nil
}

func downmixStereo16(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i, j := 0, 0; i+3 < len(pcm); i, j = i+4, j+2 {
		left := int32(int16(binary.LittleEndian.Uint16(pcm[i:])))
		right := int32(int16(binary.LittleEndian.Uint16(pcm[i+2:])))
		binary.LittleEndian.PutUint16(out[j:], uint16(int16((left+right)/2)))
	}
	return out
}

// writeSeeker is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes when it is closed.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if end := w.pos + len(p); end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	copy(w.buf[w.pos:], p)
	w.pos += len(p)
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(w.pos)
	case io.SeekEnd:
		base = int64(len(w.buf))
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}

	pos := base + offset
	if pos < 0 {
		return 0, errors.New("negative seek position")
	}
	w.pos = int(pos)
	return pos, nil
}
