package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/jiroshimaya/fastvoicechat/core/audio"
)

// Client drives one duplex PortAudio stream. Reads feed Capture, writes are
// issued by Play one device buffer at a time, so a stop lands within one
// buffer.
type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	writeMu sync.Mutex
	playing atomic.Int32
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start PortAudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}

func (c *Client) Capture(ctx context.Context, onAudio func(audio []byte)) error {
	logger.Info("starting microphone capture")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := c.stream.Read(); err != nil {
			if err == portaudio.InputOverflowed {
				logger.Warn("portaudio input overflowed")
				continue
			}
			return fmt.Errorf("failed to read from PortAudio stream: %w", err)
		}

		audioBuffer := bytes.Buffer{}
		_ = binary.Write(&audioBuffer, binary.LittleEndian, c.in)
		onAudio(audioBuffer.Bytes())
	}
}

func (c *Client) Play(ctx context.Context, clip audio.Clip) (*audio.Playback, error) {
	if clip.IsEmpty() {
		return nil, fmt.Errorf("nothing to play")
	}

	clip = audio.Resample(clip, audio.DefaultSampleRate)
	chunkDuration := clip.EncodingInfo.DurationOf(c.bufferSize * 2)

	return audio.PlayChunked(ctx, clip, chunkDuration, &c.playing, c.writeBuffer), nil
}

func (c *Client) writeBuffer(chunk []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	clear(c.out)
	if err := binary.Read(bytes.NewReader(chunk), binary.LittleEndian, c.out[:len(chunk)/2]); err != nil {
		return fmt.Errorf("failed to decode playback chunk: %w", err)
	}
	if err := c.stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
		return fmt.Errorf("failed to write to PortAudio stream: %w", err)
	}
	return nil
}

func (c *Client) IsPlaying() bool {
	return c.playing.Load() > 0
}

func (c *Client) Close() {
	_ = c.stream.Stop()
	_ = c.stream.Close()
	portaudio.Terminate()
}
