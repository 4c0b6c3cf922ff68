package miniaudio

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/jiroshimaya/fastvoicechat/core/audio"
	"go.opentelemetry.io/otel/attribute"
)

const (
	playbackSampleRate = 48000
	// drainTimeout bounds the wait for the device to play out its buffer.
	drainTimeout = time.Second
)

// Client owns one miniaudio context with a capture and a playback device. It
// is both the microphone source and the speaker for the pipeline.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient

	playing atomic.Int32
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("malgo InitContext failed: %w", err)
	}

	client := Client{
		audioContext: audioCtx,
	}

	if err := client.playbackClient.Init(audioCtx, playbackSampleRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

// Capture streams microphone audio to onAudio until ctx is done.
func (c *Client) Capture(ctx context.Context, onAudio func([]byte)) error {
	if err := c.captureClient.Start(onAudio); err != nil {
		return err
	}

	<-ctx.Done()
	if err := c.captureClient.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture: %w", err)
	}
	return nil
}

// Play queues clip on the playback device chunk by chunk. Stopping the
// returned playback drops whatever is still buffered in the device.
func (c *Client) Play(ctx context.Context, clip audio.Clip) (*audio.Playback, error) {
	_, span := tracer.Start(ctx, "play clip")
	span.SetAttributes(
		attribute.Int("clip.bytes", len(clip.Data)),
		attribute.Int("clip.sample_rate", clip.EncodingInfo.SampleRate),
	)
	defer span.End()

	if clip.IsEmpty() {
		return nil, fmt.Errorf("nothing to play")
	}

	clip = audio.Resample(clip, c.playbackClient.sampleRate)
	chunkBytes := clip.EncodingInfo.BytesFor(audio.DefaultChunkDuration)

	playback := audio.PlayChunked(ctx, clip, audio.DefaultChunkDuration, &c.playing, func(chunk []byte) error {
		if err := c.playbackClient.SendAudio(chunk); err != nil {
			return err
		}
		return c.playbackClient.awaitBuffered(ctx, chunkBytes)
	})

	go func() {
		if completed, _ := playback.Wait(); !completed {
			c.playbackClient.ClearBuffer()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := c.playbackClient.awaitBuffered(ctx, 0); err != nil {
			logger.Warn("playback buffer did not drain", "error", err)
		}
	}()

	return playback, nil
}

func (c *Client) IsPlaying() bool {
	return c.playing.Load() > 0
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}
