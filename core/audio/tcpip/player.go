// Package tcpip plays audio on a remote speaker process over a small
// length-prefixed TCP protocol.
//
// Every message is a 4 byte big-endian length followed by that many bytes.
// Playing sends the "play_wav" command followed by a WAV payload on one
// connection; stopping sends "stop_wav" on a fresh connection.
package tcpip

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/jiroshimaya/fastvoicechat/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const (
	CommandPlayWAV = "play_wav"
	CommandStopWAV = "stop_wav"

	DefaultAddress = "localhost:12345"
)

var logger = otelslog.NewLogger("github.com/jiroshimaya/fastvoicechat/core/audio/tcpip")

type Player struct {
	address     string
	dialTimeout time.Duration
	// tick is how often the local pacing loop checks for a stop request.
	tick time.Duration

	playing atomic.Int32
}

type PlayerOption func(*Player)

func WithDialTimeout(timeout time.Duration) PlayerOption {
	return func(p *Player) {
		p.dialTimeout = timeout
	}
}

func WithStopCheckInterval(interval time.Duration) PlayerOption {
	return func(p *Player) {
		p.tick = interval
	}
}

func NewPlayer(address string, opts ...PlayerOption) *Player {
	if address == "" {
		address = DefaultAddress
	}
	player := &Player{
		address:     address,
		dialTimeout: 2 * time.Second,
		tick:        audio.DefaultChunkDuration,
	}
	for _, opt := range opts {
		opt(player)
	}
	return player
}

// Play hands the whole clip to the remote speaker and then paces locally for
// the clip's duration, so IsPlaying and Stop behave like a local device.
func (p *Player) Play(ctx context.Context, clip audio.Clip) (*audio.Playback, error) {
	if clip.IsEmpty() {
		return nil, fmt.Errorf("nothing to play")
	}

	wav, err := audio.EncodeWAV(clip)
	if err != nil {
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}

	if err := p.send(ctx, []byte(CommandPlayWAV), wav); err != nil {
		return nil, fmt.Errorf("failed to send wav to %s: %w", p.address, err)
	}

	chunkBytes := clip.EncodingInfo.BytesFor(p.tick)
	playback := audio.PlayChunked(ctx, clip, p.tick, &p.playing, func(chunk []byte) error {
		if len(chunk) < chunkBytes {
			time.Sleep(clip.EncodingInfo.DurationOf(len(chunk)))
			return nil
		}
		time.Sleep(p.tick)
		return nil
	})

	go func() {
		if completed, _ := playback.Wait(); completed {
			return
		}
		if err := p.send(context.Background(), []byte(CommandStopWAV)); err != nil {
			logger.Warn("failed to stop remote playback", "address", p.address, "error", err)
		}
	}()

	return playback, nil
}

func (p *Player) IsPlaying() bool {
	return p.playing.Load() > 0
}

func (p *Player) send(ctx context.Context, messages ...[]byte) error {
	dialer := net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, message := range messages {
		if err := WriteMessage(conn, message); err != nil {
			return err
		}
	}
	return nil
}

// WriteMessage writes one length-prefixed protocol message.
func WriteMessage(conn net.Conn, message []byte) error {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(message)))
	if _, err := conn.Write(header); err != nil {
		return fmt.Errorf("failed to write message size: %w", err)
	}
	if _, err := conn.Write(message); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed protocol message.
func ReadMessage(conn net.Conn) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, fmt.Errorf("failed to read message size: %w", err)
	}

	message := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(conn, message); err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	return message, nil
}
