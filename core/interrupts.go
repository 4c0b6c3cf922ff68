package orchestration

import (
	"context"
	"sync/atomic"
	"time"
)

// InterruptSignal is a single-slot barge-in flag. Setting it while it is
// already set does nothing.
type InterruptSignal struct {
	ch chan struct{}
}

func NewInterruptSignal() *InterruptSignal {
	return &InterruptSignal{ch: make(chan struct{}, 1)}
}

// Set raises the signal and reports whether it was clear before.
func (s *InterruptSignal) Set() bool {
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *InterruptSignal) Clear() {
	select {
	case <-s.ch:
	default:
	}
}

func (s *InterruptSignal) IsSet() bool {
	return len(s.ch) > 0
}

// C is readable while the signal is set. Receiving from it clears it.
func (s *InterruptSignal) C() <-chan struct{} {
	return s.ch
}

type playingReporter interface {
	IsPlaying() bool
}

// InterruptMonitor raises an InterruptSignal when a speech onset happens
// while the player is playing.
type InterruptMonitor struct {
	signal   *InterruptSignal
	player   playingReporter
	onsets   func() uint64
	interval time.Duration
	enabled  atomic.Bool

	onBargeIn func(allowed bool)
}

func newInterruptMonitor(signal *InterruptSignal, player playingReporter, onsets func() uint64, interval time.Duration) *InterruptMonitor {
	return &InterruptMonitor{
		signal:   signal,
		player:   player,
		onsets:   onsets,
		interval: interval,
	}
}

func (m *InterruptMonitor) Enable()  { m.enabled.Store(true) }
func (m *InterruptMonitor) Disable() { m.enabled.Store(false) }

func (m *InterruptMonitor) Enabled() bool {
	return m.enabled.Load()
}

func (m *InterruptMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	lastOnsets := m.onsets()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		onsets := m.onsets()
		if onsets == lastOnsets {
			continue
		}
		lastOnsets = onsets

		if m.player == nil || !m.player.IsPlaying() {
			continue
		}

		if !m.Enabled() {
			logger.Info("barge-in detected but not allowed")
			if m.onBargeIn != nil {
				m.onBargeIn(false)
			}
			continue
		}

		if m.signal.Set() {
			logger.Info("barge-in detected")
			if m.onBargeIn != nil {
				m.onBargeIn(true)
			}
		}
	}
}
