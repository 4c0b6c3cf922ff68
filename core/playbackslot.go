package orchestration

import (
	"errors"
	"sync"

	"github.com/jiroshimaya/fastvoicechat/core/audio"
)

var errStalePlayback = errors.New("playback superseded")

type utteranceRole string

const (
	roleBackchannel utteranceRole = "backchannel"
	roleAnswer      utteranceRole = "answer"
	roleAdditional  utteranceRole = "additional"
)

type spokenUtterance struct {
	role utteranceRole
	text string
}

// playbackSlot holds the current generation id and the playback started
// under it. The lock is not held while a player starts, so superseding never
// waits on a slow device or network; a playback that started for an id
// superseded meanwhile is stopped before it is handed out.
type playbackSlot struct {
	mu           sync.Mutex
	generationID uint64
	handle       *audio.Playback
	spoken       []spokenUtterance
}

func (s *playbackSlot) current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generationID
}

// advance supersedes every outstanding id and returns the new one together
// with what was said so far. Whatever is already playing keeps playing.
func (s *playbackSlot) advance() (uint64, []spokenUtterance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generationID++
	return s.generationID, append([]spokenUtterance(nil), s.spoken...)
}

// dispatch calls play if id is current and records what was said. If id is
// superseded while play runs, the new playback is stopped and
// errStalePlayback is returned.
func (s *playbackSlot) dispatch(id uint64, utterance spokenUtterance, play func() (*audio.Playback, error)) (*audio.Playback, error) {
	if s.current() != id {
		return nil, errStalePlayback
	}

	playback, err := play()

	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.generationID {
		if playback != nil {
			playback.Stop()
		}
		return nil, errStalePlayback
	}
	if err != nil {
		return nil, err
	}
	s.handle = playback
	s.spoken = append(s.spoken, utterance)
	return playback, nil
}

// stop stops the registered playback without superseding anything.
func (s *playbackSlot) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.handle.Stop()
	}
}

// release supersedes every outstanding id, stops the registered playback and
// hands back what was said since the previous release.
func (s *playbackSlot) release() (uint64, []spokenUtterance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generationID++
	if s.handle != nil {
		s.handle.Stop()
		s.handle = nil
	}
	spoken := s.spoken
	s.spoken = nil
	return s.generationID, spoken
}
