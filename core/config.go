package orchestration

import (
	"errors"
	"fmt"
	"time"
)

type QueuePolicy int

const (
	// QueuePolicyDropOldest discards the oldest queued frame to make room.
	QueuePolicyDropOldest QueuePolicy = iota
	// QueuePolicyBlock makes the producer wait for room.
	QueuePolicyBlock
)

func (p QueuePolicy) String() string {
	switch p {
	case QueuePolicyDropOldest:
		return "drop_oldest"
	case QueuePolicyBlock:
		return "block"
	default:
		return "unknown"
	}
}

func ParseQueuePolicy(name string) (QueuePolicy, error) {
	switch name {
	case "drop_oldest", "drop-oldest", "":
		return QueuePolicyDropOldest, nil
	case "block":
		return QueuePolicyBlock, nil
	default:
		return 0, fmt.Errorf("unknown frame queue policy %q", name)
	}
}

// BackchannelPolicy decides what happens to a backchannel that is still
// playing when the user finishes speaking.
type BackchannelPolicy int

const (
	// BackchannelFinish lets it play out before the answer starts.
	BackchannelFinish BackchannelPolicy = iota
	// BackchannelCut stops it right away.
	BackchannelCut
)

func (p BackchannelPolicy) String() string {
	switch p {
	case BackchannelFinish:
		return "finish"
	case BackchannelCut:
		return "cut"
	default:
		return "unknown"
	}
}

func ParseBackchannelPolicy(name string) (BackchannelPolicy, error) {
	switch name {
	case "finish", "":
		return BackchannelFinish, nil
	case "cut":
		return BackchannelCut, nil
	default:
		return 0, fmt.Errorf("unknown backchannel policy %q", name)
	}
}

type Config struct {
	AllowInterrupt     bool
	BackchannelEnabled bool
	// MinSilence is the silence that must precede a new utterance.
	MinSilence time.Duration
	// EndOfSpeechSilence is the silence that closes an utterance.
	EndOfSpeechSilence time.Duration
	// InterruptCheckInterval is how often the barge-in monitor polls.
	InterruptCheckInterval time.Duration
	// FinalTranscriptTimeout bounds the wait for a final transcript once the
	// silence was confirmed.
	FinalTranscriptTimeout time.Duration
	FrameQueueCapacity     int
	FrameQueuePolicy       QueuePolicy
	BackchannelOnSpeechEnd BackchannelPolicy
}

func DefaultConfig() Config {
	return Config{
		AllowInterrupt:         true,
		BackchannelEnabled:     true,
		MinSilence:             100 * time.Millisecond,
		EndOfSpeechSilence:     600 * time.Millisecond,
		InterruptCheckInterval: 10 * time.Millisecond,
		FinalTranscriptTimeout: 1500 * time.Millisecond,
		FrameQueueCapacity:     100,
		FrameQueuePolicy:       QueuePolicyDropOldest,
		BackchannelOnSpeechEnd: BackchannelFinish,
	}
}

func (c Config) Validate() error {
	var err error
	if c.MinSilence < 0 {
		err = errors.Join(err, fmt.Errorf("min silence must not be negative, got %v", c.MinSilence))
	}
	if c.EndOfSpeechSilence <= 0 {
		err = errors.Join(err, fmt.Errorf("end of speech silence must be positive, got %v", c.EndOfSpeechSilence))
	}
	if c.InterruptCheckInterval <= 0 {
		err = errors.Join(err, fmt.Errorf("interrupt check interval must be positive, got %v", c.InterruptCheckInterval))
	}
	if c.FinalTranscriptTimeout <= 0 {
		err = errors.Join(err, fmt.Errorf("final transcript timeout must be positive, got %v", c.FinalTranscriptTimeout))
	}
	if c.FrameQueueCapacity < 1 {
		err = errors.Join(err, fmt.Errorf("frame queue capacity must be at least 1, got %d", c.FrameQueueCapacity))
	}
	if c.FrameQueuePolicy != QueuePolicyDropOldest && c.FrameQueuePolicy != QueuePolicyBlock {
		err = errors.Join(err, fmt.Errorf("unknown frame queue policy %d", c.FrameQueuePolicy))
	}
	if c.BackchannelOnSpeechEnd != BackchannelFinish && c.BackchannelOnSpeechEnd != BackchannelCut {
		err = errors.Join(err, fmt.Errorf("unknown backchannel policy %d", c.BackchannelOnSpeechEnd))
	}
	return err
}
