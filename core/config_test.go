package orchestration

import (
	"errors"
	"fmt"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	config := DefaultConfig()
	config.EndOfSpeechSilence = 0
	config.FrameQueueCapacity = 0
	config.FrameQueuePolicy = QueuePolicy(7)

	err := config.Validate()
	if err == nil {
		t.Fatalf("expected an error")
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("expected a joined error, got %T", err)
	}
	if n := len(joined.Unwrap()); n != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", n, err)
	}
}

func TestParsePolicies(t *testing.T) {
	if policy, err := ParseQueuePolicy("block"); err != nil || policy != QueuePolicyBlock {
		t.Fatalf("expected block policy, got %v, %v", policy, err)
	}
	if policy, err := ParseQueuePolicy(""); err != nil || policy != QueuePolicyDropOldest {
		t.Fatalf("expected drop oldest by default, got %v, %v", policy, err)
	}
	if _, err := ParseQueuePolicy("newest"); err == nil {
		t.Fatalf("expected an unknown queue policy to be rejected")
	}

	if policy, err := ParseBackchannelPolicy("cut"); err != nil || policy != BackchannelCut {
		t.Fatalf("expected cut policy, got %v, %v", policy, err)
	}
	if policy, err := ParseBackchannelPolicy(""); err != nil || policy != BackchannelFinish {
		t.Fatalf("expected finish by default, got %v, %v", policy, err)
	}
	if _, err := ParseBackchannelPolicy("fade"); err == nil {
		t.Fatalf("expected an unknown backchannel policy to be rejected")
	}
}

func TestFailureMatchesItsKind(t *testing.T) {
	cause := errors.New("socket closed")
	err := fmt.Errorf("cycle failed: %w", newFailure(PlaybackFailure, cause))

	if !errors.Is(err, ErrPlayback) {
		t.Fatalf("expected failure to match ErrPlayback")
	}
	if errors.Is(err, ErrSynthesis) {
		t.Fatalf("expected failure not to match ErrSynthesis")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected failure to wrap its cause")
	}

	var failure *Failure
	if !errors.As(err, &failure) || failure.Kind != PlaybackFailure {
		t.Fatalf("expected a playback Failure, got %v", err)
	}
	if expected := "playback failure: socket closed"; failure.Error() != expected {
		t.Fatalf("expected %q, got %q", expected, failure.Error())
	}
}
