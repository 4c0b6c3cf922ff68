// Package config loads the fastvoicechat settings from the environment, an
// optional config file and a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	orchestration "github.com/jiroshimaya/fastvoicechat/core"
)

const envPrefix = "FVC"

type Config struct {
	Synthesizer struct {
		Type            string
		VoicevoxHost    string
		VoicevoxSpeaker int
		DeepgramVoice   string
	}
	Player struct {
		Type         string
		TCPIPAddress string
	}
	Capture struct {
		Type string
	}
	Recognition struct {
		Type     string
		Language string
		Phrases  []string
	}
	VAD struct {
		Type      string
		Threshold float64
	}
	LLM struct {
		Type             string
		BackchannelModel string
		AnswerModel      string
		BackchannelMode  string
	}

	Orchestration orchestration.Config

	LogLevel       string
	MetricsAddress string
	UI             string
}

// Load reads the configuration. A missing .env file is fine; a missing
// config file given explicitly is not.
func Load(configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	defaults := orchestration.DefaultConfig()

	v.SetDefault("synthesizer_type", "voicevox")
	v.SetDefault("synthesizer_voicevox_host", "http://localhost:50021")
	v.SetDefault("synthesizer_voicevox_speaker_id", 1)
	v.SetDefault("synthesizer_deepgram_voice", "aura-2-thalia-en")

	v.SetDefault("player_type", "miniaudio")
	v.SetDefault("player_tcpip_address", "localhost:12345")

	v.SetDefault("capture_type", "miniaudio")

	v.SetDefault("recognition_type", "google")
	v.SetDefault("recognition_language", "ja-JP")
	v.SetDefault("recognition_phrases", []string{})

	v.SetDefault("vad_type", "energy")
	v.SetDefault("vad_threshold", 0.02)

	v.SetDefault("llm_type", "openai")
	v.SetDefault("backchannel_model", "gpt-4o-mini")
	v.SetDefault("answer_model", "gpt-4o-mini")
	v.SetDefault("backchannel_mode", "stream")

	v.SetDefault("allow_interrupt", defaults.AllowInterrupt)
	v.SetDefault("backchannel_enabled", defaults.BackchannelEnabled)
	v.SetDefault("min_silence_ms", defaults.MinSilence.Milliseconds())
	v.SetDefault("end_of_speech_silence_ms", defaults.EndOfSpeechSilence.Milliseconds())
	v.SetDefault("interrupt_check_interval_ms", defaults.InterruptCheckInterval.Milliseconds())
	v.SetDefault("final_transcript_timeout_ms", defaults.FinalTranscriptTimeout.Milliseconds())
	v.SetDefault("frame_queue_capacity", defaults.FrameQueueCapacity)
	v.SetDefault("frame_queue_policy", defaults.FrameQueuePolicy.String())
	v.SetDefault("backchannel_on_speech_end", defaults.BackchannelOnSpeechEnd.String())

	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_address", "")
	v.SetDefault("ui", "tui")
}

func fromViper(v *viper.Viper) (Config, error) {
	var c Config

	c.Synthesizer.Type = v.GetString("synthesizer_type")
	c.Synthesizer.VoicevoxHost = v.GetString("synthesizer_voicevox_host")
	c.Synthesizer.VoicevoxSpeaker = v.GetInt("synthesizer_voicevox_speaker_id")
	c.Synthesizer.DeepgramVoice = v.GetString("synthesizer_deepgram_voice")

	c.Player.Type = v.GetString("player_type")
	c.Player.TCPIPAddress = v.GetString("player_tcpip_address")

	c.Capture.Type = v.GetString("capture_type")

	c.Recognition.Type = v.GetString("recognition_type")
	c.Recognition.Language = v.GetString("recognition_language")
	c.Recognition.Phrases = v.GetStringSlice("recognition_phrases")

	c.VAD.Type = v.GetString("vad_type")
	c.VAD.Threshold = v.GetFloat64("vad_threshold")

	c.LLM.Type = v.GetString("llm_type")
	c.LLM.BackchannelModel = v.GetString("backchannel_model")
	c.LLM.AnswerModel = v.GetString("answer_model")
	c.LLM.BackchannelMode = v.GetString("backchannel_mode")

	c.LogLevel = v.GetString("log_level")
	c.MetricsAddress = v.GetString("metrics_address")
	c.UI = v.GetString("ui")

	queuePolicy, err := orchestration.ParseQueuePolicy(v.GetString("frame_queue_policy"))
	if err != nil {
		return Config{}, err
	}
	backchannelPolicy, err := orchestration.ParseBackchannelPolicy(v.GetString("backchannel_on_speech_end"))
	if err != nil {
		return Config{}, err
	}
	c.Orchestration = orchestration.Config{
		AllowInterrupt:         v.GetBool("allow_interrupt"),
		BackchannelEnabled:     v.GetBool("backchannel_enabled"),
		MinSilence:             milliseconds(v, "min_silence_ms"),
		EndOfSpeechSilence:     milliseconds(v, "end_of_speech_silence_ms"),
		InterruptCheckInterval: milliseconds(v, "interrupt_check_interval_ms"),
		FinalTranscriptTimeout: milliseconds(v, "final_transcript_timeout_ms"),
		FrameQueueCapacity:     v.GetInt("frame_queue_capacity"),
		FrameQueuePolicy:       queuePolicy,
		BackchannelOnSpeechEnd: backchannelPolicy,
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func milliseconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Millisecond
}

func (c Config) Validate() error {
	err := c.Orchestration.Validate()
	if !oneOf(c.Synthesizer.Type, "voicevox", "deepgram") {
		err = errors.Join(err, fmt.Errorf("unknown synthesizer type %q", c.Synthesizer.Type))
	}
	if !oneOf(c.Player.Type, "miniaudio", "portaudio", "tcpip") {
		err = errors.Join(err, fmt.Errorf("unknown player type %q", c.Player.Type))
	}
	if !oneOf(c.Capture.Type, "miniaudio", "portaudio") {
		err = errors.Join(err, fmt.Errorf("unknown capture type %q", c.Capture.Type))
	}
	if !oneOf(c.Recognition.Type, "google", "deepgram") {
		err = errors.Join(err, fmt.Errorf("unknown recognition type %q", c.Recognition.Type))
	}
	if !oneOf(c.VAD.Type, "energy") {
		err = errors.Join(err, fmt.Errorf("unknown vad type %q", c.VAD.Type))
	}
	if !oneOf(c.LLM.Type, "openai", "groq") {
		err = errors.Join(err, fmt.Errorf("unknown llm type %q", c.LLM.Type))
	}
	if !oneOf(c.LLM.BackchannelMode, "stream", "structured") {
		err = errors.Join(err, fmt.Errorf("unknown backchannel mode %q", c.LLM.BackchannelMode))
	}
	if c.LLM.BackchannelMode == "structured" && c.LLM.Type != "groq" {
		err = errors.Join(err, fmt.Errorf("structured backchannel mode needs the groq llm type, got %q", c.LLM.Type))
	}
	if !oneOf(c.UI, "tui", "plain") {
		err = errors.Join(err, fmt.Errorf("unknown ui %q", c.UI))
	}
	return err
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
