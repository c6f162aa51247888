// Package config provides the configuration structure for the vocab-audio-service.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/book-expert/vocab-audio-service/internal/core"
	"github.com/book-expert/vocab-audio-service/internal/schedule"
	"github.com/book-expert/vocab-audio-service/internal/track"
	"github.com/book-expert/vocab-audio-service/internal/tts"
	"github.com/book-expert/vocab-audio-service/internal/wav"
)

// Default values.
const (
	defaultExtensionMP3 = ".mp3"
	defaultExtensionWAV = ".wav"
)

// Joiner names accepted in the track section.
const (
	joinerRaw = "raw"
	joinerWAV = "wav"
)

// ErrNoDefaultMode indicates that a mode was requested by empty name and no
// default is configured.
var ErrNoDefaultMode = errors.New("no default learning mode configured")

// ErrModeNotDefined indicates that the requested learning mode has no entry
// in the modes table.
var ErrModeNotDefined = errors.New("learning mode not defined")

// ErrProviderNotDefined indicates that the requested extraction provider has
// no entry in the providers table.
var ErrProviderNotDefined = errors.New("extraction provider not defined")

// ErrUnknownJoiner indicates an unrecognized joiner name in the track section.
var ErrUnknownJoiner = errors.New("unknown track joiner")

// SideConfig holds the playback parameters for one side of a learning mode.
type SideConfig struct {
	Language string  `toml:"language"`
	Voice    string  `toml:"voice"`
	Rate     float64 `toml:"rate"`
	Volume   float64 `toml:"volume"`
	PitchHz  float64 `toml:"pitch_hz"`
}

// ModeConfig pairs the target and fallback side parameters of a learning mode.
type ModeConfig struct {
	Target   SideConfig `toml:"target"`
	Fallback SideConfig `toml:"fallback"`
}

// ProviderConfig identifies an OpenAI-compatible chat service used for
// learning set extraction.
type ProviderConfig struct {
	BaseURL  string `toml:"base_url"`
	Model    string `toml:"model"`
	Authless bool   `toml:"authless"`
}

// LearningConfig selects the default mode and the extraction provider.
type LearningConfig struct {
	DefaultMode string `toml:"default_mode"`
	Provider    string `toml:"provider"`
}

// TTSConfig selects and configures the synthesis backend.
type TTSConfig struct {
	Backend        string            `toml:"backend"`
	BaseURL        string            `toml:"base_url"`
	Endpoint       string            `toml:"endpoint"`
	Binary         string            `toml:"binary"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	Voices         map[string]string `toml:"voices"`
}

// TrackConfig tunes schedule expansion and track assembly.
type TrackConfig struct {
	LookBack        int    `toml:"look_back"`
	WeightedSpacing bool   `toml:"weighted_spacing"`
	Workers         int    `toml:"workers"`
	Joiner          string `toml:"joiner"`
	Extension       string `toml:"extension"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	TrackJobsSubject       string `toml:"track_jobs_subject"`
	VocabObjectStoreBucket string `toml:"vocab_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	OutputDir   string `toml:"output_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Learning  LearningConfig            `toml:"learning"`
	Modes     map[string]ModeConfig     `toml:"modes"`
	Providers map[string]ProviderConfig `toml:"providers"`
	TTS       TTSConfig                 `toml:"tts"`
	Track     TrackConfig               `toml:"track"`
	NATS      NATSConfig                `toml:"nats"`
	Paths     PathsConfig               `toml:"paths"`
}

// Load loads the configuration for the vocab-audio-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}

// LoadFile loads the configuration from an explicit TOML file. The command
// line tool takes its configuration this way rather than through project
// discovery.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}

	return &cfg, nil
}

// Mode resolves a named learning mode into playback parameters. An empty
// name selects the configured default mode. Unset rate and volume values
// default to neutral, and sides without a voice take the language's entry
// from the voices table.
func (c *Config) Mode(name string) (core.LearningMode, error) {
	if name == "" {
		name = c.Learning.DefaultMode
	}

	if name == "" {
		return core.LearningMode{}, ErrNoDefaultMode
	}

	modeCfg, found := c.Modes[name]
	if !found {
		return core.LearningMode{}, fmt.Errorf("%w: %q", ErrModeNotDefined, name)
	}

	mode := core.LearningMode{
		Name:     name,
		Target:   c.paramSet(modeCfg.Target),
		Fallback: c.paramSet(modeCfg.Fallback),
	}

	err := mode.Validate()
	if err != nil {
		return core.LearningMode{}, fmt.Errorf("invalid learning mode %q: %w", name, err)
	}

	return mode, nil
}

// paramSet converts one side's configuration into synthesis parameters.
// Unset rate and volume become neutral; a side without a voice takes the
// language's entry from the voices table.
func (c *Config) paramSet(side SideConfig) core.ParamSet {
	params := core.ParamSet{
		Language: side.Language,
		Voice:    side.Voice,
		Rate:     side.Rate,
		Volume:   side.Volume,
		PitchHz:  side.PitchHz,
	}

	if params.Rate == 0 {
		params.Rate = core.NeutralRate
	}

	if params.Volume == 0 {
		params.Volume = core.NeutralVolume
	}

	if params.Voice == "" {
		params.Voice = c.TTS.Voices[params.Language]
	}

	return params
}

// Provider resolves a named extraction provider. An empty name selects the
// provider named in the learning section.
func (c *Config) Provider(name string) (ProviderConfig, error) {
	if name == "" {
		name = c.Learning.Provider
	}

	providerCfg, found := c.Providers[name]
	if !found {
		return ProviderConfig{}, fmt.Errorf("%w: %q", ErrProviderNotDefined, name)
	}

	return providerCfg, nil
}

// Synthesizer builds the configured synthesis backend.
func (c *Config) Synthesizer(log *logger.Logger) (core.Synthesizer, error) {
	options := tts.BackendOptions{
		BaseURL:  c.TTS.BaseURL,
		Endpoint: c.TTS.Endpoint,
		Binary:   c.TTS.Binary,
		Voices:   c.TTS.Voices,
		Timeout:  time.Duration(c.TTS.TimeoutSeconds) * time.Second,
	}

	synthesizer, err := tts.NewBackend(c.TTS.Backend, options, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build synthesis backend: %w", err)
	}

	return synthesizer, nil
}

// ScheduleOptions maps the track section onto schedule expansion options.
func (c *Config) ScheduleOptions() schedule.Options {
	options := schedule.Options{
		LookBack: c.Track.LookBack,
		Weigh:    nil,
	}

	if c.Track.WeightedSpacing {
		options.Weigh = schedule.LengthWeight
	}

	return options
}

// AssemblyOptions maps the track section onto assembly options. An unset
// joiner follows the backend: Wyoming servers return WAV segments that need
// re-wrapping, every other backend returns MP3 which concatenates as is.
func (c *Config) AssemblyOptions() (track.Options, error) {
	joiner := c.Track.Joiner
	if joiner == "" {
		if c.TTS.Backend == tts.BackendWyoming {
			joiner = joinerWAV
		} else {
			joiner = joinerRaw
		}
	}

	options := track.Options{
		Workers: c.Track.Workers,
		Joiner:  nil,
	}

	switch joiner {
	case joinerRaw:
		options.Joiner = track.RawJoiner{}
	case joinerWAV:
		options.Joiner = wav.Joiner{}
	default:
		return track.Options{}, fmt.Errorf("%w: %q", ErrUnknownJoiner, joiner)
	}

	return options, nil
}

// TrackExtension returns the file extension for assembled tracks, derived
// from the joiner when not set explicitly.
func (c *Config) TrackExtension() string {
	if c.Track.Extension != "" {
		return c.Track.Extension
	}

	options, err := c.AssemblyOptions()
	if err != nil {
		return defaultExtensionMP3
	}

	if _, isWAV := options.Joiner.(wav.Joiner); isWAV {
		return defaultExtensionWAV
	}

	return defaultExtensionMP3
}
