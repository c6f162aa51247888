// Package config_test tests the configuration loading for the vocab-audio-service.
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/vocab-audio-service/internal/config"
	"github.com/book-expert/vocab-audio-service/internal/core"
	"github.com/book-expert/vocab-audio-service/internal/track"
	"github.com/book-expert/vocab-audio-service/internal/wav"
)

const testTOML = `
[learning]
default_mode = "slovak-english"
provider = "cerebras"

[modes.slovak-english.target]
language = "sk"
rate = 0.9

[modes.slovak-english.fallback]
language = "en"
voice = "en-US-GuyNeural"
rate = 1.3
pitch_hz = 20.0

[modes.broken.target]
language = "sk"

[providers.cerebras]
base_url = "https://api.cerebras.ai/v1"
model = "llama-3.3-70b"

[providers.local]
base_url = "http://127.0.0.1:8080/v1"
model = "qwen2.5"
authless = true

[tts]
backend = "http"
base_url = "http://127.0.0.1:8000"
timeout_seconds = 120

[tts.voices]
sk = "sk-SK-LukasNeural"
en = "en-US-AriaNeural"

[track]
look_back = 3
weighted_spacing = true
workers = 4

[nats]
url = "nats://127.0.0.1:4222"
track_jobs_subject = "vocab.track.jobs"
vocab_object_store_bucket = "VOCAB_FILES"

[paths]
base_logs_dir = "/tmp/vocab-audio-service/logs"
output_dir = "/tmp/vocab-audio-service/tracks"
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	var cfg config.Config

	err := toml.Unmarshal([]byte(testTOML), &cfg)
	require.NoError(t, err)

	return &cfg
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	assert.Equal(t, "slovak-english", cfg.Learning.DefaultMode)
	assert.Equal(t, "cerebras", cfg.Learning.Provider)
	assert.Equal(t, "sk", cfg.Modes["slovak-english"].Target.Language)
	assert.InEpsilon(t, 0.9, cfg.Modes["slovak-english"].Target.Rate, 0.001)
	assert.Equal(t, "en-US-GuyNeural", cfg.Modes["slovak-english"].Fallback.Voice)
	assert.InEpsilon(t, 20.0, cfg.Modes["slovak-english"].Fallback.PitchHz, 0.001)
	assert.Equal(t, "llama-3.3-70b", cfg.Providers["cerebras"].Model)
	assert.True(t, cfg.Providers["local"].Authless)
	assert.Equal(t, "http", cfg.TTS.Backend)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.TTS.BaseURL)
	assert.Equal(t, 120, cfg.TTS.TimeoutSeconds)
	assert.Equal(t, "sk-SK-LukasNeural", cfg.TTS.Voices["sk"])
	assert.Equal(t, 3, cfg.Track.LookBack)
	assert.True(t, cfg.Track.WeightedSpacing)
	assert.Equal(t, 4, cfg.Track.Workers)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "vocab.track.jobs", cfg.NATS.TrackJobsSubject)
	assert.Equal(t, "VOCAB_FILES", cfg.NATS.VocabObjectStoreBucket)
	assert.Equal(t, "/tmp/vocab-audio-service/logs", cfg.Paths.BaseLogsDir)
	assert.Equal(t, "/tmp/vocab-audio-service/tracks", cfg.Paths.OutputDir)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")

	err := os.WriteFile(path, []byte(testTOML), 0o600)
	require.NoError(t, err)

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "slovak-english", cfg.Learning.DefaultMode)
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read configuration file")
}

func TestConfig_Mode_Default(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	mode, err := cfg.Mode("")
	require.NoError(t, err)

	assert.Equal(t, "slovak-english", mode.Name)
	assert.Equal(t, "sk", mode.Target.Language)
	assert.Equal(t, "sk-SK-LukasNeural", mode.Target.Voice)
	assert.InEpsilon(t, 0.9, mode.Target.Rate, 0.001)
	assert.InEpsilon(t, core.NeutralVolume, mode.Target.Volume, 0.001)
	assert.Equal(t, "en-US-GuyNeural", mode.Fallback.Voice)
	assert.InEpsilon(t, 1.3, mode.Fallback.Rate, 0.001)
	assert.InEpsilon(t, 20.0, mode.Fallback.PitchHz, 0.001)
}

func TestConfig_Mode_NotDefined(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	_, err := cfg.Mode("japanese-english")
	require.ErrorIs(t, err, config.ErrModeNotDefined)
}

func TestConfig_Mode_NoDefault(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Learning.DefaultMode = ""

	_, err := cfg.Mode("")
	require.ErrorIs(t, err, config.ErrNoDefaultMode)
}

func TestConfig_Mode_MissingSide(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	_, err := cfg.Mode("broken")
	require.ErrorIs(t, err, core.ErrSideMissing)
}

func TestConfig_Provider(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	provider, err := cfg.Provider("")
	require.NoError(t, err)
	assert.Equal(t, "https://api.cerebras.ai/v1", provider.BaseURL)

	provider, err = cfg.Provider("local")
	require.NoError(t, err)
	assert.True(t, provider.Authless)

	_, err = cfg.Provider("missing")
	require.ErrorIs(t, err, config.ErrProviderNotDefined)
}

func TestConfig_ScheduleOptions(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	options := cfg.ScheduleOptions()
	assert.Equal(t, 3, options.LookBack)
	assert.NotNil(t, options.Weigh)

	cfg.Track.WeightedSpacing = false
	assert.Nil(t, cfg.ScheduleOptions().Weigh)
}

func TestConfig_AssemblyOptions(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	options, err := cfg.AssemblyOptions()
	require.NoError(t, err)
	assert.Equal(t, 4, options.Workers)
	assert.IsType(t, track.RawJoiner{}, options.Joiner)

	cfg.TTS.Backend = "wyoming"

	options, err = cfg.AssemblyOptions()
	require.NoError(t, err)
	assert.IsType(t, wav.Joiner{}, options.Joiner)

	cfg.Track.Joiner = "flac"

	_, err = cfg.AssemblyOptions()
	require.ErrorIs(t, err, config.ErrUnknownJoiner)
}

func TestConfig_TrackExtension(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	assert.Equal(t, ".mp3", cfg.TrackExtension())

	cfg.TTS.Backend = "wyoming"
	assert.Equal(t, ".wav", cfg.TrackExtension())

	cfg.Track.Extension = ".ogg"
	assert.Equal(t, ".ogg", cfg.TrackExtension())
}
