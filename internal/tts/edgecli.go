package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/book-expert/logger"
	"github.com/book-expert/vocab-audio-service/internal/core"
)

const defaultBinary = "edge-tts"

// CommandSynthesizer implements core.Synthesizer by invoking a text-to-speech
// command line tool that takes edge-tts style flags and writes MP3 output.
// It needs no running service, which keeps single-machine track generation
// dependency free.
type CommandSynthesizer struct {
	binary string
	voices map[string]string
	log    *logger.Logger
}

// NewCommandSynthesizer creates a synthesizer around the given binary.
// An empty binary name selects edge-tts. The voices map assigns a voice
// per language code for requests that do not name one explicitly.
func NewCommandSynthesizer(binary string, voices map[string]string, log *logger.Logger) *CommandSynthesizer {
	if binary == "" {
		binary = defaultBinary
	}

	return &CommandSynthesizer{
		binary: binary,
		voices: voices,
		log:    log,
	}
}

// Synthesize renders text by running the configured binary and reading the
// media file it writes.
func (s *CommandSynthesizer) Synthesize(
	ctx context.Context,
	text string,
	params core.ParamSet,
) (core.AudioSegment, error) {
	if text == "" {
		return core.AudioSegment{}, core.ErrEmptyText
	}

	tempFile, err := os.CreateTemp("", "vocab-segment-*.mp3")
	if err != nil {
		return core.AudioSegment{}, fmt.Errorf("failed to create temp file for synthesis output: %w", err)
	}

	defer func() {
		removeErr := os.Remove(tempFile.Name())
		if removeErr != nil {
			s.log.Warn("Failed to remove temp file '%s': %v", tempFile.Name(), removeErr)
		}
	}()

	err = tempFile.Close()
	if err != nil {
		return core.AudioSegment{}, fmt.Errorf("failed to close temp file: %w", err)
	}

	rate := params.Rate
	if rate == 0 {
		rate = core.NeutralRate
	}

	volume := params.Volume
	if volume == 0 {
		volume = core.NeutralVolume
	}

	voice := params.Voice
	if voice == "" {
		voice = s.voices[params.Language]
	}

	// Prosody flags use the --flag=value form because negative offsets
	// begin with a dash.
	args := []string{
		"--text", text,
		"--rate=" + FormatRate(rate),
		"--volume=" + FormatVolume(volume),
		"--pitch=" + FormatPitch(params.PitchHz),
		"--write-media", tempFile.Name(),
	}
	if voice != "" {
		args = append(args, "--voice", voice)
	}

	// #nosec G204 -- the binary name comes from service configuration
	cmd := exec.CommandContext(ctx, s.binary, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return core.AudioSegment{}, fmt.Errorf(
			"%s execution failed: %w - output: %s", s.binary, err, string(output),
		)
	}

	audioData, err := os.ReadFile(tempFile.Name())
	if err != nil {
		return core.AudioSegment{}, fmt.Errorf("failed to read audio data from temp file: %w", err)
	}

	if len(audioData) == 0 {
		return core.AudioSegment{}, ErrEmptyAudio
	}

	duration, err := segmentDuration(audioData, contentTypeMP3)
	if err != nil {
		return core.AudioSegment{}, err
	}

	return core.AudioSegment{Data: audioData, Duration: duration}, nil
}
