package tts

import (
	"bytes"
	"fmt"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/book-expert/vocab-audio-service/internal/wav"
)

// mp3FrameBytes is the size of one decoded sample frame; the decoder always
// outputs 16-bit stereo.
const mp3FrameBytes = 4

// segmentDuration measures the play time of an audio blob. Track assembly
// reports the summed duration of all slots, so every backend returns it
// alongside the raw data.
func segmentDuration(data []byte, contentType string) (time.Duration, error) {
	switch contentType {
	case contentTypeMP3:
		decoder, err := mp3.NewDecoder(bytes.NewReader(data))
		if err != nil {
			return 0, fmt.Errorf("failed to decode MP3 audio: %w", err)
		}

		frames := decoder.Length() / mp3FrameBytes

		return time.Duration(frames) * time.Second / time.Duration(decoder.SampleRate()), nil
	case contentTypeWAV:
		duration, err := wav.Duration(data)
		if err != nil {
			return 0, fmt.Errorf("failed to parse WAV audio: %w", err)
		}

		return duration, nil
	default:
		return 0, fmt.Errorf(errFmtUnexpectedContentType, contentType)
	}
}
