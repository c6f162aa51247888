// Package events defines the NATS payloads exchanged by the vocab-audio-service.
package events

import (
	"github.com/book-expert/events"
)

// Header aliases the shared pipeline event header, so vocabulary events
// carry the same workflow identifiers as the rest of the system.
type Header = events.EventHeader

// TrackJobEvent asks the service to build a spaced-repetition audio track
// from a stored vocabulary set.
type TrackJobEvent struct {
	Header Header `json:"header"`

	// SetKey is the object store key of the learning set CSV.
	SetKey string `json:"set_key"`

	// Mode names the learning mode to synthesize with. Empty selects the
	// service's default mode.
	Mode string `json:"mode"`

	// LookBack overrides the service's review delay when positive.
	LookBack int `json:"look_back,omitempty"`
}

// TrackCreatedEvent reports a finished track back to the requester.
type TrackCreatedEvent struct {
	Header Header `json:"header"`

	// TrackKey is the object store key of the assembled audio.
	TrackKey string `json:"track_key"`

	// Entries is the size of the learning set the track was built from.
	Entries int `json:"entries"`

	// Slots is the number of utterances on the track.
	Slots int `json:"slots"`

	// Synthesized is how many distinct utterances the backend actually
	// rendered; the rest were cache hits.
	Synthesized int `json:"synthesized"`

	// DurationSeconds is the total track playback time.
	DurationSeconds float64 `json:"duration_seconds"`
}
