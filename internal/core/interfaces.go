// Package core defines the domain model and interfaces for the vocab-audio service.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
// It holds uploaded learning sets and finished audio tracks.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Synthesizer defines the interface for a speech synthesis backend. It turns
// one utterance into an audio segment, honoring the prosody in params as far
// as the backend allows.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, params ParamSet) (AudioSegment, error)
}
