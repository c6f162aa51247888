package tts

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/vocab-audio-service/internal/core"
	"github.com/book-expert/vocab-audio-service/internal/tts/wyoming"
)

// Backend names accepted in configuration.
const (
	BackendHTTP    = "http"
	BackendWyoming = "wyoming"
	BackendCommand = "command"
)

const defaultTimeout = 60 * time.Second

// ErrUnknownBackend indicates an unrecognized backend name in configuration.
var ErrUnknownBackend = errors.New("unknown synthesis backend")

// BackendOptions carries the connection settings for all backends; each
// backend reads the fields it needs.
type BackendOptions struct {
	// BaseURL is the HTTP service root, used by the http backend.
	BaseURL string

	// Endpoint is the host:port of a Wyoming server, used by the wyoming
	// backend.
	Endpoint string

	// Binary is the synthesis executable, used by the command backend.
	// Empty selects edge-tts.
	Binary string

	// Voices assigns a voice per language code for requests that do not
	// name one.
	Voices map[string]string

	// Timeout bounds HTTP requests. Zero selects a sixty second default.
	Timeout time.Duration
}

// NewBackend builds the configured synthesizer. An empty backend name
// selects the HTTP service.
func NewBackend(backend string, options BackendOptions, log *logger.Logger) (core.Synthesizer, error) {
	timeout := options.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	switch backend {
	case BackendHTTP, "":
		return NewClient(options.BaseURL, timeout), nil
	case BackendWyoming:
		return wyoming.New(options.Endpoint, options.Voices), nil
	case BackendCommand:
		return NewCommandSynthesizer(options.Binary, options.Voices, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
