package track

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/vocab-audio-service/internal/core"
	"golang.org/x/sync/singleflight"
)

var errCacheEntryType = errors.New("unexpected cache entry type")

// Cache deduplicates synthesis calls within a track build.
//
// The scheduler repeats the same utterance several times per entry, and
// look-back repeats replay earlier entries verbatim. Only the first
// structurally distinct request reaches the backend; every later slot
// with the same text and parameters replays the stored segment.
type Cache struct {
	synthesizer core.Synthesizer

	mu       sync.Mutex
	segments map[core.SynthesisRequest]core.AudioSegment
	calls    int

	flight singleflight.Group
}

// NewCache creates an empty cache in front of the given synthesizer.
func NewCache(synthesizer core.Synthesizer) *Cache {
	return &Cache{
		synthesizer: synthesizer,
		mu:          sync.Mutex{},
		segments:    make(map[core.SynthesisRequest]core.AudioSegment),
		calls:       0,
		flight:      singleflight.Group{},
	}
}

// GetOrSynthesize returns the cached segment for the request, synthesizing
// it on first use. Concurrent callers asking for the same request share a
// single backend call. Failures are not cached, so a later slot with the
// same request retries the backend.
func (c *Cache) GetOrSynthesize(ctx context.Context, request core.SynthesisRequest) (core.AudioSegment, error) {
	c.mu.Lock()
	segment, found := c.segments[request]
	c.mu.Unlock()

	if found {
		return segment, nil
	}

	// ParamSet is a flat comparable struct, so the Go-syntax rendering of
	// the request is an unambiguous flight key.
	key := fmt.Sprintf("%#v", request)

	result, err, _ := c.flight.Do(key, func() (any, error) {
		return c.synthesize(ctx, request)
	})
	if err != nil {
		return core.AudioSegment{}, err
	}

	segment, validType := result.(core.AudioSegment)
	if !validType {
		return core.AudioSegment{}, fmt.Errorf("%w: %T", errCacheEntryType, result)
	}

	return segment, nil
}

func (c *Cache) synthesize(ctx context.Context, request core.SynthesisRequest) (core.AudioSegment, error) {
	// A slot that lost the flight race may have stored the segment while
	// this caller was waiting for the lock.
	c.mu.Lock()
	segment, found := c.segments[request]

	if found {
		c.mu.Unlock()

		return segment, nil
	}

	c.calls++
	c.mu.Unlock()

	fresh, err := c.synthesizer.Synthesize(ctx, request.Text, request.Params)
	if err != nil {
		return core.AudioSegment{}, err
	}

	c.mu.Lock()
	c.segments[request] = fresh
	c.mu.Unlock()

	return fresh, nil
}

// Len reports the number of distinct segments stored so far.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.segments)
}

// Calls reports how many requests reached the backend, retries of failed
// requests included.
func (c *Cache) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}
