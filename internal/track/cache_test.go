// Package track_test tests synthesis caching and track assembly.
package track_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/vocab-audio-service/internal/core"
	"github.com/book-expert/vocab-audio-service/internal/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockSynthesisFailed = errors.New("mock synthesis failed")

// mockSynthesizer returns the utterance text and language tagged into the
// segment data, so joined output proves both content and order.
type mockSynthesizer struct {
	mu       sync.Mutex
	calls    int
	failText string
	failOnce bool
	failed   bool
	delay    time.Duration
}

func (m *mockSynthesizer) Synthesize(
	ctx context.Context,
	text string,
	params core.ParamSet,
) (core.AudioSegment, error) {
	if ctx.Err() != nil {
		return core.AudioSegment{}, ctx.Err()
	}

	m.mu.Lock()
	m.calls++
	shouldFail := text == m.failText && m.failText != "" && (!m.failOnce || !m.failed)

	if shouldFail {
		m.failed = true
	}
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	if shouldFail {
		return core.AudioSegment{}, errMockSynthesisFailed
	}

	return core.AudioSegment{
		Data:     []byte("[" + text + "/" + params.Language + "]"),
		Duration: 100 * time.Millisecond,
	}, nil
}

func (m *mockSynthesizer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

func newMockSynthesizer() *mockSynthesizer {
	return &mockSynthesizer{
		mu:       sync.Mutex{},
		calls:    0,
		failText: "",
		failOnce: false,
		failed:   false,
		delay:    0,
	}
}

func slovakRequest(text string) core.SynthesisRequest {
	return core.SynthesisRequest{
		Text: text,
		Params: core.ParamSet{
			Language: "sk",
			Voice:    "",
			Rate:     1.0,
			Volume:   1.0,
			PitchHz:  0,
		},
	}
}

func TestCache_Deduplicates(t *testing.T) {
	t.Parallel()

	mock := newMockSynthesizer()
	cache := track.NewCache(mock)

	first, err := cache.GetOrSynthesize(context.Background(), slovakRequest("pes"))
	require.NoError(t, err)

	second, err := cache.GetOrSynthesize(context.Background(), slovakRequest("pes"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.callCount())

	_, err = cache.GetOrSynthesize(context.Background(), slovakRequest("mačka"))
	require.NoError(t, err)

	assert.Equal(t, 2, mock.callCount())
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, 2, cache.Calls())
}

func TestCache_DistinctParamsAreDistinctKeys(t *testing.T) {
	t.Parallel()

	mock := newMockSynthesizer()
	cache := track.NewCache(mock)

	slow := slovakRequest("pes")
	slow.Params.Rate = 0.9

	_, err := cache.GetOrSynthesize(context.Background(), slovakRequest("pes"))
	require.NoError(t, err)

	_, err = cache.GetOrSynthesize(context.Background(), slow)
	require.NoError(t, err)

	assert.Equal(t, 2, mock.callCount())
	assert.Equal(t, 2, cache.Len())
}

func TestCache_FailureNotCached(t *testing.T) {
	t.Parallel()

	mock := newMockSynthesizer()
	mock.failText = "pes"
	mock.failOnce = true
	cache := track.NewCache(mock)

	_, err := cache.GetOrSynthesize(context.Background(), slovakRequest("pes"))
	require.Error(t, err)
	require.ErrorIs(t, err, errMockSynthesisFailed)
	assert.Equal(t, 0, cache.Len())

	// The retry reaches the backend again and succeeds this time.
	segment, err := cache.GetOrSynthesize(context.Background(), slovakRequest("pes"))
	require.NoError(t, err)

	assert.Equal(t, []byte("[pes/sk]"), segment.Data)
	assert.Equal(t, 2, mock.callCount())
	assert.Equal(t, 1, cache.Len())
}

func TestCache_SingleFlight(t *testing.T) {
	t.Parallel()

	mock := newMockSynthesizer()
	mock.delay = 30 * time.Millisecond
	cache := track.NewCache(mock)

	const callers = 10

	start := make(chan struct{})

	var group sync.WaitGroup

	for range callers {
		group.Add(1)

		go func() {
			defer group.Done()
			<-start

			segment, err := cache.GetOrSynthesize(context.Background(), slovakRequest("pes"))
			assert.NoError(t, err)
			assert.Equal(t, []byte("[pes/sk]"), segment.Data)
		}()
	}

	close(start)
	group.Wait()

	assert.Equal(t, 1, mock.callCount())
	assert.Equal(t, 1, cache.Calls())
}
