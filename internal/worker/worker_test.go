// Package worker_test tests the NATS worker for the vocab-audio-service.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/vocab-audio-service/internal/core"
	"github.com/book-expert/vocab-audio-service/internal/events"
	"github.com/book-expert/vocab-audio-service/internal/schedule"
	"github.com/book-expert/vocab-audio-service/internal/track"
	"github.com/book-expert/vocab-audio-service/internal/worker"
)

var (
	errMockDownload = errors.New("mock download error")
	errMockUpload   = errors.New("mock upload error")
	errUnknownMode  = errors.New("unknown mode")
)

const sampleSetCSV = "target_language_text,fallback_language_text\npes,dog\nmačka,cat\n"

// sampleTrackData is the joined audio the mock backend produces for
// sampleSetCSV with a look-back of one.
const sampleTrackData = "[pes/sk][dog/en][pes/sk][pes/sk]" +
	"[mačka/sk][cat/en][mačka/sk][mačka/sk][pes/sk]"

// mockObjectStore is a mock implementation of the ObjectStore interface.
type mockObjectStore struct {
	downloadShouldFail bool
	uploadShouldFail   bool
	downloadedKey      string
	uploadedKey        string
	uploadedData       []byte
}

func (m *mockObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	if m.downloadShouldFail {
		return nil, errMockDownload
	}

	m.downloadedKey = key

	return []byte(sampleSetCSV), nil
}

func (m *mockObjectStore) Upload(_ context.Context, key string, data []byte) error {
	if m.uploadShouldFail {
		return errMockUpload
	}

	m.uploadedKey = key
	m.uploadedData = data

	return nil
}

// mockSynthesizer renders recognizable placeholder audio per utterance.
type mockSynthesizer struct {
	mu    sync.Mutex
	calls int
}

func (m *mockSynthesizer) Synthesize(
	_ context.Context,
	text string,
	params core.ParamSet,
) (core.AudioSegment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

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

func testModes(name string) (core.LearningMode, error) {
	if name != "" && name != "slovak-english" {
		return core.LearningMode{}, errUnknownMode
	}

	return core.LearningMode{
		Name: "slovak-english",
		Target: core.ParamSet{
			Language: "sk", Voice: "", Rate: 1.0, Volume: 1.0, PitchHz: 0,
		},
		Fallback: core.ParamSet{
			Language: "en", Voice: "", Rate: 1.0, Volume: 1.0, PitchHz: 0,
		},
	}, nil
}

func createTestNatsClient(t *testing.T) (*nats.Conn, func()) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	cleanup := func() {
		server.Shutdown()
		natsConnection.Close()
	}

	return natsConnection, cleanup
}

func setupTest(t *testing.T) (
	*worker.NatsWorker,
	*mockObjectStore,
	*mockSynthesizer,
	context.Context,
	context.CancelFunc,
	*nats.Conn,
) {
	t.Helper()

	mockStore := &mockObjectStore{
		downloadShouldFail: false,
		uploadShouldFail:   false,
		downloadedKey:      "",
		uploadedKey:        "",
		uploadedData:       nil,
	}
	mockBackend := &mockSynthesizer{
		mu:    sync.Mutex{},
		calls: 0,
	}

	assembler := track.NewAssembler(mockBackend, track.Options{Workers: 0, Joiner: nil})

	natsConnection, natsCleanup := createTestNatsClient(t)
	t.Cleanup(natsCleanup)

	testLogger, err := logger.New("/tmp", "test-log.log")
	require.NoError(t, err)

	settings := worker.Settings{
		Subject:        "test_subject",
		Schedule:       schedule.Options{LookBack: 1, Weigh: nil},
		TrackExtension: ".mp3",
	}

	workerInstance, err := worker.NewNatsWorker(
		natsConnection, mockStore, testModes, assembler, settings, testLogger,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	return workerInstance, mockStore, mockBackend, ctx, cancel, natsConnection
}

func testJobEvent() *events.TrackJobEvent {
	return &events.TrackJobEvent{
		Header: events.Header{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		SetKey:   "sets/test-set.csv",
		Mode:     "",
		LookBack: 0,
	}
}

func TestMessageHandler_Success(t *testing.T) {
	t.Parallel()

	workerInstance, mockStore, mockBackend, ctx, cancel, natsConnection := setupTest(t)
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	testEvent := testJobEvent()
	testEvent.LookBack = 1

	eventData, err := json.Marshal(testEvent)
	require.NoError(t, err)

	replyMsg, err := natsConnection.Request("test_subject", eventData, 5*time.Second)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var replyEvent events.TrackCreatedEvent

	err = json.Unmarshal(replyMsg.Data, &replyEvent)
	require.NoError(t, err)

	assert.Equal(t, "sets/test-set.csv", mockStore.downloadedKey)
	assert.True(t, strings.HasPrefix(mockStore.uploadedKey, "tracks/"))
	assert.True(t, strings.HasSuffix(mockStore.uploadedKey, ".mp3"))
	assert.Equal(t, sampleTrackData, string(mockStore.uploadedData))

	assert.Equal(t, mockStore.uploadedKey, replyEvent.TrackKey)
	assert.Equal(t, testEvent.Header.WorkflowID, replyEvent.Header.WorkflowID)
	assert.Equal(t, 2, replyEvent.Entries)
	assert.Equal(t, 9, replyEvent.Slots)
	assert.Equal(t, 4, replyEvent.Synthesized)
	assert.InEpsilon(t, 0.9, replyEvent.DurationSeconds, 0.001)
	assert.Equal(t, 4, mockBackend.callCount())

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr, "worker.Run should not error on graceful shutdown")
}

func TestMessageHandler_DownloadFailure(t *testing.T) {
	t.Parallel()

	workerInstance, mockStore, _, ctx, cancel, natsConnection := setupTest(t)
	defer cancel()

	mockStore.downloadShouldFail = true

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	eventData, err := json.Marshal(testJobEvent())
	require.NoError(t, err)

	_, err = natsConnection.Request("test_subject", eventData, 500*time.Millisecond)
	require.Error(t, err, "A failed job must not produce a reply")

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr)
}

func TestMessageHandler_UploadFailure(t *testing.T) {
	t.Parallel()

	workerInstance, mockStore, mockBackend, ctx, cancel, natsConnection := setupTest(t)
	defer cancel()

	mockStore.uploadShouldFail = true

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	eventData, err := json.Marshal(testJobEvent())
	require.NoError(t, err)

	_, err = natsConnection.Request("test_subject", eventData, 500*time.Millisecond)
	require.Error(t, err, "A failed upload must not produce a reply")

	// The track was synthesized before the upload failed.
	assert.Equal(t, 4, mockBackend.callCount())

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr)
}

func TestMessageHandler_MissingSetKey(t *testing.T) {
	t.Parallel()

	workerInstance, _, mockBackend, ctx, cancel, natsConnection := setupTest(t)
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	testEvent := testJobEvent()
	testEvent.SetKey = ""

	eventData, err := json.Marshal(testEvent)
	require.NoError(t, err)

	_, err = natsConnection.Request("test_subject", eventData, 500*time.Millisecond)
	require.Error(t, err, "An invalid job must not produce a reply")

	assert.Equal(t, 0, mockBackend.callCount())

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr)
}

func TestMessageHandler_UnknownMode(t *testing.T) {
	t.Parallel()

	workerInstance, mockStore, mockBackend, ctx, cancel, natsConnection := setupTest(t)
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	testEvent := testJobEvent()
	testEvent.Mode = "klingon-english"

	eventData, err := json.Marshal(testEvent)
	require.NoError(t, err)

	_, err = natsConnection.Request("test_subject", eventData, 500*time.Millisecond)
	require.Error(t, err)

	assert.Equal(t, 0, mockBackend.callCount())
	assert.Empty(t, mockStore.uploadedKey)

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr)
}
