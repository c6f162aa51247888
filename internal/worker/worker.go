// Package worker provides a NATS worker that builds vocabulary audio tracks.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/vocab-audio-service/internal/core"
	"github.com/book-expert/vocab-audio-service/internal/events"
	"github.com/book-expert/vocab-audio-service/internal/objectstore"
	"github.com/book-expert/vocab-audio-service/internal/schedule"
	"github.com/book-expert/vocab-audio-service/internal/track"
	"github.com/book-expert/vocab-audio-service/internal/vocab"
)

// trackJobTimeout bounds one track build end to end, synthesis included.
const trackJobTimeout = 5 * time.Minute

// ErrSetKeyEmpty indicates a track job without a learning set key.
var ErrSetKeyEmpty = errors.New("set key cannot be empty")

// ModeResolver resolves a mode name into playback parameters. An empty name
// selects the default mode. The configuration layer provides one.
type ModeResolver func(name string) (core.LearningMode, error)

// Settings carries the per-deployment knobs of the worker.
type Settings struct {
	// Subject is the NATS subject track jobs arrive on.
	Subject string

	// Schedule tunes utterance expansion for every job; a job's own
	// look-back override takes precedence.
	Schedule schedule.Options

	// TrackExtension is the file extension for uploaded tracks,
	// including the leading dot.
	TrackExtension string
}

// NatsWorker listens for track jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	modes          ModeResolver
	assembler      *track.Assembler
	settings       Settings
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	store core.ObjectStore,
	modes ModeResolver,
	assembler *track.Assembler,
	settings Settings,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        settings.Subject,
		store:          store,
		modes:          modes,
		assembler:      assembler,
		settings:       settings,
		log:            log,
	}, nil
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), trackJobTimeout)
	defer cancel()

	event, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate track job: %v", err)

		return
	}

	replyEvent, processErr := w.processTrackJob(ctx, event)
	if processErr != nil {
		w.log.Error("Failed to build track for workflow %s: %v", event.Header.WorkflowID, processErr)

		return
	}

	w.log.Info(
		"Built track %s for workflow %s: %d entries, %d slots, %d synthesized",
		replyEvent.TrackKey, event.Header.WorkflowID,
		replyEvent.Entries, replyEvent.Slots, replyEvent.Synthesized,
	)

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)
	}
}

// processTrackJob handles the core logic: download the learning set, expand
// it into an utterance schedule, assemble the track and upload the audio.
func (w *NatsWorker) processTrackJob(
	ctx context.Context,
	event *events.TrackJobEvent,
) (*events.TrackCreatedEvent, error) {
	setData, err := w.store.Download(ctx, event.SetKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download learning set for key '%s': %w", event.SetKey, err)
	}

	set, err := vocab.ReadCSV(bytes.NewReader(setData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse learning set '%s': %w", event.SetKey, err)
	}

	mode, err := w.modes(event.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve learning mode: %w", err)
	}

	scheduleOptions := w.settings.Schedule
	if event.LookBack > 0 {
		scheduleOptions.LookBack = event.LookBack
	}

	sched, err := schedule.Build(set.Entries, mode, scheduleOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to expand utterance schedule: %w", err)
	}

	builtTrack, err := w.assembler.Assemble(ctx, sched)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble track: %w", err)
	}

	trackKey := objectstore.TrackKey(w.settings.TrackExtension)

	err = w.store.Upload(ctx, trackKey, builtTrack.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload track for key '%s': %w", trackKey, err)
	}

	return &events.TrackCreatedEvent{
		Header:          event.Header,
		TrackKey:        trackKey,
		Entries:         set.Len(),
		Slots:           builtTrack.Slots,
		Synthesized:     builtTrack.Synthesized,
		DurationSeconds: builtTrack.Duration.Seconds(),
	}, nil
}

// publishReplyEvent marshals and responds with the TrackCreatedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *events.TrackCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*events.TrackJobEvent, error) {
	var event events.TrackJobEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.SetKey == "" {
		return nil, ErrSetKeyEmpty
	}

	return &event, nil
}
