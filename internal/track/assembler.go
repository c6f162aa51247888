// Package track turns an utterance schedule into a single audio file.
//
// Assembly keeps the schedule order exactly: segments are synthesized
// (sequentially or with a bounded worker pool), then joined strictly in
// slot order. Any failure abandons the whole track; no partial audio is
// ever returned.
package track

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/vocab-audio-service/internal/core"
	"github.com/book-expert/vocab-audio-service/internal/schedule"
	"golang.org/x/sync/errgroup"
)

// ErrEmptySchedule indicates that assembly was requested for a schedule
// with no slots.
var ErrEmptySchedule = errors.New("schedule has no slots")

const trackFilePermissions = 0o600

// Options tune track assembly.
type Options struct {
	// Workers caps concurrent synthesis calls. Values below two
	// synthesize sequentially.
	Workers int
	// Joiner merges the synthesized segments. Nil defaults to RawJoiner.
	Joiner Joiner
}

// Track is one assembled audio track plus its build summary.
type Track struct {
	Data        []byte
	Duration    time.Duration
	Slots       int
	Synthesized int
}

// WriteFile writes the track audio to path.
func (t Track) WriteFile(path string) error {
	err := os.WriteFile(path, t.Data, trackFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to write track file: %w", err)
	}

	return nil
}

// Assembler builds audio tracks from utterance schedules.
type Assembler struct {
	synthesizer core.Synthesizer
	options     Options
}

// NewAssembler creates an assembler on top of the given synthesizer.
func NewAssembler(synthesizer core.Synthesizer, options Options) *Assembler {
	if options.Joiner == nil {
		options.Joiner = RawJoiner{}
	}

	return &Assembler{synthesizer: synthesizer, options: options}
}

// Assemble synthesizes every slot and joins the segments in schedule order.
//
// A fresh cache backs each call, so one track's repeated utterances are
// synthesized once while separate tracks never share state. On failure the
// error names the vocabulary entry whose synthesis failed.
func (a *Assembler) Assemble(ctx context.Context, sched schedule.Schedule) (Track, error) {
	if len(sched) == 0 {
		return Track{}, ErrEmptySchedule
	}

	cache := NewCache(a.synthesizer)

	segments := make([]core.AudioSegment, len(sched))

	if a.options.Workers > 1 {
		err := a.synthesizeConcurrent(ctx, cache, sched, segments)
		if err != nil {
			return Track{}, err
		}
	} else {
		err := a.synthesizeSequential(ctx, cache, sched, segments)
		if err != nil {
			return Track{}, err
		}
	}

	data := make([][]byte, len(segments))

	var duration time.Duration

	for i, segment := range segments {
		data[i] = segment.Data
		duration += segment.Duration
	}

	joined, err := a.options.Joiner.Join(data)
	if err != nil {
		return Track{}, fmt.Errorf("failed to join segments: %w", err)
	}

	return Track{
		Data:        joined,
		Duration:    duration,
		Slots:       len(sched),
		Synthesized: cache.Calls(),
	}, nil
}

func (a *Assembler) synthesizeSequential(
	ctx context.Context,
	cache *Cache,
	sched schedule.Schedule,
	segments []core.AudioSegment,
) error {
	for i, slot := range sched {
		segment, err := cache.GetOrSynthesize(ctx, slot.Request)
		if err != nil {
			return &core.SynthesisError{
				Entry: slot.Entry,
				Side:  slot.Side,
				Text:  slot.Request.Text,
				Err:   err,
			}
		}

		segments[i] = segment
	}

	return nil
}

// synthesizeConcurrent fans slots out to a bounded worker pool. The first
// failure cancels the group context, in-flight calls are abandoned and the
// first error is returned; segment order is restored by slot index.
func (a *Assembler) synthesizeConcurrent(
	ctx context.Context,
	cache *Cache,
	sched schedule.Schedule,
	segments []core.AudioSegment,
) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.options.Workers)

	for i, slot := range sched {
		group.Go(func() error {
			segment, err := cache.GetOrSynthesize(groupCtx, slot.Request)
			if err != nil {
				return &core.SynthesisError{
					Entry: slot.Entry,
					Side:  slot.Side,
					Text:  slot.Request.Text,
					Err:   err,
				}
			}

			segments[i] = segment

			return nil
		})
	}

	return group.Wait()
}
