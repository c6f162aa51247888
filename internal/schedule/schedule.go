// Package schedule expands an ordered vocabulary set into the utterance plan
// of a spaced-repetition audio track.
//
// Every entry gets a fixed four-utterance cycle: target, fallback, target,
// target. On top of the cycles, a bounded look-back queue resurfaces each
// entry's target-language utterance once more after a configurable amount of
// intervening material, so items are re-encountered after a short delay and
// not only back to back.
package schedule

import (
	"fmt"
	"unicode/utf8"

	"github.com/book-expert/vocab-audio-service/internal/core"
	"github.com/book-expert/vocab-audio-service/internal/vocab"
)

// DefaultLookBack is the number of units of subsequent material that must
// play before a queued look-back repeat becomes due.
const DefaultLookBack = 2

// longEntryRunes is the target-text length from which LengthWeight counts an
// entry as two units of material. A full sentence occupies the listener for
// about as long as two short chunks.
const longEntryRunes = 50

// Slot is one utterance in a track: the request to synthesize plus the entry
// and side it came from, for error reporting. Review marks a look-back
// repeat; its request is structurally identical to the entry's own target
// request, so it never costs a fresh synthesis call.
type Slot struct {
	Request core.SynthesisRequest
	Entry   int
	Side    core.Side
	Review  bool
}

// Schedule is the fully expanded, ordered utterance plan for one track. It is
// built once per run and consumed strictly in order.
type Schedule []Slot

// Reviews returns how many look-back repeat slots the schedule carries.
func (s Schedule) Reviews() int {
	count := 0

	for _, slot := range s {
		if slot.Review {
			count++
		}
	}

	return count
}

// Options tune schedule expansion.
type Options struct {
	// LookBack is the amount of intervening material after which an
	// entry's look-back repeat becomes due. Values below one fall back to
	// DefaultLookBack.
	LookBack int
	// Weigh returns how many units of material an entry counts for when
	// aging queued repeats. Nil counts every entry as one unit.
	Weigh func(entry vocab.Entry) int
}

// LengthWeight counts entries with long target text as two units of material,
// so a queued repeat resurfaces after a comparable amount of listening time
// whether the intervening entries were sentences or short chunks.
func LengthWeight(entry vocab.Entry) int {
	if utf8.RuneCountInString(entry.Target) >= longEntryRunes {
		return 2
	}

	return 1
}

// pendingReview is one queue slot: an introduced entry waiting out its delay.
type pendingReview struct {
	entry     int
	remaining int
}

// Build expands entries into the full utterance schedule for the mode.
//
// Per entry, in input order: the four-utterance cycle is appended, every
// queued repeat ages by the entry's weight, the entry joins the queue, and
// then all repeats whose delay has elapsed are emitted in queue order.
// Entries still waiting when the input ends never resurface; that is
// acceptable degraded coverage near the end of the list, not an error. An
// empty input produces an empty schedule.
func Build(entries []vocab.Entry, mode core.LearningMode, opts Options) (Schedule, error) {
	target, err := mode.Resolve(core.SideTarget)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target parameters: %w", err)
	}

	fallback, err := mode.Resolve(core.SideFallback)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fallback parameters: %w", err)
	}

	lookBack := opts.LookBack
	if lookBack < 1 {
		lookBack = DefaultLookBack
	}

	weigh := opts.Weigh
	if weigh == nil {
		weigh = func(vocab.Entry) int { return 1 }
	}

	sched := make(Schedule, 0, len(entries)*5)

	var pending []pendingReview

	for position, entry := range entries {
		targetSlot := Slot{
			Request: core.SynthesisRequest{Text: entry.Target, Params: target},
			Entry:   position,
			Side:    core.SideTarget,
			Review:  false,
		}
		fallbackSlot := Slot{
			Request: core.SynthesisRequest{Text: entry.Fallback, Params: fallback},
			Entry:   position,
			Side:    core.SideFallback,
			Review:  false,
		}

		sched = append(sched, targetSlot, fallbackSlot, targetSlot, targetSlot)

		weight := weigh(entry)
		if weight < 1 {
			weight = 1
		}

		// The entry's own introduction is not intervening material for
		// itself: age the queue first, then join it.
		for i := range pending {
			pending[i].remaining -= weight
		}

		pending = append(pending, pendingReview{entry: position, remaining: lookBack})

		for len(pending) > 0 && pending[0].remaining <= 0 {
			due := pending[0]
			pending = pending[1:]

			sched = append(sched, Slot{
				Request: core.SynthesisRequest{
					Text:   entries[due.entry].Target,
					Params: target,
				},
				Entry:  due.entry,
				Side:   core.SideTarget,
				Review: true,
			})
		}
	}

	return sched, nil
}
