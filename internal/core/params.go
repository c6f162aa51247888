package core

import (
	"fmt"
	"time"
)

// Side identifies which half of a vocabulary entry an utterance belongs to.
type Side string

// The two sides of every learning mode.
const (
	SideTarget   Side = "target"
	SideFallback Side = "fallback"
)

// Neutral prosody values. A ParamSet carrying these asks the backend for its
// natural delivery.
const (
	NeutralRate   = 1.0
	NeutralVolume = 1.0
)

// ParamSet holds the synthesis parameters for one side of a learning mode.
// Rate and Volume are multipliers where 1.0 is the backend's natural value;
// PitchHz shifts the voice frequency by an absolute offset. Voice optionally
// pins a backend voice by name; when empty the backend chooses by language.
//
// ParamSet is a comparable value type: structural equality of the full set is
// what identifies "the same utterance parameters" throughout a run.
type ParamSet struct {
	Language string
	Voice    string
	Rate     float64
	Volume   float64
	PitchHz  float64
}

// LearningMode pairs the synthesis parameters for the target and fallback
// sides of a vocabulary set. A mode is immutable for the duration of a run.
type LearningMode struct {
	Name     string
	Target   ParamSet
	Fallback ParamSet
}

// Resolve returns the parameter set the mode defines for the given side. A
// side whose language is empty counts as absent.
func (m LearningMode) Resolve(side Side) (ParamSet, error) {
	var params ParamSet

	switch side {
	case SideTarget:
		params = m.Target
	case SideFallback:
		params = m.Fallback
	default:
		return ParamSet{}, fmt.Errorf("%w: mode '%s', side '%s'", ErrSideMissing, m.Name, side)
	}

	if params.Language == "" {
		return ParamSet{}, fmt.Errorf("%w: mode '%s', side '%s'", ErrSideMissing, m.Name, side)
	}

	return params, nil
}

// Validate checks that the mode defines both sides.
func (m LearningMode) Validate() error {
	_, err := m.Resolve(SideTarget)
	if err != nil {
		return err
	}

	_, err = m.Resolve(SideFallback)
	if err != nil {
		return err
	}

	return nil
}

// SynthesisRequest is a single utterance to synthesize. It is a comparable
// value type; two requests are the same utterance exactly when all fields are
// equal, which is what the per-run synthesis cache keys on.
type SynthesisRequest struct {
	Text   string
	Params ParamSet
}

// AudioSegment is one synthesized utterance: opaque audio bytes plus the
// duration reported or derived by the backend adapter.
type AudioSegment struct {
	Data     []byte
	Duration time.Duration
}
