package tts

import (
	"fmt"
	"math"
)

const percentScale = 100

// FormatRate renders a playback rate multiplier in the signed percentage
// notation the speech backends expect: 1.0 is "+0%", 0.9 is "-10%".
func FormatRate(multiplier float64) string {
	return fmt.Sprintf("%+d%%", int(math.Round(multiplier*percentScale-percentScale)))
}

// FormatVolume renders a volume multiplier as a signed percentage offset.
func FormatVolume(multiplier float64) string {
	return fmt.Sprintf("%+d%%", int(math.Round(multiplier*percentScale-percentScale)))
}

// FormatPitch renders a pitch shift in hertz as a signed offset: 0 is "+0Hz".
func FormatPitch(deltaHz float64) string {
	return fmt.Sprintf("%+dHz", int(math.Round(deltaHz)))
}
