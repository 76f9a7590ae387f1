// Package morse converts text into timed on/off light pulses.
// This package has NO external dependencies (no hardware, no I/O, no
// time.Sleep). Encoding is fully deterministic for a given input and unit.
package morse

import (
	"strings"
	"time"
)

// Standard unit presets used by deployed lock firmware.
const (
	DefaultUnit = 70 * time.Millisecond
	FastUnit    = 60 * time.Millisecond
)

// Timing multipliers, in units.
const (
	dotUnits     = 1
	dashUnits    = 3
	tokenGap     = 1 // gap between tokens of one character
	charGapUnits = 3 // gap between characters
	wordGapUnits = 7 // gap at a word boundary
)

// Pulse is one on/off segment of a transmission.
type Pulse struct {
	// On is true while the emitter should be lit.
	On bool
	// Duration is how long the segment lasts.
	Duration time.Duration
}

// table maps characters to dot/dash token strings.
// Lowercase input is folded to uppercase before lookup.
// The underscore is carried for device-tag transmissions.
var table = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".",
	'F': "..-.", 'G': "--.", 'H': "....", 'I': "..", 'J': ".---",
	'K': "-.-", 'L': ".-..", 'M': "--", 'N': "-.", 'O': "---",
	'P': ".--.", 'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-",
	'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-", 'Y': "-.--",
	'Z': "--..",

	'0': "-----", '1': ".----", '2': "..---", '3': "...--",
	'4': "....-", '5': ".....", '6': "-....", '7': "--...",
	'8': "---..", '9': "----.",

	'_': "..--.-",
}

// Encode maps text to an ordered pulse sequence using the given unit time.
// Characters without a table entry produce no pulses. A gap of 3 units is
// emitted between characters, widened to 7 units at a word boundary. The
// sequence never starts or ends with a gap.
func Encode(text string, unit time.Duration) []Pulse {
	var pulses []Pulse
	gapUnits := charGapUnits

	for _, r := range strings.ToUpper(text) {
		if r == ' ' {
			gapUnits = wordGapUnits
			continue
		}

		tokens, ok := table[r]
		if !ok {
			// Unmapped characters are silently skipped.
			continue
		}

		if len(pulses) > 0 {
			pulses = append(pulses, Pulse{On: false, Duration: time.Duration(gapUnits) * unit})
		}

		for i, tok := range tokens {
			on := dotUnits
			if tok == '-' {
				on = dashUnits
			}
			pulses = append(pulses, Pulse{On: true, Duration: time.Duration(on) * unit})
			if i < len(tokens)-1 {
				pulses = append(pulses, Pulse{On: false, Duration: tokenGap * unit})
			}
		}

		gapUnits = charGapUnits
	}

	return pulses
}

// TotalDuration returns the wall-clock length of a pulse sequence.
func TotalDuration(pulses []Pulse) time.Duration {
	var total time.Duration
	for _, p := range pulses {
		total += p.Duration
	}
	return total
}
