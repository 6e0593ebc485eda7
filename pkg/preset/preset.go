// Package preset holds the named frequencies offered to listeners
package preset

import (
	"math"
	"strconv"
	"strings"
)

// Category groups frequency presets for display
type Category string

const (
	Solfeggio Category = "solfeggio"
	Rose      Category = "rose"
	Special   Category = "special"
)

// Categories in display order
var Categories = []Category{Solfeggio, Rose, Special}

// Frequency is a named carrier frequency
type Frequency struct {
	Label       string
	Hz          float64
	Category    Category
	Description string
}

// Beat is a named binaural beat offset
type Beat struct {
	Label       string
	Hz          float64
	Description string
}

// Frequencies lists the carrier presets
var Frequencies = []Frequency{
	// Solfeggio
	{Label: "396", Hz: 396, Category: Solfeggio, Description: "Liberation"},
	{Label: "417", Hz: 417, Category: Solfeggio, Description: "Change"},
	{Label: "528", Hz: 528, Category: Solfeggio, Description: "Miracles"},
	{Label: "639", Hz: 639, Category: Solfeggio, Description: "Connection"},
	{Label: "741", Hz: 741, Category: Solfeggio, Description: "Expression"},
	{Label: "852", Hz: 852, Category: Solfeggio, Description: "Intuition"},
	// Rose (powers of two)
	{Label: "32", Hz: 32, Category: Rose},
	{Label: "64", Hz: 64, Category: Rose},
	{Label: "128", Hz: 128, Category: Rose},
	{Label: "256", Hz: 256, Category: Rose},
	{Label: "512", Hz: 512, Category: Rose},
	{Label: "1024", Hz: 1024, Category: Rose},
	// Special
	{Label: "Om", Hz: 136.1, Category: Special, Description: "Cosmic Om"},
	{Label: "432", Hz: 432, Category: Special, Description: "Verdi A"},
}

// Beats lists the brainwave presets
var Beats = []Beat{
	{Label: "Delta", Hz: 2.0, Description: "Deep Sleep"},
	{Label: "Theta", Hz: 6.0, Description: "Meditation"},
	{Label: "Alpha", Hz: 10.0, Description: "Relaxation"},
	{Label: "Beta", Hz: 20.0, Description: "Focus"},
}

// ByCategory returns the presets of one category in table order
func ByCategory(c Category) []Frequency {
	var out []Frequency
	for _, f := range Frequencies {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

// Lookup finds a frequency preset by label, case-insensitively
func Lookup(label string) (Frequency, bool) {
	label = strings.TrimSpace(label)
	for _, f := range Frequencies {
		if strings.EqualFold(f.Label, label) {
			return f, true
		}
	}
	return Frequency{}, false
}

// LookupBeat finds a beat preset by label, case-insensitively
func LookupBeat(label string) (Beat, bool) {
	label = strings.TrimSpace(label)
	for _, b := range Beats {
		if strings.EqualFold(b.Label, label) {
			return b, true
		}
	}
	return Beat{}, false
}

// Resolve turns a preset label, a note name such as "A-4" or a plain number
// into a frequency in Hz
func Resolve(s string) (float64, bool) {
	if f, ok := Lookup(s); ok {
		return f.Hz, true
	}
	if hz, ok := ParseNote(s); ok {
		return hz, true
	}
	hz, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return 0, false
	}
	return hz, true
}

var noteNames = []string{"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-"}

// NoteToFreq converts a note number (C-0 = 0) to frequency
func NoteToFreq(note int8) float64 {
	// A4 = note 57 (9 + 4*12) = 440 Hz
	return 440.0 * math.Pow(2.0, float64(note-57)/12.0)
}

// NoteToString converts a note number to its tracker name
func NoteToString(note int8) string {
	if note < 0 || note > 95 {
		return "---"
	}
	return noteNames[note%12] + string(rune('0'+note/12))
}

// StringToNote converts a tracker note name to a note number, -1 if invalid
func StringToNote(s string) int8 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return -1
	}
	name := s[:2]
	if name[1] != '-' && name[1] != '#' {
		return -1
	}
	for i, n := range noteNames {
		if n == name {
			octave := s[2]
			if octave < '0' || octave > '7' {
				return -1
			}
			return int8(octave-'0')*12 + int8(i)
		}
	}
	return -1
}

// ParseNote resolves a tracker note name to its frequency
func ParseNote(s string) (float64, bool) {
	n := StringToNote(s)
	if n < 0 {
		return 0, false
	}
	return NoteToFreq(n), true
}
