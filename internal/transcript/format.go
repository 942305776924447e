// Package transcript renders transcription results for the terminal.
package transcript

import (
	"bufio"
	"fmt"
	"io"

	"localscribe/internal/asr"
)

// Style selects the segment layout
type Style int

const (
	// Spaced puts a blank line before every segment and labels word timings
	Spaced Style = iota
	// Compact prints one line per segment
	Compact
)

// Formatter writes a transcript. It holds no state, so formatting the same
// segments twice produces identical output.
type Formatter struct {
	Debug bool // Print word timings under segments that have them
	Style Style
}

// Write prints the language line followed by every segment in order
func (f Formatter) Write(w io.Writer, info asr.Info, segments []asr.Segment) error {
	bw := bufio.NewWriter(w)

	if f.Style == Spaced {
		fmt.Fprintln(bw)
	}
	fmt.Fprintf(bw, "Detected language: %s (probability: %.2f)\n", info.Language, info.LanguageProbability)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "Transcription:")

	for _, seg := range segments {
		if f.Style == Spaced {
			fmt.Fprintln(bw)
		}
		fmt.Fprintln(bw, FormatSegment(seg))

		if !f.Debug || !seg.HasWords() {
			continue
		}
		if f.Style == Spaced {
			fmt.Fprintln(bw, "Word timestamps:")
		}
		for _, word := range seg.Words {
			fmt.Fprintln(bw, FormatWord(word))
		}
	}

	return bw.Flush()
}

// FormatSegment formats a segment as [start -> end] text
func FormatSegment(seg asr.Segment) string {
	return fmt.Sprintf("%s %s", FormatTimeRange(seg.Start, seg.End), seg.Text)
}

// FormatWord formats a word timing line
func FormatWord(word asr.Word) string {
	return fmt.Sprintf("  %s: %.2fs -> %.2fs", word.Text, word.Start, word.End)
}

// FormatTimeRange formats a time range as [0.00s -> 1.50s]
func FormatTimeRange(startSec, endSec float64) string {
	return fmt.Sprintf("[%.2fs -> %.2fs]", startSec, endSec)
}
