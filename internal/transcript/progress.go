package transcript

import (
	"fmt"
	"io"
	"math"
)

// DefaultAssumedDuration is the audio length, in seconds, the progress line
// measures against. It is a fixed guess, not a measured duration.
const DefaultAssumedDuration = 21.80

// Progress draws a single in-place percentage line while segments are drained.
//
// The watermark is the largest segment end seen so far. Percentages are only
// meaningful when the audio is close to the assumed duration: longer audio
// reaches 100% early and stays there until Finish.
type Progress struct {
	w            io.Writer
	assumedTotal float64
	watermark    float64
	percent      int
	history      []int
}

// NewProgress creates a progress line measured against assumedTotal seconds
func NewProgress(w io.Writer, assumedTotal float64) *Progress {
	return &Progress{
		w:            w,
		assumedTotal: assumedTotal,
	}
}

// Start draws 0%
func (p *Progress) Start() {
	p.draw(0)
}

// Observe records a segment end time and redraws the line
func (p *Progress) Observe(end float64) {
	if end > p.watermark {
		p.watermark = end
	}
	p.draw(Percent(p.watermark, p.assumedTotal))
}

// Finish forces 100% and moves past the progress line
func (p *Progress) Finish() {
	p.draw(100)
	fmt.Fprint(p.w, "\n\n")
}

// Percent returns the current percentage
func (p *Progress) Percent() int {
	return p.percent
}

// History returns every percentage drawn so far
func (p *Progress) History() []int {
	out := make([]int, len(p.history))
	copy(out, p.history)
	return out
}

func (p *Progress) draw(percent int) {
	p.percent = percent
	p.history = append(p.history, percent)
	fmt.Fprintf(p.w, "\rTranscribing: %3d%%", percent)
}

// Percent maps a watermark to min(100, floor(watermark/assumedTotal*100)).
// A non-positive assumedTotal reports 0.
func Percent(watermark, assumedTotal float64) int {
	if assumedTotal <= 0 || watermark <= 0 {
		return 0
	}
	pct := math.Floor(watermark / assumedTotal * 100)
	if pct > 100 {
		return 100
	}
	return int(pct)
}
