package asr

import (
	"errors"
	"iter"
	"sort"
)

// ErrAlreadyConsumed is yielded when a Transcription's segments are iterated twice.
var ErrAlreadyConsumed = errors.New("transcription segments already consumed")

// Word is a single recognized word located in time
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"` // in seconds
	End   float64 `json:"end"`   // in seconds
}

// Segment is a contiguous span of recognized speech
type Segment struct {
	Start float64 `json:"start"` // in seconds
	End   float64 `json:"end"`   // in seconds
	Text  string  `json:"text"`
	// Words is nil when the engine produced no word timing for this segment.
	Words []Word `json:"words,omitempty"`
	// Language is the code the engine reported for this segment, if any.
	Language string `json:"-"`
}

// HasWords reports whether word timing is present
func (s Segment) HasWords() bool {
	return len(s.Words) > 0
}

// Info describes the detected language of a transcription
type Info struct {
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
}

// Transcription is the result of Engine.Transcribe.
//
// Segments is lazy and single-pass: no audio is processed until it is
// iterated, and it must be drained exactly once. Info is final only after
// the segments have been drained.
type Transcription struct {
	source   iter.Seq2[Segment, error]
	info     *Info
	consumed bool
	tally    languageTally
}

// NewTranscription wraps a lazy segment source. If info is nil, the detected
// language is tallied from the segments as they are drained.
func NewTranscription(source iter.Seq2[Segment, error], info *Info) *Transcription {
	return &Transcription{
		source: source,
		info:   info,
		tally:  languageTally{counts: make(map[string]int)},
	}
}

// Segments returns the single-pass segment sequence
func (t *Transcription) Segments() iter.Seq2[Segment, error] {
	return func(yield func(Segment, error) bool) {
		if t.consumed {
			yield(Segment{}, ErrAlreadyConsumed)
			return
		}
		t.consumed = true

		for seg, err := range t.source {
			if err == nil {
				t.tally.add(seg.Language)
			}
			if !yield(seg, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// Info returns the language metadata
func (t *Transcription) Info() Info {
	if t.info != nil {
		return *t.info
	}
	return t.tally.info()
}

// Collect drains the transcription, calling onSegment for every segment as it
// arrives. It stops at the first engine error.
func Collect(t *Transcription, onSegment func(Segment)) ([]Segment, error) {
	var segments []Segment
	for seg, err := range t.Segments() {
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
		if onSegment != nil {
			onSegment(seg)
		}
	}
	return segments, nil
}

// languageTally counts per-segment language codes
type languageTally struct {
	counts map[string]int
	order  []string
	total  int
}

func (l *languageTally) add(lang string) {
	l.total++
	if lang == "" {
		return
	}
	if _, ok := l.counts[lang]; !ok {
		l.order = append(l.order, lang)
	}
	l.counts[lang]++
}

// info picks the most frequent language, earliest seen on ties
func (l *languageTally) info() Info {
	if len(l.order) == 0 || l.total == 0 {
		return Info{Language: "unknown"}
	}

	langs := make([]string, len(l.order))
	copy(langs, l.order)
	sort.SliceStable(langs, func(i, j int) bool {
		return l.counts[langs[i]] > l.counts[langs[j]]
	})

	best := langs[0]
	return Info{
		Language:            best,
		LanguageProbability: float64(l.counts[best]) / float64(l.total),
	}
}
