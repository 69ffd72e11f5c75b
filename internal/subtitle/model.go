package subtitle

import (
	"strings"
	"time"

	"captioner/internal/textutil"
)

// Segment is a single timed subtitle cue. Translation is empty until the
// translation stage has run.
type Segment struct {
	Start       time.Duration
	End         time.Duration
	Text        string
	Translation string
}

// Duration returns the display time of the segment.
func (s Segment) Duration() time.Duration {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Transcript is an ordered sequence of segments. Order is by start time and
// is preserved by every pipeline stage.
type Transcript struct {
	Segments []Segment
}

// Clone returns a deep copy so concurrent stages can hand out snapshots
// without aliasing the segment slice.
func (t *Transcript) Clone() *Transcript {
	segments := make([]Segment, len(t.Segments))
	copy(segments, t.Segments)
	return &Transcript{Segments: segments}
}

// Len returns the number of segments.
func (t *Transcript) Len() int {
	return len(t.Segments)
}

// IsWordLevel reports whether the transcript carries word granularity
// timestamps. Sentence cues occasionally hold a single word, so the check
// passes when at least four fifths of the segments are single words.
func (t *Transcript) IsWordLevel() bool {
	if len(t.Segments) == 0 {
		return false
	}
	single := 0
	for _, seg := range t.Segments {
		if textutil.WordCount(seg.Text) <= 1 {
			single++
		}
	}
	return single*5 >= len(t.Segments)*4
}

// SplitToWords explodes sentence segments into word segments, distributing
// each cue's time span across its words proportionally to rune length.
// Word-level transcripts are returned unchanged.
func (t *Transcript) SplitToWords() *Transcript {
	if t.IsWordLevel() {
		return t
	}
	var out []Segment
	for _, seg := range t.Segments {
		words := textutil.SplitWords(seg.Text)
		if len(words) <= 1 {
			out = append(out, seg)
			continue
		}
		total := 0
		for _, w := range words {
			total += len([]rune(w))
		}
		span := seg.Duration()
		cursor := seg.Start
		for i, w := range words {
			share := time.Duration(0)
			if total > 0 {
				share = span * time.Duration(len([]rune(w))) / time.Duration(total)
			}
			end := cursor + share
			if i == len(words)-1 {
				end = seg.End
			}
			out = append(out, Segment{Start: cursor, End: end, Text: w})
			cursor = end
		}
	}
	return &Transcript{Segments: out}
}

// RemovePunctuation strips trailing sentence punctuation from the translated
// text of every segment. Original text is left alone.
func (t *Transcript) RemovePunctuation() {
	for i := range t.Segments {
		t.Segments[i].Translation = textutil.TrimTrailingPunctuation(t.Segments[i].Translation)
	}
}

// Texts returns the original text of every segment in order.
func (t *Transcript) Texts() []string {
	texts := make([]string, len(t.Segments))
	for i, seg := range t.Segments {
		texts[i] = seg.Text
	}
	return texts
}

// PlainText joins all original texts with spaces, used for context windows
// in LLM prompts.
func (t *Transcript) PlainText() string {
	return strings.Join(t.Texts(), " ")
}
