package subtitle_test

import (
	"testing"
	"time"

	"captioner/internal/subtitle"
)

func wordSegments(words ...string) []subtitle.Segment {
	segments := make([]subtitle.Segment, len(words))
	for i, w := range words {
		segments[i] = subtitle.Segment{
			Start: time.Duration(i) * time.Second,
			End:   time.Duration(i+1) * time.Second,
			Text:  w,
		}
	}
	return segments
}

func TestIsWordLevel(t *testing.T) {
	word := &subtitle.Transcript{Segments: wordSegments("hello", "there", "how", "are", "you")}
	if !word.IsWordLevel() {
		t.Fatal("single-word segments should be word level")
	}
	sentence := &subtitle.Transcript{Segments: []subtitle.Segment{
		{End: time.Second, Text: "hello there how are you"},
		{Start: time.Second, End: 2 * time.Second, Text: "fine thanks for asking"},
	}}
	if sentence.IsWordLevel() {
		t.Fatal("sentence segments should not be word level")
	}
	empty := &subtitle.Transcript{}
	if empty.IsWordLevel() {
		t.Fatal("empty transcript should not be word level")
	}
}

func TestSplitToWordsPreservesSpan(t *testing.T) {
	transcript := &subtitle.Transcript{Segments: []subtitle.Segment{
		{Start: 0, End: 4 * time.Second, Text: "one two three four"},
		{Start: 4 * time.Second, End: 6 * time.Second, Text: "五六"},
	}}
	split := transcript.SplitToWords()
	if split.Len() != 6 {
		t.Fatalf("expected 6 word segments, got %d", split.Len())
	}
	if split.Segments[0].Start != 0 {
		t.Fatal("first word should start at segment start")
	}
	if split.Segments[3].End != 4*time.Second {
		t.Fatalf("last word of first cue should end at cue end, got %v", split.Segments[3].End)
	}
	if split.Segments[5].End != 6*time.Second {
		t.Fatalf("final word should end at transcript end, got %v", split.Segments[5].End)
	}
	for i := 1; i < split.Len(); i++ {
		if split.Segments[i].Start < split.Segments[i-1].Start {
			t.Fatalf("word order broken at %d", i)
		}
	}
}

func TestSplitToWordsLeavesWordLevelAlone(t *testing.T) {
	transcript := &subtitle.Transcript{Segments: wordSegments("already", "word", "level", "input", "here")}
	if split := transcript.SplitToWords(); split.Len() != transcript.Len() {
		t.Fatalf("word-level transcript changed: %d -> %d", transcript.Len(), split.Len())
	}
}

func TestRemovePunctuation(t *testing.T) {
	transcript := &subtitle.Transcript{Segments: []subtitle.Segment{
		{Text: "Hello there.", Translation: "你好。"},
		{Text: "Fine!", Translation: "好的！"},
	}}
	transcript.RemovePunctuation()
	if transcript.Segments[0].Text != "Hello there." {
		t.Fatalf("original text must keep its punctuation: %q", transcript.Segments[0].Text)
	}
	if transcript.Segments[0].Translation != "你好" {
		t.Fatalf("full-width punctuation kept: %q", transcript.Segments[0].Translation)
	}
	if transcript.Segments[1].Translation != "好的" {
		t.Fatalf("full-width exclamation kept: %q", transcript.Segments[1].Translation)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	transcript := &subtitle.Transcript{Segments: wordSegments("a", "b")}
	clone := transcript.Clone()
	clone.Segments[0].Text = "changed"
	if transcript.Segments[0].Text == "changed" {
		t.Fatal("clone aliases original segments")
	}
}

func TestRemoveNonSpeech(t *testing.T) {
	transcript := &subtitle.Transcript{Segments: []subtitle.Segment{
		{Text: "【音乐】"},
		{Text: "[music]"},
		{Text: "(applause)"},
		{Text: "（掌声）"},
		{Text: "actual speech"},
		{Text: "   "},
	}}
	stats := subtitle.RemoveNonSpeech(transcript)
	if stats.RemovedCues != 5 {
		t.Fatalf("expected 5 removed cues, got %d", stats.RemovedCues)
	}
	if transcript.Len() != 1 || transcript.Segments[0].Text != "actual speech" {
		t.Fatalf("unexpected survivors: %+v", transcript.Segments)
	}
}
