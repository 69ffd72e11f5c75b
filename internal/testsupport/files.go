package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"captioner/internal/subtitle"
)

// WriteSubtitle renders the given texts as sequential one-second cues and
// writes them as an SRT file.
func WriteSubtitle(t testing.TB, path string, texts ...string) {
	t.Helper()

	segments := make([]subtitle.Segment, len(texts))
	for i, text := range texts {
		segments[i] = subtitle.Segment{
			Start: time.Duration(i) * time.Second,
			End:   time.Duration(i+1) * time.Second,
			Text:  text,
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	transcript := &subtitle.Transcript{Segments: segments}
	if err := subtitle.WriteFile(transcript, path, subtitle.LayoutOriginalOnly, ""); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// NumberedLines returns n distinct subtitle lines for fixtures.
func NumberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %03d", i)
	}
	return lines
}
