package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ParseSRT decodes SRT content into a transcript. Multi-line cues are kept
// as a single text with spaces, cue indices are ignored, and blocks without
// a timing line are skipped.
func ParseSRT(raw []byte) (*Transcript, error) {
	content := strings.ReplaceAll(string(raw), "\r\n", "\n")
	content = strings.TrimPrefix(content, "\uFEFF")
	blocks := strings.Split(strings.TrimSpace(content), "\n\n")
	transcript := &Transcript{}
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		timingIdx := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timingIdx = i
				break
			}
		}
		if timingIdx < 0 {
			continue
		}
		parts := strings.Split(lines[timingIdx], "-->")
		if len(parts) != 2 {
			continue
		}
		start, err := parseSRTTime(parts[0])
		if err != nil {
			return nil, fmt.Errorf("parse cue start: %w", err)
		}
		end, err := parseSRTTime(parts[1])
		if err != nil {
			return nil, fmt.Errorf("parse cue end: %w", err)
		}
		var text []string
		for _, line := range lines[timingIdx+1:] {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				text = append(text, trimmed)
			}
		}
		if len(text) == 0 {
			continue
		}
		transcript.Segments = append(transcript.Segments, Segment{
			Start: start,
			End:   end,
			Text:  strings.Join(text, " "),
		})
	}
	if len(transcript.Segments) == 0 {
		return nil, fmt.Errorf("no cues found")
	}
	return transcript, nil
}

// ParseFile reads a subtitle file from disk. Only SRT input is supported.
func ParseFile(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subtitle: %w", err)
	}
	transcript, err := ParseSRT(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return transcript, nil
}

// RenderSRT encodes the transcript as SRT under the given layout.
func RenderSRT(t *Transcript, layout Layout) []byte {
	var b strings.Builder
	for i, seg := range t.Segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n", i+1, formatSRTTime(seg.Start), formatSRTTime(seg.End))
		for _, line := range layout.lines(seg) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// WriteFile renders the transcript to path, choosing the format from the
// file extension: .ass renders ASS with the optional style, everything else
// renders SRT.
func WriteFile(t *Transcript, path string, layout Layout, style string) error {
	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".ass") {
		data = RenderASS(t, layout, style)
	} else {
		data = RenderSRT(t, layout)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write subtitle: %w", err)
	}
	return nil
}

func parseSRTTime(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// SRT uses a comma before milliseconds, but period shows up in the wild.
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(strings.TrimSpace(hms[0]))
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

func formatSRTTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	millis := d.Milliseconds()
	hours := millis / 3_600_000
	millis -= hours * 3_600_000
	minutes := millis / 60_000
	millis -= minutes * 60_000
	seconds := millis / 1000
	millis -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
