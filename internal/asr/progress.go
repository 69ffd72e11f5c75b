package asr

import (
	"strconv"
	"strings"
)

// parseCueTimestamp extracts the cue start time in whole seconds from a
// whisper.cpp stdout line of the form
//
//	[00:01:23.456 --> 00:01:25.789]  text
func parseCueTimestamp(line string) (int, bool) {
	open := strings.Index(line, "[")
	arrow := strings.Index(line, " -->")
	if open < 0 || arrow <= open {
		return 0, false
	}
	return parseClock(strings.TrimSpace(line[open+1 : arrow]))
}

// parseFFmpegDuration finds the "Duration: hh:mm:ss.cc" line in ffmpeg
// stderr output.
func parseFFmpegDuration(output string) (int, bool) {
	idx := strings.Index(output, "Duration:")
	if idx < 0 {
		return 0, false
	}
	rest := output[idx+len("Duration:"):]
	if comma := strings.Index(rest, ","); comma >= 0 {
		rest = rest[:comma]
	}
	return parseClock(strings.TrimSpace(rest))
}

// parseClock converts "hh:mm:ss.fff" (or "mm:ss.fff") into whole seconds.
func parseClock(value string) (int, bool) {
	if dot := strings.IndexAny(value, "."); dot >= 0 {
		value = value[:dot]
	}
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
