package pipeline

import "captioner/internal/subtitle"

// Events carries the callbacks a consumer (CLI, UI) can register on a run.
// Nil callbacks are skipped. Progress percent is 0-100 across the whole
// pipeline, not per stage.
type Events struct {
	// Progress reports overall completion with a status message.
	Progress func(percent int, message string)
	// Segments delivers freshly processed segments with their absolute
	// offset in the transcript. Advisory only; the saved file is built
	// from the authoritative transcript at the end.
	Segments func(offset int, segments []subtitle.Segment)
	// Transcript delivers a full snapshot after a stage completes.
	Transcript func(t *subtitle.Transcript)
	// Error reports the terminal failure message. Not invoked on
	// cancellation.
	Error func(message string)
}

func (e Events) progress(percent int, message string) {
	if e.Progress != nil {
		e.Progress(percent, message)
	}
}

func (e Events) segments(offset int, segments []subtitle.Segment) {
	if e.Segments != nil && len(segments) > 0 {
		e.Segments(offset, segments)
	}
}

func (e Events) transcript(t *subtitle.Transcript) {
	if e.Transcript != nil {
		e.Transcript(t)
	}
}

// span maps a stage's internal 0-100 progress onto its slice of the
// overall pipeline range.
type span struct {
	start int
	end   int
}

func (s span) at(percent int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return s.start + (s.end-s.start)*percent/100
}
