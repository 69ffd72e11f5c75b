package subtitle

import "strings"

// nonSpeechPrefixes mark cues that carry sound or music annotations rather
// than speech, in both ASCII and full-width forms.
var nonSpeechPrefixes = []string{"【", "[", "(", "（"}

// CleanStats reports the effects of transcript cleanup operations.
type CleanStats struct {
	RemovedCues int
}

// RemoveNonSpeech drops cues whose text is a sound annotation, such as
// music or noise markers emitted by speech recognizers.
func RemoveNonSpeech(t *Transcript) CleanStats {
	kept := t.Segments[:0]
	var stats CleanStats
	for _, seg := range t.Segments {
		if isNonSpeech(seg.Text) {
			stats.RemovedCues++
			continue
		}
		kept = append(kept, seg)
	}
	t.Segments = kept
	return stats
}

func isNonSpeech(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	for _, prefix := range nonSpeechPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
