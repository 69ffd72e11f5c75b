package subtitle

import (
	"fmt"
	"strings"
)

// Layout selects which of the original and translated texts a rendered cue
// contains, and their order.
type Layout string

const (
	LayoutOriginalOnTop    Layout = "original_on_top"
	LayoutTranslationOnTop Layout = "translation_on_top"
	LayoutOriginalOnly     Layout = "original_only"
	LayoutTranslationOnly  Layout = "translation_only"
)

// ParseLayout converts a configuration string into a Layout.
func ParseLayout(value string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(value))) {
	case LayoutOriginalOnTop:
		return LayoutOriginalOnTop, nil
	case LayoutTranslationOnTop:
		return LayoutTranslationOnTop, nil
	case LayoutOriginalOnly:
		return LayoutOriginalOnly, nil
	case LayoutTranslationOnly:
		return LayoutTranslationOnly, nil
	default:
		return "", fmt.Errorf("unknown subtitle layout %q", value)
	}
}

// Layouts lists every supported layout, in render order used when saving a
// full set of variants next to a video.
func Layouts() []Layout {
	return []Layout{LayoutOriginalOnTop, LayoutTranslationOnTop, LayoutOriginalOnly, LayoutTranslationOnly}
}

// lines returns the rendered lines for a segment under the layout. A
// missing translation falls back to the original text so untranslated
// transcripts still render.
func (l Layout) lines(seg Segment) []string {
	original := strings.TrimSpace(seg.Text)
	translation := strings.TrimSpace(seg.Translation)
	if translation == "" {
		translation = original
	}
	switch l {
	case LayoutOriginalOnTop:
		if original == translation {
			return []string{original}
		}
		return []string{original, translation}
	case LayoutTranslationOnTop:
		if original == translation {
			return []string{translation}
		}
		return []string{translation, original}
	case LayoutOriginalOnly:
		return []string{original}
	case LayoutTranslationOnly:
		return []string{translation}
	default:
		return []string{original}
	}
}
