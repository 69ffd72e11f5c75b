package textutil

import (
	"strings"
	"unicode"
)

// trailingPunctuation lists the characters stripped from the end of translated
// lines when punctuation removal is enabled.
const trailingPunctuation = ".,!?;:。，！？；：、…"

// IsCJK reports whether the text is predominantly CJK script. A single CJK
// rune is enough to tip mixed lines, matching how subtitle line-length limits
// are chosen.
func IsCJK(text string) bool {
	cjk := 0
	latin := 0
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r):
			cjk++
		case unicode.IsLetter(r):
			latin++
		}
	}
	if cjk == 0 {
		return false
	}
	return cjk*2 >= latin
}

// WordCount counts display words: CJK runes count one each, Latin words count
// one per whitespace-separated token.
func WordCount(text string) int {
	count := 0
	var latin strings.Builder
	flush := func() {
		if latin.Len() > 0 {
			count += len(strings.Fields(latin.String()))
			latin.Reset()
		}
	}
	for _, r := range text {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			flush()
			count++
			continue
		}
		latin.WriteRune(r)
	}
	flush()
	return count
}

// TrimTrailingPunctuation removes trailing sentence punctuation, both ASCII
// and full-width forms.
func TrimTrailingPunctuation(text string) string {
	return strings.TrimRight(strings.TrimSpace(text), trailingPunctuation)
}

// SplitWords tokenizes text into display words: each CJK rune stands alone,
// Latin runs split on whitespace. Punctuation stays attached to the token it
// follows.
func SplitWords(text string) []string {
	var words []string
	var latin strings.Builder
	flush := func() {
		if latin.Len() > 0 {
			words = append(words, strings.Fields(latin.String())...)
			latin.Reset()
		}
	}
	for _, r := range text {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			flush()
			words = append(words, string(r))
			continue
		}
		latin.WriteRune(r)
	}
	flush()
	return words
}
