package textutil_test

import (
	"testing"

	"captioner/internal/textutil"
)

func TestIsCJK(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"hello world", false},
		{"你好世界", true},
		{"こんにちは", true},
		{"안녕하세요", true},
		{"mixed 你好 line", true},
		{"", false},
		{"123 456", false},
	}
	for _, tc := range cases {
		if got := textutil.IsCJK(tc.text); got != tc.want {
			t.Errorf("IsCJK(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestWordCount(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"hello world", 2},
		{"你好世界", 4},
		{"hi 你好", 3},
		{"", 0},
		{"  spaced   out  ", 2},
	}
	for _, tc := range cases {
		if got := textutil.WordCount(tc.text); got != tc.want {
			t.Errorf("WordCount(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestTrimTrailingPunctuation(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello.", "Hello"},
		{"你好。", "你好"},
		{"Wait...", "Wait"},
		{"No change", "No change"},
		{"Inner. stays.", "Inner. stays"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := textutil.TrimTrailingPunctuation(tc.in); got != tc.want {
			t.Errorf("TrimTrailingPunctuation(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
