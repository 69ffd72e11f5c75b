package splitter

import "fmt"

const systemPrompt = `You segment subtitle word streams into natural sentence lines.

Rules:
- Use every input word exactly once, in order. Do not add, drop, merge, or rewrite words.
- Break at natural semantic boundaries: ends of sentences and clauses.
- Keep each line at or under %d words for CJK text and %d words for other scripts.
- Prefer shorter, readable lines over maximal ones.

Respond with JSON only, in the form {"sentences": ["...", "..."]} where each
entry is the words of one line joined by single spaces.`

func buildSystemPrompt(maxCJK, maxEnglish int) string {
	return fmt.Sprintf(systemPrompt, maxCJK, maxEnglish)
}
