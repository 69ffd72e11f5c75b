package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"captioner/internal/services/llm"
)

const translateTemperature = 0.7

const translatePromptFormat = `You translate subtitles into %s.

Rules:
- Translate naturally and concisely, as spoken subtitle lines.
- Keep names, numbers, and technical terms accurate.
- Do not merge, reorder, or drop lines.

Input is a JSON object mapping line numbers to source text. Respond with
JSON only: the same object with each value translated into %s, every key
preserved.`

const reflectPromptFormat = `You review subtitle translations into %s.

Input is a JSON object mapping line numbers to {"src": source, "draft":
current translation}. Improve awkward or inaccurate drafts; keep good ones.
Respond with JSON only: an object mapping every line number to the final
%s translation.`

// llmProvider translates with an OpenAI-compatible chat model, optionally
// running a second reflection pass over the draft.
type llmProvider struct {
	client       *llm.Client
	reflect      bool
	customPrompt string
}

func (p *llmProvider) name() string { return string(ServiceOpenAI) }

func (p *llmProvider) translateBatch(ctx context.Context, texts []string, target language.Tag) ([]string, error) {
	lang := languageName(target)

	numbered := make(map[string]string, len(texts))
	for i, text := range texts {
		numbered[strconv.Itoa(i)] = text
	}
	encoded, err := json.Marshal(numbered)
	if err != nil {
		return nil, fmt.Errorf("translate: encode batch: %w", err)
	}

	system := fmt.Sprintf(translatePromptFormat, lang, lang)
	if p.customPrompt != "" {
		system += "\n\nAdditional instructions:\n" + p.customPrompt
	}
	payload, err := p.client.CompleteJSON(ctx, system, string(encoded), translateTemperature)
	if err != nil {
		return nil, err
	}
	draft, err := decodeNumbered(payload, texts)
	if err != nil {
		return nil, err
	}

	if !p.reflect {
		return draft, nil
	}
	return p.reflectBatch(ctx, texts, draft, lang)
}

// reflectBatch runs the review pass. A failed review keeps the draft
// rather than failing the batch.
func (p *llmProvider) reflectBatch(ctx context.Context, texts, draft []string, lang string) ([]string, error) {
	type pair struct {
		Src   string `json:"src"`
		Draft string `json:"draft"`
	}
	numbered := make(map[string]pair, len(texts))
	for i := range texts {
		numbered[strconv.Itoa(i)] = pair{Src: texts[i], Draft: draft[i]}
	}
	encoded, err := json.Marshal(numbered)
	if err != nil {
		return draft, nil
	}
	payload, err := p.client.CompleteJSON(ctx, fmt.Sprintf(reflectPromptFormat, lang, lang), string(encoded), translateTemperature)
	if err != nil {
		return draft, nil
	}
	final, err := decodeNumbered(payload, draft)
	if err != nil {
		return draft, nil
	}
	return final, nil
}

// decodeNumbered maps a numbered JSON response back into slice order,
// falling back to the corresponding input text for missing or empty keys.
func decodeNumbered(payload string, fallback []string) ([]string, error) {
	decoded := make(map[string]string)
	if err := llm.DecodeJSON(payload, &decoded); err != nil {
		return nil, fmt.Errorf("translate: parse response: %w", err)
	}
	out := make([]string, len(fallback))
	for i := range fallback {
		if text, ok := decoded[strconv.Itoa(i)]; ok && strings.TrimSpace(text) != "" {
			out[i] = strings.TrimSpace(text)
			continue
		}
		out[i] = fallback[i]
	}
	return out, nil
}
