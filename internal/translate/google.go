package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/text/language"

	"captioner/internal/services"
)

const googleEndpoint = "https://translate.googleapis.com/translate_a/single"

// googleProvider uses the public Google web translation endpoint. It needs
// no credentials and no LLM model.
type googleProvider struct {
	httpClient *http.Client
}

func (p *googleProvider) name() string { return string(ServiceGoogle) }

func (p *googleProvider) translateBatch(ctx context.Context, texts []string, target language.Tag) ([]string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", "auto")
	params.Set("tl", target.String())
	params.Set("dt", "t")
	params.Set("q", strings.Join(texts, "\n"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("google: new request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, classifyHTTPError(p.name(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyHTTPError(p.name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPStatus(p.name(), resp.StatusCode)
	}

	// The response is a nested array; element 0 lists [translated, source,
	// ...] chunks that together cover the joined input.
	var decoded []json.RawMessage
	if err := json.Unmarshal(body, &decoded); err != nil || len(decoded) == 0 {
		return nil, services.Wrap(services.ErrProvider, "translate", p.name(), "malformed response", err)
	}
	var chunks [][]json.RawMessage
	if err := json.Unmarshal(decoded[0], &chunks); err != nil {
		return nil, services.Wrap(services.ErrProvider, "translate", p.name(), "malformed response", err)
	}
	var joined strings.Builder
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		var part string
		if err := json.Unmarshal(chunk[0], &part); err != nil {
			continue
		}
		joined.WriteString(part)
	}

	lines := strings.Split(joined.String(), "\n")
	if len(lines) != len(texts) {
		return nil, services.Wrap(services.ErrProvider, "translate", p.name(),
			fmt.Sprintf("line count changed in translation: sent %d, got %d", len(texts), len(lines)), nil)
	}
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return lines, nil
}
