package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"captioner/internal/services"
)

// deeplxProvider talks to a self-hosted DeepLX endpoint. Lines travel as
// one newline-joined document per batch to keep request counts low.
type deeplxProvider struct {
	endpoint   string
	httpClient *http.Client
}

func (p *deeplxProvider) name() string { return string(ServiceDeepLX) }

type deeplxRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type deeplxResponse struct {
	Code int    `json:"code"`
	Data string `json:"data"`
}

func (p *deeplxProvider) translateBatch(ctx context.Context, texts []string, target language.Tag) ([]string, error) {
	base, _ := target.Base()
	payload, err := json.Marshal(deeplxRequest{
		Text:       strings.Join(texts, "\n"),
		SourceLang: "auto",
		TargetLang: strings.ToUpper(base.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("deeplx: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("deeplx: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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

	var decoded deeplxResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrProvider, "translate", p.name(), "malformed response", err)
	}
	if decoded.Code != 0 && decoded.Code != http.StatusOK {
		return nil, services.Wrap(services.ErrProvider, "translate", p.name(),
			fmt.Sprintf("endpoint returned code %d", decoded.Code), nil)
	}

	lines := strings.Split(decoded.Data, "\n")
	if len(lines) != len(texts) {
		return nil, services.Wrap(services.ErrProvider, "translate", p.name(),
			fmt.Sprintf("line count changed in translation: sent %d, got %d", len(texts), len(lines)), nil)
	}
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return lines, nil
}
