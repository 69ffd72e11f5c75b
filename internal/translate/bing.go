package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"captioner/internal/services"
)

const (
	bingAuthEndpoint      = "https://edge.microsoft.com/translate/auth"
	bingTranslateEndpoint = "https://api.cognitive.microsofttranslator.com/translate"
	bingTokenLifetime     = 8 * time.Minute
)

// bingProvider uses the Edge browser translation backend. An anonymous JWT
// is fetched from the auth endpoint and reused until it ages out.
type bingProvider struct {
	httpClient *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func (p *bingProvider) name() string { return string(ServiceBing) }

func (p *bingProvider) authToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && time.Now().Before(p.tokenExp) {
		return p.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bingAuthEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("bing: new auth request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", classifyHTTPError(p.name(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyHTTPError(p.name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPStatus(p.name(), resp.StatusCode)
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", services.Wrap(services.ErrProvider, "translate", p.name(), "empty auth token", nil)
	}
	p.token = token
	p.tokenExp = time.Now().Add(bingTokenLifetime)
	return token, nil
}

func (p *bingProvider) translateBatch(ctx context.Context, texts []string, target language.Tag) ([]string, error) {
	token, err := p.authToken(ctx)
	if err != nil {
		return nil, err
	}

	type textItem struct {
		Text string `json:"Text"`
	}
	items := make([]textItem, len(texts))
	for i, t := range texts {
		items[i] = textItem{Text: t}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("bing: marshal request: %w", err)
	}

	endpoint := bingTranslateEndpoint + "?api-version=3.0&to=" + target.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("bing: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, classifyHTTPError(p.name(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyHTTPError(p.name(), err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked early; drop it so the next batch
		// fetches a fresh one.
		p.mu.Lock()
		p.token = ""
		p.mu.Unlock()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPStatus(p.name(), resp.StatusCode)
	}

	var decoded []struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrProvider, "translate", p.name(), "malformed response", err)
	}
	if len(decoded) != len(texts) {
		return nil, services.Wrap(services.ErrProvider, "translate", p.name(),
			fmt.Sprintf("item count changed in translation: sent %d, got %d", len(texts), len(decoded)), nil)
	}
	out := make([]string, len(decoded))
	for i, item := range decoded {
		if len(item.Translations) == 0 {
			return nil, services.Wrap(services.ErrProvider, "translate", p.name(),
				fmt.Sprintf("item %d missing translation", i), nil)
		}
		out[i] = strings.TrimSpace(item.Translations[0].Text)
	}
	return out, nil
}
