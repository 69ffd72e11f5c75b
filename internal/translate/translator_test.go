package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"captioner/internal/services"
	"captioner/internal/services/llm"
	"captioner/internal/subtitle"
)

func sampleTranscript(texts ...string) *subtitle.Transcript {
	segments := make([]subtitle.Segment, len(texts))
	for i, text := range texts {
		segments[i] = subtitle.Segment{
			Start: time.Duration(i) * time.Second,
			End:   time.Duration(i+1) * time.Second,
			Text:  text,
		}
	}
	return &subtitle.Transcript{Segments: segments}
}

// rewriteTransport redirects every request to a test server while keeping
// the original path and query, so providers with fixed endpoints can be
// exercised against httptest.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = t.target.Scheme
	clone.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(clone)
}

func rewriteClient(t *testing.T, handler http.Handler) *http.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	target, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	return &http.Client{Transport: rewriteTransport{target: target}}
}

func TestTranslateDeepLX(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req deeplxRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.TargetLang != "ZH" {
			t.Errorf("target_lang = %q, want ZH", req.TargetLang)
		}
		lines := strings.Split(req.Text, "\n")
		for i := range lines {
			lines[i] = "译:" + lines[i]
		}
		json.NewEncoder(w).Encode(deeplxResponse{Code: 200, Data: strings.Join(lines, "\n")})
	}))
	t.Cleanup(server.Close)

	tr, err := New(Options{
		Service:        ServiceDeepLX,
		TargetLanguage: "zh",
		DeepLXEndpoint: server.URL,
		Threads:        2,
		BatchSize:      2,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := tr.Translate(context.Background(), sampleTranscript("one", "two", "three"), nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("expected 3 segments, got %d", out.Len())
	}
	for i, seg := range out.Segments {
		if seg.Translation != "译:"+seg.Text {
			t.Errorf("segment %d translation = %q", i, seg.Translation)
		}
		if seg.Text == "" {
			t.Errorf("segment %d lost its original text", i)
		}
	}
}

func TestTranslateDeepLXLineMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(deeplxResponse{Code: 200, Data: "merged into one line"})
	}))
	t.Cleanup(server.Close)

	tr, err := New(Options{
		Service:        ServiceDeepLX,
		TargetLanguage: "de",
		DeepLXEndpoint: server.URL,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = tr.Translate(context.Background(), sampleTranscript("one", "two"), nil)
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error for collapsed lines, got %v", err)
	}
}

func TestTranslateOpenAIWithReflection(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		system := req.Messages[0].Content
		user := req.Messages[len(req.Messages)-1].Content

		out := make(map[string]string)
		if strings.Contains(system, "review") {
			var pairs map[string]struct {
				Src   string `json:"src"`
				Draft string `json:"draft"`
			}
			if err := json.Unmarshal([]byte(user), &pairs); err != nil {
				t.Errorf("decode reflection input: %v", err)
			}
			for k, pair := range pairs {
				out[k] = "final " + pair.Draft
			}
		} else {
			var numbered map[string]string
			if err := json.Unmarshal([]byte(user), &numbered); err != nil {
				t.Errorf("decode translation input: %v", err)
			}
			for k, text := range numbered {
				out[k] = "draft " + text
			}
		}
		payload, _ := json.Marshal(out)
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": string(payload)}},
			},
		})
		w.Write(body)
	}))
	t.Cleanup(server.Close)

	client := llm.NewClient(llm.Config{APIKey: "sk", BaseURL: server.URL, Model: "m"})
	tr, err := New(Options{
		Service:        ServiceOpenAI,
		TargetLanguage: "fr",
		Client:         client,
		NeedReflect:    true,
		BatchSize:      10,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := tr.Translate(context.Background(), sampleTranscript("hello", "goodbye"), nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got := out.Segments[0].Translation; got != "final draft hello" {
		t.Fatalf("translation = %q, want reflected draft", got)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected translate plus reflect calls, got %d", calls.Load())
	}
}

func TestTranslateGoogle(t *testing.T) {
	httpClient := rewriteClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate_a/single" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("tl"); got != "es" {
			t.Errorf("tl = %q, want es", got)
		}
		lines := strings.Split(r.URL.Query().Get("q"), "\n")
		chunks := make([]any, len(lines))
		for i, line := range lines {
			text := "es " + line
			if i < len(lines)-1 {
				text += "\n"
			}
			chunks[i] = []any{text, line}
		}
		json.NewEncoder(w).Encode([]any{chunks, nil})
	}))

	tr, err := New(Options{
		Service:        ServiceGoogle,
		TargetLanguage: "es",
		HTTPClient:     httpClient,
		BatchSize:      10,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := tr.Translate(context.Background(), sampleTranscript("cat", "dog"), nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	want := []string{"es cat", "es dog"}
	for i, seg := range out.Segments {
		if seg.Translation != want[i] {
			t.Errorf("segment %d translation = %q, want %q", i, seg.Translation, want[i])
		}
	}
}

func TestTranslateBingReusesToken(t *testing.T) {
	var authCalls atomic.Int32
	httpClient := rewriteClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/translate/auth":
			authCalls.Add(1)
			fmt.Fprint(w, "test-jwt")
		case "/translate":
			if got := r.Header.Get("Authorization"); got != "Bearer test-jwt" {
				t.Errorf("Authorization = %q", got)
			}
			var items []struct {
				Text string `json:"Text"`
			}
			if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
				t.Errorf("decode request: %v", err)
			}
			out := make([]map[string]any, len(items))
			for i, item := range items {
				out[i] = map[string]any{
					"translations": []map[string]string{{"text": "bing " + item.Text}},
				}
			}
			json.NewEncoder(w).Encode(out)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	tr, err := New(Options{
		Service:        ServiceBing,
		TargetLanguage: "ja",
		HTTPClient:     httpClient,
		Threads:        1,
		BatchSize:      2,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := tr.Translate(context.Background(), sampleTranscript("a", "b", "c", "d"), nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got := out.Segments[2].Translation; got != "bing c" {
		t.Fatalf("translation = %q", got)
	}
	if authCalls.Load() != 1 {
		t.Fatalf("expected one auth call across batches, got %d", authCalls.Load())
	}
}

func TestTranslateProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req deeplxRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(deeplxResponse{Code: 200, Data: req.Text})
	}))
	t.Cleanup(server.Close)

	tr, err := New(Options{
		Service:        ServiceDeepLX,
		TargetLanguage: "zh",
		DeepLXEndpoint: server.URL,
		Threads:        2,
		BatchSize:      2,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var events int
	var last int
	_, err = tr.Translate(context.Background(), sampleTranscript("a", "b", "c", "d", "e"), func(done, total, percent, offset int, updated []subtitle.Segment) {
		events++
		if percent < last {
			t.Errorf("progress went backwards: %d after %d", percent, last)
		}
		last = percent
		if len(updated) == 0 {
			t.Error("progress delivered no segments")
		}
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if events != 3 {
		t.Fatalf("expected 3 progress events, got %d", events)
	}
	if last != 100 {
		t.Fatalf("final percent = %d", last)
	}
}

func TestNewConfigurationErrors(t *testing.T) {
	cases := []struct {
		name string
		opts Options
	}{
		{"openai without model", Options{Service: ServiceOpenAI, TargetLanguage: "zh"}},
		{"deeplx without endpoint", Options{Service: ServiceDeepLX, TargetLanguage: "zh"}},
		{"bad language", Options{Service: ServiceGoogle, TargetLanguage: "not a language"}},
		{"unknown service", Options{Service: Service("yandex"), TargetLanguage: "zh"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.opts); !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestParseService(t *testing.T) {
	cases := []struct {
		in      string
		want    Service
		wantErr bool
	}{
		{"openai", ServiceOpenAI, false},
		{" DeepLX ", ServiceDeepLX, false},
		{"BING", ServiceBing, false},
		{"google", ServiceGoogle, false},
		{"baidu", "", true},
	}
	for _, tc := range cases {
		got, err := ParseService(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseService(%q) accepted unknown service", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseService(%q) = %q, %v", tc.in, got, err)
		}
	}
}
