package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"captioner/internal/services"
	"captioner/internal/services/llm"
	"captioner/internal/subtitle"
)

func transcript(texts ...string) *subtitle.Transcript {
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

// optimizeServer returns an LLM stub that applies transform to every line
// of the numbered batch it receives.
func optimizeServer(t *testing.T, transform func(string) string) (*llm.Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		var numbered map[string]string
		_ = json.Unmarshal([]byte(req.Messages[len(req.Messages)-1].Content), &numbered)
		for k, v := range numbered {
			numbered[k] = transform(v)
		}
		payload, _ := json.Marshal(numbered)
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": string(payload)}},
			},
		})
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return llm.NewClient(llm.Config{APIKey: "sk", BaseURL: server.URL, Model: "m"}), &calls
}

func TestOptimizeCorrectsTextKeepsTiming(t *testing.T) {
	client, calls := optimizeServer(t, strings.ToUpper)
	o := New(client, Options{Threads: 3, BatchSize: 2})
	in := transcript("one", "two", "three", "four", "five")

	out, err := o.Optimize(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if out.Len() != in.Len() {
		t.Fatalf("segment count changed: %d", out.Len())
	}
	for i, seg := range out.Segments {
		if seg.Text != strings.ToUpper(in.Segments[i].Text) {
			t.Fatalf("segment %d not corrected: %q", i, seg.Text)
		}
		if seg.Start != in.Segments[i].Start || seg.End != in.Segments[i].End {
			t.Fatalf("segment %d timing changed", i)
		}
	}
	// ceil(5/2) = 3 batches.
	if calls.Load() != 3 {
		t.Fatalf("expected 3 LLM calls, got %d", calls.Load())
	}
}

func TestOptimizeProgress(t *testing.T) {
	client, _ := optimizeServer(t, func(s string) string { return s })
	o := New(client, Options{Threads: 1, BatchSize: 2})
	in := transcript("a", "b", "c")

	var events []int
	_, err := o.Optimize(context.Background(), in, func(done, total, percent, offset int, updated []subtitle.Segment) {
		events = append(events, percent)
		if total != 3 {
			t.Fatalf("unexpected total %d", total)
		}
		if len(updated) == 0 {
			t.Fatal("expected updated segments in progress event")
		}
	})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(events) != 2 || events[len(events)-1] != 100 {
		t.Fatalf("unexpected progress events: %v", events)
	}
}

func TestOptimizeKeepsOriginalOnMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "sorry, I cannot help with that"}},
			},
		})
		w.Write(body)
	}))
	defer server.Close()
	client := llm.NewClient(llm.Config{APIKey: "sk", BaseURL: server.URL, Model: "m"})

	o := New(client, Options{Threads: 1, BatchSize: 10})
	in := transcript("keep", "me")
	out, err := o.Optimize(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if out.Segments[0].Text != "keep" || out.Segments[1].Text != "me" {
		t.Fatalf("original text lost: %+v", out.Segments)
	}
}

func TestOptimizeFailsStageOnProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()
	client := llm.NewClient(llm.Config{APIKey: "sk", BaseURL: server.URL, Model: "m"})

	o := New(client, Options{Threads: 2, BatchSize: 1})
	_, err := o.Optimize(context.Background(), transcript("a", "b", "c"), nil)
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestOptimizeRequiresClient(t *testing.T) {
	o := New(nil, Options{})
	_, err := o.Optimize(context.Background(), transcript("a"), nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
