package asr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// cacheKey derives a stable filename from the audio content and the options
// that change whisper.cpp output.
func (t *Transcriber) cacheKey(audioPath, modelPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	fmt.Fprintf(h, "|%s|%s|%t", filepath.Base(modelPath), t.opts.Language, t.opts.WordTimestamps)
	return hex.EncodeToString(h.Sum(nil)) + ".srt", nil
}

// cachedSRT returns the cached raw SRT for the key, if present.
func (t *Transcriber) cachedSRT(key string) ([]byte, bool) {
	if t.opts.CacheDir == "" || key == "" {
		return nil, false
	}
	raw, err := os.ReadFile(filepath.Join(t.opts.CacheDir, key))
	if err != nil {
		return nil, false
	}
	return raw, true
}

// storeSRT writes the raw SRT into the cache. Failures only cost the next
// run a re-transcription, so they are not propagated.
func (t *Transcriber) storeSRT(key string, raw []byte) {
	if t.opts.CacheDir == "" || key == "" {
		return
	}
	if err := os.MkdirAll(t.opts.CacheDir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(t.opts.CacheDir, key), raw, 0o644)
}
