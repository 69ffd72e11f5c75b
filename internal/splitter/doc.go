// Package splitter regroups word-level transcripts into sentence cues.
//
// The semantic strategy asks an LLM to place sentence boundaries inside
// each batch of words; the fixed strategy packs words up to the configured
// per-script limit without network calls. Either way the result keeps every
// word's timing: a sentence spans from its first word's start to its last
// word's end.
package splitter
