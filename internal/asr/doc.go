// Package asr produces transcripts from audio with whisper.cpp.
//
// The transcriber shells out to the whisper-cli binary, streams its stdout
// to derive progress from the emitted cue timestamps, and filters
// non-speech cues from the resulting SRT. The subprocess is the one place
// cancellation is not cooperative: the process group receives SIGTERM and,
// after a grace period, SIGKILL.
package asr
