package asr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"captioner/internal/logging"
	"captioner/internal/services"
	"captioner/internal/subtitle"
)

const (
	// killGracePeriod is how long the subprocess gets to exit after
	// SIGTERM before the whole process group is killed.
	killGracePeriod = 3 * time.Second

	// chinesePrompt biases whisper.cpp toward simplified Chinese output.
	chinesePrompt = "你好，我们需要使用简体中文，以下是普通话的句子。"
)

// Options configure the transcriber.
type Options struct {
	WhisperBinary string
	FFmpegBinary  string
	// ModelsDir is searched for ggml model files when Model is not a path.
	ModelsDir string
	// Model selects the ggml model: either a file path or a substring
	// matched against *ggml*<model>*.bin in ModelsDir.
	Model          string
	Language       string
	Threads        int
	TimeoutSeconds int
	// WordTimestamps asks whisper.cpp for per-word cues, which downstream
	// sentence splitting needs.
	WordTimestamps bool
	// CacheDir enables caching raw whisper.cpp output keyed by audio
	// checksum plus options. Empty disables the cache.
	CacheDir string
	Logger   *slog.Logger
}

// ProgressFunc receives transcription progress, 0-100.
type ProgressFunc func(percent int, message string)

// Transcriber runs whisper.cpp over WAV audio.
type Transcriber struct {
	opts   Options
	logger *slog.Logger

	// runCommand overrides subprocess execution in tests. It must create
	// outputPath + ".srt".
	runCommand func(ctx context.Context, name string, args []string, onStdout func(line string)) error
}

// New builds a transcriber. Binaries default to whisper-cli and ffmpeg on
// PATH.
func New(opts Options) *Transcriber {
	if opts.WhisperBinary == "" {
		opts.WhisperBinary = "whisper-cli"
	}
	if opts.FFmpegBinary == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Transcriber{opts: opts, logger: logging.NewComponentLogger(logger, "asr")}
}

// WithCommandRunner sets a custom subprocess runner (for testing).
func (t *Transcriber) WithCommandRunner(runner func(ctx context.Context, name string, args []string, onStdout func(line string)) error) {
	t.runCommand = runner
}

// Transcribe runs whisper.cpp over the audio file and returns the filtered
// transcript. The audio must be a 16kHz mono WAV.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string, progress ProgressFunc) (*subtitle.Transcript, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	if !strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		return nil, services.Wrap(services.ErrConfiguration, "asr", "transcribe",
			fmt.Sprintf("%s is not a WAV file", audioPath), nil)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "asr", "transcribe",
			fmt.Sprintf("audio file %s not readable", audioPath), err)
	}

	modelPath, err := t.resolveModel()
	if err != nil {
		return nil, err
	}

	key, kerr := t.cacheKey(audioPath, modelPath)
	if kerr != nil {
		key = ""
	}
	if raw, ok := t.cachedSRT(key); ok {
		if cached, perr := subtitle.ParseSRT(raw); perr == nil {
			t.logger.Info("transcription cache hit", logging.String("key", key))
			subtitle.RemoveNonSpeech(cached)
			progress(100, "transcription complete")
			return cached, nil
		}
	}

	totalSeconds := t.probeDuration(ctx, audioPath)

	workDir, err := os.MkdirTemp("", "captioner-asr-*")
	if err != nil {
		return nil, fmt.Errorf("asr: temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	outputPrefix := filepath.Join(workDir, "transcript")
	args := t.buildArgs(modelPath, audioPath, outputPrefix)

	if t.opts.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t.opts.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	t.logger.Info("starting whisper.cpp",
		logging.String("model", filepath.Base(modelPath)),
		logging.String("language", t.opts.Language),
		logging.Int("duration_seconds", totalSeconds))

	lastPercent := 0
	onStdout := func(line string) {
		seconds, ok := parseCueTimestamp(line)
		if !ok || totalSeconds <= 0 {
			return
		}
		percent := seconds * 100 / totalSeconds
		if percent > 98 {
			percent = 98
		}
		if percent > lastPercent {
			lastPercent = percent
			progress(percent, fmt.Sprintf("transcribing %d%%", percent))
		}
	}

	run := t.runCommand
	if run == nil {
		run = t.runProcess
	}
	if err := run(ctx, t.opts.WhisperBinary, args, onStdout); err != nil {
		return nil, t.classify(ctx, err)
	}

	srtPath := outputPrefix + ".srt"
	raw, err := os.ReadFile(srtPath)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "asr", "transcribe",
			fmt.Sprintf("whisper.cpp produced no output at %s", srtPath), err)
	}
	transcript, err := subtitle.ParseSRT(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "asr", "transcribe", "unparseable whisper.cpp output", err)
	}
	t.storeSRT(key, raw)

	stats := subtitle.RemoveNonSpeech(transcript)
	if stats.RemovedCues > 0 {
		t.logger.Info("dropped non-speech cues", logging.Int("removed", stats.RemovedCues))
	}
	progress(100, "transcription complete")
	return transcript, nil
}

// resolveModel accepts a direct file path or searches the models directory
// for a ggml file matching the configured name.
func (t *Transcriber) resolveModel() (string, error) {
	model := strings.TrimSpace(t.opts.Model)
	if model == "" {
		return "", services.Wrap(services.ErrConfiguration, "asr", "model", "no whisper model configured", nil)
	}
	if info, err := os.Stat(model); err == nil && !info.IsDir() {
		return model, nil
	}

	pattern := filepath.Join(t.opts.ModelsDir, "*ggml*"+strings.TrimSuffix(model, ".bin")+"*.bin")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", services.Wrap(services.ErrConfiguration, "asr", "model",
			fmt.Sprintf("no model matching %q under %s", model, t.opts.ModelsDir), err)
	}
	return matches[0], nil
}

func (t *Transcriber) buildArgs(modelPath, audioPath, outputPrefix string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-l", t.opts.Language,
		"--output-srt",
		"--output-file", outputPrefix,
	}
	if t.opts.Threads > 0 {
		args = append(args, "-t", fmt.Sprintf("%d", t.opts.Threads))
	}
	if t.opts.WordTimestamps {
		args = append(args, "--max-len", "1", "--split-on-word")
	}
	if t.opts.Language == "zh" {
		args = append(args, "--prompt", chinesePrompt)
	}
	return args
}

// runProcess starts the binary in its own process group and streams stdout.
// On context cancellation the group gets SIGTERM, then SIGKILL after the
// grace period.
func (t *Transcriber) runProcess(ctx context.Context, name string, args []string, onStdout func(line string)) error {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("asr: stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrConfiguration, "asr", "start",
			fmt.Sprintf("cannot start %s", name), err)
	}
	pgid := cmd.Process.Pid

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			t.terminateGroup(pgid)
		case <-watchDone:
		}
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		onStdout(scanner.Text())
	}

	err = cmd.Wait()
	close(watchDone)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return ctx.Err()
}

func (t *Transcriber) terminateGroup(pgid int) {
	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil {
		return
	}
	t.logger.Info("sent SIGTERM to whisper.cpp process group", logging.Int("pgid", pgid))
	time.Sleep(killGracePeriod)
	if err := unix.Kill(-pgid, unix.SIGKILL); err == nil {
		t.logger.Warn("whisper.cpp required SIGKILL", logging.Int("pgid", pgid))
	}
}

func (t *Transcriber) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return services.Wrap(services.ErrCancelled, "asr", "transcribe", "transcription cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "asr", "transcribe", "transcription timed out", err)
	case errors.Is(err, services.ErrConfiguration):
		return err
	default:
		return services.Wrap(services.ErrProvider, "asr", "transcribe", "whisper.cpp failed", err)
	}
}

// probeDuration asks ffmpeg for the audio length. Zero means unknown; the
// progress callback then only fires at completion.
func (t *Transcriber) probeDuration(ctx context.Context, audioPath string) int {
	cmd := exec.CommandContext(ctx, t.opts.FFmpegBinary, "-hide_banner", "-i", audioPath)
	// ffmpeg exits non-zero without an output file; the Duration line on
	// stderr is all we need.
	output, _ := cmd.CombinedOutput()
	seconds, ok := parseFFmpegDuration(string(output))
	if !ok {
		t.logger.Debug("could not probe audio duration", logging.String("path", audioPath))
		return 0
	}
	return seconds
}
