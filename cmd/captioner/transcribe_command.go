package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"captioner/internal/asr"
	"captioner/internal/notifications"
	"captioner/internal/subtitle"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var languageFlag string
	var modelFlag string
	var wordTimestamps bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio.wav>",
		Short: "Transcribe WAV audio with whisper.cpp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audio := strings.TrimSpace(args[0])
			if audio == "" {
				return fmt.Errorf("audio file path is required")
			}
			audio, _ = filepath.Abs(audio)

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			language := cfg.Transcribe.Language
			if strings.TrimSpace(languageFlag) != "" {
				language = strings.TrimSpace(languageFlag)
			}
			model := cfg.Transcribe.Model
			if strings.TrimSpace(modelFlag) != "" {
				model = strings.TrimSpace(modelFlag)
			}
			output := strings.TrimSpace(outputPath)
			if output == "" {
				output = strings.TrimSuffix(audio, filepath.Ext(audio)) + ".srt"
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			transcriber := asr.New(asr.Options{
				WhisperBinary:  cfg.WhisperBinary(),
				FFmpegBinary:   cfg.FFmpegBinary(),
				ModelsDir:      cfg.Paths.ModelsDir,
				Model:          model,
				Language:       language,
				Threads:        cfg.Transcribe.Threads,
				TimeoutSeconds: cfg.Transcribe.TimeoutSeconds,
				WordTimestamps: wordTimestamps,
				CacheDir:       filepath.Join(cfg.Paths.CacheDir, "asr"),
				Logger:         logger,
			})

			out := cmd.OutOrStdout()
			printer := newProgressPrinter(out)
			transcript, err := transcriber.Transcribe(runCtx, audio, printer.Update)
			printer.Done()
			if err != nil {
				return err
			}

			if err := subtitle.WriteFile(transcript, output, subtitle.LayoutOriginalOnly, ""); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(out, "Wrote %s (%d segments)\n", output, transcript.Len())
			_ = notifications.NewService(cfg).NotifyTranscriptionCompleted(runCtx, filepath.Base(audio), transcript.Len())
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output SRT path (default: audio path with .srt)")
	cmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Spoken language code (default from config)")
	cmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Whisper model name or path (default from config)")
	cmd.Flags().BoolVar(&wordTimestamps, "word-timestamps", false, "Emit one cue per word for later sentence splitting")
	return cmd
}
