package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"captioner/internal/notifications"
	"captioner/internal/pipeline"
	"captioner/internal/subtitle"
	"captioner/internal/task"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var videoPath string
	var layoutFlag string
	var splitFlag bool
	var optimizeFlag bool
	var translateFlag bool
	var allLayouts bool

	cmd := &cobra.Command{
		Use:   "process <subtitle-file>",
		Short: "Run the subtitle pipeline on an SRT file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.TrimSpace(args[0])
			if input == "" {
				return fmt.Errorf("subtitle file path is required")
			}
			input, _ = filepath.Abs(input)
			if info, err := os.Stat(input); err != nil {
				return fmt.Errorf("subtitle file %q not readable: %w", input, err)
			} else if info.IsDir() {
				return fmt.Errorf("%q is a directory", input)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("split") {
				cfg.Pipeline.NeedSplit = splitFlag
			}
			if cmd.Flags().Changed("optimize") {
				cfg.Pipeline.NeedOptimize = optimizeFlag
			}
			if cmd.Flags().Changed("translate") {
				cfg.Pipeline.NeedTranslate = translateFlag
			}
			if strings.TrimSpace(layoutFlag) != "" {
				cfg.Subtitles.Layout = layoutFlag
			}

			output := strings.TrimSpace(outputPath)
			if output == "" {
				ext := filepath.Ext(input)
				output = strings.TrimSuffix(input, ext) + "." + cfg.Translator.TargetLanguage + ext
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}

			unlock, err := ctx.lockData(cfg)
			if err != nil {
				return err
			}
			defer unlock()

			store, err := ctx.openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			usage, err := ctx.openLedger(cfg)
			if err != nil {
				return err
			}
			defer usage.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			video := strings.TrimSpace(videoPath)
			tk, err := store.New(runCtx, input, output, video, "{}", video != "")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printer := newProgressPrinter(out)
			var final *subtitle.Transcript

			ctrl := pipeline.New(cfg, store, usage, notifications.NewService(cfg), logger)
			err = ctrl.Run(runCtx, tk, pipeline.Events{
				Progress:   printer.Update,
				Transcript: func(tr *subtitle.Transcript) { final = tr },
				Error: func(message string) {
					printer.Done()
					fmt.Fprintf(out, "Failed: %s\n", message)
				},
			})
			printer.Done()
			if err != nil {
				if tk.Status == task.StatusCancelled {
					fmt.Fprintln(out, "Terminated")
				}
				return err
			}

			fmt.Fprintf(out, "Wrote %s (%d segments)\n", output, final.Len())

			if allLayouts {
				if err := writeLayoutVariants(final, output, cfg.Subtitles.Style, out); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output subtitle path (default: input with target language suffix)")
	cmd.Flags().StringVar(&videoPath, "video", "", "Video file a follow-on task will burn the subtitles into")
	cmd.Flags().StringVar(&layoutFlag, "layout", "", "Subtitle layout (original_on_top, translation_on_top, original_only, translation_only)")
	cmd.Flags().BoolVar(&splitFlag, "split", false, "Override the configured sentence-split toggle")
	cmd.Flags().BoolVar(&optimizeFlag, "optimize", false, "Override the configured optimize toggle")
	cmd.Flags().BoolVar(&translateFlag, "translate", false, "Override the configured translate toggle")
	cmd.Flags().BoolVar(&allLayouts, "all-layouts", false, "Additionally write every layout variant next to the output")
	return cmd
}

// writeLayoutVariants renders one file per layout next to the main output,
// suffixed with the layout name.
func writeLayoutVariants(t *subtitle.Transcript, outputPath, style string, out io.Writer) error {
	ext := filepath.Ext(outputPath)
	base := strings.TrimSuffix(outputPath, ext)
	for _, layout := range subtitle.Layouts() {
		path := base + "." + string(layout) + ext
		if err := subtitle.WriteFile(t, path, layout, style); err != nil {
			return fmt.Errorf("write layout variant %s: %w", path, err)
		}
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
	return nil
}
