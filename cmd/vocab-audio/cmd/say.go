package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/book-expert/vocab-audio-service/internal/core"
	"github.com/book-expert/vocab-audio-service/internal/fileutil"
)

const sayFilePermissions = 0o600

var (
	sayOut      string
	sayFallback bool
)

var sayCmd = &cobra.Command{
	Use:     "say [text|file]",
	Aliases: []string{"tts"},
	Short:   "Synthesize a single utterance",
	Long: `Synthesizes one piece of text with the mode's target-language voice
and parameters. With --fallback the fallback side is spoken instead.

Examples:
  vocab-audio say -o pes.mp3 "pes"
  echo "dog" | vocab-audio say --fallback -o dog.mp3`,
	RunE: runSay,
}

func init() {
	rootCmd.AddCommand(sayCmd)

	sayCmd.Flags().StringVarP(&sayOut, "out", "o", "", "Output audio file")
	sayCmd.Flags().BoolVar(&sayFallback, "fallback", false,
		"Speak with the fallback-language parameters")

	_ = sayCmd.MarkFlagRequired("out")
}

func runSay(_ *cobra.Command, args []string) error {
	text, err := getInputText(args)
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return ErrNoInputText
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mode, err := cfg.Mode(modeName)
	if err != nil {
		return err
	}

	side := core.SideTarget
	if sayFallback {
		side = core.SideFallback
	}

	params, err := mode.Resolve(side)
	if err != nil {
		return err
	}

	log, err := cliLogger()
	if err != nil {
		return err
	}

	defer func() {
		_ = log.Close()
	}()

	synthesizer, err := cfg.Synthesizer(log)
	if err != nil {
		return err
	}

	segment, err := synthesizer.Synthesize(context.Background(), text, params)
	if err != nil {
		return err
	}

	err = os.WriteFile(sayOut, segment.Data, sayFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	fmt.Printf("Wrote %s: %s, %s\n",
		sayOut,
		fileutil.FormatDuration(segment.Duration.Seconds()),
		fileutil.FormatFileSize(int64(len(segment.Data))),
	)

	return nil
}
