package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/book-expert/vocab-audio-service/internal/extract"
)

// extractTimeout bounds a single chat completion request.
const extractTimeout = 2 * time.Minute

var (
	extractOut      string
	extractProvider string
)

var extractCmd = &cobra.Command{
	Use:     "extract [text|file]",
	Aliases: []string{"learningset"},
	Short:   "Split text into a learning set CSV",
	Long: `Splits text into sentences and short chunks with translations and
writes them as a learning set CSV. The chunks of each sentence come
before the sentence itself, so the parts are heard before the whole.

Examples:
  vocab-audio extract -o set.csv chapter.txt
  cat chapter.txt | vocab-audio extract -o set.csv
  vocab-audio extract --provider local -o set.csv "Pes šteká. Mačka spí."`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "Output CSV file")
	extractCmd.Flags().StringVar(&extractProvider, "provider", "",
		"Extraction provider name (default from config)")

	_ = extractCmd.MarkFlagRequired("out")
}

func runExtract(_ *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	text, err := getInputText(args)
	if err != nil {
		return err
	}

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

	providerCfg, err := cfg.Provider(extractProvider)
	if err != nil {
		return err
	}

	extractor := extract.NewExtractor(extract.Provider{
		BaseURL:  providerCfg.BaseURL,
		Model:    providerCfg.Model,
		Authless: providerCfg.Authless,
	}, extractTimeout)

	extractor.SetProgress(func(index, total int, sentence string) {
		fmt.Printf("Processing %d/%d: %s\n", index, total, sentence)
	})

	fmt.Println("Extracting sentences...")

	set, err := extractor.LearningSet(ctx, text, mode.Fallback.Language)
	if err != nil {
		return err
	}

	err = set.WriteFile(extractOut)
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s: %d entries\n", extractOut, set.Len())

	return nil
}
