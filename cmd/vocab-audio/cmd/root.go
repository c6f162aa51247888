package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/book-expert/logger"
	"github.com/spf13/cobra"

	"github.com/book-expert/vocab-audio-service/internal/config"
)

const defaultConfigPath = "configs/vocab-audio.toml"

const cliLogName = "vocab-audio-cli.log"

// ErrNoInputText indicates that neither stdin, a file nor arguments carried
// any text.
var ErrNoInputText = errors.New("no input text")

var (
	cfgFile  string
	modeName string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "vocab-audio",
	Short: "Spaced-repetition audio tracks from vocabulary sets",
	Long: `vocab-audio turns text into listening practice.

Commands:
  extract  - split text into a learning set CSV with a chat model
  track    - synthesize a learning set into one audio track
  say      - synthesize a single utterance
  submit   - send a track job to the vocab-audio-service over NATS`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file (default: "+defaultConfigPath+")")
	rootCmd.PersistentFlags().StringVarP(&modeName, "mode", "m", "",
		"Learning mode name as defined in the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

// loadConfig reads the TOML configuration from --config or the default path.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// cliLogger writes tool diagnostics into the temp directory, keeping stdout
// for command output.
func cliLogger() (*logger.Logger, error) {
	log, err := logger.New(os.TempDir(), cliLogName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// getInputText collects the command's text: piped stdin wins, then a file
// named by the first argument, then the arguments themselves.
func getInputText(args []string) (string, error) {
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read standard input: %w", err)
		}

		return string(data), nil
	}

	if len(args) > 0 {
		_, err := os.Stat(args[0])
		if err == nil {
			data, readErr := os.ReadFile(args[0])
			if readErr != nil {
				return "", fmt.Errorf("failed to read input file: %w", readErr)
			}

			return string(data), nil
		}

		return strings.Join(args, " "), nil
	}

	return "", nil
}
