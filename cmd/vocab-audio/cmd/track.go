package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/book-expert/vocab-audio-service/internal/config"
	"github.com/book-expert/vocab-audio-service/internal/fileutil"
	"github.com/book-expert/vocab-audio-service/internal/schedule"
	"github.com/book-expert/vocab-audio-service/internal/track"
	"github.com/book-expert/vocab-audio-service/internal/vocab"
)

var (
	trackOut      string
	trackLookBack int
)

var trackCmd = &cobra.Command{
	Use:     "track <csv-file>",
	Aliases: []string{"settts"},
	Short:   "Synthesize a learning set into one audio track",
	Long: `Reads a learning set CSV and builds a single spaced-repetition audio
track from it. Every entry is heard four times up front and once more
after a short delay.

Examples:
  vocab-audio track set.csv -o practice.mp3
  vocab-audio track --mode slovak-english --look-back 3 set.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runTrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)

	trackCmd.Flags().StringVarP(&trackOut, "out", "o", "",
		"Output audio file (default: derived from the CSV and mode names)")
	trackCmd.Flags().IntVar(&trackLookBack, "look-back", 0,
		"Material units before an entry is reviewed (default from config)")
}

func runTrack(_ *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mode, err := cfg.Mode(modeName)
	if err != nil {
		return err
	}

	set, err := vocab.ReadFile(args[0])
	if err != nil {
		return err
	}

	scheduleOptions := cfg.ScheduleOptions()
	if trackLookBack > 0 {
		scheduleOptions.LookBack = trackLookBack
	}

	sched, err := schedule.Build(set.Entries, mode, scheduleOptions)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Printf("Learning set: %d entries, mode %s\n", set.Len(), mode.Name)
		fmt.Printf("Schedule: %d utterances, %d reviews\n", len(sched), sched.Reviews())
	}

	builtTrack, err := assembleTrack(ctx, cfg, sched)
	if err != nil {
		return err
	}

	outPath := trackOut
	if outPath == "" {
		outPath = defaultTrackName(args[0], mode.Name, cfg.TrackExtension())
	}

	err = builtTrack.WriteFile(outPath)
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s: %d utterances (%d synthesized), %s, %s\n",
		outPath,
		builtTrack.Slots,
		builtTrack.Synthesized,
		fileutil.FormatDuration(builtTrack.Duration.Seconds()),
		fileutil.FormatFileSize(int64(len(builtTrack.Data))),
	)

	return nil
}

// assembleTrack wires the configured backend to an assembler and builds the
// whole track.
func assembleTrack(
	ctx context.Context,
	cfg *config.Config,
	sched schedule.Schedule,
) (track.Track, error) {
	log, err := cliLogger()
	if err != nil {
		return track.Track{}, err
	}

	defer func() {
		_ = log.Close()
	}()

	synthesizer, err := cfg.Synthesizer(log)
	if err != nil {
		return track.Track{}, err
	}

	assemblyOptions, err := cfg.AssemblyOptions()
	if err != nil {
		return track.Track{}, err
	}

	assembler := track.NewAssembler(synthesizer, assemblyOptions)

	builtTrack, err := assembler.Assemble(ctx, sched)
	if err != nil {
		return track.Track{}, err
	}

	return builtTrack, nil
}

// defaultTrackName derives an output filename from the learning set file
// and the mode.
func defaultTrackName(csvPath, mode, extension string) string {
	base := strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))

	return fileutil.SanitizeFilename(base+"-"+mode) + extension
}
