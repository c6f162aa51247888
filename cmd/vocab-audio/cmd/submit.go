package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/book-expert/vocab-audio-service/internal/events"
	"github.com/book-expert/vocab-audio-service/internal/fileutil"
	"github.com/book-expert/vocab-audio-service/internal/objectstore"
	"github.com/book-expert/vocab-audio-service/internal/vocab"
)

// submitTimeout covers the upload, the job and the reply; track synthesis
// dominates it.
const submitTimeout = 5 * time.Minute

const downloadFilePermissions = 0o600

var (
	submitOut      string
	submitLookBack int
)

var submitCmd = &cobra.Command{
	Use:   "submit <csv-file>",
	Short: "Send a track job to the vocab-audio-service",
	Long: `Uploads a learning set to the service's object store, publishes a
track job over NATS and waits for the finished track. The result is
downloaded next to the configured output directory unless --out names
a file.

Examples:
  vocab-audio submit set.csv
  vocab-audio submit set.csv -o practice.mp3`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVarP(&submitOut, "out", "o", "",
		"Download the finished track to this file")
	submitCmd.Flags().IntVar(&submitLookBack, "look-back", 0,
		"Material units before an entry is reviewed (default from the service)")
}

func runSubmit(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	setData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read learning set file: %w", err)
	}

	// Validate locally before bothering the service.
	set, err := vocab.ReadCSV(bytes.NewReader(setData))
	if err != nil {
		return err
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to get JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.VocabObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	setKey := objectstore.SetKey()

	err = store.Upload(ctx, setKey, setData)
	if err != nil {
		return err
	}

	fmt.Printf("Submitted %s: %d entries as %s\n", args[0], set.Len(), setKey)

	reply, err := requestTrack(natsConnection, cfg.NATS.TrackJobsSubject, setKey)
	if err != nil {
		return err
	}

	fmt.Printf("Track %s: %d utterances (%d synthesized), %s\n",
		reply.TrackKey,
		reply.Slots,
		reply.Synthesized,
		fileutil.FormatDuration(reply.DurationSeconds),
	)

	outPath := submitOut
	if outPath == "" {
		if cfg.Paths.OutputDir == "" {
			return nil
		}

		outPath = filepath.Join(cfg.Paths.OutputDir, filepath.Base(reply.TrackKey))
	}

	return downloadTrack(ctx, store, reply.TrackKey, outPath)
}

// requestTrack publishes the job event and waits for the service's reply.
func requestTrack(
	natsConnection *nats.Conn,
	subject, setKey string,
) (*events.TrackCreatedEvent, error) {
	job := events.TrackJobEvent{
		Header: events.Header{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		SetKey:   setKey,
		Mode:     modeName,
		LookBack: submitLookBack,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal track job: %w", err)
	}

	replyMsg, err := natsConnection.Request(subject, jobData, submitTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to get a reply from the service: %w", err)
	}

	var reply events.TrackCreatedEvent

	err = json.Unmarshal(replyMsg.Data, &reply)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal reply event: %w", err)
	}

	return &reply, nil
}

func downloadTrack(
	ctx context.Context,
	store *objectstore.NatsObjectStore,
	trackKey, outPath string,
) error {
	trackData, err := store.Download(ctx, trackKey)
	if err != nil {
		return err
	}

	dir := filepath.Dir(outPath)
	if dir != "." {
		err = fileutil.EnsureDir(dir)
		if err != nil {
			return err
		}
	}

	err = os.WriteFile(outPath, trackData, downloadFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to write track file: %w", err)
	}

	fmt.Printf("Downloaded to %s (%s)\n",
		outPath, fileutil.FormatFileSize(int64(len(trackData))))

	return nil
}
