// Package wyoming implements a client for the Wyoming protocol spoken by
// Piper text-to-speech servers.
//
// Wyoming protocol format (per event):
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>   (if payload_length > 0)
package wyoming

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/vocab-audio-service/internal/core"
	"github.com/book-expert/vocab-audio-service/internal/wav"
)

// ErrUnsupportedProsody indicates that rate, volume or pitch adjustments
// were requested from a backend that cannot apply them. Piper voices play
// at their trained pace; modes that shift prosody need the HTTP or command
// line backend instead.
var ErrUnsupportedProsody = errors.New("wyoming backend does not support prosody adjustments")

// ErrNoEndpoint indicates the synthesizer was built without a server address.
var ErrNoEndpoint = errors.New("no wyoming endpoint configured")

// ErrServer wraps error events reported by the Wyoming server.
var ErrServer = errors.New("wyoming server error")

// Connection defaults.
const (
	dialTimeout     = 10 * time.Second
	defaultDeadline = 30 * time.Second
)

// Audio defaults used when the server omits them from audio-start.
const (
	defaultSampleRate = 22050
	defaultChannels   = 1
	defaultWidth      = 2
	bitsPerByte       = 8
)

// defaultVoices maps ISO-639-1 language codes to Piper voice model names.
var defaultVoices = map[string]string{
	"en": "en_US-lessac-medium",
	"sk": "sk_SK-lili-medium",
	"cs": "cs_CZ-jirka-medium",
	"de": "de_DE-thorsten-medium",
	"fr": "fr_FR-siwis-medium",
	"es": "es_ES-mls_10246-low",
	"it": "it_IT-riccardo-x_low",
	"pt": "pt_BR-faber-medium",
	"nl": "nl_NL-mls-medium",
	"pl": "pl_PL-darkman-medium",
	"ru": "ru_RU-ruslan-medium",
}

// Synthesizer implements core.Synthesizer against a Piper Wyoming server.
// Connections are opened per request; there is no session state to close.
type Synthesizer struct {
	endpoint string
	voices   map[string]string
}

// New creates a synthesizer for the given host:port endpoint. Entries in
// voices override the default voice per language code.
func New(endpoint string, voices map[string]string) *Synthesizer {
	endpoint = strings.TrimPrefix(endpoint, "tcp://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	merged := make(map[string]string, len(defaultVoices)+len(voices))
	for language, voice := range defaultVoices {
		merged[language] = voice
	}

	for language, voice := range voices {
		merged[language] = voice
	}

	return &Synthesizer{
		endpoint: endpoint,
		voices:   merged,
	}
}

// Synthesize sends text to the server and returns the synthesized audio as
// WAV. Requests carrying non-neutral rate, volume or pitch are rejected
// before any connection is made.
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	text string,
	params core.ParamSet,
) (core.AudioSegment, error) {
	if text == "" {
		return core.AudioSegment{}, core.ErrEmptyText
	}

	if s.endpoint == "" {
		return core.AudioSegment{}, ErrNoEndpoint
	}

	err := checkProsody(params)
	if err != nil {
		return core.AudioSegment{}, err
	}

	voice := params.Voice
	if voice == "" {
		voice = s.voices[params.Language]
	}

	dialer := net.Dialer{Timeout: dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", s.endpoint)
	if err != nil {
		return core.AudioSegment{}, fmt.Errorf("failed to connect to wyoming server at %s: %w", s.endpoint, err)
	}
	defer conn.Close()

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		deadline = time.Now().Add(defaultDeadline)
	}

	_ = conn.SetDeadline(deadline)

	synthEvent := event{
		Type: "synthesize",
		Data: map[string]any{
			"text": text,
			"voice": map[string]any{
				"name": voice,
			},
		},
		PayloadLength: 0,
	}

	err = writeEvent(conn, synthEvent, nil)
	if err != nil {
		return core.AudioSegment{}, fmt.Errorf("failed to send synthesize event: %w", err)
	}

	format, pcm, err := readAudio(conn)
	if err != nil {
		return core.AudioSegment{}, err
	}

	file := wav.File{Format: format, PCM: pcm}

	return core.AudioSegment{
		Data:     wav.FromPCM(pcm, format),
		Duration: file.Duration(),
	}, nil
}

// checkProsody rejects parameters the protocol has no way to express.
func checkProsody(params core.ParamSet) error {
	rateNeutral := params.Rate == 0 || params.Rate == core.NeutralRate
	volumeNeutral := params.Volume == 0 || params.Volume == core.NeutralVolume

	if !rateNeutral || !volumeNeutral || params.PitchHz != 0 {
		return fmt.Errorf(
			"%w: rate %.2f, volume %.2f, pitch %.1fHz",
			ErrUnsupportedProsody, params.Rate, params.Volume, params.PitchHz,
		)
	}

	return nil
}

// readAudio consumes response events until audio-stop, collecting PCM chunks:
// audio-start -> audio-chunk* -> audio-stop.
func readAudio(conn net.Conn) (wav.Format, []byte, error) {
	format := wav.Format{
		SampleRate:    defaultSampleRate,
		Channels:      defaultChannels,
		BitsPerSample: defaultWidth * bitsPerByte,
	}

	var pcm bytes.Buffer

	for {
		evt, payload, err := readEvent(conn)
		if err != nil {
			return wav.Format{}, nil, fmt.Errorf("failed to read wyoming event: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			if rate, found := evt.Data["rate"].(float64); found {
				format.SampleRate = int(rate)
			}

			if channels, found := evt.Data["channels"].(float64); found {
				format.Channels = int(channels)
			}

			if width, found := evt.Data["width"].(float64); found {
				format.BitsPerSample = int(width) * bitsPerByte
			}
		case "audio-chunk":
			if len(payload) > 0 {
				pcm.Write(payload)
			}
		case "audio-stop":
			return format, pcm.Bytes(), nil
		case "error":
			message := "unknown error"
			if text, found := evt.Data["text"].(string); found {
				message = text
			}

			return wav.Format{}, nil, fmt.Errorf("%w: %s", ErrServer, message)
		}
	}
}

// event is one Wyoming protocol frame.
type event struct {
	Type          string         `json:"type"`
	Data          map[string]any `json:"data,omitempty"`
	PayloadLength int            `json:"payload_length,omitempty"`
}

// writeEvent sends an event over the connection.
func writeEvent(writer io.Writer, evt event, payload []byte) error {
	evt.PayloadLength = 0 // length travels in the header line, not the JSON

	jsonBytes, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	header := fmt.Sprintf("%d %d\n", len(jsonBytes), len(payload))

	_, err = io.WriteString(writer, header)
	if err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	_, err = writer.Write(jsonBytes)
	if err != nil {
		return fmt.Errorf("failed to write event json: %w", err)
	}

	_, err = io.WriteString(writer, "\n")
	if err != nil {
		return fmt.Errorf("failed to write event terminator: %w", err)
	}

	if len(payload) > 0 {
		_, err = writer.Write(payload)
		if err != nil {
			return fmt.Errorf("failed to write payload: %w", err)
		}
	}

	return nil
}

// readEvent reads one event from the connection.
func readEvent(reader io.Reader) (event, []byte, error) {
	headerLine, err := readHeaderLine(reader)
	if err != nil {
		return event{}, nil, err
	}

	jsonLen, payloadLen, err := parseHeader(headerLine)
	if err != nil {
		return event{}, nil, err
	}

	// Read JSON plus its trailing newline.
	jsonBuf := make([]byte, jsonLen+1)

	_, err = io.ReadFull(reader, jsonBuf)
	if err != nil {
		return event{}, nil, fmt.Errorf("failed to read event json: %w", err)
	}

	var evt event

	err = json.Unmarshal(jsonBuf[:jsonLen], &evt)
	if err != nil {
		return event{}, nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)

		_, err = io.ReadFull(reader, payload)
		if err != nil {
			return event{}, nil, fmt.Errorf("failed to read payload: %w", err)
		}
	}

	return evt, payload, nil
}

func readHeaderLine(reader io.Reader) (string, error) {
	headerBuf := make([]byte, 0, 64)
	oneByte := make([]byte, 1)

	for {
		_, err := io.ReadFull(reader, oneByte)
		if err != nil {
			return "", fmt.Errorf("failed to read header: %w", err)
		}

		if oneByte[0] == '\n' {
			return string(headerBuf), nil
		}

		headerBuf = append(headerBuf, oneByte[0])
	}
}

func parseHeader(line string) (int, int, error) {
	first, second, found := strings.Cut(line, " ")
	if !found {
		return 0, 0, fmt.Errorf("%w: invalid header %q", ErrServer, line)
	}

	jsonLen, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse json length: %w", err)
	}

	payloadLen, err := strconv.Atoi(strings.TrimSpace(second))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse payload length: %w", err)
	}

	return jsonLen, payloadLen, nil
}
