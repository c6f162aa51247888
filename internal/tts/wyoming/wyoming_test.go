// Package wyoming_test tests the Wyoming protocol client against an
// in-process fake server.
package wyoming_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/vocab-audio-service/internal/core"
	"github.com/book-expert/vocab-audio-service/internal/tts/wyoming"
	"github.com/book-expert/vocab-audio-service/internal/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func neutralParams(language string) core.ParamSet {
	return core.ParamSet{
		Language: language,
		Voice:    "",
		Rate:     1.0,
		Volume:   1.0,
		PitchHz:  0,
	}
}

// receivedSynthesize captures what the fake server saw in the synthesize
// event, checked on the test goroutine after the call returns.
type receivedSynthesize struct {
	text  string
	voice string
}

func readSynthesize(conn net.Conn) (receivedSynthesize, error) {
	reader := bufio.NewReader(conn)

	header, err := reader.ReadString('\n')
	if err != nil {
		return receivedSynthesize{}, fmt.Errorf("read header: %w", err)
	}

	first, second, _ := strings.Cut(strings.TrimSpace(header), " ")

	jsonLen, err := strconv.Atoi(first)
	if err != nil {
		return receivedSynthesize{}, fmt.Errorf("parse json length: %w", err)
	}

	payloadLen, err := strconv.Atoi(second)
	if err != nil {
		return receivedSynthesize{}, fmt.Errorf("parse payload length: %w", err)
	}

	jsonBuf := make([]byte, jsonLen+1)

	_, err = io.ReadFull(reader, jsonBuf)
	if err != nil {
		return receivedSynthesize{}, fmt.Errorf("read json: %w", err)
	}

	var evt struct {
		Type string `json:"type"`
		Data struct {
			Text  string `json:"text"`
			Voice struct {
				Name string `json:"name"`
			} `json:"voice"`
		} `json:"data"`
	}

	err = json.Unmarshal(jsonBuf[:jsonLen], &evt)
	if err != nil {
		return receivedSynthesize{}, fmt.Errorf("unmarshal event: %w", err)
	}

	if payloadLen > 0 {
		_, err = io.CopyN(io.Discard, reader, int64(payloadLen))
		if err != nil {
			return receivedSynthesize{}, fmt.Errorf("discard payload: %w", err)
		}
	}

	return receivedSynthesize{text: evt.Data.Text, voice: evt.Data.Voice.Name}, nil
}

func writeServerEvent(conn net.Conn, eventType string, data map[string]any, payload []byte) error {
	evt := map[string]any{"type": eventType}
	if data != nil {
		evt["data"] = data
	}

	jsonBytes, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = fmt.Fprintf(conn, "%d %d\n", len(jsonBytes), len(payload))
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	_, err = conn.Write(append(jsonBytes, '\n'))
	if err != nil {
		return fmt.Errorf("write json: %w", err)
	}

	if len(payload) > 0 {
		_, err = conn.Write(payload)
		if err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}

	return nil
}

// serveOnce runs a single-connection fake Wyoming server. The handler is
// invoked after the synthesize event has been consumed.
func serveOnce(t *testing.T, handler func(conn net.Conn)) (string, <-chan receivedSynthesize) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = listener.Close()
	})

	received := make(chan receivedSynthesize, 1)

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}

		defer conn.Close()

		request, readErr := readSynthesize(conn)
		if readErr != nil {
			return
		}

		received <- request

		handler(conn)
	}()

	return listener.Addr().String(), received
}

func TestSynthesizer_Synthesize(t *testing.T) {
	t.Parallel()

	// 32000 bytes at 16 kHz 16-bit mono is exactly one second.
	pcm := bytes.Repeat([]byte{0xAB, 0xCD}, 16000)

	addr, received := serveOnce(t, func(conn net.Conn) {
		_ = writeServerEvent(conn, "audio-start",
			map[string]any{"rate": 16000, "channels": 1, "width": 2}, nil)
		_ = writeServerEvent(conn, "audio-chunk", nil, pcm[:16000])
		_ = writeServerEvent(conn, "audio-chunk", nil, pcm[16000:])
		_ = writeServerEvent(conn, "audio-stop", nil, nil)
	})

	synth := wyoming.New(addr, map[string]string{"sk": "sk_SK-custom-voice"})

	segment, err := synth.Synthesize(context.Background(), "pes", neutralParams("sk"))
	require.NoError(t, err)

	request := <-received
	assert.Equal(t, "pes", request.text)
	assert.Equal(t, "sk_SK-custom-voice", request.voice)

	file, err := wav.Decode(segment.Data)
	require.NoError(t, err)

	expectedFormat := wav.Format{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
	assert.Equal(t, expectedFormat, file.Format)
	assert.Equal(t, pcm, file.PCM)
	assert.Equal(t, time.Second, segment.Duration)
}

func TestSynthesizer_DefaultVoice(t *testing.T) {
	t.Parallel()

	addr, received := serveOnce(t, func(conn net.Conn) {
		_ = writeServerEvent(conn, "audio-start",
			map[string]any{"rate": 22050, "channels": 1, "width": 2}, nil)
		_ = writeServerEvent(conn, "audio-chunk", nil, []byte{0x00, 0x00})
		_ = writeServerEvent(conn, "audio-stop", nil, nil)
	})

	synth := wyoming.New(addr, nil)

	_, err := synth.Synthesize(context.Background(), "hello", neutralParams("en"))
	require.NoError(t, err)

	request := <-received
	assert.Equal(t, "en_US-lessac-medium", request.voice)
}

func TestSynthesizer_ServerError(t *testing.T) {
	t.Parallel()

	addr, _ := serveOnce(t, func(conn net.Conn) {
		_ = writeServerEvent(conn, "error", map[string]any{"text": "voice model missing"}, nil)
	})

	synth := wyoming.New(addr, nil)

	_, err := synth.Synthesize(context.Background(), "pes", neutralParams("sk"))
	require.Error(t, err)
	assert.ErrorIs(t, err, wyoming.ErrServer)
	assert.Contains(t, err.Error(), "voice model missing")
}

func TestSynthesizer_RejectsProsody(t *testing.T) {
	t.Parallel()

	synth := wyoming.New("localhost:10200", nil)

	params := neutralParams("sk")
	params.Rate = 0.9

	_, err := synth.Synthesize(context.Background(), "pes", params)
	require.Error(t, err)
	assert.ErrorIs(t, err, wyoming.ErrUnsupportedProsody)

	params = neutralParams("en")
	params.PitchHz = 20

	_, err = synth.Synthesize(context.Background(), "dog", params)
	require.Error(t, err)
	assert.ErrorIs(t, err, wyoming.ErrUnsupportedProsody)
}

func TestSynthesizer_EmptyText(t *testing.T) {
	t.Parallel()

	synth := wyoming.New("localhost:10200", nil)

	_, err := synth.Synthesize(context.Background(), "", neutralParams("sk"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyText)
}

func TestSynthesizer_NoEndpoint(t *testing.T) {
	t.Parallel()

	synth := wyoming.New("", nil)

	_, err := synth.Synthesize(context.Background(), "pes", neutralParams("sk"))
	require.Error(t, err)
	assert.ErrorIs(t, err, wyoming.ErrNoEndpoint)
}
