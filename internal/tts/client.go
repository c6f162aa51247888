// Package tts adapts learning-mode playback parameters to concrete speech
// synthesis backends. All backends implement core.Synthesizer; prosody
// values travel in the signed-offset notation the services expect.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/vocab-audio-service/internal/core"
)

// API endpoints and paths.
const (
	apiSynthesize = "/v1/synthesize"
	apiHealth     = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeMP3    = "audio/mpeg"
	contentTypeWAV    = "audio/wav"
	acceptAudio       = contentTypeMP3 + ", " + contentTypeWAV
)

// Default values.
const defaultLanguage = "en"

// Error messages.
const (
	errFmtUnexpectedContentType = "unexpected content type: expected audio, got %s"
	errFmtServiceErrorWithCode  = "speech service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus    = "speech service returned non-OK status: %s, body: %s"
)

// ErrEmptyAudio indicates the backend reported success but returned no audio.
var ErrEmptyAudio = errors.New("received empty audio data")

// Client calls a speech synthesis HTTP service. It encapsulates the HTTP
// configuration and provides speech generation and health monitoring.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Request defines the JSON payload for synthesis requests. Rate, Volume and
// Pitch carry signed offsets in the service's prosody notation, for example
// "-10%" or "+20Hz".
type Request struct {
	// Text contains the input text to convert to speech. Must be non-empty.
	Text string `json:"text"`

	// Language is the language code of the text (e.g. "sk", "en").
	Language string `json:"language"`

	// Voice optionally names a specific voice. If empty, the service
	// picks its default voice for the language.
	Voice string `json:"voice,omitempty"`

	// Rate is the playback rate offset, e.g. "+0%" or "-10%".
	Rate string `json:"rate"`

	// Volume is the volume offset, e.g. "+0%".
	Volume string `json:"volume"`

	// Pitch is the pitch offset, e.g. "+0Hz" or "+20Hz".
	Pitch string `json:"pitch"`
}

// ErrorResponse represents a structured error reply from the service.
type ErrorResponse struct {
	// Detail contains a human-readable error description.
	Detail string `json:"detail"`

	// ErrorCode provides a machine-readable error classification.
	ErrorCode string `json:"error_code,omitempty"`
}

// NewClient creates and configures an HTTP client for the speech service.
// The baseURL should include the protocol and port (e.g. "http://localhost:5500").
// The timeout applies to all HTTP requests made by this client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize renders text with the given playback parameters. It implements
// core.Synthesizer on top of the HTTP service, translating the multiplier
// and hertz values into the service's prosody notation.
func (c *Client) Synthesize(
	ctx context.Context,
	text string,
	params core.ParamSet,
) (core.AudioSegment, error) {
	rate := params.Rate
	if rate == 0 {
		rate = core.NeutralRate
	}

	volume := params.Volume
	if volume == 0 {
		volume = core.NeutralVolume
	}

	language := params.Language
	if language == "" {
		language = defaultLanguage
	}

	request := Request{
		Text:     text,
		Language: language,
		Voice:    params.Voice,
		Rate:     FormatRate(rate),
		Volume:   FormatVolume(volume),
		Pitch:    FormatPitch(params.PitchHz),
	}

	audioData, contentType, err := c.Generate(ctx, request)
	if err != nil {
		return core.AudioSegment{}, err
	}

	duration, err := segmentDuration(audioData, contentType)
	if err != nil {
		return core.AudioSegment{}, err
	}

	return core.AudioSegment{Data: audioData, Duration: duration}, nil
}

// Generate sends a synthesis request and returns the raw audio data together
// with its content type. The service replies with MP3 or WAV depending on
// how it is deployed; callers branch on the returned content type.
func (c *Client) Generate(ctx context.Context, req Request) ([]byte, string, error) {
	// Validate required input at the boundary
	if req.Text == "" {
		return nil, "", core.ErrEmptyText
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + apiSynthesize

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, acceptAudio)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf(
			"failed to send request to speech service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeMP3 && contentType != contentTypeWAV {
		return nil, "", fmt.Errorf(errFmtUnexpectedContentType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, "", ErrEmptyAudio
	}

	return audioData, contentType, nil
}

// HealthCheck verifies that the speech service is running and operational.
// Run it before processing large workloads to fail fast with clear
// diagnostics when the service is unavailable.
func (c *Client) HealthCheck(ctx context.Context) error {
	url := c.baseURL + apiHealth

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf(
			"health check failed for service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// parseErrorResponse attempts to decode a structured JSON error from the
// service. If structured parsing fails, it falls back to the raw response
// body so diagnostic information is preserved.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errorResp ErrorResponse

	err := json.NewDecoder(resp.Body).Decode(&errorResp)
	if err == nil {
		return fmt.Errorf(errFmtServiceErrorWithCode,
			resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	// Fallback to raw response for non-JSON errors
	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf(
		errFmtServiceNonOKStatus,
		resp.Status,
		string(body),
	)
}
