// Package extract builds vocabulary learning sets out of raw book text.
//
// The extractor sends cleaned text to an OpenAI-compatible chat completions
// service and asks for learning items as JSON: full sentences with their
// translations, and the short chunks those sentences are built from. A
// local llama.cpp or LM Studio server works as well as the hosted API.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/book-expert/vocab-audio-service/internal/vocab"
)

// API paths and headers.
const (
	chatCompletionsPath = "/chat/completions"
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	contentTypeJSON     = "application/json"
	apiKeyEnvVar        = "OPENAI_API_KEY"
)

// Default values.
const (
	defaultTemperature = 0.2
	maxErrorBodyBytes  = 2048
)

// Prompt templates. The first placeholder takes the fallback language
// code, the second the text to process.
const (
	sentencesPromptTemplate = "Please split the text into sentences. " +
		"Please use the language with code '%s' as fallback language. " +
		"Please include the original sentence as the target language. " +
		"Please translate the sentences into the fallback language. " +
		"Text to process: %s"

	chunksPromptTemplate = "Please split the text into short chunks. " +
		"The chunk should consist of around 1 to 3 words and should be " +
		"translatable by retaining the meaning. " +
		"Compound words should be kept intact. " +
		"The chunk should not be longer than around 20 characters. " +
		"Very common words can be ignored unless appearing within a compound word. " +
		"Please use the language with code '%s' as fallback language. " +
		"Please include the original chunk as the target language. " +
		"Please translate the chunk into the fallback language. " +
		"Text to process: %s"

	schemaInstruction = `Respond with a JSON object of the form ` +
		`{"items": [{"target_language_text": "...", "fallback_language_text": "..."}]} ` +
		`and nothing else.`
)

// ErrNoText indicates that nothing remained of the input after cleaning.
var ErrNoText = errors.New("no text to extract from")

// ErrNoChoices indicates an empty reply from the chat service.
var ErrNoChoices = errors.New("no choices returned from chat service")

// ErrNoItems indicates the model reply contained no usable learning items.
var ErrNoItems = errors.New("no learning items in model reply")

// Provider identifies an OpenAI-compatible chat completions service.
type Provider struct {
	// BaseURL is the API root including any version prefix, for example
	// "https://api.openai.com/v1" or "http://localhost:8080/v1".
	BaseURL string

	// Model names the completion model to request.
	Model string

	// Authless disables the Authorization header, for local servers that
	// reject unexpected bearer tokens.
	Authless bool
}

// Extractor asks a chat completions service for learning items.
type Extractor struct {
	provider   Provider
	cleaner    *Cleaner
	httpClient *http.Client
	apiKey     string
	progress   func(index, total int, sentence string)
}

// NewExtractor creates an extractor for the given provider. The API key is
// read from OPENAI_API_KEY unless the provider is authless.
func NewExtractor(provider Provider, timeout time.Duration) *Extractor {
	apiKey := ""
	if !provider.Authless {
		apiKey = os.Getenv(apiKeyEnvVar)
	}

	return &Extractor{
		provider: provider,
		cleaner:  NewCleaner(),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:   apiKey,
		progress: nil,
	}
}

// SetProgress installs a callback invoked before each sentence of a
// learning set is split into chunks.
func (e *Extractor) SetProgress(progress func(index, total int, sentence string)) {
	e.progress = progress
}

// Sentences splits text into sentences, each paired with its translation
// into the fallback language.
func (e *Extractor) Sentences(
	ctx context.Context,
	text string,
	fallbackLanguage string,
) (vocab.Set, error) {
	entries, err := e.extract(ctx, sentencesPromptTemplate, text, fallbackLanguage)
	if err != nil {
		return vocab.Set{}, fmt.Errorf("failed to extract sentences: %w", err)
	}

	return vocab.Set{Entries: entries}, nil
}

// Chunks splits text into short translatable chunks of one to three words,
// each paired with its translation into the fallback language.
func (e *Extractor) Chunks(
	ctx context.Context,
	text string,
	fallbackLanguage string,
) (vocab.Set, error) {
	entries, err := e.extract(ctx, chunksPromptTemplate, text, fallbackLanguage)
	if err != nil {
		return vocab.Set{}, fmt.Errorf("failed to extract chunks: %w", err)
	}

	return vocab.Set{Entries: entries}, nil
}

// LearningSet builds the full learning set for a piece of text: the text is
// split into sentences, every sentence is split into chunks, and each
// sentence follows the chunks it is built from. Hearing the parts first
// makes the whole sentence land on prepared ground.
func (e *Extractor) LearningSet(
	ctx context.Context,
	text string,
	fallbackLanguage string,
) (vocab.Set, error) {
	sentences, err := e.Sentences(ctx, text, fallbackLanguage)
	if err != nil {
		return vocab.Set{}, err
	}

	var set vocab.Set

	for i, sentence := range sentences.Entries {
		if e.progress != nil {
			e.progress(i+1, len(sentences.Entries), sentence.Target)
		}

		chunks, err := e.Chunks(ctx, sentence.Target, fallbackLanguage)
		if err != nil {
			return vocab.Set{}, err
		}

		set.Entries = append(set.Entries, chunks.Entries...)
		set.Entries = append(set.Entries, sentence)
	}

	return set, nil
}

// chatRequest is the Chat Completions API payload.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// learningItem mirrors the JSON schema the model is instructed to emit.
type learningItem struct {
	TargetLanguageText   string `json:"target_language_text"`
	FallbackLanguageText string `json:"fallback_language_text"`
}

func (e *Extractor) extract(
	ctx context.Context,
	promptTemplate string,
	text string,
	fallbackLanguage string,
) ([]vocab.Entry, error) {
	cleaned := e.cleaner.Clean(text)
	if cleaned == "" {
		return nil, ErrNoText
	}

	prompt := fmt.Sprintf(promptTemplate, fallbackLanguage, cleaned)

	content, err := e.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return parseItems(content)
}

// complete runs one chat completion and returns the reply content.
func (e *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: e.provider.Model,
		Messages: []chatMessage{
			{Role: "system", Content: schemaInstruction},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    defaultTemperature,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := strings.TrimSuffix(e.provider.BaseURL, "/") + chatCompletionsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeJSON)

	if e.apiKey != "" {
		req.Header.Set(headerAuthorization, "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send chat request to %s: %w", e.provider.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

		return "", fmt.Errorf("chat service returned non-OK status: %s, body: %s",
			resp.Status, string(respBody))
	}

	var chatResp chatResponse

	err = json.NewDecoder(resp.Body).Decode(&chatResp)
	if err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return chatResp.Choices[0].Message.Content, nil
}

// parseItems decodes the model reply into vocabulary entries. Items without
// target text are dropped.
func parseItems(content string) ([]vocab.Entry, error) {
	var payload struct {
		Items []learningItem `json:"items"`
	}

	err := json.Unmarshal([]byte(stripFences(content)), &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model reply: %w", err)
	}

	entries := make([]vocab.Entry, 0, len(payload.Items))

	for _, item := range payload.Items {
		if item.TargetLanguageText == "" {
			continue
		}

		entries = append(entries, vocab.Entry{
			Target:   item.TargetLanguageText,
			Fallback: item.FallbackLanguageText,
		})
	}

	if len(entries) == 0 {
		return nil, ErrNoItems
	}

	return entries, nil
}

// stripFences removes a markdown code fence around the reply. Some models
// wrap JSON output in fences even when asked not to.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	return strings.TrimSpace(trimmed)
}
