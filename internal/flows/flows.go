// Package flows implements the AI collaborator services: conversational
// chat, image generation and editing, image-grounded queries, text
// transforms, text-to-speech, and the web-search tool.
//
// All services run on an explicitly constructed Genkit instance injected at
// startup. There is no lazy module-level client; the application entry point
// owns the lifecycle.
package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Sentinel errors for flow operations.
var (
	// ErrNoImageProduced indicates the model call succeeded but returned no
	// image. Treated as a failure even though the call itself did not error.
	ErrNoImageProduced = errors.New("no image produced")

	// ErrUnknownStyle indicates an unsupported rephrase style.
	ErrUnknownStyle = errors.New("unknown rephrase style")
)

// DefaultModel is the provider-qualified model used when a request does not
// name one, or names one outside the allow-list.
const DefaultModel = "googleai/gemini-2.0-flash"

// validModels is the allow-list for caller-selected chat models.
var validModels = map[string]bool{
	"gemini-2.0-flash": true,
	"gemini-2.5-flash": true,
}

// Image and speech model identifiers.
const (
	imageGenModel  = "googleai/gemini-2.0-flash-exp"
	imageEditModel = "googleai/gemini-2.0-flash-preview-image-generation"
	ttsModel       = "googleai/gemini-2.5-flash-preview-tts"
)

// Config contains the required parameters for the flow service.
type Config struct {
	Genkit *genkit.Genkit
	Logger *slog.Logger

	// Search configures the web-search tool. An empty APIKey leaves the
	// tool registered but degraded: it reports itself unconfigured
	// instead of failing the generation.
	Search SearchConfig
}

// Service exposes the AI collaborator operations. Safe for concurrent use;
// all state is captured immutably at construction.
type Service struct {
	g          *genkit.Genkit
	logger     *slog.Logger
	searchTool ai.Tool
}

// New creates the flow service and registers the search tool with Genkit.
// Construct once per Genkit instance: tool registration is global.
func New(cfg Config) (*Service, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	search := cfg.Search
	if search.HTTPClient == nil {
		search.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if search.MaxResults <= 0 {
		search.MaxResults = 5
	}

	s := &Service{
		g:      cfg.Genkit,
		logger: logger,
	}
	s.searchTool = defineSearchTool(cfg.Genkit, search, logger)

	logger.Info("flow service initialized", "search_configured", search.APIKey != "")
	return s, nil
}

// resolveModel maps a caller-supplied model name to a provider-qualified
// name, falling back to DefaultModel for anything outside the allow-list.
func resolveModel(model string) string {
	name := strings.TrimPrefix(model, "googleai/")
	if validModels[name] {
		return "googleai/" + name
	}
	return DefaultModel
}

// firstMediaURL returns the first media part's URL from a model response,
// or "" when the response carries no media.
func firstMediaURL(resp *ai.ModelResponse) string {
	if resp == nil || resp.Message == nil {
		return ""
	}
	for _, part := range resp.Message.Content {
		if part.IsMedia() && part.Text != "" {
			return part.Text
		}
	}
	return ""
}

// dataURIContentType extracts the MIME type from a data URI, or "" when the
// reference is not a data URI.
func dataURIContentType(uri string) string {
	if !strings.HasPrefix(uri, "data:") {
		return ""
	}
	rest := strings.TrimPrefix(uri, "data:")
	if i := strings.IndexAny(rest, ";,"); i >= 0 {
		return rest[:i]
	}
	return ""
}

func mediaPart(dataURI string) *ai.Part {
	return ai.NewMediaPart(dataURIContentType(dataURI), dataURI)
}

// generateText is the shared single-prompt text generation used by the
// transform flows.
func (s *Service) generateText(ctx context.Context, system, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(DefaultModel),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("model returned an empty response")
	}
	return text, nil
}
