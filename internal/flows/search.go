package flows

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// SearchConfig configures the Tavily-backed web-search tool.
type SearchConfig struct {
	// APIKey is the Tavily API key. Empty leaves the tool degraded.
	APIKey string

	// HTTPClient is used for Tavily requests. Defaults to a 30 second
	// timeout client.
	HTTPClient *http.Client

	// MaxResults caps returned search results. Defaults to 5.
	MaxResults int

	// endpoint overrides the Tavily API URL in tests.
	endpoint string
}

// searchInput is the model-facing tool input schema.
type searchInput struct {
	Query string `json:"query" jsonschema_description:"The search query to look up on the web"`
}

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// defineSearchTool registers the web-search tool with Genkit. The tool never
// returns an error to the model: a missing API key or a failed request
// produces an explanatory string so the generation can still complete.
func defineSearchTool(g *genkit.Genkit, cfg SearchConfig, logger *slog.Logger) ai.Tool {
	return genkit.DefineTool(
		g,
		"searchTool",
		"Search the web for up-to-date information on a topic. "+
			"Use this for current events, live data such as weather, or facts you do not know.",
		func(toolCtx *ai.ToolContext, input searchInput) (string, error) {
			return runSearch(toolCtx.Context, cfg, logger, input.Query), nil
		},
	)
}

// runSearch executes one search tool invocation. It always returns a string
// for the model: a missing API key or a failed request degrades to an
// explanation instead of failing the generation.
func runSearch(ctx context.Context, cfg SearchConfig, logger *slog.Logger, query string) string {
	if cfg.APIKey == "" {
		logger.Warn("search tool invoked without an API key")
		return "Web search is not available: no search API key is configured. " +
			"Answer from your own knowledge and tell the user that live search is unavailable."
	}

	result, err := tavilySearch(ctx, cfg, query)
	if err != nil {
		logger.Warn("web search failed", "query", query, "error", err)
		return fmt.Sprintf("Web search failed (%v). Answer from your own knowledge "+
			"and tell the user that live results could not be retrieved.", err)
	}
	return result
}

// tavilySearch calls the Tavily search API and formats the response for the
// model, with source URLs for attribution.
func tavilySearch(ctx context.Context, cfg SearchConfig, query string) (string, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:        cfg.APIKey,
		Query:         query,
		SearchDepth:   "advanced",
		IncludeAnswer: true,
		MaxResults:    cfg.MaxResults,
	})
	if err != nil {
		return "", fmt.Errorf("encoding search request: %w", err)
	}

	endpoint := cfg.endpoint
	if endpoint == "" {
		endpoint = tavilyEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling search API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("search API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding search response: %w", err)
	}

	return formatSearchResults(query, parsed), nil
}

// formatSearchResults renders a Tavily response as a compact summary the
// model can cite, listing each source with its URL.
func formatSearchResults(query string, resp tavilyResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)

	if resp.Answer != "" {
		fmt.Fprintf(&b, "\nSummary: %s\n", resp.Answer)
	}

	if len(resp.Results) == 0 && resp.Answer == "" {
		b.WriteString("\nNo results found.")
		return b.String()
	}

	for i, r := range resp.Results {
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Content != "" {
			fmt.Fprintf(&b, "   %s\n", r.Content)
		}
	}
	return b.String()
}
