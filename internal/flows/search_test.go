package flows

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/patooworld/omni/internal/log"
)

func TestRunSearchWithoutAPIKey(t *testing.T) {
	got := runSearch(context.Background(), SearchConfig{}, log.NewNop(), "weather in oslo")
	if !strings.Contains(got, "Web search is not available") {
		t.Errorf("runSearch() = %q, want unavailability explanation", got)
	}
}

func TestRunSearchDegradesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := SearchConfig{
		APIKey:     "test-key",
		HTTPClient: srv.Client(),
		MaxResults: 3,
		endpoint:   srv.URL,
	}
	got := runSearch(context.Background(), cfg, log.NewNop(), "weather in oslo")

	// Failures degrade to an explanation instead of erroring the generation.
	if !strings.Contains(got, "Web search failed") {
		t.Errorf("runSearch() = %q, want failure explanation", got)
	}
}

func TestTavilySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tavilyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.APIKey != "test-key" {
			t.Errorf("api_key = %q, want %q", req.APIKey, "test-key")
		}
		if req.Query != "weather in oslo" {
			t.Errorf("query = %q, want %q", req.Query, "weather in oslo")
		}
		if req.SearchDepth != "advanced" || !req.IncludeAnswer {
			t.Errorf("search_depth = %q include_answer = %v, want advanced/true", req.SearchDepth, req.IncludeAnswer)
		}
		if req.MaxResults != 3 {
			t.Errorf("max_results = %d, want 3", req.MaxResults)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"answer": "Cloudy, 12C.",
			"results": []map[string]string{
				{"title": "Oslo weather", "url": "https://example.com/oslo", "content": "Cloudy"},
			},
		})
	}))
	defer srv.Close()

	cfg := SearchConfig{
		APIKey:     "test-key",
		HTTPClient: srv.Client(),
		MaxResults: 3,
		endpoint:   srv.URL,
	}
	got, err := tavilySearch(context.Background(), cfg, "weather in oslo")
	if err != nil {
		t.Fatalf("tavilySearch() error = %v", err)
	}
	for _, want := range []string{"Cloudy, 12C.", "Oslo weather", "https://example.com/oslo"} {
		if !strings.Contains(got, want) {
			t.Errorf("result missing %q:\n%s", want, got)
		}
	}
}

func TestTavilySearchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := SearchConfig{
		APIKey:     "bad-key",
		HTTPClient: srv.Client(),
		endpoint:   srv.URL,
	}
	_, err := tavilySearch(context.Background(), cfg, "anything")
	if err == nil {
		t.Fatal("tavilySearch() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %v, want to mention status 401", err)
	}
}
