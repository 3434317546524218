package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
)

const defaultMaxResults = 5

// TavilyClient calls the Tavily search API.
type TavilyClient struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

func NewTavilyClient(apiKey, baseURL string, hc *http.Client) *TavilyClient {
	if hc == nil {
		hc = &http.Client{}
	}
	return &TavilyClient{APIKey: apiKey, BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Configured reports whether an API key is present.
func (c *TavilyClient) Configured() bool {
	return c != nil && strings.TrimSpace(c.APIKey) != ""
}

func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("Missing Tavily API key")
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	body, err := json.Marshal(searchRequest{APIKey: c.APIKey, Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tavily search: status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	var out searchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("tavily search: decode: %w", err)
	}
	if len(out.Results) > maxResults {
		out.Results = out.Results[:maxResults]
	}
	return out.Results, nil
}

type webSearchSettings struct {
	MaxResults int `mapstructure:"max_results"`
}

func searchQuery(data map[string]any) string {
	if q := firstString(data, "search_query", "query", "question"); q != "" {
		return q
	}
	return "general search"
}

// WebSearch searches the web for the extracted query.
func WebSearch(client *TavilyClient) Func {
	return func(ctx context.Context, in Input) model.ToolResult {
		query := searchQuery(in.Data)
		var s webSearchSettings
		_ = decodeSettings(in.Runtime.Settings, &s)

		if !client.Configured() {
			return model.FailedResult(ImplWebSearch, "Web search unavailable: Tavily API key not configured",
				"Missing Tavily API key", map[string]any{"query": query})
		}
		results, err := client.Search(ctx, query, s.MaxResults)
		if err != nil {
			return model.FailedResult(ImplWebSearch, "Web search failed: "+err.Error(), err.Error(), map[string]any{"query": query})
		}
		summary := fmt.Sprintf("Found %d results for: %s", len(results), query)
		return model.ToolResult{
			Success: true,
			Type:    ImplWebSearch,
			Message: summary,
			Summary: summary,
			Data: map[string]any{
				"query":        query,
				"engine":       "tavily",
				"results":      resultMaps(results),
				"result_count": len(results),
			},
		}
	}
}

func resultMaps(results []SearchResult) []any {
	out := make([]any, len(results))
	for i, r := range results {
		out[i] = map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"snippet": r.Content,
			"score":   r.Score,
		}
	}
	return out
}
