package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
)

type apiAuth struct {
	Type   string `mapstructure:"type"`
	EnvKey string `mapstructure:"env_key"`
	Name   string `mapstructure:"name"`
}

type apiSettings struct {
	BaseURL       string            `mapstructure:"base_url"`
	Method        string            `mapstructure:"method"`
	QueryParamKey string            `mapstructure:"query_param_key"`
	ParamMap      map[string]string `mapstructure:"param_map"`
	Headers       map[string]string `mapstructure:"headers"`
	Auth          apiAuth           `mapstructure:"auth"`
	Timeout       int               `mapstructure:"timeout"`
}

// APIRetrieval calls a configured HTTP endpoint with parameters mapped from
// the extracted data.
func APIRetrieval(hc *http.Client) Func {
	return func(ctx context.Context, in Input) model.ToolResult {
		var s apiSettings
		if err := decodeSettings(in.Runtime.Settings, &s); err != nil {
			return model.FailedResult(ImplAPIRetrieval, "Invalid api_retrieval configuration", err.Error(), in.Data)
		}
		if strings.TrimSpace(s.BaseURL) == "" {
			return model.FailedResult(ImplAPIRetrieval, "Missing required config: base_url", "Invalid configuration", in.Data)
		}
		method := strings.ToUpper(strings.TrimSpace(s.Method))
		if method == "" {
			method = http.MethodGet
		}
		timeout := 15 * time.Second
		if s.Timeout > 0 {
			timeout = time.Duration(s.Timeout) * time.Second
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		params := map[string]any{}
		query := firstString(in.Data, "query", "search_query")
		if s.QueryParamKey != "" && query != "" {
			params[s.QueryParamKey] = query
		}
		for from, to := range s.ParamMap {
			if v, ok := in.Data[from]; ok && !model.IsEmptyValue(v) {
				params[to] = v
			}
		}
		headers := map[string]string{}
		for k, v := range s.Headers {
			headers[k] = v
		}
		if s.Auth.EnvKey != "" && s.Auth.Name != "" {
			if token := os.Getenv(s.Auth.EnvKey); token != "" {
				switch strings.ToLower(s.Auth.Type) {
				case "header":
					headers[s.Auth.Name] = token
				case "query":
					params[s.Auth.Name] = token
				}
			}
		}

		req, err := buildAPIRequest(ctx, method, s.BaseURL, params, headers)
		if err != nil {
			return model.FailedResult(ImplAPIRetrieval, "API request failed: "+err.Error(), err.Error(), map[string]any{"query": query})
		}
		requestInfo := map[string]any{"url": s.BaseURL, "method": method, "headers": maskHeaders(headers)}

		resp, err := hc.Do(req)
		if err != nil {
			return model.FailedResult(ImplAPIRetrieval, "API request failed: "+err.Error(), err.Error(),
				map[string]any{"query": query, "request": requestInfo})
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return model.FailedResult(ImplAPIRetrieval, "API response read failed: "+err.Error(), err.Error(),
				map[string]any{"query": query, "request": requestInfo})
		}
		var payload any
		if err := json.Unmarshal(raw, &payload); err != nil {
			payload = nil
		}

		summary := fmt.Sprintf("API %s %d for %s", method, resp.StatusCode, s.BaseURL)
		if query != "" {
			summary += fmt.Sprintf(" | query='%s'", truncate(query, 50))
		}
		res := model.ToolResult{
			Success: resp.StatusCode >= 200 && resp.StatusCode < 300,
			Type:    ImplAPIRetrieval,
			Message: summary,
			Summary: summary,
			Data: map[string]any{
				"query":       query,
				"status_code": resp.StatusCode,
				"json":        payload,
				"text":        string(raw),
				"request":     requestInfo,
			},
		}
		if !res.Success {
			res.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return res
	}
}

func buildAPIRequest(ctx context.Context, method, base string, params map[string]any, headers map[string]string) (*http.Request, error) {
	var req *http.Request
	if method == http.MethodGet {
		u, err := url.Parse(base)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		for k, v := range params {
			q.Set(k, fmt.Sprint(v))
		}
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, err
		}
	} else {
		body, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		req, err = http.NewRequestWithContext(ctx, method, base, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func maskHeaders(h map[string]string) map[string]any {
	out := make(map[string]any, len(h))
	for k, v := range h {
		if strings.HasPrefix(strings.ToLower(k), "authorization") || strings.Contains(strings.ToLower(k), "key") {
			out[k] = "***"
			continue
		}
		out[k] = v
	}
	return out
}
