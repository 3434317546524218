package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
	"github.com/cloudwego/eino/components/retriever"
	"golang.org/x/sync/errgroup"
)

type dualSettings struct {
	TopK       int `mapstructure:"top_k"`
	MaxResults int `mapstructure:"max_results"`
}

type branch struct {
	results []any
	err     error
}

func (b branch) envelope() map[string]any {
	if b.err != nil {
		return map[string]any{"success": false, "error": b.err.Error()}
	}
	return map[string]any{"success": true, "results": b.results, "result_count": len(b.results)}
}

// DualSearch queries the local retriever and the web in parallel. A failing
// branch does not cancel the other; the join succeeds when either succeeds.
func DualSearch(local retriever.Retriever, web *TavilyClient) Func {
	return func(ctx context.Context, in Input) model.ToolResult {
		query := searchQuery(in.Data)
		var s dualSettings
		_ = decodeSettings(in.Runtime.Settings, &s)

		var localRes, webRes branch
		g := new(errgroup.Group)
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					localRes = branch{err: fmt.Errorf("local search panic: %v", p)}
				}
			}()
			localRes = searchLocal(ctx, local, query, s.TopK)
			return nil
		})
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					webRes = branch{err: fmt.Errorf("web search panic: %v", p)}
				}
			}()
			webRes = searchWeb(ctx, web, query, s.MaxResults)
			return nil
		})
		_ = g.Wait()

		data := map[string]any{
			"query": query,
			"local": localRes.envelope(),
			"web":   webRes.envelope(),
		}
		if localRes.err != nil && webRes.err != nil {
			errMsg := fmt.Sprintf("local: %v; web: %v", localRes.err, webRes.err)
			return model.FailedResult(ImplDualSearch, "Both searches failed", errMsg, data)
		}
		if localRes.err != nil {
			logx.Warn().Err(localRes.err).Msg("local search failed, using web only")
		}
		if webRes.err != nil {
			logx.Warn().Err(webRes.err).Msg("web search failed, using local only")
		}

		var parts []string
		if localRes.err == nil {
			parts = append(parts, fmt.Sprintf("%d local", len(localRes.results)))
		}
		if webRes.err == nil {
			parts = append(parts, fmt.Sprintf("%d web", len(webRes.results)))
		}
		summary := fmt.Sprintf("Found %s results for: %s", strings.Join(parts, " and "), query)
		return model.ToolResult{
			Success: true,
			Type:    ImplDualSearch,
			Message: summary,
			Summary: summary,
			Data:    data,
		}
	}
}

func searchLocal(ctx context.Context, r retriever.Retriever, query string, topK int) branch {
	if r == nil {
		return branch{err: fmt.Errorf("local retriever not configured")}
	}
	var opts []retriever.Option
	if topK > 0 {
		opts = append(opts, retriever.WithTopK(topK))
	}
	docs, err := r.Retrieve(ctx, query, opts...)
	if err != nil {
		return branch{err: err}
	}
	out := make([]any, 0, len(docs))
	for _, d := range docs {
		item := map[string]any{"id": d.ID, "content": d.Content, "score": d.Score()}
		if title, ok := d.MetaData["title"]; ok {
			item["title"] = title
		}
		out = append(out, item)
	}
	return branch{results: out}
}

func searchWeb(ctx context.Context, c *TavilyClient, query string, maxResults int) branch {
	results, err := c.Search(ctx, query, maxResults)
	if err != nil {
		return branch{err: err}
	}
	return branch{results: resultMaps(results)}
}
