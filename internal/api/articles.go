package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/abelbrown/watchfloor/internal/enrich"
	"github.com/abelbrown/watchfloor/internal/model"
)

// ArticleQuery narrows QueryArticles. Zero values are omitted.
type ArticleQuery struct {
	Limit    int
	Offset   int
	SourceID string
	Status   model.Status
}

func (q ArticleQuery) values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.SourceID != "" {
		v.Set("source_id", q.SourceID)
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	return v
}

// ListSources returns the article sources.
func (c *Client) ListSources(ctx context.Context) ([]model.Source, error) {
	body, err := c.getJSON(ctx, "/api/sources", nil)
	if err != nil {
		return nil, err
	}
	return decodeEach(coerceList(body, "sources", "data", "items", "results"), "source", wireSource.toModel), nil
}

// QueryArticles returns articles. Unrecognized response layouts yield an
// empty slice, not an error.
func (c *Client) QueryArticles(ctx context.Context, q ArticleQuery) ([]model.Article, error) {
	body, err := c.getJSON(ctx, "/api/articles", q.values())
	if err != nil {
		return nil, err
	}
	return decodeEach(coerceList(body, "articles", "data", "items", "results"), "article", wireArticle.toModel), nil
}

// UpdateStatus sets an article's triage status.
func (c *Client) UpdateStatus(ctx context.Context, articleID string, status model.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	path := "/api/articles/" + url.PathEscape(articleID) + "/status"
	_, err := c.do(ctx, http.MethodPatch, path, nil, map[string]string{"status": string(status)})
	return err
}

// Summarize asks the backend for executive and technical summaries.
func (c *Client) Summarize(ctx context.Context, articleID string) (model.Summary, error) {
	path := "/api/articles/" + url.PathEscape(articleID) + "/summarize"
	body, err := c.do(ctx, http.MethodPost, path, nil, struct{}{})
	if err != nil {
		return model.Summary{}, err
	}

	var resp struct {
		Executive string `json:"executive_summary"`
		Technical string `json:"technical_summary"`
		Model     string `json:"model"`
		Enriched  string `json:"enrichment_model"`
	}
	if err := json.Unmarshal(unwrapObject(body, "summary"), &resp); err != nil {
		return model.Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	if resp.Executive == "" && resp.Technical == "" {
		return model.Summary{}, fmt.Errorf("summarize %s: empty response", articleID)
	}
	return model.Summary{
		Executive: resp.Executive,
		Technical: resp.Technical,
		Model:     firstNonEmpty(resp.Model, resp.Enriched),
	}, nil
}

// ExtractIntelligence runs extraction and returns the raw response; the
// enrichment cache normalizes it.
func (c *Client) ExtractIntelligence(ctx context.Context, articleID string, opts enrich.ExtractOptions) ([]byte, error) {
	path := "/api/articles/" + url.PathEscape(articleID) + "/intelligence/extract"
	return c.do(ctx, http.MethodPost, path, nil, map[string]bool{
		"use_ai": opts.UseAI,
		"save":   opts.Save,
	})
}

// Intelligence reads the article's persisted intelligence.
func (c *Client) Intelligence(ctx context.Context, articleID string) ([]byte, error) {
	return c.getJSON(ctx, "/api/articles/"+url.PathEscape(articleID)+"/intelligence", nil)
}
