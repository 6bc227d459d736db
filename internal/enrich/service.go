package enrich

import (
	"context"
	"errors"

	"github.com/abelbrown/watchfloor/internal/model"
)

// ErrUnconfigured is returned when the enrichment backend has no AI
// provider configured. It is user-visible and never cached.
var ErrUnconfigured = errors.New("enrichment backend not configured")

// ExtractOptions are the flags passed to the extraction endpoint.
type ExtractOptions struct {
	UseAI bool // let the backend call its model rather than regex-only extraction
	Save  bool // persist results server-side so later fetches carry them
}

// Service computes enrichments. The cache never decides how; it only calls.
type Service interface {
	// Summarize returns the executive and technical summaries for an article.
	Summarize(ctx context.Context, articleID string) (model.Summary, error)

	// ExtractIntelligence runs extraction and returns the raw response body,
	// which may come in any of the shapes DecodeExtraction understands.
	ExtractIntelligence(ctx context.Context, articleID string, opts ExtractOptions) ([]byte, error)

	// Intelligence reads the article's persisted intelligence. Used when an
	// extraction response carries no items itself.
	Intelligence(ctx context.Context, articleID string) ([]byte, error)
}

// Unconfigured is the Service used when no enrichment backend exists, e.g.
// when reading feeds directly.
type Unconfigured struct{}

var _ Service = Unconfigured{}

func (Unconfigured) Summarize(context.Context, string) (model.Summary, error) {
	return model.Summary{}, ErrUnconfigured
}

func (Unconfigured) ExtractIntelligence(context.Context, string, ExtractOptions) ([]byte, error) {
	return nil, ErrUnconfigured
}

func (Unconfigured) Intelligence(context.Context, string) ([]byte, error) {
	return nil, ErrUnconfigured
}
