package parser

import (
	"context"
	"log"

	"shipdecl/internal/domain"
	"shipdecl/internal/port"
)

// Page is one rendered page of a source document.
type Page struct {
	Content     []byte
	ContentType string
	Number      int
}

// Extractor is the extraction boundary used by the pipeline. Every call yields an
// ExtractionResult; provider, network and rate-limit failures become UNKNOWN/LOW results.
type Extractor struct {
	provider  port.PageExtractor
	limiter   *RateLimiter
	cache     *ResponseCache
	prompts   Prompts
	responses *ResponseParser
	onRaw     func(page int, mode domain.ExtractionMode, raw string)
}

// ExtractorOption customizes an Extractor.
type ExtractorOption func(*Extractor)

// WithCache enables response caching.
func WithCache(c *ResponseCache) ExtractorOption {
	return func(e *Extractor) { e.cache = c }
}

// WithPrompts replaces the built-in prompts.
func WithPrompts(p Prompts) ExtractorOption {
	return func(e *Extractor) { e.prompts = p }
}

// WithHomeCountry sets the origin stamped on outbound records.
func WithHomeCountry(country string) ExtractorOption {
	return func(e *Extractor) { e.responses = NewResponseParser(country) }
}

// WithRawResponseHook is called with every provider answer, cached or not.
func WithRawResponseHook(fn func(page int, mode domain.ExtractionMode, raw string)) ExtractorOption {
	return func(e *Extractor) { e.onRaw = fn }
}

// NewExtractor wires a provider behind the shared limiter. A nil provider means no
// credentials were configured, which is the only fatal extraction error.
func NewExtractor(provider port.PageExtractor, limiter *RateLimiter, opts ...ExtractorOption) (*Extractor, error) {
	if provider == nil {
		return nil, domain.ErrMissingAPIKey
	}
	if limiter == nil {
		limiter = NewRateLimiter(0)
	}
	e := &Extractor{
		provider:  provider,
		limiter:   limiter,
		prompts:   DefaultPrompts(),
		responses: defaultResponseParser,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ExtractPage extracts one page.
func (e *Extractor) ExtractPage(ctx context.Context, page Page, mode domain.ExtractionMode) domain.ExtractionResult {
	if raw, ok := e.cache.Get(page.Content, mode); ok {
		e.emitRaw(page.Number, mode, raw)
		return e.responses.Parse(raw, mode, page.Number)
	}

	if _, err := e.limiter.Wait(ctx); err != nil {
		log.Printf("parser.Extractor.ExtractPage: page %d: %v", page.Number, err)
		return domain.FailedExtraction(page.Number, "", err.Error())
	}

	out, err := e.provider.Extract(ctx, port.PageInput{
		Content:     page.Content,
		ContentType: page.ContentType,
		Mode:        mode,
		Prompt:      e.prompts.For(mode),
		PageNumber:  page.Number,
	})
	if err != nil {
		msg := err.Error()
		if IsRateLimit(err) {
			msg = "Rate limit exceeded: " + msg
		}
		log.Printf("parser.Extractor.ExtractPage: page %d extraction failed: %v", page.Number, err)
		return domain.FailedExtraction(page.Number, "", msg)
	}

	e.emitRaw(page.Number, mode, out.Text)
	res := e.responses.Parse(out.Text, mode, page.Number)
	if len(res.Errors) == 0 {
		e.cache.Set(page.Content, mode, out.Text)
	}
	return res
}

// ExtractDocument extracts pages one at a time, in order. A failed page does not stop
// the remaining pages.
func (e *Extractor) ExtractDocument(ctx context.Context, pages []Page, mode domain.ExtractionMode) []domain.ExtractionResult {
	results := make([]domain.ExtractionResult, 0, len(pages))
	for _, p := range pages {
		results = append(results, e.ExtractPage(ctx, p, mode))
	}
	return results
}

// LimiterStats exposes the shared limiter's counters.
func (e *Extractor) LimiterStats() LimiterStats {
	return e.limiter.Stats()
}

func (e *Extractor) emitRaw(page int, mode domain.ExtractionMode, raw string) {
	if e.onRaw != nil {
		e.onRaw(page, mode, raw)
	}
}
