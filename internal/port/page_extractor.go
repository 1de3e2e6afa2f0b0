package port

import (
	"context"

	"shipdecl/internal/domain"
)

// PageInput carries one rendered page for a vision extraction call.
type PageInput struct {
	Content     []byte
	ContentType string
	Mode        domain.ExtractionMode
	Prompt      string
	PageNumber  int
}

// PageOutput is the provider's free-text answer for one page.
type PageOutput struct {
	Text       string
	ModelUsed  string
	PromptUsed string
}

// PageExtractor abstracts the external vision model.
type PageExtractor interface {
	Extract(ctx context.Context, input PageInput) (*PageOutput, error)
}
