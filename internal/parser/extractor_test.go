package parser_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shipdecl/internal/domain"
	"shipdecl/internal/parser"
	"shipdecl/internal/port"
	"shipdecl/mocks"
)

const courierJSON = `{"document_type":"COURIER_LABEL","mode":"COURIER","tracking_or_awb":"8846 0237 3339","confidence":"HIGH"}`

func pngPage(n int, content string) parser.Page {
	return parser.Page{Content: []byte(content), ContentType: "image/png", Number: n}
}

func TestNewExtractor_NilProvider(t *testing.T) {
	e, err := parser.NewExtractor(nil, nil)
	assert.Nil(t, e)
	assert.ErrorIs(t, err, domain.ErrMissingAPIKey)
}

func TestExtractor_ExtractPage_Success(t *testing.T) {
	provider := new(mocks.MockPageExtractor)
	provider.On("Extract", mock.Anything, mock.MatchedBy(func(in port.PageInput) bool {
		return in.Mode == domain.ExtractionModeInbound &&
			in.PageNumber == 4 &&
			in.ContentType == "image/png" &&
			in.Prompt == parser.DefaultPrompts().For(domain.ExtractionModeInbound)
	})).Return(&port.PageOutput{Text: courierJSON, ModelUsed: "m"}, nil).Once()

	var rawSeen []string
	e, err := parser.NewExtractor(provider, parser.NewRateLimiter(0),
		parser.WithRawResponseHook(func(_ int, _ domain.ExtractionMode, raw string) {
			rawSeen = append(rawSeen, raw)
		}))
	require.NoError(t, err)

	res := e.ExtractPage(context.Background(), pngPage(4, "label"), domain.ExtractionModeInbound)

	assert.Equal(t, domain.DocumentTypeCourierLabel, res.DocumentType)
	assert.Equal(t, "884602373339", *res.TrackingOrAWB)
	assert.Equal(t, 4, res.PageNumber)
	assert.Equal(t, []string{courierJSON}, rawSeen)
	assert.Equal(t, 1, e.LimiterStats().TotalCalls)
	provider.AssertExpectations(t)
}

func TestExtractor_ExtractPage_ProviderError(t *testing.T) {
	provider := new(mocks.MockPageExtractor)
	provider.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	e, err := parser.NewExtractor(provider, nil)
	require.NoError(t, err)

	res := e.ExtractPage(context.Background(), pngPage(2, "x"), domain.ExtractionModeInbound)

	assert.Equal(t, domain.DocumentTypeUnknown, res.DocumentType)
	assert.Equal(t, domain.ConfidenceLow, res.Confidence)
	assert.Equal(t, 2, res.PageNumber)
	assert.Equal(t, []string{"connection reset"}, res.Errors)
}

func TestExtractor_ExtractPage_RateLimited(t *testing.T) {
	provider := new(mocks.MockPageExtractor)
	provider.On("Extract", mock.Anything, mock.Anything).
		Return(nil, parser.NewRateLimitError("claude", errors.New("429"), 30))

	e, err := parser.NewExtractor(provider, nil)
	require.NoError(t, err)

	res := e.ExtractPage(context.Background(), pngPage(1, "x"), domain.ExtractionModeOutboundAWB)

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Rate limit exceeded: ")
	assert.Equal(t, domain.ConfidenceLow, res.Confidence)
}

func TestExtractor_CacheHitSkipsProvider(t *testing.T) {
	provider := new(mocks.MockPageExtractor)
	provider.On("Extract", mock.Anything, mock.Anything).
		Return(&port.PageOutput{Text: courierJSON}, nil).Once()

	e, err := parser.NewExtractor(provider, nil, parser.WithCache(parser.NewResponseCache(0)))
	require.NoError(t, err)

	first := e.ExtractPage(context.Background(), pngPage(1, "same"), domain.ExtractionModeInbound)
	second := e.ExtractPage(context.Background(), pngPage(7, "same"), domain.ExtractionModeInbound)

	assert.Equal(t, *first.TrackingOrAWB, *second.TrackingOrAWB)
	assert.Equal(t, 7, second.PageNumber)
	assert.Equal(t, 1, e.LimiterStats().TotalCalls)
	provider.AssertNumberOfCalls(t, "Extract", 1)
}

func TestExtractor_FailedParseNotCached(t *testing.T) {
	provider := new(mocks.MockPageExtractor)
	provider.On("Extract", mock.Anything, mock.Anything).
		Return(&port.PageOutput{Text: "no json here"}, nil)

	e, err := parser.NewExtractor(provider, nil, parser.WithCache(parser.NewResponseCache(0)))
	require.NoError(t, err)

	e.ExtractPage(context.Background(), pngPage(1, "p"), domain.ExtractionModeInbound)
	res := e.ExtractPage(context.Background(), pngPage(1, "p"), domain.ExtractionModeInbound)

	assert.Equal(t, []string{"No JSON found in response"}, res.Errors)
	provider.AssertNumberOfCalls(t, "Extract", 2)
}

func TestExtractor_CustomPromptsAndHomeCountry(t *testing.T) {
	prompts := parser.DefaultPrompts()
	prompts[domain.ExtractionModeOutboundAWB] = "read the awb"

	provider := new(mocks.MockPageExtractor)
	provider.On("Extract", mock.Anything, mock.MatchedBy(func(in port.PageInput) bool {
		return in.Prompt == "read the awb"
	})).Return(&port.PageOutput{Text: `{"awb_number":"61812345675"}`}, nil)

	e, err := parser.NewExtractor(provider, nil, parser.WithPrompts(prompts), parser.WithHomeCountry("MALAYSIA"))
	require.NoError(t, err)

	res := e.ExtractPage(context.Background(), pngPage(1, "awb"), domain.ExtractionModeOutboundAWB)

	assert.Equal(t, "MALAYSIA", *res.OriginCountry)
	assert.Equal(t, "618-12345675", *res.TrackingOrAWB)
}

func TestExtractor_ExtractDocument_KeepsOrderPastFailures(t *testing.T) {
	provider := new(mocks.MockPageExtractor)
	provider.On("Extract", mock.Anything, mock.MatchedBy(func(in port.PageInput) bool { return in.PageNumber == 2 })).
		Return(nil, errors.New("boom"))
	provider.On("Extract", mock.Anything, mock.Anything).
		Return(&port.PageOutput{Text: courierJSON}, nil)

	e, err := parser.NewExtractor(provider, nil)
	require.NoError(t, err)

	results := e.ExtractDocument(context.Background(),
		[]parser.Page{pngPage(1, "a"), pngPage(2, "b"), pngPage(3, "c")}, domain.ExtractionModeInbound)

	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].PageNumber)
	assert.Equal(t, domain.DocumentTypeCourierLabel, results[0].DocumentType)
	assert.Equal(t, []string{"boom"}, results[1].Errors)
	assert.Equal(t, 3, results[2].PageNumber)
	assert.Empty(t, results[2].Errors)
}
