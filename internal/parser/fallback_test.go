package parser_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shipdecl/internal/parser"
	"shipdecl/internal/port"
	"shipdecl/mocks"
)

func pageOutput(model string) *port.PageOutput {
	return &port.PageOutput{Text: `{"confidence":"HIGH"}`, ModelUsed: model, PromptUsed: "prompt"}
}

var fallbackInput = port.PageInput{Content: []byte("img"), ContentType: "image/png", PageNumber: 1}

func TestFallbackExtractor_FirstSucceeds(t *testing.T) {
	p1 := new(mocks.MockPageExtractor)
	p2 := new(mocks.MockPageExtractor)
	p1.On("Extract", mock.Anything, fallbackInput).Return(pageOutput("claude"), nil)

	fe := parser.NewFallbackExtractor([]port.PageExtractor{p1, p2}, []string{"claude", "openai"})
	out, err := fe.Extract(context.Background(), fallbackInput)

	require.NoError(t, err)
	assert.Equal(t, "claude", out.ModelUsed)
	p2.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestFallbackExtractor_FirstFails_SecondSucceeds(t *testing.T) {
	p1 := new(mocks.MockPageExtractor)
	p2 := new(mocks.MockPageExtractor)
	p1.On("Extract", mock.Anything, fallbackInput).Return(nil, errors.New("boom"))
	p2.On("Extract", mock.Anything, fallbackInput).Return(pageOutput("openai"), nil)

	fe := parser.NewFallbackExtractor([]port.PageExtractor{p1, p2}, []string{"claude", "openai"})
	out, err := fe.Extract(context.Background(), fallbackInput)

	require.NoError(t, err)
	assert.Equal(t, "openai", out.ModelUsed)
}

func TestFallbackExtractor_RateLimitOpensCircuit(t *testing.T) {
	p1 := new(mocks.MockPageExtractor)
	p2 := new(mocks.MockPageExtractor)
	p1.On("Extract", mock.Anything, fallbackInput).Return(nil, parser.NewRateLimitError("claude", errors.New("429"), 60)).Once()
	p2.On("Extract", mock.Anything, fallbackInput).Return(pageOutput("openai"), nil)

	fe := parser.NewFallbackExtractor([]port.PageExtractor{p1, p2}, []string{"claude", "openai"})

	_, err := fe.Extract(context.Background(), fallbackInput)
	require.NoError(t, err)
	_, err = fe.Extract(context.Background(), fallbackInput)
	require.NoError(t, err)

	p1.AssertNumberOfCalls(t, "Extract", 1)
	p2.AssertNumberOfCalls(t, "Extract", 2)
}

func TestFallbackExtractor_AllRateLimited(t *testing.T) {
	p1 := new(mocks.MockPageExtractor)
	p2 := new(mocks.MockPageExtractor)
	p1.On("Extract", mock.Anything, fallbackInput).Return(nil, parser.NewRateLimitError("claude", errors.New("429"), 30))
	p2.On("Extract", mock.Anything, fallbackInput).Return(nil, parser.NewRateLimitError("openai", errors.New("429"), 10))

	fe := parser.NewFallbackExtractor([]port.PageExtractor{p1, p2}, []string{"claude", "openai"})
	_, err := fe.Extract(context.Background(), fallbackInput)

	var rl *parser.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, "all", rl.Provider)
	assert.LessOrEqual(t, rl.RetryAfter.Seconds(), 10.0)

	// Both circuits are open now; the next call does not reach either provider.
	_, err = fe.Extract(context.Background(), fallbackInput)
	assert.True(t, parser.IsRateLimit(err))
	p1.AssertNumberOfCalls(t, "Extract", 1)
	p2.AssertNumberOfCalls(t, "Extract", 1)
}

func TestFallbackExtractor_AllFail(t *testing.T) {
	p1 := new(mocks.MockPageExtractor)
	p2 := new(mocks.MockPageExtractor)
	p1.On("Extract", mock.Anything, fallbackInput).Return(nil, parser.NewRateLimitError("claude", errors.New("429"), 30))
	p2.On("Extract", mock.Anything, fallbackInput).Return(nil, errors.New("bad gateway"))

	fe := parser.NewFallbackExtractor([]port.PageExtractor{p1, p2}, []string{"claude", "openai"})
	_, err := fe.Extract(context.Background(), fallbackInput)

	require.Error(t, err)
	assert.False(t, parser.IsRateLimit(err))
	assert.Contains(t, err.Error(), "all providers failed")
	assert.Contains(t, err.Error(), "bad gateway")
}
