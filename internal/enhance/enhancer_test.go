package enhance

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxgallery/internal/completion"
	"fluxgallery/internal/config"
)

type stubCompletion struct {
	reply   string
	err     error
	calls   int
	lastReq completion.ChatRequest
}

func (s *stubCompletion) Complete(_ context.Context, req completion.ChatRequest) (string, error) {
	s.calls++
	s.lastReq = req
	return s.reply, s.err
}

func testConfig() config.CompletionConfig {
	return config.CompletionConfig{
		Model:       "gpt-4o",
		Temperature: 0.7,
		MaxTokens:   300,
	}
}

func newTestEnhancer(client CompletionClient) *Enhancer {
	return New(client, nil, testConfig(), zerolog.Nop())
}

const richPrompt = "A sweeping hyperrealistic mountain valley at golden hour, mist rolling between ancient pines, " +
	"a lone hiker silhouetted on the ridge, volumetric light rays, photographic quality, meticulous environmental detail."

func TestEnhanceEmptyText(t *testing.T) {
	e := newTestEnhancer(&stubCompletion{})

	_, err := e.Enhance(context.Background(), Request{Text: ""})
	require.ErrorIs(t, err, ErrTextRequired)

	_, err = e.Enhance(context.Background(), Request{Text: "   \t\n"})
	require.ErrorIs(t, err, ErrTextRequired)
}

func TestEnhancePassThrough(t *testing.T) {
	client := &stubCompletion{reply: richPrompt}
	e := newTestEnhancer(client)

	result, err := e.Enhance(context.Background(), Request{Text: "a mountain valley"})
	require.NoError(t, err)
	assert.Equal(t, richPrompt, result.Prompt)
	assert.True(t, result.IsValidImagePrompt)
}

func TestEnhanceUsesDefaultStyle(t *testing.T) {
	client := &stubCompletion{reply: richPrompt}
	e := newTestEnhancer(client)

	_, err := e.Enhance(context.Background(), Request{Text: "a cat"})
	require.NoError(t, err)

	require.Len(t, client.lastReq.Messages, 2)
	system := client.lastReq.Messages[0]
	assert.Equal(t, completion.RoleSystem, system.Role)
	assert.Contains(t, system.Content, DefaultStyle)
	assert.Contains(t, system.Content, `"a cat"`)
	assert.Equal(t, completion.RoleUser, client.lastReq.Messages[1].Role)
	assert.Equal(t, 0.7, client.lastReq.Temperature)
	assert.Equal(t, 300, client.lastReq.MaxTokens)
}

func TestEnhanceExplicitStyle(t *testing.T) {
	client := &stubCompletion{reply: richPrompt}
	e := newTestEnhancer(client)

	_, err := e.Enhance(context.Background(), Request{Text: "a cat", Style: "Watercolor"})
	require.NoError(t, err)
	assert.Contains(t, client.lastReq.Messages[0].Content, "Watercolor")
	assert.NotContains(t, client.lastReq.Messages[0].Content, DefaultStyle)
}

func TestEnhanceRefusalMarkers(t *testing.T) {
	refusals := []string{
		"I cannot create a prompt for that request because it violates policy and I am unable to continue with the request as stated by the rules that govern assistant behavior in these situations broadly.",
		"That is not appropriate content for image generation.",
		"I apologize, but this request goes against my guidelines.",
	}

	for _, reply := range refusals {
		client := &stubCompletion{reply: reply}
		e := newTestEnhancer(client)

		result, err := e.Enhance(context.Background(), Request{Text: "something"})
		require.NoError(t, err)
		assert.Equal(t, refusalFallbackPrompt, result.Prompt)
		assert.True(t, result.IsValidImagePrompt)
	}
}

func TestEnhanceSorryLengthGate(t *testing.T) {
	// Short completion containing the phrase is a refusal.
	client := &stubCompletion{reply: "I'm sorry, I can't help with that."}
	e := newTestEnhancer(client)

	result, err := e.Enhance(context.Background(), Request{Text: "something"})
	require.NoError(t, err)
	assert.Equal(t, refusalFallbackPrompt, result.Prompt)

	// The same phrase inside a long legitimate completion passes through.
	long := `A dimly lit theater stage where an actor mouths the words "I'm sorry" to an empty auditorium, ` +
		"dramatic spotlight from above, dust motes drifting through the beam, velvet curtains, hyperreal texture and depth."
	require.GreaterOrEqual(t, len(long), sorryLengthGate)

	client = &stubCompletion{reply: long}
	e = newTestEnhancer(client)

	result, err = e.Enhance(context.Background(), Request{Text: "something"})
	require.NoError(t, err)
	assert.Equal(t, long, result.Prompt)
}

func TestEnhanceEnrichesThinOutput(t *testing.T) {
	client := &stubCompletion{reply: "a red apple on a table"}
	e := newTestEnhancer(client)

	result, err := e.Enhance(context.Background(), Request{Text: "apple"})
	require.NoError(t, err)

	assert.Contains(t, result.Prompt, "a red apple on a table")
	assert.True(t, strings.HasPrefix(result.Prompt, "Hyperrealistic scene with incredible detail:"))
	assert.GreaterOrEqual(t, len(result.Prompt), minPromptLength)
	assert.GreaterOrEqual(t, len(strings.Fields(result.Prompt)), minPromptWords)
}

func TestEnhanceErrorFallback(t *testing.T) {
	client := &stubCompletion{err: errors.New("upstream timeout")}
	e := newTestEnhancer(client)

	result, err := e.Enhance(context.Background(), Request{Text: "a castle"})
	require.NoError(t, err)
	assert.Contains(t, result.Prompt, "upstream timeout")
	assert.True(t, result.IsValidImagePrompt)
	assert.GreaterOrEqual(t, len(result.Prompt), minPromptLength)
}

func TestPostProcessOrdering(t *testing.T) {
	// A refusal wins over enrichment even when the text is also thin.
	prompt, cacheable := postProcess("I cannot do that")
	assert.Equal(t, refusalFallbackPrompt, prompt)
	assert.False(t, cacheable)

	prompt, cacheable = postProcess(richPrompt)
	assert.Equal(t, richPrompt, prompt)
	assert.True(t, cacheable)
}

func TestCacheKeyDistinguishesStyle(t *testing.T) {
	assert.NotEqual(t, cacheKey("a cat", "Hyper-realism"), cacheKey("a cat", "Watercolor"))
	assert.Equal(t, cacheKey("a cat", "Watercolor"), cacheKey("a cat", "Watercolor"))
}
