package enhance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"fluxgallery/internal/completion"
	"fluxgallery/internal/config"
)

// ErrTextRequired is the only error Enhance surfaces to callers; every other
// failure degrades to a synthesized prompt.
var ErrTextRequired = errors.New("text required")

type Request struct {
	Text  string `json:"text" binding:"required"`
	Style string `json:"style"`
}

type Result struct {
	Prompt             string `json:"prompt"`
	IsValidImagePrompt bool   `json:"isValidImagePrompt"`
}

// CompletionClient is the slice of the completion service the enhancer needs.
type CompletionClient interface {
	Complete(ctx context.Context, req completion.ChatRequest) (string, error)
}

// Enhancer rewrites rough user text into an image-generation prompt. It never
// fails past input validation: refusals, thin output and service errors all
// collapse into usable fallback prompts because the downstream generator must
// always receive something to draw.
type Enhancer struct {
	client CompletionClient
	cache  *redis.Client
	cfg    config.CompletionConfig
	log    zerolog.Logger
}

func New(client CompletionClient, cache *redis.Client, cfg config.CompletionConfig, log zerolog.Logger) *Enhancer {
	return &Enhancer{
		client: client,
		cache:  cache,
		cfg:    cfg,
		log:    log,
	}
}

func (e *Enhancer) Enhance(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, ErrTextRequired
	}

	style := req.Style
	if style == "" {
		style = DefaultStyle
	}

	if cached, ok := e.cacheGet(ctx, req.Text, style); ok {
		return Result{Prompt: cached, IsValidImagePrompt: true}, nil
	}

	raw, err := e.client.Complete(ctx, completion.ChatRequest{
		Model: e.cfg.Model,
		Messages: []completion.Message{
			{Role: completion.RoleSystem, Content: fmt.Sprintf(systemInstruction, req.Text, style)},
			{Role: completion.RoleUser, Content: req.Text},
		},
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("completion failed, using fallback prompt")
		return Result{Prompt: errorFallback(err), IsValidImagePrompt: true}, nil
	}

	prompt, cacheable := postProcess(raw)
	if cacheable {
		e.cacheSet(ctx, req.Text, style, prompt)
	}

	return Result{Prompt: prompt, IsValidImagePrompt: true}, nil
}

// postProcess runs the ordered refusal / enrichment / pass-through checks.
// First match wins. The second return value reports whether the result came
// from the model (and is worth caching) rather than from the refusal fallback.
func postProcess(prompt string) (string, bool) {
	if isRefusal(prompt) {
		return refusalFallbackPrompt, false
	}

	if len(prompt) < minPromptLength || len(strings.Fields(prompt)) < minPromptWords {
		return fmt.Sprintf(enrichTemplate, prompt), true
	}

	return prompt, true
}

func isRefusal(prompt string) bool {
	for _, marker := range refusalMarkers {
		if strings.Contains(prompt, marker) {
			return true
		}
	}
	// Length-gated: long completions that merely contain the phrase are
	// assumed to be legitimate text, not a refusal.
	return strings.Contains(prompt, "I'm sorry") && len(prompt) < sorryLengthGate
}

func errorFallback(err error) string {
	subject := "unknown input"
	if err != nil && err.Error() != "" {
		subject = err.Error()
	}
	return fmt.Sprintf(errorFallbackTemplate, subject)
}

func cacheKey(text string, style string) string {
	sum := sha256.Sum256([]byte(text + "|" + style))
	return "enhance:" + hex.EncodeToString(sum[:16])
}

func (e *Enhancer) cacheGet(ctx context.Context, text string, style string) (string, bool) {
	if e.cache == nil || e.cfg.CacheTTL <= 0 {
		return "", false
	}
	val, err := e.cache.Get(ctx, cacheKey(text, style)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			e.log.Debug().Err(err).Msg("enhance cache read failed")
		}
		return "", false
	}
	return val, true
}

func (e *Enhancer) cacheSet(ctx context.Context, text string, style string, prompt string) {
	if e.cache == nil || e.cfg.CacheTTL <= 0 {
		return
	}
	if err := e.cache.Set(ctx, cacheKey(text, style), prompt, e.cfg.CacheTTL).Err(); err != nil {
		e.log.Debug().Err(err).Msg("enhance cache write failed")
	}
}
