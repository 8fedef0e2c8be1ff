package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
	"github.com/custodia-labs/askrichie/internal/runtime"
)

// Composer turns retrieved chunks into a grounded, cited answer.
type Composer struct {
	services *runtime.Services
	now      func() time.Time
	logger   *slog.Logger
}

// ComposerConfig holds configuration for the composer.
type ComposerConfig struct {
	Services *runtime.Services // Provides the LLM service
	Clock    func() time.Time
	Logger   *slog.Logger
}

// NewComposer creates a new Composer.
func NewComposer(cfg ComposerConfig) *Composer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Composer{
		services: cfg.Services,
		now:      clock,
		logger:   logger,
	}
}

// Compose asks the generation model to answer question from chunks only.
// chunks must be in rank order; sources in the answer keep that order.
func (c *Composer) Compose(ctx context.Context, question string, chunks []*domain.RankedChunk, persona domain.Persona) (*domain.Answer, error) {
	if len(chunks) == 0 {
		return nil, domain.ErrNoContentAvailable
	}

	llm := c.services.LLMService()
	if llm == nil {
		return nil, fmt.Errorf("%w: no generation provider configured", domain.ErrGenerationUnavailable)
	}

	persona = persona.WithDefaults()
	sources := domain.CitationsFor(chunks)

	req := driven.GenerationRequest{
		System:      BuildSystemPrompt(persona),
		User:        BuildUserPrompt(question, BuildContext(chunks)),
		MaxTokens:   persona.Generation.MaxTokens,
		Temperature: *persona.Generation.Temperature,
	}

	start := time.Now()
	result, err := llm.Generate(ctx, req)
	if err != nil {
		c.logger.Error("generation failed", "model", llm.Model(), "error", err)
		if errors.Is(err, domain.ErrGenerationUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationUnavailable, err)
	}

	text := strings.TrimSpace(SanitizeCitations(result.Text, sources))
	if text == "" {
		return nil, fmt.Errorf("%w: empty completion", domain.ErrGenerationUnavailable)
	}

	c.logger.Debug("answer composed",
		"model", llm.Model(),
		"sources", len(sources),
		"tokens", result.TokensUsed,
		"took", time.Since(start))

	return &domain.Answer{
		Text:       text,
		Sources:    sources,
		TokensUsed: result.TokensUsed,
		Timestamp:  c.now().UTC(),
	}, nil
}

// BuildContext renders chunks as numbered source blocks separated by a blank line.
func BuildContext(chunks []*domain.RankedChunk) string {
	blocks := make([]string, len(chunks))
	for i, rc := range chunks {
		blocks[i] = fmt.Sprintf("[%s: %s]\n%s", domain.CitationReference(i+1), rc.Chunk.Title, rc.Chunk.TextContent)
	}
	return strings.Join(blocks, "\n\n")
}

// BuildSystemPrompt renders the persona as a system instruction.
func BuildSystemPrompt(p domain.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s.\n", p.Name, p.Role)
	if p.Voice != "" {
		b.WriteString(p.Voice)
		b.WriteString("\n")
	}
	b.WriteString("\nRules:\n")
	for _, rule := range p.Rules {
		fmt.Fprintf(&b, "- %s\n", rule)
	}
	fmt.Fprintf(&b, "- If the question asks for legal advice, reply with exactly this sentence and nothing else: %q\n", p.LegalDecline)
	fmt.Fprintf(&b, "- If the question asks for your personal opinion, start your reply with exactly this sentence: %q\n", p.OpinionRedirect)
	return b.String()
}

// BuildUserPrompt combines the source blocks and the question into the user turn.
func BuildUserPrompt(question, contextBlock string) string {
	return "Sources:\n\n" + contextBlock + "\n\nQuestion: " + strings.TrimSpace(question)
}

var citationPattern = regexp.MustCompile(`(\s?)\[doc-(\d+)(?::[^\]]*)?\]`)

// SanitizeCitations rewrites [doc-N: ...] tokens to the canonical title of
// source N and strips tokens whose N is outside 1..len(sources).
func SanitizeCitations(text string, sources []domain.Citation) string {
	return citationPattern.ReplaceAllStringFunc(text, func(match string) string {
		m := citationPattern.FindStringSubmatch(match)
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1 || n > len(sources) {
			return ""
		}
		return m[1] + "[" + sources[n-1].Reference + ": " + sources[n-1].Title + "]"
	})
}
