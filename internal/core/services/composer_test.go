package services

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/askrichie/internal/runtime"
)

// createTestServices creates runtime services for testing
func createTestServices(embedding *mocks.MockEmbeddingService, llm *mocks.MockLLMService) *runtime.Services {
	services := runtime.NewServices(domain.NewRuntimeConfig("postgres"))
	if embedding != nil {
		services.SetEmbeddingService(embedding)
	}
	if llm != nil {
		services.SetLLMService(llm)
	}
	return services
}

func marketChunks() []*domain.RankedChunk {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []*domain.RankedChunk{
		{Chunk: &domain.DocumentChunk{ID: "h", Title: "Houston Market Guide", DocType: "guide", TextContent: "Houston rents rose 4%.", CreatedAt: created}, Similarity: 0.91},
		{Chunk: &domain.DocumentChunk{ID: "d", Title: "Dallas Market Guide", DocType: "guide", TextContent: "Dallas rents were flat.", CreatedAt: created}, Similarity: 0.80},
	}
}

func TestBuildContext(t *testing.T) {
	got := BuildContext(marketChunks())

	want := "[doc-1: Houston Market Guide]\nHouston rents rose 4%.\n\n[doc-2: Dallas Market Guide]\nDallas rents were flat."
	assert.Equal(t, want, got)
}

func TestBuildSystemPrompt(t *testing.T) {
	p := domain.DefaultPersona()

	prompt := BuildSystemPrompt(p)

	assert.Contains(t, prompt, "You are Richie")
	assert.Contains(t, prompt, p.LegalDecline)
	assert.Contains(t, prompt, p.OpinionRedirect)
	assert.Contains(t, prompt, "[doc-N: Title]")
	for _, rule := range p.Rules {
		assert.Contains(t, prompt, rule)
	}
}

func TestBuildUserPrompt(t *testing.T) {
	got := BuildUserPrompt("  What about Houston rents? ", "[doc-1: A]\nbody")

	assert.Equal(t, "Sources:\n\n[doc-1: A]\nbody\n\nQuestion: What about Houston rents?", got)
}

func TestSanitizeCitations(t *testing.T) {
	sources := domain.CitationsFor(marketChunks())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "canonical tokens are kept",
			in:   "Rents rose [doc-1: Houston Market Guide].",
			want: "Rents rose [doc-1: Houston Market Guide].",
		},
		{
			name: "title is rewritten to the source title",
			in:   "Rents rose [doc-1: Houston guide].",
			want: "Rents rose [doc-1: Houston Market Guide].",
		},
		{
			name: "bare reference gains its title",
			in:   "Flat [doc-2].",
			want: "Flat [doc-2: Dallas Market Guide].",
		},
		{
			name: "out of range tokens are stripped",
			in:   "Rents rose [doc-3: Austin Guide] and fell [doc-0: Nothing].",
			want: "Rents rose and fell.",
		},
		{
			name: "text without tokens is unchanged",
			in:   "No citations here.",
			want: "No citations here.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeCitations(tt.in, sources))
		})
	}
}

func TestComposer_HoustonDallasScenario(t *testing.T) {
	llm := mocks.NewMockLLMService()
	llm.Response = "Houston rents rose 4% [doc-1: Houston Market Guide], while Dallas was flat [doc-2: Dallas Market Guide]."
	llm.TokensUsed = 321
	composer := NewComposer(ComposerConfig{Services: createTestServices(nil, llm)})

	answer, err := composer.Compose(context.Background(), "What about Houston rents?", marketChunks(), domain.DefaultPersona())

	require.NoError(t, err)
	assert.Equal(t, "Houston Market Guide", answer.Sources[0].Title)
	assert.Equal(t, "doc-1", answer.Sources[0].Reference)
	assert.Equal(t, 321, answer.TokensUsed)

	first := strings.Index(answer.Text, "[doc-1: Houston Market Guide]")
	second := strings.Index(answer.Text, "[doc-2: Dallas Market Guide]")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second)
}

func TestComposer_EveryCitationMapsToItsSource(t *testing.T) {
	llm := mocks.NewMockLLMService()
	llm.Response = "A [doc-2: wrong]. B [doc-7: nope]. C [doc-1: Houston Market Guide]."
	composer := NewComposer(ComposerConfig{Services: createTestServices(nil, llm)})

	answer, err := composer.Compose(context.Background(), "q", marketChunks(), domain.DefaultPersona())
	require.NoError(t, err)

	tokens := regexp.MustCompile(`\[doc-(\d+): ([^\]]*)\]`).FindAllStringSubmatch(answer.Text, -1)
	require.Len(t, tokens, 2)
	for _, tok := range tokens {
		n, _ := strconv.Atoi(tok[1])
		require.LessOrEqual(t, n, len(answer.Sources))
		assert.Equal(t, answer.Sources[n-1].Title, tok[2])
	}
}

func TestComposer_UsesPersonaGenerationConfig(t *testing.T) {
	llm := mocks.NewMockLLMService()
	composer := NewComposer(ComposerConfig{Services: createTestServices(nil, llm)})

	persona := domain.Persona{Name: "Tester", Generation: domain.GenerationConfig{MaxTokens: 256, Temperature: domain.Float64(0.1)}}
	_, err := composer.Compose(context.Background(), "q", marketChunks(), persona)
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, 256, reqs[0].MaxTokens)
	assert.Equal(t, 0.1, reqs[0].Temperature)
	assert.Contains(t, reqs[0].System, "You are Tester")
	assert.Contains(t, reqs[0].User, "[doc-1: Houston Market Guide]")
	assert.True(t, strings.HasSuffix(reqs[0].User, "Question: q"))
}

func TestComposer_NoChunksNeverCallsModel(t *testing.T) {
	llm := mocks.NewMockLLMService()
	composer := NewComposer(ComposerConfig{Services: createTestServices(nil, llm)})

	_, err := composer.Compose(context.Background(), "q", nil, domain.DefaultPersona())

	assert.ErrorIs(t, err, domain.ErrNoContentAvailable)
	assert.Zero(t, llm.Calls())
}

func TestComposer_GenerationFailures(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		llm := mocks.NewMockLLMService()
		llm.GenerateFn = func(driven.GenerationRequest) (*driven.GenerationResult, error) {
			return nil, errors.New("HTTP 500")
		}
		composer := NewComposer(ComposerConfig{Services: createTestServices(nil, llm)})

		_, err := composer.Compose(context.Background(), "q", marketChunks(), domain.DefaultPersona())
		assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
		assert.Equal(t, domain.MessageGenerationFailed, domain.UserMessage(err))
	})

	t.Run("empty completion", func(t *testing.T) {
		llm := mocks.NewMockLLMService()
		llm.Response = "   "
		composer := NewComposer(ComposerConfig{Services: createTestServices(nil, llm)})

		_, err := composer.Compose(context.Background(), "q", marketChunks(), domain.DefaultPersona())
		assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	})

	t.Run("no provider", func(t *testing.T) {
		composer := NewComposer(ComposerConfig{Services: createTestServices(nil, nil)})

		_, err := composer.Compose(context.Background(), "q", marketChunks(), domain.DefaultPersona())
		assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	})
}
