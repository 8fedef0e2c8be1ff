package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/askrichie/internal/core/ports/driving"
)

type testPipeline struct {
	svc          driving.QuestionService
	embedding    *mocks.MockEmbeddingService
	llm          *mocks.MockLLMService
	chunks       *mocks.MockChunkStore
	counter      *mocks.MockUsageCounter
	tiers        *mocks.MockTierProvider
	interactions *mocks.MockInteractionStore
	lock         *mocks.MockDistributedLock
	now          time.Time
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()

	p := &testPipeline{
		embedding:    mocks.NewMockEmbeddingService(),
		llm:          mocks.NewMockLLMService(),
		chunks:       mocks.NewMockChunkStore(),
		counter:      mocks.NewMockUsageCounter(),
		tiers:        mocks.NewMockTierProvider(),
		interactions: mocks.NewMockInteractionStore(),
		lock:         mocks.NewMockDistributedLock(),
		now:          time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return p.now }

	for _, rc := range marketChunks() {
		p.chunks.Add(rc.Chunk, rc.Similarity)
	}
	p.llm.Response = "Houston rents rose 4% [doc-1: Houston Market Guide]."

	services := createTestServices(p.embedding, p.llm)
	p.svc = NewQuestionService(QuestionServiceConfig{
		Services:     services,
		Retriever:    NewRetriever(RetrieverConfig{Store: p.chunks}),
		Composer:     NewComposer(ComposerConfig{Services: services, Clock: clock}),
		Guard:        NewUsageGuard(UsageGuardConfig{Counter: p.counter, Clock: clock}),
		Tiers:        p.tiers,
		Interactions: p.interactions,
		Lock:         p.lock,
		Clock:        clock,
	})
	return p
}

func (p *testPipeline) ask(userID, question string) (*domain.Answer, error) {
	return p.svc.Ask(context.Background(), driving.AskRequest{UserID: userID, Question: question})
}

func (p *testPipeline) used(userID string) int {
	n, _ := p.counter.Count(context.Background(), userID, domain.DayWindow(p.now))
	return n
}

func TestQuestionService_Ask(t *testing.T) {
	p := newTestPipeline(t)

	answer, err := p.ask("u1", "What about Houston rents?")

	require.NoError(t, err)
	assert.Contains(t, answer.Text, "[doc-1: Houston Market Guide]")
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "Houston Market Guide", answer.Sources[0].Title)
	assert.Equal(t, "Dallas Market Guide", answer.Sources[1].Title)
	assert.NotEmpty(t, answer.InteractionID)
	assert.Equal(t, p.now, answer.Timestamp)

	saved := p.interactions.All()
	require.Len(t, saved, 1)
	assert.Equal(t, answer.InteractionID, saved[0].ID)
	assert.Equal(t, "u1", saved[0].UserID)
	assert.Equal(t, "What about Houston rents?", saved[0].Question)
	assert.Equal(t, answer.Text, saved[0].Answer)
	assert.Equal(t, answer.TokensUsed, saved[0].TokensUsed)
	require.Len(t, saved[0].SourcesUsed, 2)
	assert.Equal(t, "doc-1", saved[0].SourcesUsed[0].Reference)

	assert.Equal(t, 1, p.used("u1"))
	assert.False(t, p.lock.IsHeld("ask:u1"), "lock must be released")
}

func TestQuestionService_TrialAtLimitIsRateLimited(t *testing.T) {
	p := newTestPipeline(t)
	p.counter.Set("u1", domain.DayWindow(p.now), domain.DefaultDailyLimit)

	_, err := p.ask("u1", "Another one?")

	var rl *domain.RateLimitError
	require.True(t, errors.As(err, &rl), "got %v", err)
	assert.Equal(t, 15, rl.Limit)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), rl.ResetAt)
	assert.Empty(t, p.interactions.All())
	assert.Zero(t, p.embedding.Calls())
	assert.Zero(t, p.llm.Calls())
	assert.Equal(t, domain.DefaultDailyLimit, p.used("u1"))
}

func TestQuestionService_UnlimitedTierAboveLimit(t *testing.T) {
	p := newTestPipeline(t)
	p.tiers.SetTier("vip", domain.TierPremium)
	p.counter.Set("vip", domain.DayWindow(p.now), domain.DefaultDailyLimit+50)

	answer, err := p.ask("vip", "What about Houston rents?")

	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
	assert.Len(t, p.interactions.All(), 1)
}

func TestQuestionService_DailyQuotaAcrossOneDay(t *testing.T) {
	p := newTestPipeline(t)

	var rateLimited []int
	for i := 1; i <= 25; i++ {
		p.now = p.now.Add(10 * time.Minute)
		_, err := p.ask("trial-user", "Question?")
		if errors.Is(err, domain.ErrRateLimited) {
			rateLimited = append(rateLimited, i)
			continue
		}
		require.NoError(t, err, "question %d", i)
	}

	require.Len(t, rateLimited, 10)
	assert.Equal(t, 16, rateLimited[0])
	assert.Equal(t, 25, rateLimited[len(rateLimited)-1])
	assert.Len(t, p.interactions.All(), 15)

	p.now = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err := p.ask("trial-user", "New day?")
	assert.NoError(t, err, "quota resets at the next UTC midnight")
}

func TestQuestionService_EmptyCorpus(t *testing.T) {
	p := newTestPipeline(t)
	p.chunks.SearchFn = func([]float32, int, float64) ([]*domain.RankedChunk, error) { return nil, nil }
	p.chunks.CountFn = func() (int, error) { return 0, nil }

	_, err := p.ask("u1", "Anything?")

	assert.ErrorIs(t, err, domain.ErrNoContentAvailable)
	assert.Zero(t, p.llm.Calls())
	assert.Empty(t, p.interactions.All())
	assert.Zero(t, p.used("u1"))
}

func TestQuestionService_GenerationFailureStoresNothing(t *testing.T) {
	p := newTestPipeline(t)
	p.llm.SetFailNext(true)

	_, err := p.ask("u1", "What about Houston rents?")

	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	assert.Empty(t, p.interactions.All())
	assert.Zero(t, p.used("u1"))
}

func TestQuestionService_EmbeddingFailure(t *testing.T) {
	p := newTestPipeline(t)
	p.embedding.SetFailNext(true)

	_, err := p.ask("u1", "What about Houston rents?")

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Zero(t, p.chunks.Searches())
	assert.Zero(t, p.llm.Calls())
}

func TestQuestionService_SaveFailureReleasesQuota(t *testing.T) {
	p := newTestPipeline(t)
	p.interactions.SaveErr = errors.New("disk full")

	_, err := p.ask("u1", "What about Houston rents?")

	require.Error(t, err)
	assert.Zero(t, p.used("u1"))
}

func TestQuestionService_ConcurrentAskFromSameUser(t *testing.T) {
	p := newTestPipeline(t)
	p.lock.SetLockHeld("ask:u1", time.Minute)

	_, err := p.ask("u1", "Second question")

	assert.ErrorIs(t, err, domain.ErrSubmissionInFlight)
	assert.Zero(t, p.llm.Calls())

	_, err = p.ask("u2", "Other user")
	assert.NoError(t, err)
}

func TestQuestionService_InvalidInput(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.ask("u1", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = p.ask("", "Hello?")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	long := make([]byte, defaultMaxQuestionChars+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = p.ask("u1", string(long))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuestionService_TierLookupFailureUsesTrial(t *testing.T) {
	p := newTestPipeline(t)
	p.tiers.SetTier("u1", domain.TierPremium)
	p.tiers.Err = errors.New("billing db down")
	p.counter.Set("u1", domain.DayWindow(p.now), domain.DefaultDailyLimit)

	_, err := p.ask("u1", "Hello?")

	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestQuestionService_UsageAndHistory(t *testing.T) {
	p := newTestPipeline(t)
	_, err := p.ask("u1", "First?")
	require.NoError(t, err)
	p.now = p.now.Add(time.Minute)
	_, err = p.ask("u1", "Second?")
	require.NoError(t, err)

	status, err := p.svc.Usage(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierTrial, status.Tier)
	assert.Equal(t, 2, status.Used)
	assert.Equal(t, 13, status.Remaining)

	history, err := p.svc.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Second?", history[0].Question)

	_, err = p.svc.History(context.Background(), "", 10)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestQuestionService_WithoutLock(t *testing.T) {
	services := createTestServices(mocks.NewMockEmbeddingService(), mocks.NewMockLLMService())
	chunks := mocks.NewMockChunkStore()
	chunks.Add(marketChunks()[0].Chunk, 0.9)

	svc := NewQuestionService(QuestionServiceConfig{
		Services:     services,
		Retriever:    NewRetriever(RetrieverConfig{Store: chunks}),
		Composer:     NewComposer(ComposerConfig{Services: services}),
		Guard:        NewUsageGuard(UsageGuardConfig{Counter: mocks.NewMockUsageCounter()}),
		Tiers:        mocks.NewMockTierProvider(),
		Interactions: mocks.NewMockInteractionStore(),
	})

	answer, err := svc.Ask(context.Background(), driving.AskRequest{UserID: "u1", Question: "Hi?"})
	require.NoError(t, err)
	assert.Equal(t, "Mock answer [doc-1: Houston Market Guide]", answer.Text)
}
