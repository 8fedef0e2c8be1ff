package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
	"github.com/custodia-labs/askrichie/internal/core/ports/driving"
	"github.com/custodia-labs/askrichie/internal/runtime"
)

// Ensure questionService implements QuestionService
var _ driving.QuestionService = (*questionService)(nil)

const (
	defaultMaxQuestionChars = 2000
	defaultAskLockTTL       = 2 * time.Minute
	defaultHistoryLimit     = 20
	maxHistoryLimit         = 100
)

// questionService implements the QuestionService interface
type questionService struct {
	services     *runtime.Services
	retriever    *Retriever
	composer     *Composer
	guard        *UsageGuard
	tiers        driven.TierProvider
	interactions driven.InteractionStore
	personas     PersonaProvider
	lock         driven.DistributedLock
	lockTTL      time.Duration
	maxChars     int
	now          func() time.Time
	logger       *slog.Logger
}

// QuestionServiceConfig holds the collaborators of the answer pipeline.
type QuestionServiceConfig struct {
	Services     *runtime.Services // Embedding and LLM providers
	Retriever    *Retriever
	Composer     *Composer
	Guard        *UsageGuard
	Tiers        driven.TierProvider
	Interactions driven.InteractionStore
	Personas     PersonaProvider        // default: built-in persona
	Lock         driven.DistributedLock // Optional: serializes questions per user across instances
	LockTTL      time.Duration          // default: 2m
	MaxChars     int                    // Question length ceiling (default: 2000)
	Clock        func() time.Time
	Logger       *slog.Logger
}

// NewQuestionService creates a new QuestionService
func NewQuestionService(cfg QuestionServiceConfig) driving.QuestionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	personas := cfg.Personas
	if personas == nil {
		personas = NewStaticPersonaSource(domain.DefaultPersona())
	}
	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = defaultAskLockTTL
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxQuestionChars
	}

	return &questionService{
		services:     cfg.Services,
		retriever:    cfg.Retriever,
		composer:     cfg.Composer,
		guard:        cfg.Guard,
		tiers:        cfg.Tiers,
		interactions: cfg.Interactions,
		personas:     personas,
		lock:         cfg.Lock,
		lockTTL:      lockTTL,
		maxChars:     maxChars,
		now:          clock,
		logger:       logger,
	}
}

// Ask answers one question.
//
// Order: per-user lock, tier, quota check, embed, retrieve, compose, quota
// commit, persist. Nothing is counted or stored unless an answer was
// generated, and the commit is undone if the interaction cannot be stored.
func (s *questionService) Ask(ctx context.Context, req driving.AskRequest) (*domain.Answer, error) {
	if req.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(question) > s.maxChars {
		return nil, fmt.Errorf("%w: question exceeds %d characters", domain.ErrInvalidInput, s.maxChars)
	}

	logger := s.logger.With("user_id", req.UserID)

	if s.lock != nil {
		lockName := "ask:" + req.UserID
		acquired, err := s.lock.Acquire(ctx, lockName, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire ask lock: %w", err)
		}
		if !acquired {
			return nil, domain.ErrSubmissionInFlight
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
				logger.Warn("failed to release ask lock", "error", err)
			}
		}()
	}

	tier := s.resolveTier(ctx, req.UserID)

	decision, err := s.guard.Check(ctx, req.UserID, tier)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, decision.Err()
	}

	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrEmbeddingUnavailable)
	}
	vector, err := embedder.EmbedQuery(ctx, question)
	if err != nil {
		logger.Error("embedding failed", "error", err)
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrDimensionMismatch) ||
			errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}

	retrieved, err := s.retriever.Retrieve(ctx, vector)
	if err != nil {
		return nil, err
	}

	answer, err := s.composer.Compose(ctx, question, retrieved.Chunks, s.personas.Current())
	if err != nil {
		return nil, err
	}

	committed, err := s.guard.Commit(ctx, req.UserID, tier)
	if err != nil {
		return nil, err
	}
	if !committed.Allowed {
		return nil, committed.Err()
	}

	interaction := &domain.Interaction{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Question:    question,
		Answer:      answer.Text,
		SourcesUsed: domain.SourcesFromCitations(answer.Sources),
		TokensUsed:  answer.TokensUsed,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.interactions.Save(ctx, interaction); err != nil {
		if relErr := s.guard.Release(context.WithoutCancel(ctx), req.UserID, committed); relErr != nil {
			logger.Error("failed to release usage after save failure", "error", relErr)
		}
		return nil, fmt.Errorf("save interaction: %w", err)
	}

	answer.InteractionID = interaction.ID
	logger.Info("question answered",
		"interaction_id", interaction.ID,
		"tier", tier,
		"sources", len(answer.Sources),
		"tokens", answer.TokensUsed)
	return answer, nil
}

// Usage reports the caller's quota for the current UTC day
func (s *questionService) Usage(ctx context.Context, userID string) (*domain.UsageStatus, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.guard.Status(ctx, userID, s.resolveTier(ctx, userID))
}

// History lists the caller's past interactions, newest first
func (s *questionService) History(ctx context.Context, userID string, limit int) ([]*domain.Interaction, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.interactions.ListByUser(ctx, userID, limit)
}

// resolveTier looks up the subscription tier. Lookup failures resolve to trial.
func (s *questionService) resolveTier(ctx context.Context, userID string) domain.Tier {
	if s.tiers == nil {
		return domain.TierTrial
	}
	tier, err := s.tiers.Tier(ctx, userID)
	if err != nil {
		s.logger.Warn("tier lookup failed, using trial", "user_id", userID, "error", err)
		return domain.TierTrial
	}
	return domain.ParseTier(string(tier))
}
