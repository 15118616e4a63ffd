package quiz

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// PackCache defines cache behavior (implemented by Redis-backed Cache).
type PackCache interface {
	Get(ctx context.Context, quizID uuid.UUID) (*Pack, error)
	Set(ctx context.Context, pack Pack) error
}

// Loader fetches quiz content from the backing store.
type Loader interface {
	LoadQuiz(ctx context.Context, quizID uuid.UUID) (Quiz, error)
	LoadQuestions(ctx context.Context, quizID uuid.UUID) ([]Question, error)
}

// Service is the quiz repository seen by play sessions: cache first, then the
// loader, with concurrent misses for one quiz collapsed into a single load.
type Service struct {
	loader Loader
	cache  PackCache
	sf     singleflight.Group
	logger zerolog.Logger
}

// NewService builds a quiz service. cache may be nil.
func NewService(loader Loader, cache PackCache, logger zerolog.Logger) *Service {
	return &Service{
		loader: loader,
		cache:  cache,
		logger: logger.With().Str("component", "quiz").Logger(),
	}
}

// LoadQuestions returns a private copy of the quiz's ordered questions if playerID may play it.
func (s *Service) LoadQuestions(ctx context.Context, quizID, playerID uuid.UUID) ([]Question, error) {
	pack, err := s.Pack(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !pack.Quiz.CanPlay(playerID) {
		return nil, ErrAccessDenied
	}
	if len(pack.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	out := make([]Question, len(pack.Questions))
	for i, q := range pack.Questions {
		out[i] = q.Clone()
	}
	return out, nil
}

// Pack returns the quiz with its questions sorted by order.
func (s *Service) Pack(ctx context.Context, quizID uuid.UUID) (Pack, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, quizID)
		if err != nil {
			s.logger.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("quiz cache read failed")
		} else if cached != nil {
			return *cached, nil
		}
	}

	result, err, _ := s.sf.Do(quizID.String(), func() (interface{}, error) {
		meta, err := s.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return Pack{}, err
		}
		questions, err := s.loader.LoadQuestions(ctx, quizID)
		if err != nil {
			return Pack{}, fmt.Errorf("load questions: %w", err)
		}
		sort.SliceStable(questions, func(i, j int) bool {
			return questions[i].Order < questions[j].Order
		})

		pack := Pack{Quiz: meta, Questions: questions}
		if s.cache != nil {
			if err := s.cache.Set(ctx, pack); err != nil {
				s.logger.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("quiz cache write failed")
			}
		}
		return pack, nil
	})
	if err != nil {
		return Pack{}, err
	}
	return result.(Pack), nil
}
