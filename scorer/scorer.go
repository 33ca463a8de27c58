// ===== 🎯 打分器：生成答案与参考答案的质量评估 =====

package scorer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/cacheval/corpus"
)

// Scorer evaluates generated answers against the corpus reference answers
// and writes the results back.
type Scorer struct {
	store  *corpus.Store
	logger *zap.Logger
}

// New creates a scorer over the corpus store.
func New(store *corpus.Store, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		store:  store,
		logger: logger.With(zap.String("component", "scorer")),
	}
}

// ScoreAndSave computes the similarity between the generated answer and the
// reference answer for id, persists both the answer and its score, and
// counts the serve. Called on a cache miss once the upstream answers.
func (s *Scorer) ScoreAndSave(ctx context.Context, id uint, generated string) (float64, error) {
	reference, err := s.store.GetReferenceAnswer(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("score %d: %w", id, err)
	}

	score := Similarity(generated, reference)
	if err := s.store.SaveGenerated(ctx, id, generated, score); err != nil {
		return 0, err
	}
	if err := s.store.IncrementHitCount(ctx, id); err != nil {
		return 0, err
	}

	s.logger.Debug("answer scored",
		zap.Uint("question_id", id),
		zap.Float64("score", score),
	)
	return score, nil
}

// RecordHit counts a cache-served request for id and returns the quality
// score persisted when the answer was generated, so hits report the same
// similarity as the miss that filled them.
func (s *Scorer) RecordHit(ctx context.Context, id uint) (float64, error) {
	qa, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := s.store.IncrementHitCount(ctx, id); err != nil {
		return 0, err
	}
	return qa.QualityScore, nil
}
