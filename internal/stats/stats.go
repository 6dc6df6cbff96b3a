// Package stats maintains exam rollup fields and computes attempt
// aggregates.
package stats

import (
	"math"

	"github.com/tranvq/exambank/internal/model"
	"github.com/tranvq/exambank/internal/store"
)

// Aggregator recomputes derived exam statistics.
type Aggregator struct {
	store *store.Store
}

// New creates an aggregator over the given store.
func New(s *store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// RecomputeExamStats scans the exam's question set and writes the
// rollup fields (total points, question count, difficulty
// distribution) back onto the exam. Call it after every question
// create, edit, or delete; the rollups are never computed lazily.
func (a *Aggregator) RecomputeExamStats(examID int64) error {
	totalPoints, questionCount, dist, err := a.store.QuestionAggregates(examID)
	if err != nil {
		return err
	}
	return a.store.UpdateExamRollups(examID, totalPoints, questionCount, dist)
}

// AttemptStatistics aggregates all graded attempts for an exam.
// With no graded attempts it returns a zeroed record, not an error.
func (a *Aggregator) AttemptStatistics(examID int64) (model.AttemptStatistics, error) {
	stats, ok, err := a.store.GradedAttemptAggregates(examID)
	if err != nil {
		return model.AttemptStatistics{}, err
	}
	if !ok {
		return model.AttemptStatistics{}, nil
	}
	stats.PassRate = round2(float64(stats.PassedCount) / float64(stats.TotalAttempts) * 100)
	stats.AvgScore = round2(stats.AvgScore)
	return stats, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
