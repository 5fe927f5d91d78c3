// internal/diagnosis/engine/ranker.go
package engine

import (
	"sort"

	apperrors "diagnosis-workers/internal/common/errors"
)

// Ranking is the ordered list of surviving condition scores.
type Ranking struct {
	Scores          []ConditionScore
	TotalCandidates int
}

// rankScores drops scores below minRelevance, orders the rest by final
// score then condition id, and assigns 1-based ranks.
func rankScores(scores []ConditionScore, minRelevance float64) (*Ranking, error) {
	kept := make([]ConditionScore, 0, len(scores))
	for _, s := range scores {
		if s.FinalScore < minRelevance-scoreEpsilon {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return nil, apperrors.NewEmptyResultError(minRelevance)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].FinalScore != kept[j].FinalScore {
			return kept[i].FinalScore > kept[j].FinalScore
		}
		return kept[i].ConditionID < kept[j].ConditionID
	})
	for i := range kept {
		kept[i].Rank = i + 1
	}

	return &Ranking{Scores: kept, TotalCandidates: len(kept)}, nil
}

// Primary returns the rank 1 score.
func (r *Ranking) Primary() ConditionScore {
	return r.Scores[0]
}

// At returns the score at a 1-based rank.
func (r *Ranking) At(rank int) (ConditionScore, bool) {
	if rank < 1 || rank > len(r.Scores) {
		return ConditionScore{}, false
	}
	return r.Scores[rank-1], true
}

// ScoreGap is final(rank) minus final(rank+1). It reports false when rank+1
// does not exist.
func (r *Ranking) ScoreGap(rank int) (float64, bool) {
	if rank < 1 || rank >= len(r.Scores) {
		return 0, false
	}
	return r.Scores[rank-1].FinalScore - r.Scores[rank].FinalScore, true
}

// Top returns at most n scores; n <= 0 returns all of them.
func (r *Ranking) Top(n int) []ConditionScore {
	if n <= 0 || n >= len(r.Scores) {
		return r.Scores
	}
	return r.Scores[:n]
}
