package domain

import (
	"encoding/json"
	"fmt"
)

// RankedShop is one entry in an AI-produced ranking. Rank 1 is best.
type RankedShop struct {
	Name        string `json:"name"`
	Rank        int    `json:"rank"`
	Explanation string `json:"explanation"`
}

// RankingResult is the parsed output of the ranking flow. Ranks form a
// permutation of 1..N over the N input shops.
type RankingResult []RankedShop

// ParseRankingResult decodes a completion payload as a strict JSON
// ranking array and validates the permutation invariant. Anything that
// is not valid JSON of the expected shape is a hard failure wrapped in
// ErrInvalidRanking, never coerced into a partial or default ranking.
func ParseRankingResult(payload string) (RankingResult, error) {
	var result RankingResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRanking, err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: empty ranking array", ErrInvalidRanking)
	}

	seen := make(map[int]bool, len(result))
	for _, entry := range result {
		if entry.Name == "" {
			return nil, fmt.Errorf("%w: entry with empty name", ErrInvalidRanking)
		}
		if entry.Rank < 1 || entry.Rank > len(result) || seen[entry.Rank] {
			return nil, fmt.Errorf("%w: ranks are not a permutation of 1..%d", ErrInvalidRanking, len(result))
		}
		seen[entry.Rank] = true
	}
	return result, nil
}
