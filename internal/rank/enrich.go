package rank

import (
	"context"
	"fmt"

	"github.com/starbrewcrew/brewfinder/internal/domain"
)

// SearchResult is the raw provider search payload accepted by Enrich.
type SearchResult struct {
	Features []domain.Place `json:"features"`
}

// Enrichment combines the projected shop list with the AI ranking.
type Enrichment struct {
	CoffeeShops []ShopSummary        `json:"coffeeShops"`
	Insights    domain.RankingResult `json:"insights"`
}

// Enrich projects the raw feature list into shop summaries, ranks them
// against the preferences, and returns the combined envelope. A ranking
// failure fails the whole enrichment; there is no partial success.
func (r *Ranker) Enrich(ctx context.Context, result SearchResult, preferences string) (Enrichment, error) {
	if len(result.Features) == 0 {
		return Enrichment{}, domain.Validationf("searchResult must contain at least one feature")
	}

	summaries := make([]ShopSummary, 0, len(result.Features))
	for _, feature := range result.Features {
		name := feature.Text
		if name == "" {
			name = feature.PlaceName
		}
		summary := ShopSummary{
			Name:    name,
			Address: feature.Properties.Address,
		}
		if len(feature.Center) == 2 {
			summary.Coordinates = feature.Center
		}
		summaries = append(summaries, summary)
	}

	insights, err := r.Rank(ctx, summaries, preferences)
	if err != nil {
		return Enrichment{}, fmt.Errorf("enrich search result: %w", err)
	}

	return Enrichment{CoffeeShops: summaries, Insights: insights}, nil
}
