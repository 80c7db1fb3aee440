// Package rank builds AI rankings of coffee shops from free-text user
// preferences, via the completion client.
package rank

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starbrewcrew/brewfinder/internal/adapter/openrouter"
	"github.com/starbrewcrew/brewfinder/internal/domain"
)

// Completer is the slice of the completion client the ranker needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (openrouter.Completion, error)
}

// ShopSummary is the lightweight shop projection embedded in ranking
// prompts. It accepts both full Shop records and raw provider features.
type ShopSummary struct {
	Name        string         `json:"name"`
	Address     string         `json:"address,omitempty"`
	Coordinates any            `json:"coordinates,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// Ranker asks the generative-text provider to order shops by how well
// they fit the user's stated preferences.
type Ranker struct {
	completer Completer
}

// NewRanker creates a Ranker on the given completion client.
func NewRanker(completer Completer) *Ranker {
	return &Ranker{completer: completer}
}

// Rank builds the ranking prompt, invokes the provider, and parses the
// answer as a strict JSON ranking. A malformed answer is a hard
// failure: a wrong or missing ranking is worse than an explicit error.
func (r *Ranker) Rank(ctx context.Context, shops []ShopSummary, preferences string) (domain.RankingResult, error) {
	if len(shops) == 0 {
		return nil, domain.Validationf("coffeeShops must be a non-empty array")
	}

	prompt, err := buildPrompt(shops, preferences)
	if err != nil {
		return nil, err
	}

	completion, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("rank shops: %w", err)
	}

	return domain.ParseRankingResult(extractPayload(completion.Text()))
}

func buildPrompt(shops []ShopSummary, preferences string) (string, error) {
	serialized, err := json.Marshal(shops)
	if err != nil {
		return "", fmt.Errorf("serialize shops for prompt: %w", err)
	}

	var b strings.Builder
	b.WriteString("You rank local coffee shops for a user.\n\n")
	b.WriteString("Coffee shops:\n")
	b.Write(serialized)
	b.WriteString("\n\nUser preferences: ")
	if preferences == "" {
		b.WriteString("none given; rank by overall appeal")
	} else {
		b.WriteString(preferences)
	}
	b.WriteString("\n\nAnswer with ONLY a JSON array, no prose, where each element is ")
	b.WriteString(`{"name": string, "rank": number, "explanation": string}. `)
	b.WriteString(fmt.Sprintf("Rank every shop exactly once with ranks 1 to %d, 1 being the best match.", len(shops)))
	return b.String(), nil
}

// extractPayload strips the markdown code fence some models wrap JSON
// answers in. The content inside must still be strictly valid.
func extractPayload(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(trimmed)
}
