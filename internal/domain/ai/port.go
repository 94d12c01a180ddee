package ai

import (
	"context"

	"github.com/hzerradi/foodscan/internal/domain/food"
)

// Client is the port to the hosted completion endpoint.
type Client interface {
	// AnalyzeFood analyzes a food description. Decode failures are absorbed
	// into a fixed fallback result; only transport failures surface as errors.
	AnalyzeFood(ctx context.Context, description string) (food.Analysis, error)

	// RecipesByIngredients suggests recipes. Decode failures yield an empty
	// list, not an error.
	RecipesByIngredients(ctx context.Context, ingredients []string) ([]food.Recipe, error)

	// NutritionalInfo returns nutrition facts for a food name. Unlike the two
	// above, a decode failure is propagated as an error.
	NutritionalInfo(ctx context.Context, foodName string) (food.NutritionalInfo, error)

	// TestConnection reports whether the endpoint answers. Never returns an
	// error; any failure is false.
	TestConnection(ctx context.Context) bool

	// CheckQuota probes the provider-side key quota, best effort: any failure
	// returns a zero value.
	CheckQuota(ctx context.Context) Quota

	ClearCache()
	CacheSize() int
}

// Quota is the provider-side key usage, as reported by the auth endpoint.
type Quota struct {
	Remaining float64 `json:"remaining,omitempty"`
	Limit     float64 `json:"limit,omitempty"`
	ResetTime string  `json:"resetTime,omitempty"`
}
