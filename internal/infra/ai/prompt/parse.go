package prompt

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/hzerradi/foodscan/internal/domain/food"
)

// Caps applied to decoded model output. The remote payload's shape and
// bounds are never trusted.
const (
	maxIngredients = 5
	maxRecipes     = 2
)

// ErrInvalidJSON is returned by the nutrition parser when no decodable JSON
// object can be found in the model output.
var ErrInvalidJSON = errors.New("réponse du modèle sans JSON exploitable")

// ExtractJSON returns the first '{' to last '}' substring of text, or ""
// when no such span exists.
func ExtractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// FallbackAnalysis is what AnalyzeFood degrades to when the model output
// cannot be decoded: one generic ingredient, one generic recipe, fixed
// nutrition placeholder.
func FallbackAnalysis() food.Analysis {
	return food.Analysis{
		Ingredients: []string{"Ingrédient détecté"},
		Recipes: []food.Recipe{{
			Name:         "Recette simple",
			Ingredients:  []string{"Ingrédient inconnu"},
			Instructions: []string{"Préparer selon les goûts"},
			CookingTime:  "15 min",
			Difficulty:   "Facile",
		}},
		NutritionalInfo: defaultNutrition(),
	}
}

func defaultNutrition() *food.NutritionalInfo {
	return &food.NutritionalInfo{Calories: 150, Proteins: 5, Carbs: 20, Fats: 3}
}

type rawRecipe struct {
	Name         string   `json:"name"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	CookingTime  string   `json:"cookingTime"`
	Difficulty   string   `json:"difficulty"`
}

type rawAnalysis struct {
	Ingredients     []string              `json:"ingredients"`
	Recipes         []rawRecipe           `json:"recipes"`
	NutritionalInfo *food.NutritionalInfo `json:"nutritionalInfo"`
}

// ParseAnalysis decodes a food-analysis answer. Every field is defaulted
// and length-capped; any decode failure yields the fixed fallback, never an
// error.
func ParseAnalysis(content string) food.Analysis {
	raw := ExtractJSON(content)
	if raw == "" {
		return FallbackAnalysis()
	}
	var parsed rawAnalysis
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return FallbackAnalysis()
	}

	out := food.Analysis{}

	out.Ingredients = parsed.Ingredients
	if len(out.Ingredients) == 0 {
		out.Ingredients = []string{"Ingrédient détecté"}
	} else if len(out.Ingredients) > maxIngredients {
		out.Ingredients = out.Ingredients[:maxIngredients]
	}

	recipes := parsed.Recipes
	if len(recipes) > maxRecipes {
		recipes = recipes[:maxRecipes]
	}
	out.Recipes = make([]food.Recipe, 0, len(recipes))
	for _, r := range recipes {
		out.Recipes = append(out.Recipes, normalizeRecipe(r))
	}

	out.NutritionalInfo = parsed.NutritionalInfo
	if out.NutritionalInfo == nil {
		out.NutritionalInfo = defaultNutrition()
	}
	return out
}

// normalizeRecipe fills missing fields so no recipe ever reaches callers
// with absent values.
func normalizeRecipe(r rawRecipe) food.Recipe {
	out := food.Recipe{
		Name:         r.Name,
		Ingredients:  r.Ingredients,
		Instructions: r.Instructions,
		CookingTime:  r.CookingTime,
		Difficulty:   r.Difficulty,
	}
	if out.Name == "" {
		out.Name = "Recette suggérée"
	}
	if out.Ingredients == nil {
		out.Ingredients = []string{}
	}
	if out.Instructions == nil {
		out.Instructions = []string{}
	}
	if out.CookingTime == "" {
		out.CookingTime = "15 min"
	}
	if out.Difficulty == "" {
		out.Difficulty = "Facile"
	}
	return out
}

// ParseRecipes decodes a recipe-suggestion answer. Failures are swallowed
// into an empty list.
func ParseRecipes(content string) []food.Recipe {
	raw := ExtractJSON(content)
	if raw == "" {
		return []food.Recipe{}
	}
	var parsed struct {
		Recipes []rawRecipe `json:"recipes"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return []food.Recipe{}
	}
	out := make([]food.Recipe, 0, len(parsed.Recipes))
	for _, r := range parsed.Recipes {
		out = append(out, normalizeRecipe(r))
	}
	return out
}

// ParseNutrition decodes a nutrition answer. Unlike the analysis and recipe
// paths this propagates decode failures to the caller.
func ParseNutrition(content string) (food.NutritionalInfo, error) {
	raw := ExtractJSON(content)
	if raw == "" {
		return food.NutritionalInfo{}, ErrInvalidJSON
	}
	var parsed food.NutritionalInfo
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return food.NutritionalInfo{}, err
	}
	return parsed, nil
}
