package prompt

import (
	"fmt"
	"strings"
)

// System prompts sent alongside each request. The model is told to answer in
// strict JSON; the parser still never trusts it.
const (
	AnalyzeSystem   = "Tu es un expert culinaire. Réponds uniquement en JSON."
	RecipesSystem   = "Tu es un assistant culinaire. Réponds en JSON uniquement."
	NutritionSystem = "Tu es un nutritionniste. Réponds uniquement en JSON."
)

// ConnectionProbe is the minimal prompt used by the connectivity check.
const ConnectionProbe = "Dis juste OK"

// Analyze builds the food-analysis prompt for a free-text description.
func Analyze(description string) string {
	return fmt.Sprintf(`Analyse: %s

Réponds en JSON strict :
{
  "ingredients": ["ingrédient1", "ingrédient2"],
  "recipes": [
    {
      "name": "Nom recette",
      "ingredients": ["ingrédient1", "ingrédient2"],
      "instructions": ["étape1", "étape2"],
      "cookingTime": "15 min"
    }
  ],
  "nutritionalInfo": {
    "calories": 200,
    "proteins": 10,
    "carbs": 30,
    "fats": 5
  }
}`, description)
}

// Recipes builds the recipe-suggestion prompt. Only the first three
// ingredients are sent.
func Recipes(ingredients []string) string {
	if len(ingredients) > 3 {
		ingredients = ingredients[:3]
	}
	return fmt.Sprintf(`Créer 2 recettes avec: %s

Réponds en JSON:
{
  "recipes": [
    {
      "name": "Nom recette",
      "ingredients": ["ing1", "ing2"],
      "instructions": ["étape1", "étape2"],
      "cookingTime": "20 min"
    }
  ]
}`, strings.Join(ingredients, ", "))
}

// Nutrition builds the nutrition-facts prompt for 100g of a food.
func Nutrition(foodName string) string {
	return fmt.Sprintf(`Infos nutritionnelles pour 100g de %s:

Réponds en JSON:
{
  "calories": 100,
  "proteins": 8,
  "carbs": 15,
  "fats": 2,
  "fiber": 3,
  "vitamins": ["A", "C", "D"]
}`, foodName)
}
