package food

// Recipe value object. Fields are always filled when produced by the
// analysis parser; the optional ones fall back to placeholder values so
// consumers never have to nil-check.
type Recipe struct {
	Name         string   `json:"name"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	CookingTime  string   `json:"cookingTime,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
}

// NutritionalInfo per 100g. Absence of the whole block is valid; it is
// carried as a nil pointer on the owning result.
type NutritionalInfo struct {
	Calories float64  `json:"calories,omitempty"`
	Proteins float64  `json:"proteins,omitempty"`
	Carbs    float64  `json:"carbs,omitempty"`
	Fats     float64  `json:"fats,omitempty"`
	Fiber    float64  `json:"fiber,omitempty"`
	Vitamins []string `json:"vitamins,omitempty"`
}

// Analysis is what the model returns for a food description, after
// defensive decoding: at most 5 ingredients, at most 2 recipes.
type Analysis struct {
	Ingredients     []string         `json:"ingredients"`
	Recipes         []Recipe         `json:"recipes"`
	NutritionalInfo *NutritionalInfo `json:"nutritionalInfo,omitempty"`
}
